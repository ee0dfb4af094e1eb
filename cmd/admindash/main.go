package main

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"admindash/internal/config"
)

func main() {
	// a missing .env is fine; real environment variables still apply
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("admindash failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config
	root := &cobra.Command{
		Use:           "admindash",
		Short:         "Admin dashboard API over the assistant's document store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
				loaded.Log.Level = lvl
			}
			setupLogger(loaded.Log.Level)
			cfg = loaded
			return nil
		},
	}
	root.PersistentFlags().String("log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	loadedConfig := func() *config.Config { return cfg }
	root.AddCommand(newServeCmd(loadedConfig), newSeedCmd(loadedConfig))
	return root
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLogLevel(level))
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
