package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"admindash/internal/config"
	"admindash/internal/seed"
	"admindash/internal/storage"
)

func newSeedCmd(cfg func() *config.Config) *cobra.Command {
	var (
		file     string
		demo     bool
		seedWith uint64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a dataset into the configured store",
		Example: `  admindash seed --file dataset.json
  admindash seed --demo`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (file == "") == !demo {
				return errors.New("exactly one of --file or --demo is required")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var ds *seed.Dataset
			if demo {
				if !cmd.Flags().Changed("rand-seed") {
					seedWith = uint64(time.Now().UnixNano())
				}
				ds = seed.Demo(time.Now(), rand.New(rand.NewPCG(seedWith, seedWith)))
			} else {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				if ds, err = seed.Load(f); err != nil {
					return err
				}
			}

			store, err := storage.Open(ctx, storeConfig(cfg()))
			if err != nil {
				return err
			}
			defer store.Close(context.Background())

			counts, err := seed.Apply(ctx, store, ds)
			if err != nil {
				return err
			}
			log.Info().
				Int("users", counts.Users).
				Int("queries", counts.Queries).
				Int("errors", counts.Errors).
				Msg("dataset seeded")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON file with users, queries and errors arrays")
	cmd.Flags().BoolVar(&demo, "demo", false, "generate the demo dataset relative to the current time")
	cmd.Flags().Uint64Var(&seedWith, "rand-seed", 0, "random seed for --demo")
	return cmd
}
