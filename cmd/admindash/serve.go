package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"admindash/internal/api"
	"admindash/internal/config"
	"admindash/internal/limiter"
	"admindash/internal/metrics"
	"admindash/internal/service"
	"admindash/internal/storage"
)

func newServeCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), cfg())
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info().
		Str("store_driver", cfg.Store.Driver).
		Str("addr", cfg.HTTP.ListenAddr).
		Str("stats_timezone", cfg.Stats.Location.String()).
		Msg("starting admindash")

	m := metrics.Global()
	// the store connects on first use so the server comes up even while the
	// database is still starting
	store := storage.Instrument(storage.NewLazy(func(ctx context.Context) (storage.Store, error) {
		return storage.Open(ctx, storeConfig(cfg))
	}), m)
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := store.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()

	var lim api.Limiter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, rate limiting fails open until it recovers")
		}
		lim = limiter.New(rdb, cfg.Rate.PerMinute)
		log.Info().Int64("per_minute", cfg.Rate.PerMinute).Msg("rate limiting enabled")
	}

	svc := service.New(store, service.Options{
		DefaultPageSize:     cfg.Stats.DefaultPageSize,
		MaxPageSize:         cfg.Stats.MaxPageSize,
		RelatedQueriesLimit: cfg.Stats.RelatedQueriesLimit,
		RelatedErrorsLimit:  cfg.Stats.RelatedErrorsLimit,
		Location:            cfg.Stats.Location,
		Logger:              log.Logger,
		Metrics:             m,
	})

	httpServer := &http.Server{
		Addr: cfg.HTTP.ListenAddr,
		Handler: api.NewRouter(api.Config{
			Service:        svc,
			Limiter:        lim,
			Logger:         log.Logger,
			Metrics:        m,
			HealthPath:     cfg.HTTP.HealthPath,
			MetricsPath:    cfg.HTTP.MetricsPath,
			MetricsHandler: promhttp.Handler(),
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.ListenAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("runtime error")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
	}

	log.Info().Msg("stopped")
	return runErr
}

func storeConfig(cfg *config.Config) storage.Config {
	return storage.Config{
		Driver:       cfg.Store.Driver,
		DSN:          cfg.Store.DSN,
		AutoMigrate:  cfg.Store.AutoMigrate,
		MongoURI:     cfg.Store.MongoURI,
		MongoDB:      cfg.Store.MongoDB,
		MongoMaxPool: cfg.Store.MongoMaxPool,
	}
}
