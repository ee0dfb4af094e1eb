package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"admindash/internal/metrics"
	"admindash/internal/storage"
)

type Options struct {
	DefaultPageSize     int
	MaxPageSize         int
	RelatedQueriesLimit int
	RelatedErrorsLimit  int
	// Location decides where "today" starts for the active-users stat.
	Location *time.Location
	Now      func() time.Time
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
}

// Service answers the dashboard's list, stats and detail requests. Every
// record it returns has been through the record transformer.
type Service struct {
	store storage.Store
	opts  Options
	log   zerolog.Logger
}

func New(store storage.Store, opts Options) *Service {
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 10
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 100
	}
	if opts.RelatedQueriesLimit <= 0 {
		opts.RelatedQueriesLimit = 5
	}
	if opts.RelatedErrorsLimit <= 0 {
		opts.RelatedErrorsLimit = 10
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store: store,
		opts:  opts,
		log:   opts.Logger.With().Str("component", "service").Logger(),
	}
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) startOfToday() time.Time {
	t := s.opts.Now().In(s.opts.Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.opts.Location)
}
