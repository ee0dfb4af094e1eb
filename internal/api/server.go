package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"admindash/internal/metrics"
	"admindash/internal/service"
)

// Limiter decides whether a client may make another request in the current
// window. *limiter.RateLimiter satisfies it.
type Limiter interface {
	Allow(ctx context.Context, client string, now time.Time) (bool, int64, time.Time, error)
	Limit() int64
}

type Config struct {
	Service     *service.Service
	Limiter     Limiter
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics
	HealthPath  string
	MetricsPath string
	// MetricsHandler serves MetricsPath. Nil leaves the path unrouted.
	MetricsHandler http.Handler
	Now            func() time.Time
}

type Server struct {
	svc     *service.Service
	limiter Limiter
	log     zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRouter wires the dashboard endpoints, health check and metrics onto a
// chi router.
func NewRouter(cfg Config) http.Handler {
	s := &Server{
		svc:     cfg.Service,
		limiter: cfg.Limiter,
		log:     cfg.Logger.With().Str("component", "api").Logger(),
		metrics: cfg.Metrics,
		now:     cfg.Now,
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.now == nil {
		s.now = time.Now
	}
	healthPath := cfg.HealthPath
	if healthPath == "" {
		healthPath = "/healthz"
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestID)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get(healthPath, s.health)
	if cfg.MetricsHandler != nil && cfg.MetricsPath != "" {
		r.Method(http.MethodGet, cfg.MetricsPath, cfg.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.rateLimit)
		}
		r.Get("/dashboard/stats", s.dashboardStats)

		r.Get("/users", s.listUsers)
		r.Get("/users/{userId}", s.userDetail)
		r.Get("/users/{userId}/queries", s.userQueries)

		r.Get("/queries", s.listQueries)
		r.Get("/queries/{queryId}", s.queryDetail)

		r.Get("/errors", s.listErrors)
		r.Get("/errors/{errorId}", s.errorDetail)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(r.Context()); err != nil {
		s.logger(r).Error().Err(err).Msg("health check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
