package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	StoreOps       *prometheus.HistogramVec
	StoreErrors    *prometheus.CounterVec
	RateLimited    prometheus.Counter
	InvalidRecords *prometheus.CounterVec
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = New()
		prometheus.MustRegister(
			global.HTTPRequests,
			global.HTTPDuration,
			global.StoreOps,
			global.StoreErrors,
			global.RateLimited,
			global.InvalidRecords,
		)
	})
	return global
}

// New builds an unregistered set of collectors. Tests use it to avoid
// touching the default registry.
func New() *Metrics {
	return &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admindash",
			Name:      "http_requests_total",
			Help:      "Total API requests by route and status code",
		}, []string{"route", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "admindash",
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		StoreOps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "admindash",
			Name:      "store_operation_duration_seconds",
			Help:      "Document store operation latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "collection"}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admindash",
			Name:      "store_errors_total",
			Help:      "Document store operations that failed",
		}, []string{"op", "collection"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "admindash",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter",
		}),
		InvalidRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admindash",
			Name:      "invalid_records_total",
			Help:      "Stored documents that failed normalization",
		}, []string{"entity"}),
	}
}
