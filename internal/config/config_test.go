package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every key Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LISTEN_ADDR", "HEALTH_PATH", "METRICS_PATH", "HTTP_READ_TIMEOUT", "LOG_LEVEL",
		"STORE_DRIVER", "MONGODB_URI", "MONGODB_DB", "MONGODB_MAX_POOL", "DB_DSN", "AUTO_MIGRATE",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "RATE_LIMIT_PER_MINUTE", "STATS_TIMEZONE",
		"DEFAULT_PAGE_SIZE", "MAX_PAGE_SIZE", "RELATED_QUERIES_LIMIT", "RELATED_ERRORS_LIMIT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.ListenAddr)
	assert.Equal(t, "/healthz", cfg.HTTP.HealthPath)
	assert.Equal(t, "/metrics", cfg.HTTP.MetricsPath)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, DriverMongo, cfg.Store.Driver)
	assert.Equal(t, "admin_dashboard", cfg.Store.MongoDB)
	assert.Equal(t, uint64(10), cfg.Store.MongoMaxPool)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, int64(120), cfg.Rate.PerMinute)
	assert.Equal(t, 10, cfg.Stats.DefaultPageSize)
	assert.Equal(t, 100, cfg.Stats.MaxPageSize)
	assert.Equal(t, 5, cfg.Stats.RelatedQueriesLimit)
	assert.Equal(t, 10, cfg.Stats.RelatedErrorsLimit)
	assert.Equal(t, time.Local, cfg.Stats.Location)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("DB_DSN", "/tmp/admindash.db")
	t.Setenv("DEFAULT_PAGE_SIZE", "25")
	t.Setenv("STATS_TIMEZONE", "UTC")
	t.Setenv("HTTP_READ_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, 25, cfg.Stats.DefaultPageSize)
	assert.Equal(t, time.UTC, cfg.Stats.Location)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ReadTimeout)
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want error
	}{
		{"mongo without uri", map[string]string{}, ErrMissingMongoURI},
		{"sql without dsn", map[string]string{"STORE_DRIVER": "postgres"}, ErrMissingDatabaseDSN},
		{"page size above max", map[string]string{"MONGODB_URI": "mongodb://x", "DEFAULT_PAGE_SIZE": "200"}, ErrInvalidPageSize},
		{"zero related", map[string]string{"MONGODB_URI": "mongodb://x", "RELATED_ERRORS_LIMIT": "0"}, ErrInvalidRelated},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range c.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.ErrorIs(t, err, c.want)
		})
	}
}

func TestLoadRejectsUnknownDriverAndZone(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "cassandra")
	_, err := Load()
	assert.ErrorContains(t, err, "unsupported STORE_DRIVER")

	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("MONGODB_URI", "mongodb://x")
	t.Setenv("STATS_TIMEZONE", "Mars/Olympus")
	_, err = Load()
	assert.ErrorContains(t, err, "STATS_TIMEZONE")
}
