package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	ErrMissingMongoURI    = errors.New("MONGODB_URI is required for the mongo driver")
	ErrMissingMongoDB     = errors.New("MONGODB_DB is required for the mongo driver")
	ErrMissingDatabaseDSN = errors.New("DB_DSN is required for SQL drivers")
	ErrInvalidPageSize    = errors.New("DEFAULT_PAGE_SIZE must be between 1 and MAX_PAGE_SIZE")
	ErrInvalidRelated     = errors.New("RELATED_QUERIES_LIMIT and RELATED_ERRORS_LIMIT must be > 0")
)

type Config struct {
	HTTP  HTTPConfig
	Store StoreConfig
	Redis RedisConfig
	Rate  RateConfig
	Stats StatsConfig
	Log   LogConfig
}

type HTTPConfig struct {
	ListenAddr  string
	HealthPath  string
	MetricsPath string
	ReadTimeout time.Duration
}

type StoreConfig struct {
	Driver       string
	MongoURI     string
	MongoDB      string
	MongoMaxPool uint64
	DSN          string
	AutoMigrate  bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateConfig struct {
	PerMinute int64
}

type StatsConfig struct {
	Location            *time.Location
	DefaultPageSize     int
	MaxPageSize         int
	RelatedQueriesLimit int
	RelatedErrorsLimit  int
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{
			ListenAddr:  mustEnv("LISTEN_ADDR", ":8080"),
			HealthPath:  mustEnv("HEALTH_PATH", "/healthz"),
			MetricsPath: mustEnv("METRICS_PATH", "/metrics"),
			ReadTimeout: mustDuration("HTTP_READ_TIMEOUT", 5*time.Second),
		},
		Store: StoreConfig{
			Driver:       strings.ToLower(mustEnv("STORE_DRIVER", DriverMongo)),
			MongoURI:     mustEnv("MONGODB_URI", ""),
			MongoDB:      mustEnv("MONGODB_DB", "admin_dashboard"),
			MongoMaxPool: uint64(mustInt64("MONGODB_MAX_POOL", 10)),
			DSN:          mustEnv("DB_DSN", ""),
			AutoMigrate:  mustBool("AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     mustEnv("REDIS_ADDR", ""),
			Password: mustEnv("REDIS_PASSWORD", ""),
			DB:       mustInt("REDIS_DB", 0),
		},
		Rate: RateConfig{
			PerMinute: mustInt64("RATE_LIMIT_PER_MINUTE", 120),
		},
		Stats: StatsConfig{
			DefaultPageSize:     mustInt("DEFAULT_PAGE_SIZE", 10),
			MaxPageSize:         mustInt("MAX_PAGE_SIZE", 100),
			RelatedQueriesLimit: mustInt("RELATED_QUERIES_LIMIT", 5),
			RelatedErrorsLimit:  mustInt("RELATED_ERRORS_LIMIT", 10),
		},
		Log: LogConfig{
			Level: strings.ToLower(mustEnv("LOG_LEVEL", "info")),
		},
	}

	switch cfg.Store.Driver {
	case DriverMongo, "mongodb":
		cfg.Store.Driver = DriverMongo
		if cfg.Store.MongoURI == "" {
			return nil, ErrMissingMongoURI
		}
		if cfg.Store.MongoDB == "" {
			return nil, ErrMissingMongoDB
		}
	case DriverPostgres, DriverSQLite:
		if cfg.Store.DSN == "" {
			return nil, ErrMissingDatabaseDSN
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.Store.Driver)
	}

	if cfg.Stats.MaxPageSize < 1 || cfg.Stats.DefaultPageSize < 1 || cfg.Stats.DefaultPageSize > cfg.Stats.MaxPageSize {
		return nil, ErrInvalidPageSize
	}
	if cfg.Stats.RelatedQueriesLimit < 1 || cfg.Stats.RelatedErrorsLimit < 1 {
		return nil, ErrInvalidRelated
	}

	loc, err := loadLocation(mustEnv("STATS_TIMEZONE", ""))
	if err != nil {
		return nil, err
	}
	cfg.Stats.Location = loc

	return cfg, nil
}

// loadLocation resolves the zone used for "today" in statistics. Empty means
// the server's local zone.
func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("parse STATS_TIMEZONE: %w", err)
	}
	return loc, nil
}

func mustEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func mustInt(key string, def int) int {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustInt64(key string, def int64) int64 {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func mustBool(key string, def bool) bool {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func mustDuration(key string, def time.Duration) time.Duration {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
