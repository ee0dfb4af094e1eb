package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"admindash/internal/record"
)

var ErrNotFound = errors.New("not found")

type Collection string

const (
	Users   Collection = "users"
	Queries Collection = "queries"
	Errors  Collection = "errors"
)

// StoreError wraps any backend failure other than a missing record.
type StoreError struct {
	Op         string
	Collection Collection
	Err        error
}

func (e *StoreError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, coll Collection, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Collection: coll, Err: err}
}

// Store is the read surface the dashboard needs from a document database,
// plus Insert for seeding. Field names are the stored document keys
// ("status", "userId", "lastSeen", ...).
type Store interface {
	Count(ctx context.Context, coll Collection, f Filter) (int64, error)
	Find(ctx context.Context, coll Collection, f Filter, opts FindOptions) ([]record.Document, error)
	FindByID(ctx context.Context, coll Collection, id string) (record.Document, error)
	CountDistinct(ctx context.Context, coll Collection, field string, f Filter) (int64, error)
	Sum(ctx context.Context, coll Collection, field string, f Filter) (int64, error)
	// Avg reports ok=false when no document matched.
	Avg(ctx context.Context, coll Collection, field string, f Filter) (avg float64, ok bool, err error)
	DailyTotals(ctx context.Context, coll Collection, dateField, sumField string, since time.Time) ([]DayTotal, error)
	Insert(ctx context.Context, coll Collection, docs []record.Document) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Filter is a backend-neutral predicate. Zero-valued parts are ignored and
// the remaining parts are ANDed.
type Filter struct {
	// Search matches Term case-insensitively as a substring of any of Fields.
	Search *Search
	// Equals requires every field to hold exactly the given value.
	Equals map[string]string
	// AnyEqual requires at least one field to hold its value.
	AnyEqual map[string]string
	// IDs restricts to the given ids. A non-nil empty slice matches nothing.
	IDs       []string
	ExcludeID string
	Since     *Since
}

type Search struct {
	Fields []string
	Term   string
}

// Since keeps documents whose Field instant is on or after From.
type Since struct {
	Field string
	From  time.Time
}

type FindOptions struct {
	SortField  string
	Descending bool
	Skip       int64
	Limit      int64
}

// DayTotal is one UTC calendar day bucket.
type DayTotal struct {
	Day   string
	Count int64
	Sum   int64
}

type Config struct {
	Driver      string
	DSN         string
	AutoMigrate bool

	MongoURI     string
	MongoDB      string
	MongoMaxPool uint64
}

// Open connects the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch normalizeDriver(cfg.Driver) {
	case "mongo":
		s, err := OpenMongo(ctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoMaxPool)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres", "sqlite":
		s, err := OpenSQL(ctx, cfg.Driver, cfg.DSN, cfg.AutoMigrate)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

func normalizeDriver(driver string) string {
	d := strings.ToLower(strings.TrimSpace(driver))
	switch d {
	case "mongo", "mongodb":
		return "mongo"
	case "postgres", "pgx":
		return "postgres"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return d
	}
}
