package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var _ Store = (*SQLStore)(nil)

// SQLStore mirrors the document collections in PostgreSQL or SQLite.
type SQLStore struct {
	db     *sqlx.DB
	driver string
	sql    sq.StatementBuilderType
}

func OpenSQL(ctx context.Context, driver, dsn string, autoMigrate bool) (*SQLStore, error) {
	driver = normalizeDriver(driver)
	if dsn == "" {
		return nil, fmt.Errorf("dsn is empty")
	}

	var driverName string
	var dialect goose.Dialect
	var placeholder sq.PlaceholderFormat
	switch driver {
	case "postgres":
		driverName, dialect, placeholder = "pgx", goose.DialectPostgres, sq.Dollar
	case "sqlite":
		driverName, dialect, placeholder = "sqlite", goose.DialectSQLite3, sq.Question
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if driver == "sqlite" {
		// one writer at a time; concurrent readers on the same file otherwise
		// hit SQLITE_BUSY during seeding
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if autoMigrate {
		if err := migrate(ctx, db.DB, dialect); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return &SQLStore{
		db:     db,
		driver: driver,
		sql:    sq.StatementBuilder.PlaceholderFormat(placeholder),
	}, nil
}

func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	_, err = provider.Up(ctx)
	return err
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storeErr("ping", "", err)
	}
	return nil
}

func (s *SQLStore) Close(context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}
