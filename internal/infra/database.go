package infra

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/authfront/authfront/internal/identity"
	"github.com/authfront/authfront/internal/migrations"
)

// Driver names the persistence engine selected by DATABASE_URL.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// DriverFor classifies a database URL. An empty URL selects the in-memory
// store, which only development configurations allow.
func DriverFor(url string) (Driver, error) {
	lower := strings.ToLower(strings.TrimSpace(url))
	switch {
	case lower == "":
		return DriverMemory, nil
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DriverPostgres, nil
	case strings.HasPrefix(lower, "sqlite:"), strings.HasPrefix(lower, "file:"):
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database url scheme %q", url)
	}
}

// Database owns the connection behind the user store.
type Database struct {
	Driver Driver
	Store  identity.Store

	sqlDB *sql.DB
	pool  *pgxpool.Pool
}

// OpenDatabase connects to the store named by url.
func OpenDatabase(ctx context.Context, url string) (*Database, error) {
	driver, err := DriverFor(url)
	if err != nil {
		return nil, err
	}

	switch driver {
	case DriverPostgres:
		pool, err := NewPostgresPool(ctx, url)
		if err != nil {
			return nil, err
		}
		return &Database{
			Driver: driver,
			Store:  identity.NewPostgresRepository(pool),
			sqlDB:  stdlib.OpenDBFromPool(pool),
			pool:   pool,
		}, nil
	case DriverSQLite:
		db, err := NewSQLiteDB(ctx, url)
		if err != nil {
			return nil, err
		}
		return &Database{Driver: driver, Store: identity.NewSQLiteRepository(db), sqlDB: db}, nil
	default:
		return &Database{Driver: DriverMemory, Store: identity.NewMemoryRepository()}, nil
	}
}

// Migrate applies pending schema migrations. The in-memory store has no
// schema and reports no versions.
func (d *Database) Migrate(ctx context.Context) ([]int64, error) {
	switch d.Driver {
	case DriverPostgres:
		return migrations.Up(ctx, d.sqlDB, migrations.Postgres)
	case DriverSQLite:
		return migrations.Up(ctx, d.sqlDB, migrations.SQLite)
	default:
		return nil, nil
	}
}

// Version reports the applied schema version, 0 for the in-memory store.
func (d *Database) Version(ctx context.Context) (int64, error) {
	switch d.Driver {
	case DriverPostgres:
		return migrations.Version(ctx, d.sqlDB, migrations.Postgres)
	case DriverSQLite:
		return migrations.Version(ctx, d.sqlDB, migrations.SQLite)
	default:
		return 0, nil
	}
}

// Close releases the underlying connections.
func (d *Database) Close() error {
	var err error
	if d.sqlDB != nil {
		err = d.sqlDB.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
	return err
}

// NewPostgresPool configures and returns a PostgreSQL connection pool.
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// NewSQLiteDB opens a SQLite database. Accepted forms are sqlite:///relative.db,
// sqlite:////absolute.db, sqlite::memory:, and modernc file: DSNs.
func NewSQLiteDB(ctx context.Context, url string) (*sql.DB, error) {
	dsn := sqliteDSN(url)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

func sqliteDSN(url string) string {
	switch {
	case strings.HasPrefix(url, "file:"):
		return url
	case strings.HasPrefix(url, "sqlite:///"):
		url = strings.TrimPrefix(url, "sqlite:///")
	case strings.HasPrefix(url, "sqlite://"):
		url = strings.TrimPrefix(url, "sqlite://")
	default:
		url = strings.TrimPrefix(url, "sqlite:")
	}
	if url == "" {
		return ":memory:"
	}
	return url
}
