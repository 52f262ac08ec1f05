package postgres

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx via database/sql
	"github.com/jmoiron/sqlx"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	URL              string        `yaml:"url"`
	MaxConns         int           `yaml:"max_conns"`
	MinConns         int           `yaml:"min_conns"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// DB wraps the PostgreSQL connection and enforces a per-statement timeout
// so one slow query cannot hold a request thread indefinitely.
type DB struct {
	*sqlx.DB
	stmtTimeout time.Duration
}

// NewDB opens and pings a database connection.
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	} else {
		db.SetMaxIdleConns(2)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	stmtTimeout := cfg.StatementTimeout
	if stmtTimeout <= 0 {
		stmtTimeout = 10 * time.Second
	}

	return &DB{DB: db, stmtTimeout: stmtTimeout}, nil
}

// NewDBFromHandle wraps an existing handle (tests use go-sqlmock).
func NewDBFromHandle(db *sqlx.DB, stmtTimeout time.Duration) *DB {
	if stmtTimeout <= 0 {
		stmtTimeout = 10 * time.Second
	}
	return &DB{DB: db, stmtTimeout: stmtTimeout}
}

// queryCtx bounds a statement with the configured timeout unless the caller
// already set a tighter deadline.
func (db *DB) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.stmtTimeout)
}

// Health checks if the database is reachable.
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}
