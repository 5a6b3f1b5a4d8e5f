// Package postgres mirrors crawled records and run bookkeeping into Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultTable receives mirrored records when no table is configured.
const DefaultTable = "crawl_records"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store owns the pool shared by every mirrored output.
type Store struct {
	pool      pool
	table     string
	runsTable string
}

// New connects to Postgres using cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: p, table: table, runsTable: table + "_runs"}, nil
}

// EnsureSchema creates the record and run tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	records := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	output      text        NOT NULL,
	kind        text        NOT NULL,
	dedup_key   text        NOT NULL,
	payload     jsonb       NOT NULL,
	inserted_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (output, kind, dedup_key)
)`, s.table)
	if _, err := s.pool.Exec(ctx, records); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}

	runs := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id            text        PRIMARY KEY,
	command       text        NOT NULL,
	started_at    timestamptz NOT NULL,
	finished_at   timestamptz,
	status        text        NOT NULL,
	succeeded     integer     NOT NULL DEFAULT 0,
	failed        integer     NOT NULL DEFAULT 0,
	error_message text
)`, s.runsTable)
	if _, err := s.pool.Exec(ctx, runs); err != nil {
		return fmt.Errorf("create %s: %w", s.runsTable, err)
	}
	return nil
}

// Table returns the mirror for one output.
func (s *Store) Table(output string) *Table {
	return &Table{store: s, output: output}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
