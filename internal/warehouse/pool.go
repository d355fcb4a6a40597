// Package warehouse owns the connection pool to the analytical warehouse that
// holds ERP and WMS sales and inventory tables.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned when the pool is used before Open or after Close.
var ErrClosed = errors.New("warehouse pool is not open")

// Config holds connection pool configuration.
type Config struct {
	DSN             string
	Timezone        string
	MinConns        int32
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// Pool is an explicitly managed pgx pool. The session timezone of every
// connection is pinned on connect.
type Pool struct {
	cfg Config

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

// NewPool creates a closed pool. Call Open before use.
func NewPool(cfg Config) *Pool {
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 10
	}
	if cfg.MinConns < 0 {
		cfg.MinConns = 0
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "America/Santiago"
	}
	return &Pool{cfg: cfg}
}

// Open connects the pool and verifies it with a ping. Calling Open on an open
// pool is a no-op.
func (p *Pool) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pool != nil {
		return nil
	}

	poolConfig, err := pgxpool.ParseConfig(p.cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to parse warehouse DSN: %w", err)
	}
	poolConfig.MinConns = p.cfg.MinConns
	poolConfig.MaxConns = p.cfg.MaxConns
	if p.cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = p.cfg.MaxConnLifetime
	}

	timezone := p.cfg.Timezone
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SELECT set_config('TimeZone', $1, false)", timezone)
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create warehouse pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping warehouse: %w", err)
	}

	p.pool = pool
	log.Info().
		Int32("min_conns", p.cfg.MinConns).
		Int32("max_conns", p.cfg.MaxConns).
		Str("timezone", timezone).
		Msg("Warehouse pool opened")
	return nil
}

// Close releases every connection. The pool can be opened again afterwards.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pool == nil {
		return
	}
	p.pool.Close()
	p.pool = nil
	log.Info().Msg("Warehouse pool closed")
}

// IsOpen reports whether Open succeeded and Close was not called since.
func (p *Pool) IsOpen() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pool != nil
}

func (p *Pool) get() (*pgxpool.Pool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.pool == nil {
		return nil, ErrClosed
	}
	return p.pool, nil
}

// Query implements pgxscan.Querier.
func (p *Pool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	pool, err := p.get()
	if err != nil {
		return nil, err
	}
	return pool.Query(ctx, sql, args...)
}

// QueryRow runs a query expected to return at most one row.
func (p *Pool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	pool, err := p.get()
	if err != nil {
		return errRow{err: err}
	}
	return pool.QueryRow(ctx, sql, args...)
}

// Exec runs a statement without rows.
func (p *Pool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	pool, err := p.get()
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return pool.Exec(ctx, sql, args...)
}

// Ping verifies the pool can reach the warehouse.
func (p *Pool) Ping(ctx context.Context) error {
	pool, err := p.get()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }
