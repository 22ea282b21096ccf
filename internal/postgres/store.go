// Package postgres implements repository.Store on PostgreSQL with pgx.
//
// Every mutation that can race with another writer is a single conditional
// UPDATE whose affected-row count decides the outcome. Reads never take row
// locks; correctness comes from the conditions, not from SELECT ... FOR UPDATE.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/dukerupert/kirana/internal/repository"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queries implements repository.Querier against a pool or a transaction.
type queries struct {
	db dbtx
}

// atomic runs a multi-statement write as one unit: a transaction on the
// pool, or a savepoint when q is already inside one.
func (q *queries) atomic(ctx context.Context, fn func(q *queries) error) error {
	return pgx.BeginFunc(ctx, q.db, func(tx pgx.Tx) error {
		return fn(&queries{db: tx})
	})
}

var _ repository.Querier = (*queries)(nil)

// Config holds connection pool settings.
type Config struct {
	URL      string
	MaxConns int32
}

// Store is the PostgreSQL-backed repository.Store.
type Store struct {
	*queries
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

var _ repository.Store = (*Store)(nil)

// New connects to PostgreSQL and verifies the connection.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewFromPool(pool, logger), nil
}

// NewFromPool wraps an existing pool.
func NewFromPool(pool *pgxpool.Pool, logger zerolog.Logger) *Store {
	return &Store{
		queries: &queries{db: pool},
		pool:    pool,
		logger:  logger.With().Str("component", "postgres").Logger(),
	}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases every pooled connection.
func (s *Store) Close() {
	s.pool.Close()
}

// InTx runs fn in a transaction, retrying the whole transaction on
// serialization failures and deadlocks.
func (s *Store) InTx(ctx context.Context, fn func(q repository.Querier) error) error {
	attempt := 0
	return withRetry(ctx, func() error {
		attempt++
		if attempt > 1 {
			s.logger.Warn().Int("attempt", attempt).Msg("Retrying transaction")
		}
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			return fn(&queries{db: tx})
		})
	})
}
