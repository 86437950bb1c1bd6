package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/arena/internal/arena"
)

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queries holds every statement. Bound to the pool it serves reads; bound to
// a pgx.Tx it is the arena.Tx handed to coordinator transactions.
type queries struct {
	db querier
}

// Store is the Postgres arena.Store.
type Store struct {
	*queries
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{queries: &queries{db: pool}, pool: pool}
}

// InTx runs fn in a read-committed transaction. Row locks taken through
// LockRoom/LockRound serialize competing commands. A transaction whose
// BEGIN never reached the server is retried once.
func (s *Store) InTx(ctx context.Context, fn func(tx arena.Tx) error) error {
	run := func() error {
		return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
			return fn(&queries{db: tx})
		})
	}
	err := run()
	if err != nil && retryable(err) && ctx.Err() == nil {
		err = run()
	}
	return classify(err)
}

var (
	_ arena.Store = (*Store)(nil)
	_ arena.Tx    = (*queries)(nil)
)
