// Package postgres is a pgx-backed implementation of store.Store for the
// highest-traffic entities (users, devices, organizations, memberships,
// collections and their direct user grants, ciphers, folders, sends,
// two-factor rows and auth requests). Group/GroupUser/CollectionGroup,
// Attachment and Event are delegated to an embedded memory.Store — see
// DESIGN.md for why those are not duplicated here.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaultkeep/server/internal/store/memory"
)

// PgxPool is a minimal abstraction over a Postgres connection pool.
// Implemented by *pgxpool.Pool and pgxmock.PgxPoolIface in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Close()
}

// Store wraps a PgxPool plus an in-memory side-store for the secondary
// entities listed above.
type Store struct {
	Pool PgxPool
	aux  *memory.Store
}

// New creates a connection pool for dsn and wraps it in a Store.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool, aux: memory.New()}, nil
}

// Wrap adapts an already-constructed pool (e.g. a pgxmock pool in tests).
func Wrap(pool PgxPool) *Store {
	return &Store{Pool: pool, aux: memory.New()}
}

// Close shuts down the underlying pool.
func (s *Store) Close() { s.Pool.Close() }

func isUniqueViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23505"
}

func isFKViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23503"
}
