package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const txKey contextKey = "db_tx"

// ErrConflict is returned when a store-level uniqueness constraint rejects a
// write, typically because a concurrent caller created the same record first.
var ErrConflict = errors.New("conflicting record already exists")

// WithTx returns a context carrying the given transaction. Repositories
// resolve their connection through TxFromContext so that all statements
// issued under the context join the same transaction.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// TxFromContext retrieves the transaction from context, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}

// RunInTx executes fn inside a single transaction. The transaction is stored
// in the context passed to fn; any repository call made with that context
// joins it. A non-nil error from fn rolls everything back. If the context
// already carries a transaction, fn joins it and commit/rollback is left to
// the outermost caller.
func RunInTx(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Runner adapts a pool into the transaction-runner function the domain
// services consume, so unit tests can substitute a passthrough.
func Runner(pool *pgxpool.Pool) func(context.Context, func(context.Context) error) error {
	return func(ctx context.Context, fn func(context.Context) error) error {
		return RunInTx(ctx, pool, fn)
	}
}

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
