package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type txContextKey struct{}

// Querier is the subset of pgx operations repositories issue. Both
// *pgxpool.Pool and pgx.Tx satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// withTx stores the transaction in the context so nested repository calls join it.
func withTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// txFromContext returns the enclosing transaction, if any.
func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(pgx.Tx)
	return tx, ok
}

// Querier resolves the executor for ctx: the enclosing transaction when one is
// open, otherwise the shared pool.
func (p *Provider) Querier(ctx context.Context) (Querier, error) {
	if tx, ok := txFromContext(ctx); ok {
		return tx, nil
	}
	return p.Pool()
}

// RunInTx executes fn inside a single transaction. Repository calls made with
// the context passed to fn share that transaction; a nested call reuses the
// open transaction instead of starting another.
func (p *Provider) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return WrapError("transaction", errors.New("postgres: transaction function is nil"))
	}
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	pool, err := p.Pool()
	if err != nil {
		return WrapError("transaction", err)
	}
	tx, err := pool.Begin(ctx)
	if err != nil {
		return WrapError("transaction", err)
	}

	if err := fn(withTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return WrapError("transaction", fmt.Errorf("rollback after %w: %v", err, rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return WrapError("transaction", err)
	}
	return nil
}
