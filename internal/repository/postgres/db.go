// internal/repository/postgres/db.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	xerrors "ordering-service/internal/pkg/errors"
)

const uniqueViolation = "23505"

// withTx runs fn in a transaction and commits when fn returns nil.
func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return xerrors.Transient(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return xerrors.Transient(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// queryError maps a pgx error to the failure taxonomy.
func queryError(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return xerrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, xerrors.ErrConflict)
	}
	return xerrors.Transient(fmt.Errorf("%s: %w", op, err))
}
