package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-pos/meridian-pos/internal/shared"
)

// DBTX is the subset of pgx operations shared by pools and transactions.
// Repositories take it so the same store works inside and outside WithTx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txOptions pins the isolation level for every document orchestration. The
// FOR UPDATE row locks taken inside do the serialising; under ReadCommitted
// the loser of a row race re-reads the committed value once the winner's
// lock is released instead of aborting with a serialization failure.
var txOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// WithTx executes a function within a single transaction. Any error from fn
// rolls the whole transaction back; no partially applied document is ever
// visible to other transactions.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, txOptions)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// Pg error codes that surface as shared.ErrConflict to callers.
const (
	codeUniqueViolation   = "23505"
	codeCheckViolation    = "23514"
	codeSerializationFail = "40001"
	codeDeadlockDetected  = "40P01"
	codeLockNotAvailable  = "55P03"
)

// MapError translates driver-level failures into the shared taxonomy.
// Unique collisions (generated numbers, skus), constraint check violations
// (the stock_quantity >= 0 backstop) and lock contention become ErrConflict
// so clients know the request may be retried; everything else passes through
// for the caller to log.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation, codeCheckViolation, codeSerializationFail, codeDeadlockDetected, codeLockNotAvailable:
			return fmt.Errorf("%w: %s", shared.ErrConflict, pgErr.ConstraintName)
		}
	}
	return err
}
