package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateRequest marks a replayed idempotency key. It wraps ErrConflict
// so transports answer 409.
var ErrDuplicateRequest = fmt.Errorf("%w: request already processed", ErrConflict)

// Execer is the single pgx operation the store needs, satisfied by both
// pools and transactions.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// KeyClaimer reserves an idempotency key for exactly one request.
type KeyClaimer interface {
	Claim(ctx context.Context, key, scope string) error
}

// IdempotencyStore persists processed keys. Claims run on the document's own
// transaction, so a rolled-back request frees its key and may be retried.
type IdempotencyStore struct {
	q Execer
}

// NewIdempotencyStore constructs the store over a pool or transaction.
func NewIdempotencyStore(q Execer) *IdempotencyStore {
	return &IdempotencyStore{q: q}
}

// Claim inserts the key for the given scope, failing with
// ErrDuplicateRequest when another request already holds it.
func (s *IdempotencyStore) Claim(ctx context.Context, key, scope string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if scope == "" {
		return errors.New("idempotency scope required")
	}
	_, err := s.q.Exec(ctx, `INSERT INTO idempotency_keys (scope, key, created_at) VALUES ($1, $2, NOW())`, scope, key)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateRequest
		}
		return err
	}
	return nil
}

// Cleanup removes keys older than the retention window.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil {
		return nil
	}
	cutoff := time.Now().Add(-olderThan)
	_, err := s.q.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	return err
}
