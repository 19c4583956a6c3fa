package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-pos/meridian-pos/internal/shared"
)

// Orchestrations rely on FOR UPDATE row locks for serialisation. Under
// ReadCommitted a transaction blocked on a locked row sees the winner's
// committed value once the lock drops; RepeatableRead would instead abort
// it with a serialization failure, turning every lost row race into a 409.
func TestTxOptionsUseReadCommitted(t *testing.T) {
	require.Equal(t, pgx.ReadCommitted, txOptions.IsoLevel)
}

func TestMapError(t *testing.T) {
	pgErr := func(code string) error {
		return &pgconn.PgError{Code: code, ConstraintName: "some_constraint"}
	}

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil passes", nil, nil},
		{"no rows", pgx.ErrNoRows, shared.ErrNotFound},
		{"unique violation", pgErr("23505"), shared.ErrConflict},
		{"check violation", pgErr("23514"), shared.ErrConflict},
		{"serialization failure", pgErr("40001"), shared.ErrConflict},
		{"deadlock", pgErr("40P01"), shared.ErrConflict},
		{"lock not available", pgErr("55P03"), shared.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.in)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}

	t.Run("unknown errors pass through", func(t *testing.T) {
		cause := fmt.Errorf("connection reset")
		got := MapError(cause)
		assert.Equal(t, cause, got)
		assert.False(t, errors.Is(got, shared.ErrConflict))
	})
}
