// Package numbering issues sequential human-readable document numbers,
// formatted PREFIX-YYYYMMDD-NNNN with a four digit sequence that restarts
// each day. The sequence comes from an atomic upsert on document_sequences,
// so concurrent transactions can never mint the same number.
package numbering

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-pos/meridian-pos/internal/platform/db"
)

// Document prefixes used by the orchestrators.
const (
	PrefixInvoice = "INV"
	PrefixBill    = "PUR"
	PrefixReturn  = "RET"
)

// Source issues the next number for a prefix on a given day. Implementations
// are bound to the transaction that creates the document, so an aborted
// document leaves a gap rather than a duplicate.
type Source interface {
	Next(ctx context.Context, prefix string, date time.Time) (string, error)
}

// Sequence is the PostgreSQL-backed Source.
type Sequence struct {
	q db.DBTX
}

// Bind attaches the sequence to an open transaction (or pool).
func Bind(q db.DBTX) *Sequence {
	return &Sequence{q: q}
}

// Next increments the per-day counter and renders the document number.
func (s *Sequence) Next(ctx context.Context, prefix string, date time.Time) (string, error) {
	var seq int64
	err := s.q.QueryRow(ctx, `
		INSERT INTO document_sequences (prefix, seq_date, last_seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, seq_date)
		DO UPDATE SET last_seq = document_sequences.last_seq + 1
		RETURNING last_seq`,
		prefix, date.Format("2006-01-02"),
	).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("numbering: next %s: %w", prefix, db.MapError(err))
	}
	return Format(prefix, date, seq), nil
}

// Format renders a document number without touching the store.
func Format(prefix string, date time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, date.Format("20060102"), seq)
}
