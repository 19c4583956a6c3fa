package credit

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian-pos/internal/catalog"
	"github.com/meridian-pos/meridian-pos/internal/platform/db"
)

// NewTxStore binds customer balance operations to an open transaction.
func NewTxStore(q db.DBTX) TxStore {
	return &txStore{q: q}
}

type txStore struct {
	q db.DBTX
}

func (s *txStore) GetCustomerForUpdate(ctx context.Context, id int64) (catalog.Customer, error) {
	return catalog.GetCustomerForUpdate(ctx, s.q, id)
}

func (s *txStore) SetCustomerBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE customers SET balance = $2, updated_at = NOW() WHERE id = $1`, id, balance)
	if err != nil {
		return fmt.Errorf("credit: set balance: %w", db.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("credit: set balance: customer %d vanished", id)
	}
	return nil
}
