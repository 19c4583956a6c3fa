package purchases

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-pos/meridian-pos/internal/numbering"
	"github.com/meridian-pos/meridian-pos/internal/platform/db"
	"github.com/meridian-pos/meridian-pos/internal/shared"
	"github.com/meridian-pos/meridian-pos/internal/stock"
)

// TxStores bundles the transaction-bound stores a purchase needs. The
// document, its items and the stock increments share one transaction.
type TxStores struct {
	Purchases TxStore
	Stock     stock.TxStore
	Numbers   numbering.Source
	Keys      shared.KeyClaimer
}

// TxStore persists purchase rows inside the orchestration transaction.
type TxStore interface {
	InsertPurchase(ctx context.Context, purchase Purchase) (int64, error)
	InsertPurchaseItem(ctx context.Context, item PurchaseItem) (int64, error)
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStores) error) error
	GetPurchase(ctx context.Context, id int64) (Purchase, error)
}

// Repository persists purchases in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn inside one transaction shared by all
// the tx-bound stores.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStores) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, TxStores{
			Purchases: &txStore{q: tx},
			Stock:     stock.NewTxStore(tx),
			Numbers:   numbering.Bind(tx),
			Keys:      shared.NewIdempotencyStore(tx),
		})
	})
}

type txStore struct {
	q db.DBTX
}

func (s *txStore) InsertPurchase(ctx context.Context, purchase Purchase) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx, `
		INSERT INTO purchases (bill_number, supplier_id, user_id, purchase_date, subtotal,
			tax_rate, tax_amount, discount, total, status, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		RETURNING id`,
		purchase.BillNumber, purchase.SupplierID, purchase.UserID, purchase.PurchaseDate,
		purchase.Subtotal, purchase.TaxRate, purchase.TaxAmount, purchase.Discount,
		purchase.Total, purchase.Status, purchase.Notes,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("purchases: insert purchase: %w", db.MapError(err))
	}
	return id, nil
}

func (s *txStore) InsertPurchaseItem(ctx context.Context, item PurchaseItem) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx, `
		INSERT INTO purchase_items (purchase_id, product_id, quantity, unit_cost, discount,
			tax_rate, tax_amount, subtotal, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		item.PurchaseID, item.ProductID, item.Quantity, item.UnitCost, item.Discount,
		item.TaxRate, item.TaxAmount, item.Subtotal, item.Total,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("purchases: insert item: %w", db.MapError(err))
	}
	return id, nil
}

// GetPurchase loads one purchase with its items.
func (r *Repository) GetPurchase(ctx context.Context, id int64) (Purchase, error) {
	var purchase Purchase
	err := r.pool.QueryRow(ctx, `
		SELECT id, bill_number, supplier_id, user_id, purchase_date, subtotal,
		       tax_rate, tax_amount, discount, total, status, notes, created_at
		FROM purchases WHERE id = $1`, id).Scan(
		&purchase.ID, &purchase.BillNumber, &purchase.SupplierID, &purchase.UserID,
		&purchase.PurchaseDate, &purchase.Subtotal, &purchase.TaxRate, &purchase.TaxAmount,
		&purchase.Discount, &purchase.Total, &purchase.Status, &purchase.Notes, &purchase.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Purchase{}, shared.ErrNotFound
		}
		return Purchase{}, fmt.Errorf("purchases: get purchase: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, purchase_id, product_id, quantity, unit_cost, discount,
		       tax_rate, tax_amount, subtotal, total
		FROM purchase_items WHERE purchase_id = $1 ORDER BY id`, id)
	if err != nil {
		return Purchase{}, fmt.Errorf("purchases: get items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item PurchaseItem
		if err := rows.Scan(&item.ID, &item.PurchaseID, &item.ProductID, &item.Quantity,
			&item.UnitCost, &item.Discount, &item.TaxRate, &item.TaxAmount,
			&item.Subtotal, &item.Total); err != nil {
			return Purchase{}, fmt.Errorf("purchases: scan item: %w", err)
		}
		purchase.Items = append(purchase.Items, item)
	}
	return purchase, rows.Err()
}
