package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-pos/meridian-pos/internal/credit"
	"github.com/meridian-pos/meridian-pos/internal/numbering"
	"github.com/meridian-pos/meridian-pos/internal/platform/db"
	"github.com/meridian-pos/meridian-pos/internal/shared"
	"github.com/meridian-pos/meridian-pos/internal/stock"
)

// TxStores bundles every transaction-bound store a sale needs. All of them
// share one underlying transaction, so the document, its items, the stock
// mutations and the credit update commit or roll back together.
type TxStores struct {
	Sales   TxStore
	Stock   stock.TxStore
	Credit  credit.TxStore
	Numbers numbering.Source
	Keys    shared.KeyClaimer
}

// TxStore persists sale rows inside the orchestration transaction.
type TxStore interface {
	InsertSale(ctx context.Context, sale Sale) (int64, error)
	InsertSaleItem(ctx context.Context, item SaleItem) (int64, error)
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStores) error) error
	GetSale(ctx context.Context, id int64) (Sale, error)
}

// Repository persists sales in PostgreSQL.
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
			Sales:   &txStore{q: tx},
			Stock:   stock.NewTxStore(tx),
			Credit:  credit.NewTxStore(tx),
			Numbers: numbering.Bind(tx),
			Keys:    shared.NewIdempotencyStore(tx),
		})
	})
}

type txStore struct {
	q db.DBTX
}

func (s *txStore) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx, `
		INSERT INTO sales (invoice_number, customer_id, user_id, sale_date, subtotal,
			tax_rate, tax_amount, discount, total, payment_method, status, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		RETURNING id`,
		sale.InvoiceNumber, sale.CustomerID, sale.UserID, sale.SaleDate, sale.Subtotal,
		sale.TaxRate, sale.TaxAmount, sale.Discount, sale.Total,
		string(sale.PaymentMethod), sale.Status, sale.Notes,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("sales: insert sale: %w", db.MapError(err))
	}
	return id, nil
}

func (s *txStore) InsertSaleItem(ctx context.Context, item SaleItem) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx, `
		INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, discount,
			tax_rate, tax_amount, subtotal, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		item.SaleID, item.ProductID, item.Quantity, item.UnitPrice, item.Discount,
		item.TaxRate, item.TaxAmount, item.Subtotal, item.Total,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("sales: insert item: %w", db.MapError(err))
	}
	return id, nil
}

// GetSale loads one sale with its items.
func (r *Repository) GetSale(ctx context.Context, id int64) (Sale, error) {
	return GetSale(ctx, r.pool, id)
}

// GetSale loads a sale and its items through any pool or transaction. The
// returns orchestrator uses this inside its own transaction.
func GetSale(ctx context.Context, q db.DBTX, id int64) (Sale, error) {
	var sale Sale
	err := q.QueryRow(ctx, `
		SELECT id, invoice_number, customer_id, user_id, sale_date, subtotal,
		       tax_rate, tax_amount, discount, total, payment_method, status, notes, created_at
		FROM sales WHERE id = $1`, id).Scan(
		&sale.ID, &sale.InvoiceNumber, &sale.CustomerID, &sale.UserID, &sale.SaleDate,
		&sale.Subtotal, &sale.TaxRate, &sale.TaxAmount, &sale.Discount, &sale.Total,
		&sale.PaymentMethod, &sale.Status, &sale.Notes, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, shared.ErrNotFound
		}
		return Sale{}, fmt.Errorf("sales: get sale: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT id, sale_id, product_id, quantity, unit_price, discount,
		       tax_rate, tax_amount, subtotal, total
		FROM sale_items WHERE sale_id = $1 ORDER BY id`, id)
	if err != nil {
		return Sale{}, fmt.Errorf("sales: get items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Quantity,
			&item.UnitPrice, &item.Discount, &item.TaxRate, &item.TaxAmount,
			&item.Subtotal, &item.Total); err != nil {
			return Sale{}, fmt.Errorf("sales: scan item: %w", err)
		}
		sale.Items = append(sale.Items, item)
	}
	return sale, rows.Err()
}
