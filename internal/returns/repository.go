package returns

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian-pos/internal/credit"
	"github.com/meridian-pos/meridian-pos/internal/numbering"
	"github.com/meridian-pos/meridian-pos/internal/platform/db"
	"github.com/meridian-pos/meridian-pos/internal/sales"
	"github.com/meridian-pos/meridian-pos/internal/shared"
	"github.com/meridian-pos/meridian-pos/internal/stock"
)

// TxStores bundles the transaction-bound stores a return needs. The return,
// its items, the stock increments and the credit reversal share one
// transaction.
type TxStores struct {
	Returns TxStore
	Stock   stock.TxStore
	Credit  credit.TxStore
	Numbers numbering.Source
	Keys    shared.KeyClaimer
}

// TxStore persists return rows and reads sale state inside the
// orchestration transaction.
type TxStore interface {
	GetSale(ctx context.Context, saleID int64) (sales.Sale, error)
	ReturnedQuantities(ctx context.Context, saleID int64) (map[int64]decimal.Decimal, error)
	InsertReturn(ctx context.Context, ret Return) (int64, error)
	InsertReturnItem(ctx context.Context, item ReturnItem) (int64, error)
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStores) error) error
	GetReturn(ctx context.Context, id int64) (Return, error)
}

// Repository persists returns in PostgreSQL.
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
			Returns: &txStore{q: tx},
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

func (s *txStore) GetSale(ctx context.Context, saleID int64) (sales.Sale, error) {
	return sales.GetSale(ctx, s.q, saleID)
}

// ReturnedQuantities sums the quantities already returned against a sale,
// keyed by product. Runs inside the orchestration transaction so concurrent
// returns against the same sale see each other's rows.
func (s *txStore) ReturnedQuantities(ctx context.Context, saleID int64) (map[int64]decimal.Decimal, error) {
	rows, err := s.q.Query(ctx, `
		SELECT ri.product_id, COALESCE(SUM(ri.quantity), 0)
		FROM return_items ri
		JOIN returns r ON r.id = ri.return_id
		WHERE r.sale_id = $1
		GROUP BY ri.product_id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("returns: returned quantities: %w", err)
	}
	defer rows.Close()

	returned := map[int64]decimal.Decimal{}
	for rows.Next() {
		var productID int64
		var qty decimal.Decimal
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, fmt.Errorf("returns: scan returned quantity: %w", err)
		}
		returned[productID] = qty
	}
	return returned, rows.Err()
}

func (s *txStore) InsertReturn(ctx context.Context, ret Return) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx, `
		INSERT INTO returns (return_number, sale_id, customer_id, user_id, return_date,
			reason, refund_amount, status, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id`,
		ret.ReturnNumber, ret.SaleID, ret.CustomerID, ret.UserID, ret.ReturnDate,
		string(ret.Reason), ret.RefundAmount, ret.Status, ret.Notes,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("returns: insert return: %w", db.MapError(err))
	}
	return id, nil
}

func (s *txStore) InsertReturnItem(ctx context.Context, item ReturnItem) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx, `
		INSERT INTO return_items (return_id, product_id, quantity, unit_price, total)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		item.ReturnID, item.ProductID, item.Quantity, item.UnitPrice, item.Total,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("returns: insert item: %w", db.MapError(err))
	}
	return id, nil
}

// GetReturn loads one return with its items.
func (r *Repository) GetReturn(ctx context.Context, id int64) (Return, error) {
	var ret Return
	err := r.pool.QueryRow(ctx, `
		SELECT id, return_number, sale_id, customer_id, user_id, return_date,
		       reason, refund_amount, status, notes, created_at
		FROM returns WHERE id = $1`, id).Scan(
		&ret.ID, &ret.ReturnNumber, &ret.SaleID, &ret.CustomerID, &ret.UserID,
		&ret.ReturnDate, &ret.Reason, &ret.RefundAmount, &ret.Status, &ret.Notes, &ret.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Return{}, shared.ErrNotFound
		}
		return Return{}, fmt.Errorf("returns: get return: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, return_id, product_id, quantity, unit_price, total
		FROM return_items WHERE return_id = $1 ORDER BY id`, id)
	if err != nil {
		return Return{}, fmt.Errorf("returns: get items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item ReturnItem
		if err := rows.Scan(&item.ID, &item.ReturnID, &item.ProductID, &item.Quantity,
			&item.UnitPrice, &item.Total); err != nil {
			return Return{}, fmt.Errorf("returns: scan item: %w", err)
		}
		ret.Items = append(ret.Items, item)
	}
	return ret, rows.Err()
}
