package stock

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian-pos/internal/catalog"
	"github.com/meridian-pos/meridian-pos/internal/platform/db"
)

// Repository persists the stock ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn inside a single transaction with a tx-bound store.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxStore(tx))
	})
}

// NewTxStore binds ledger operations to an open transaction. Orchestrators
// use this to run stock mutations inside their own WithTx scope.
func NewTxStore(q db.DBTX) TxStore {
	return &txStore{q: q}
}

type txStore struct {
	q db.DBTX
}

func (s *txStore) GetProductForUpdate(ctx context.Context, id int64) (catalog.Product, error) {
	return catalog.GetProductForUpdate(ctx, s.q, id)
}

func (s *txStore) SetProductStock(ctx context.Context, id int64, qty decimal.Decimal) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE products SET stock_quantity = $2, updated_at = NOW() WHERE id = $1`, id, qty)
	if err != nil {
		return fmt.Errorf("stock: set quantity: %w", db.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("stock: set quantity: product %d vanished", id)
	}
	return nil
}

func (s *txStore) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var refKind *string
	var refID *int64
	if !m.Ref.IsZero() {
		kind := string(m.Ref.Kind)
		refKind, refID = &kind, &m.Ref.ID
	}
	var id int64
	err := s.q.QueryRow(ctx, `
		INSERT INTO stock_movements (product_id, type, quantity, unit_cost, reference_kind, reference_id, user_id, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING id`,
		m.ProductID, string(m.Type), m.Quantity, m.UnitCost, refKind, refID, m.UserID, m.Notes,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("stock: insert movement: %w", db.MapError(err))
	}
	return id, nil
}

// ListMovements returns ledger rows, newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	query := `
		SELECT id, product_id, type, quantity, unit_cost, reference_kind, reference_id, user_id, notes, created_at
		FROM stock_movements WHERE 1=1`
	args := []any{}
	if filter.ProductID != 0 {
		args = append(args, filter.ProductID)
		query += fmt.Sprintf(" AND product_id = $%d", len(args))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("stock: list movements: %w", err)
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		var refKind *string
		var refID *int64
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Type, &m.Quantity, &m.UnitCost,
			&refKind, &refID, &m.UserID, &m.Notes, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("stock: scan movement: %w", err)
		}
		if refKind != nil && refID != nil {
			m.Ref = Reference{Kind: RefKind(*refKind), ID: *refID}
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// ListLowStock returns active products at or below their reorder threshold.
func (r *Repository) ListLowStock(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, sku, barcode, category_id, brand_id, description,
		       cost_price, selling_price, stock_quantity, min_stock_level, unit, is_active,
		       created_at, updated_at
		FROM products
		WHERE is_active AND stock_quantity <= min_stock_level
		ORDER BY stock_quantity ASC, name`)
	if err != nil {
		return nil, fmt.Errorf("stock: list low stock: %w", err)
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.Barcode, &p.CategoryID, &p.BrandID,
			&p.Description, &p.CostPrice, &p.SellingPrice, &p.StockQuantity,
			&p.MinStockLevel, &p.Unit, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("stock: scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Stats aggregates the projection across active products.
func (r *Repository) Stats(ctx context.Context) (InventoryStats, error) {
	var stats InventoryStats
	var totalValue *decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE stock_quantity > min_stock_level),
		       count(*) FILTER (WHERE stock_quantity > 0 AND stock_quantity <= min_stock_level),
		       count(*) FILTER (WHERE stock_quantity = 0),
		       SUM(stock_quantity * cost_price)
		FROM products WHERE is_active`).Scan(
		&stats.TotalProducts, &stats.InStock, &stats.LowStock, &stats.OutOfStock, &totalValue)
	if err != nil {
		return InventoryStats{}, fmt.Errorf("stock: stats: %w", err)
	}
	if totalValue != nil {
		stats.TotalValue = *totalValue
	}
	return stats, nil
}

// LedgerSums returns per-product sums of movement quantities, used by the
// reconciliation job to verify the projection.
func (r *Repository) LedgerSums(ctx context.Context) (map[int64]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT product_id, COALESCE(SUM(quantity), 0) FROM stock_movements GROUP BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("stock: ledger sums: %w", err)
	}
	defer rows.Close()

	sums := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var productID int64
		var sum decimal.Decimal
		if err := rows.Scan(&productID, &sum); err != nil {
			return nil, fmt.Errorf("stock: scan ledger sum: %w", err)
		}
		sums[productID] = sum
	}
	return sums, rows.Err()
}

// ProjectedQuantities returns stock_quantity per product id for comparison
// against LedgerSums.
func (r *Repository) ProjectedQuantities(ctx context.Context) (map[int64]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, stock_quantity FROM products`)
	if err != nil {
		return nil, fmt.Errorf("stock: projected quantities: %w", err)
	}
	defer rows.Close()

	quantities := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var id int64
		var qty decimal.Decimal
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, fmt.Errorf("stock: scan quantity: %w", err)
		}
		quantities[id] = qty
	}
	return quantities, rows.Err()
}
