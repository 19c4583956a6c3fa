package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-pos/meridian-pos/internal/platform/db"
	"github.com/meridian-pos/meridian-pos/internal/shared"
)

const productColumns = `id, name, sku, barcode, category_id, brand_id, description,
	cost_price, selling_price, stock_quantity, min_stock_level, unit, is_active,
	created_at, updated_at`

const customerColumns = `id, name, email, phone, address, city, state, postal_code,
	country, credit_limit, balance, is_active, created_at, updated_at`

// Repository reads masterdata rows for the ledger core.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetProduct fetches one product by id.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns), id))
}

// GetCustomer fetches one customer by id.
func (r *Repository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	return scanCustomer(r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM customers WHERE id = $1`, customerColumns), id))
}

// GetProductForUpdate locks the product row for the remainder of the
// caller's transaction.
func GetProductForUpdate(ctx context.Context, q db.DBTX, id int64) (Product, error) {
	return scanProduct(q.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM products WHERE id = $1 FOR UPDATE`, productColumns), id))
}

// GetCustomerForUpdate locks the customer row for the remainder of the
// caller's transaction.
func GetCustomerForUpdate(ctx context.Context, q db.DBTX, id int64) (Customer, error) {
	return scanCustomer(q.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM customers WHERE id = $1 FOR UPDATE`, customerColumns), id))
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Barcode, &p.CategoryID, &p.BrandID,
		&p.Description, &p.CostPrice, &p.SellingPrice, &p.StockQuantity,
		&p.MinStockLevel, &p.Unit, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrNotFound
		}
		return Product{}, fmt.Errorf("catalog: scan product: %w", err)
	}
	return p, nil
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.City,
		&c.State, &c.PostalCode, &c.Country, &c.CreditLimit, &c.Balance,
		&c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, shared.ErrNotFound
		}
		return Customer{}, fmt.Errorf("catalog: scan customer: %w", err)
	}
	return c, nil
}
