package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is the sellable item whose stock_quantity the ledger projects.
// Quantities are fixed-point with up to three decimals for weight units.
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	Barcode       *string         `json:"barcode,omitempty"`
	CategoryID    *int64          `json:"category_id,omitempty"`
	BrandID       *int64          `json:"brand_id,omitempty"`
	Description   string          `json:"description,omitempty"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	StockQuantity decimal.Decimal `json:"stock_quantity"`
	MinStockLevel decimal.Decimal `json:"min_stock_level"`
	Unit          string          `json:"unit"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Customer doubles as a supplier on purchases, matching the ledger schema.
type Customer struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Email       string          `json:"email,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	Address     string          `json:"address,omitempty"`
	City        string          `json:"city,omitempty"`
	State       string          `json:"state,omitempty"`
	PostalCode  string          `json:"postal_code,omitempty"`
	Country     string          `json:"country,omitempty"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	Balance     decimal.Decimal `json:"balance"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// AvailableCredit is credit_limit minus outstanding balance.
func (c Customer) AvailableCredit() decimal.Decimal {
	return c.CreditLimit.Sub(c.Balance)
}

// weightUnits is the fixed allow-list of units that permit fractional
// quantities.
var weightUnits = map[string]struct{}{
	"kg":        {},
	"g":         {},
	"gm":        {},
	"gram":      {},
	"grams":     {},
	"kilogram":  {},
	"kilograms": {},
}

// IsWeightUnit reports whether the unit string allows fractional stock.
func IsWeightUnit(unit string) bool {
	if unit == "" {
		unit = "pcs"
	}
	_, ok := weightUnits[strings.ToLower(unit)]
	return ok
}

// ValidQuantity checks quantity against the unit's precision rules: weight
// units allow up to three decimals, every other unit must be integral.
// Zero and negative quantities are never valid input.
func ValidQuantity(unit string, qty decimal.Decimal) bool {
	if !qty.IsPositive() {
		return false
	}
	if IsWeightUnit(unit) {
		return qty.Equal(qty.Round(3))
	}
	return qty.Equal(qty.Truncate(0))
}
