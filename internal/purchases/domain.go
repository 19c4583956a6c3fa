package purchases

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase is an inbound stock document. Like sales it is created atomically
// with its items and the matching stock increments.
type Purchase struct {
	ID           int64           `json:"id"`
	BillNumber   string          `json:"bill_number"`
	SupplierID   *int64          `json:"supplier_id,omitempty"`
	UserID       int64           `json:"user_id"`
	PurchaseDate time.Time       `json:"purchase_date"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
	Discount     decimal.Decimal `json:"discount"`
	Total        decimal.Decimal `json:"total"`
	Status       string          `json:"status"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	Items        []PurchaseItem  `json:"items"`
}

// PurchaseItem is one received line.
type PurchaseItem struct {
	ID         int64           `json:"id"`
	PurchaseID int64           `json:"purchase_id"`
	ProductID  int64           `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	Discount   decimal.Decimal `json:"discount"`
	TaxRate    decimal.Decimal `json:"tax_rate"`
	TaxAmount  decimal.Decimal `json:"tax_amount"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Total      decimal.Decimal `json:"total"`
}

// PurchaseInput is the request payload for ProcessPurchase.
type PurchaseInput struct {
	SupplierID *int64              `json:"supplier_id"`
	Items      []PurchaseItemInput `json:"items" validate:"required,min=1,dive"`
	TaxRate    decimal.Decimal     `json:"tax_rate"`
	Discount   decimal.Decimal     `json:"discount"`
	Notes      string              `json:"notes"`

	// IdempotencyKey arrives via the Idempotency-Key header, not the body.
	IdempotencyKey string `json:"-"`
}

// PurchaseItemInput is one requested line.
type PurchaseItemInput struct {
	ProductID int64           `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"required"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Discount  decimal.Decimal `json:"discount"`
}
