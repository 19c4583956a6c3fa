package stock

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian-pos/internal/catalog"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementPurchase records inbound goods from a supplier bill.
	MovementPurchase MovementType = "purchase"
	// MovementSale records outbound goods on a sale; quantity is negative.
	MovementSale MovementType = "sale"
	// MovementReturn records goods coming back into inventory.
	MovementReturn MovementType = "return"
	// MovementAdjustment records an operator-initiated correction.
	MovementAdjustment MovementType = "adjustment"
	// MovementTransfer records relocation between sites.
	MovementTransfer MovementType = "transfer"
)

// RefKind tags the document a movement originated from.
type RefKind string

const (
	RefSale     RefKind = "sale"
	RefPurchase RefKind = "purchase"
	RefReturn   RefKind = "return"
)

// Reference points at the originating document. Zero value means the
// movement stands alone (manual adjustment).
type Reference struct {
	Kind RefKind `json:"kind"`
	ID   int64   `json:"id"`
}

// IsZero reports whether no document is referenced.
func (r Reference) IsZero() bool {
	return r.Kind == "" && r.ID == 0
}

// Movement is one append-only ledger row. The ledger is the source of truth
// for audit and history; products.stock_quantity is its running projection.
type Movement struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Type      MovementType    `json:"type"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	Ref       Reference       `json:"reference"`
	UserID    int64           `json:"user_id"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// MovementInput describes a delta to apply inside a caller's transaction.
type MovementInput struct {
	ProductID int64
	Type      MovementType
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
	Ref       Reference
	UserID    int64
	Notes     string
}

// AdjustmentType narrows which movement types an operator may post directly.
type AdjustmentType string

const (
	// AdjustPurchase always increases usable stock.
	AdjustPurchase AdjustmentType = "purchase"
	// AdjustCorrection applies a signed delta with the non-negativity floor.
	AdjustCorrection AdjustmentType = "adjustment"
)

// AdjustmentInput describes an operator stock correction.
type AdjustmentInput struct {
	ProductID int64
	Type      AdjustmentType
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
	UserID    int64
	Notes     string
}

// Status classifies current stock against the reorder threshold.
type Status string

const (
	StatusInStock    Status = "in_stock"
	StatusLowStock   Status = "low_stock"
	StatusOutOfStock Status = "out_of_stock"
)

// StatusOf derives the stock status for a product. It is a read, never stored.
func StatusOf(p catalog.Product) Status {
	switch {
	case p.StockQuantity.IsZero():
		return StatusOutOfStock
	case p.StockQuantity.LessThanOrEqual(p.MinStockLevel):
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// MovementFilter narrows ledger listings.
type MovementFilter struct {
	ProductID int64
	Type      MovementType
	Limit     int
}

// InventoryStats summarises the ledger projection across active products.
type InventoryStats struct {
	TotalProducts int             `json:"total_products"`
	InStock       int             `json:"in_stock"`
	LowStock      int             `json:"low_stock"`
	OutOfStock    int             `json:"out_of_stock"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

// ErrInvalidQuantity indicates a zero movement quantity.
var ErrInvalidQuantity = errors.New("stock: quantity must be non zero")
