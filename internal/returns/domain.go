package returns

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reason enumerates accepted return reasons.
type Reason string

const (
	ReasonDefective       Reason = "defective"
	ReasonWrongItem       Reason = "wrong_item"
	ReasonCustomerRequest Reason = "customer_request"
	ReasonOther           Reason = "other"
)

// Valid reports whether the reason is one of the accepted values.
func (r Reason) Valid() bool {
	switch r {
	case ReasonDefective, ReasonWrongItem, ReasonCustomerRequest, ReasonOther:
		return true
	}
	return false
}

// Return reverses part of a sale: stock flows back in and, for credit
// sales, the customer's outstanding balance is reduced by the refund.
type Return struct {
	ID           int64           `json:"id"`
	ReturnNumber string          `json:"return_number"`
	SaleID       int64           `json:"sale_id"`
	CustomerID   *int64          `json:"customer_id,omitempty"`
	UserID       int64           `json:"user_id"`
	ReturnDate   time.Time       `json:"return_date"`
	Reason       Reason          `json:"reason"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	Status       string          `json:"status"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	Items        []ReturnItem    `json:"items"`
}

// ReturnItem is one returned line, priced at the original sale unit price.
type ReturnItem struct {
	ID        int64           `json:"id"`
	ReturnID  int64           `json:"return_id"`
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

// ReturnInput is the request payload for ProcessReturn.
type ReturnInput struct {
	SaleID int64             `json:"sale_id" validate:"required"`
	Reason Reason            `json:"reason" validate:"required"`
	Notes  string            `json:"notes"`
	Items  []ReturnItemInput `json:"items" validate:"required,min=1,dive"`

	// IdempotencyKey arrives via the Idempotency-Key header, not the body.
	IdempotencyKey string `json:"-"`
}

// ReturnItemInput is one requested line.
type ReturnItemInput struct {
	ProductID int64           `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"required"`
}
