package credit

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian-pos/internal/catalog"
	"github.com/meridian-pos/meridian-pos/internal/shared"
)

// TxStore exposes the row-locked customer operations the engine needs,
// bound to the caller's transaction.
type TxStore interface {
	GetCustomerForUpdate(ctx context.Context, id int64) (catalog.Customer, error)
	SetCustomerBalance(ctx context.Context, id int64, balance decimal.Decimal) error
}

// RepositoryPort abstracts repository usage for reads.
type RepositoryPort interface {
	GetCustomer(ctx context.Context, id int64) (catalog.Customer, error)
}

// Engine serialises credit checks per customer. The validate-then-increment
// sequence runs under one exclusive row lock so two concurrent credit sales
// can never both pass validation against a stale balance.
type Engine struct {
	repo RepositoryPort
}

// NewEngine constructs Engine.
func NewEngine(repo RepositoryPort) *Engine {
	return &Engine{repo: repo}
}

// Authorize validates the charge against available credit and applies it to
// the customer's balance inside the caller's transaction. The row lock taken
// here is held until the caller commits or rolls back; the check and the
// increment are never separated.
func (e *Engine) Authorize(ctx context.Context, tx TxStore, customerID int64, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return shared.NewValidationError("amount", "must not be negative")
	}
	customer, err := tx.GetCustomerForUpdate(ctx, customerID)
	if err != nil {
		return err
	}

	available := customer.AvailableCredit()
	if amount.GreaterThan(available) {
		return &shared.InsufficientCreditError{
			CustomerName: customer.Name,
			Available:    available,
		}
	}

	return tx.SetCustomerBalance(ctx, customerID, customer.Balance.Add(amount))
}

// Release reduces the customer's outstanding balance, flooring at zero.
// Used when a return reverses part of an originally-credit sale.
func (e *Engine) Release(ctx context.Context, tx TxStore, customerID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return shared.NewValidationError("amount", "must be positive")
	}
	customer, err := tx.GetCustomerForUpdate(ctx, customerID)
	if err != nil {
		return err
	}

	newBalance := customer.Balance.Sub(amount)
	if newBalance.IsNegative() {
		newBalance = decimal.Zero
	}
	return tx.SetCustomerBalance(ctx, customerID, newBalance)
}

// AvailableCredit reports credit_limit minus balance for one customer.
func (e *Engine) AvailableCredit(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	customer, err := e.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	return customer.AvailableCredit(), nil
}
