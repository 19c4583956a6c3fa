package shared

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates a referenced product, customer or document is missing.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates lock contention or a unique-constraint collision.
	ErrConflict = errors.New("conflicting update")
	// ErrUnauthorized indicates a mutating call without an attributed user.
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError carries per-field messages for bad input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a single-field validation failure.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// InsufficientStockError reports an outbound movement that would drive stock negative.
type InsufficientStockError struct {
	ProductName string
	Available   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s. Available: %s", e.ProductName, e.Available.String())
}

// InsufficientCreditError reports a credit sale exceeding the customer's available credit.
type InsufficientCreditError struct {
	CustomerName string
	Available    decimal.Decimal
}

func (e *InsufficientCreditError) Error() string {
	return fmt.Sprintf("Insufficient credit limit. Available balance: %s", e.Available.StringFixed(2))
}

// IsBusinessError reports whether err is a rule failure safe to surface verbatim.
func IsBusinessError(err error) bool {
	var ve *ValidationError
	var se *InsufficientStockError
	var ce *InsufficientCreditError
	return errors.As(err, &ve) || errors.As(err, &se) || errors.As(err, &ce) ||
		errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict)
}

// UserSafeMessage returns a message suitable for API consumers. Internal
// failures collapse to a generic string; callers log the original error.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	if IsBusinessError(err) {
		return err.Error()
	}
	return "internal error"
}
