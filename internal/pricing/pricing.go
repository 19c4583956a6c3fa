// Package pricing holds the document pricing math shared by sales,
// purchases and returns. All arithmetic is decimal; money amounts are
// rounded to two decimals at each derived value so repeated additions do
// not drift.
package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// LineTotals carries the priced amounts of one line.
type LineTotals struct {
	Subtotal  decimal.Decimal
	Discount  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// Line computes line amounts: subtotal = quantity x unit price, tax on the
// discounted subtotal, total = subtotal - discount + tax.
func Line(quantity, unitPrice, discount, taxRate decimal.Decimal) LineTotals {
	subtotal := quantity.Mul(unitPrice).Round(2)
	taxAmount := subtotal.Sub(discount).Mul(taxRate).Div(hundred).Round(2)
	return LineTotals{
		Subtotal:  subtotal,
		Discount:  discount,
		TaxAmount: taxAmount,
		Total:     subtotal.Sub(discount).Add(taxAmount),
	}
}

// OrderTotals carries the document-level amounts.
type OrderTotals struct {
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// Order computes document amounts from the raw item subtotals and the
// order-level discount: tax applies to the discounted subtotal.
func Order(itemSubtotals []decimal.Decimal, discount, taxRate decimal.Decimal) OrderTotals {
	subtotal := decimal.Zero
	for _, s := range itemSubtotals {
		subtotal = subtotal.Add(s)
	}
	taxAmount := subtotal.Sub(discount).Mul(taxRate).Div(hundred).Round(2)
	return OrderTotals{
		Subtotal:  subtotal,
		TaxAmount: taxAmount,
		Total:     subtotal.Sub(discount).Add(taxAmount),
	}
}
