package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestIsWeightUnit(t *testing.T) {
	for _, unit := range []string{"kg", "KG", "g", "gm", "Gram", "grams", "kilogram", "Kilograms"} {
		require.True(t, IsWeightUnit(unit), unit)
	}
	for _, unit := range []string{"pcs", "", "box", "ltr", "dozen", "kgs"} {
		require.False(t, IsWeightUnit(unit), unit)
	}
}

func TestValidQuantity(t *testing.T) {
	require.True(t, ValidQuantity("kg", decimal.RequireFromString("0.250")))
	require.True(t, ValidQuantity("kg", decimal.RequireFromString("3")))
	require.False(t, ValidQuantity("kg", decimal.RequireFromString("0.0005")))

	require.True(t, ValidQuantity("pcs", decimal.NewFromInt(4)))
	require.False(t, ValidQuantity("pcs", decimal.RequireFromString("1.5")))

	require.False(t, ValidQuantity("pcs", decimal.Zero))
	require.False(t, ValidQuantity("kg", decimal.RequireFromString("-1")))
}

func TestAvailableCredit(t *testing.T) {
	c := Customer{
		CreditLimit: decimal.RequireFromString("1000.00"),
		Balance:     decimal.RequireFromString("800.00"),
	}
	require.True(t, c.AvailableCredit().Equal(decimal.RequireFromString("200.00")))
}
