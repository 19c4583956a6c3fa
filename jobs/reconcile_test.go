package jobs

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedgerSource struct {
	sums        map[int64]decimal.Decimal
	projections map[int64]decimal.Decimal
}

func (f *fakeLedgerSource) LedgerSums(ctx context.Context) (map[int64]decimal.Decimal, error) {
	return f.sums, nil
}

func (f *fakeLedgerSource) ProjectedQuantities(ctx context.Context) (map[int64]decimal.Decimal, error) {
	return f.projections, nil
}

func TestReconcilerCleanLedger(t *testing.T) {
	source := &fakeLedgerSource{
		sums: map[int64]decimal.Decimal{
			1: decimal.NewFromInt(10),
			2: decimal.RequireFromString("2.500"),
		},
		projections: map[int64]decimal.Decimal{
			1: decimal.NewFromInt(10),
			2: decimal.RequireFromString("2.5"),
		},
	}
	reconciler := NewReconciler(source, nil, nil)

	drifted, total, err := reconciler.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, drifted)
	assert.Zero(t, total)
}

func TestReconcilerReportsDrift(t *testing.T) {
	source := &fakeLedgerSource{
		sums: map[int64]decimal.Decimal{
			1: decimal.NewFromInt(10),
			// product 3 has no movements at all
		},
		projections: map[int64]decimal.Decimal{
			1: decimal.NewFromInt(8),
			3: decimal.NewFromInt(4),
		},
	}
	reconciler := NewReconciler(source, nil, nil)

	drifted, total, err := reconciler.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, drifted)
	assert.InDelta(t, 6.0, total, 0.0001)
}
