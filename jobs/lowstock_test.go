package jobs

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-pos/meridian-pos/internal/catalog"
	"github.com/meridian-pos/meridian-pos/internal/shared"
)

type fakeLowStockLister struct {
	products []catalog.Product
}

func (f *fakeLowStockLister) ListLowStock(ctx context.Context) ([]catalog.Product, error) {
	return f.products, nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (r *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func lowProduct(id int64, name string) catalog.Product {
	return catalog.Product{
		ID: id, Name: name, IsActive: true,
		StockQuantity: decimal.NewFromInt(1),
		MinStockLevel: decimal.NewFromInt(5),
	}
}

func TestLowStockScanAuditsNewProductsOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lister := &fakeLowStockLister{products: []catalog.Product{lowProduct(1, "Widget")}}
	audit := &recordingAudit{}
	scanner := NewLowStockScanner(lister, client, audit, nil, nil)

	require.NoError(t, scanner.Run(context.Background()))
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "stock:low", audit.logs[0].Action)
	assert.Equal(t, "1", audit.logs[0].EntityID)

	// second scan with the same product stays quiet
	require.NoError(t, scanner.Run(context.Background()))
	assert.Len(t, audit.logs, 1)
}

func TestLowStockScanReportsAgainAfterRecovery(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lister := &fakeLowStockLister{products: []catalog.Product{lowProduct(1, "Widget")}}
	audit := &recordingAudit{}
	scanner := NewLowStockScanner(lister, client, audit, nil, nil)

	require.NoError(t, scanner.Run(context.Background()))
	require.Len(t, audit.logs, 1)

	// product recovers, then dips again
	lister.products = nil
	require.NoError(t, scanner.Run(context.Background()))

	lister.products = []catalog.Product{lowProduct(1, "Widget")}
	require.NoError(t, scanner.Run(context.Background()))
	assert.Len(t, audit.logs, 2)
}
