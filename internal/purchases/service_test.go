package purchases

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-pos/meridian-pos/internal/catalog"
	"github.com/meridian-pos/meridian-pos/internal/numbering"
	"github.com/meridian-pos/meridian-pos/internal/shared"
	"github.com/meridian-pos/meridian-pos/internal/stock"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type memoryRepo struct {
	products  map[int64]catalog.Product
	purchases map[int64]Purchase
	items     []PurchaseItem
	movements []stock.Movement
	keys      map[string]struct{}
	nextID    int64
	seq       int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products:  map[int64]catalog.Product{},
		purchases: map[int64]Purchase{},
		keys:      map[string]struct{}{},
		nextID:    1,
	}
}

func (m *memoryRepo) snapshot() *memoryRepo {
	cp := &memoryRepo{
		products:  map[int64]catalog.Product{},
		purchases: map[int64]Purchase{},
		items:     append([]PurchaseItem(nil), m.items...),
		movements: append([]stock.Movement(nil), m.movements...),
		keys:      map[string]struct{}{},
		nextID:    m.nextID,
		seq:       m.seq,
	}
	for k := range m.keys {
		cp.keys[k] = struct{}{}
	}
	for id, p := range m.products {
		cp.products[id] = p
	}
	for id, p := range m.purchases {
		cp.purchases[id] = p
	}
	return cp
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxStores) error) error {
	snap := m.snapshot()
	tx := TxStores{
		Purchases: (*memoryPurchaseStore)(m),
		Stock:     (*memoryStockStore)(m),
		Numbers:   (*memorySequence)(m),
		Keys:      (*memoryKeyStore)(m),
	}
	if err := fn(ctx, tx); err != nil {
		*m = *snap
		return err
	}
	return nil
}

func (m *memoryRepo) GetPurchase(ctx context.Context, id int64) (Purchase, error) {
	purchase, ok := m.purchases[id]
	if !ok {
		return Purchase{}, shared.ErrNotFound
	}
	for _, item := range m.items {
		if item.PurchaseID == id {
			purchase.Items = append(purchase.Items, item)
		}
	}
	return purchase, nil
}

type memoryKeyStore memoryRepo

func (m *memoryKeyStore) Claim(ctx context.Context, key, scope string) error {
	id := scope + ":" + key
	if _, ok := m.keys[id]; ok {
		return shared.ErrDuplicateRequest
	}
	m.keys[id] = struct{}{}
	return nil
}

type memoryPurchaseStore memoryRepo

func (m *memoryPurchaseStore) InsertPurchase(ctx context.Context, purchase Purchase) (int64, error) {
	id := m.nextID
	m.nextID++
	purchase.ID = id
	purchase.Items = nil
	m.purchases[id] = purchase
	return id, nil
}

func (m *memoryPurchaseStore) InsertPurchaseItem(ctx context.Context, item PurchaseItem) (int64, error) {
	id := m.nextID
	m.nextID++
	item.ID = id
	m.items = append(m.items, item)
	return id, nil
}

type memoryStockStore memoryRepo

func (m *memoryStockStore) GetProductForUpdate(ctx context.Context, id int64) (catalog.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return catalog.Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memoryStockStore) SetProductStock(ctx context.Context, id int64, qty decimal.Decimal) error {
	p := m.products[id]
	p.StockQuantity = qty
	m.products[id] = p
	return nil
}

func (m *memoryStockStore) InsertMovement(ctx context.Context, mv stock.Movement) (int64, error) {
	id := m.nextID
	m.nextID++
	mv.ID = id
	m.movements = append(m.movements, mv)
	return id, nil
}

type memorySequence memoryRepo

func (m *memorySequence) Next(ctx context.Context, prefix string, date time.Time) (string, error) {
	m.seq++
	return numbering.Format(prefix, date, int64(m.seq)), nil
}

func newTestService(repo *memoryRepo) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, stock.NewEngine(nil, nil, nil, logger), nil, nil, logger)
	svc.now = func() time.Time { return time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC) }
	return svc
}

func actorCtx() context.Context {
	return shared.ContextWithActor(context.Background(), 3)
}

func TestProcessPurchase(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = catalog.Product{
		ID: 1, Name: "Widget", Unit: "pcs", IsActive: true,
		CostPrice: dec("4.00"), StockQuantity: dec("2"),
	}
	svc := newTestService(repo)
	supplierID := int64(9)

	purchase, err := svc.ProcessPurchase(actorCtx(), PurchaseInput{
		SupplierID: &supplierID,
		TaxRate:    dec("10"),
		Items: []PurchaseItemInput{
			{ProductID: 1, Quantity: dec("50"), UnitCost: dec("3.50")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "PUR-20250110-0001", purchase.BillNumber)
	assert.Equal(t, "received", purchase.Status)
	assert.True(t, purchase.Subtotal.Equal(dec("175.00")), "subtotal %s", purchase.Subtotal)
	assert.True(t, purchase.TaxAmount.Equal(dec("17.50")), "tax %s", purchase.TaxAmount)
	assert.True(t, purchase.Total.Equal(dec("192.50")), "total %s", purchase.Total)

	assert.True(t, repo.products[1].StockQuantity.Equal(dec("52")))
	require.Len(t, repo.movements, 1)
	mv := repo.movements[0]
	assert.Equal(t, stock.MovementPurchase, mv.Type)
	assert.True(t, mv.Quantity.Equal(dec("50")))
	assert.True(t, mv.UnitCost.Equal(dec("3.50")))
	assert.Equal(t, stock.RefPurchase, mv.Ref.Kind)
	assert.Equal(t, purchase.ID, mv.Ref.ID)
}

func TestProcessPurchaseUnknownProductRollsBack(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = catalog.Product{
		ID: 1, Name: "Widget", Unit: "pcs", IsActive: true, StockQuantity: dec("2"),
	}
	svc := newTestService(repo)

	_, err := svc.ProcessPurchase(actorCtx(), PurchaseInput{
		Items: []PurchaseItemInput{
			{ProductID: 1, Quantity: dec("10"), UnitCost: dec("1.00")},
			{ProductID: 42, Quantity: dec("5"), UnitCost: dec("1.00")},
		},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)

	assert.True(t, repo.products[1].StockQuantity.Equal(dec("2")))
	assert.Empty(t, repo.purchases)
	assert.Empty(t, repo.movements)
}

func TestProcessPurchaseValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.ProcessPurchase(actorCtx(), PurchaseInput{
		TaxRate:  dec("101"),
		Discount: dec("-2"),
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items")
	assert.Contains(t, verr.Fields, "tax_rate")
	assert.Contains(t, verr.Fields, "discount")
}

func TestProcessPurchaseRejectsFractionalCountQuantity(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = catalog.Product{
		ID: 1, Name: "Widget", Unit: "pcs", IsActive: true, StockQuantity: dec("0"),
	}
	svc := newTestService(repo)

	_, err := svc.ProcessPurchase(actorCtx(), PurchaseInput{
		Items: []PurchaseItemInput{
			{ProductID: 1, Quantity: dec("2.5"), UnitCost: dec("1.00")},
		},
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items.0.quantity")
}

func TestProcessPurchaseRequiresActor(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.ProcessPurchase(context.Background(), PurchaseInput{
		Items: []PurchaseItemInput{{ProductID: 1, Quantity: dec("1"), UnitCost: dec("1.00")}},
	})
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestProcessPurchaseIdempotencyKeyRejectsReplay(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = catalog.Product{
		ID: 1, Name: "Widget", Unit: "pcs", IsActive: true,
		CostPrice: dec("4.00"), StockQuantity: dec("2"),
	}
	svc := newTestService(repo)

	input := PurchaseInput{
		Items:          []PurchaseItemInput{{ProductID: 1, Quantity: dec("50"), UnitCost: dec("3.50")}},
		IdempotencyKey: "po-import-7",
	}
	_, err := svc.ProcessPurchase(actorCtx(), input)
	require.NoError(t, err)

	_, err = svc.ProcessPurchase(actorCtx(), input)
	require.ErrorIs(t, err, shared.ErrDuplicateRequest)
	assert.Len(t, repo.purchases, 1)
	assert.True(t, repo.products[1].StockQuantity.Equal(dec("52")))
}
