package sales

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
	"github.com/meridian-pos/meridian-pos/internal/credit"
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

// memoryRepo implements RepositoryPort over maps, with snapshot-rollback
// transactions mirroring the real repository's all-or-nothing behaviour.
type memoryRepo struct {
	products  map[int64]catalog.Product
	customers map[int64]catalog.Customer
	sales     map[int64]Sale
	items     []SaleItem
	movements []stock.Movement
	keys      map[string]struct{}
	nextID    int64
	seq       int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products:  map[int64]catalog.Product{},
		customers: map[int64]catalog.Customer{},
		sales:     map[int64]Sale{},
		keys:      map[string]struct{}{},
		nextID:    1,
	}
}

func (m *memoryRepo) snapshot() *memoryRepo {
	cp := &memoryRepo{
		products:  map[int64]catalog.Product{},
		customers: map[int64]catalog.Customer{},
		sales:     map[int64]Sale{},
		items:     append([]SaleItem(nil), m.items...),
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
	for id, c := range m.customers {
		cp.customers[id] = c
	}
	for id, s := range m.sales {
		cp.sales[id] = s
	}
	return cp
}

func (m *memoryRepo) restore(snap *memoryRepo) {
	m.products = snap.products
	m.customers = snap.customers
	m.sales = snap.sales
	m.items = snap.items
	m.movements = snap.movements
	m.keys = snap.keys
	m.nextID = snap.nextID
	m.seq = snap.seq
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxStores) error) error {
	snap := m.snapshot()
	tx := TxStores{
		Sales:   (*memorySaleStore)(m),
		Stock:   (*memoryStockStore)(m),
		Credit:  (*memoryCreditStore)(m),
		Numbers: (*memorySequence)(m),
		Keys:    (*memoryKeyStore)(m),
	}
	if err := fn(ctx, tx); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memoryRepo) GetSale(ctx context.Context, id int64) (Sale, error) {
	sale, ok := m.sales[id]
	if !ok {
		return Sale{}, shared.ErrNotFound
	}
	for _, item := range m.items {
		if item.SaleID == id {
			sale.Items = append(sale.Items, item)
		}
	}
	return sale, nil
}

type memorySaleStore memoryRepo

func (m *memorySaleStore) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	id := m.nextID
	m.nextID++
	sale.ID = id
	sale.Items = nil
	m.sales[id] = sale
	return id, nil
}

func (m *memorySaleStore) InsertSaleItem(ctx context.Context, item SaleItem) (int64, error) {
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
	p, ok := m.products[id]
	if !ok {
		return shared.ErrNotFound
	}
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

type memoryCreditStore memoryRepo

func (m *memoryCreditStore) GetCustomerForUpdate(ctx context.Context, id int64) (catalog.Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return catalog.Customer{}, shared.ErrNotFound
	}
	return c, nil
}

func (m *memoryCreditStore) SetCustomerBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	c, ok := m.customers[id]
	if !ok {
		return shared.ErrNotFound
	}
	c.Balance = balance
	m.customers[id] = c
	return nil
}

type memorySequence memoryRepo

func (m *memorySequence) Next(ctx context.Context, prefix string, date time.Time) (string, error) {
	m.seq++
	return numbering.Format(prefix, date, int64(m.seq)), nil
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

func testProduct(id int64, name, unit string, qty string) catalog.Product {
	return catalog.Product{
		ID:            id,
		Name:          name,
		Unit:          unit,
		IsActive:      true,
		CostPrice:     dec("4.00"),
		SellingPrice:  dec("10.00"),
		StockQuantity: dec(qty),
		MinStockLevel: dec("5"),
	}
}

func newTestService(repo *memoryRepo) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stockEngine := stock.NewEngine(nil, nil, nil, logger)
	creditEngine := credit.NewEngine(nil)
	svc := NewService(repo, stockEngine, creditEngine, nil, nil, logger)
	svc.now = func() time.Time { return time.Date(2025, 1, 10, 14, 30, 0, 0, time.UTC) }
	return svc
}

func actorCtx() context.Context {
	return shared.ContextWithActor(context.Background(), 7)
}

func TestProcessSaleCash(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = testProduct(1, "Widget", "pcs", "10")
	repo.products[2] = testProduct(2, "Flour", "kg", "3")
	svc := newTestService(repo)

	sale, err := svc.ProcessSale(actorCtx(), SaleInput{
		PaymentMethod: PaymentCash,
		TaxRate:       dec("10"),
		Items: []SaleItemInput{
			{ProductID: 1, Quantity: dec("2"), UnitPrice: dec("10.00")},
			{ProductID: 2, Quantity: dec("0.500"), UnitPrice: dec("8.00")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "INV-20250110-0001", sale.InvoiceNumber)
	assert.Equal(t, int64(7), sale.UserID)
	assert.Equal(t, "completed", sale.Status)
	assert.True(t, sale.Subtotal.Equal(dec("24.00")), "subtotal %s", sale.Subtotal)
	assert.True(t, sale.TaxAmount.Equal(dec("2.40")), "tax %s", sale.TaxAmount)
	assert.True(t, sale.Total.Equal(dec("26.40")), "total %s", sale.Total)
	require.Len(t, sale.Items, 2)

	assert.True(t, repo.products[1].StockQuantity.Equal(dec("8")))
	assert.True(t, repo.products[2].StockQuantity.Equal(dec("2.500")))

	require.Len(t, repo.movements, 2)
	for _, mv := range repo.movements {
		assert.Equal(t, stock.MovementSale, mv.Type)
		assert.True(t, mv.Quantity.IsNegative())
		assert.Equal(t, stock.RefSale, mv.Ref.Kind)
		assert.Equal(t, sale.ID, mv.Ref.ID)
	}
	// unit cost for sale movements comes from the product's cost price
	assert.True(t, repo.movements[0].UnitCost.Equal(dec("4.00")))
}

func TestProcessSaleInsufficientStockRollsBack(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = testProduct(1, "Widget", "pcs", "10")
	repo.products[2] = testProduct(2, "Gadget", "pcs", "1")
	svc := newTestService(repo)

	_, err := svc.ProcessSale(actorCtx(), SaleInput{
		PaymentMethod: PaymentCash,
		Items: []SaleItemInput{
			{ProductID: 1, Quantity: dec("5"), UnitPrice: dec("10.00")},
			{ProductID: 2, Quantity: dec("2"), UnitPrice: dec("10.00")},
		},
	})
	require.Error(t, err)
	assert.EqualError(t, err, "Insufficient stock for Gadget. Available: 1")

	// nothing from the first line sticks
	assert.True(t, repo.products[1].StockQuantity.Equal(dec("10")))
	assert.Empty(t, repo.sales)
	assert.Empty(t, repo.movements)
}

func TestProcessSaleCreditAuthorizes(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = testProduct(1, "Widget", "pcs", "10")
	repo.customers[5] = catalog.Customer{
		ID: 5, Name: "Acme", IsActive: true,
		CreditLimit: dec("100.00"), Balance: dec("40.00"),
	}
	svc := newTestService(repo)
	customerID := int64(5)

	sale, err := svc.ProcessSale(actorCtx(), SaleInput{
		CustomerID:    &customerID,
		PaymentMethod: PaymentCredit,
		Items: []SaleItemInput{
			{ProductID: 1, Quantity: dec("5"), UnitPrice: dec("10.00")},
		},
	})
	require.NoError(t, err)
	assert.True(t, sale.Total.Equal(dec("50.00")))
	assert.True(t, repo.customers[5].Balance.Equal(dec("90.00")))
}

func TestProcessSaleCreditOverLimitRollsBack(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = testProduct(1, "Widget", "pcs", "10")
	repo.customers[5] = catalog.Customer{
		ID: 5, Name: "Acme", IsActive: true,
		CreditLimit: dec("100.00"), Balance: dec("60.00"),
	}
	svc := newTestService(repo)
	customerID := int64(5)

	_, err := svc.ProcessSale(actorCtx(), SaleInput{
		CustomerID:    &customerID,
		PaymentMethod: PaymentCredit,
		Items: []SaleItemInput{
			{ProductID: 1, Quantity: dec("5"), UnitPrice: dec("10.00")},
		},
	})
	require.Error(t, err)
	assert.EqualError(t, err, "Insufficient credit limit. Available balance: 40.00")

	assert.True(t, repo.customers[5].Balance.Equal(dec("60.00")))
	assert.True(t, repo.products[1].StockQuantity.Equal(dec("10")))
	assert.Empty(t, repo.sales)
}

func TestProcessSaleCreditRequiresCustomer(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = testProduct(1, "Widget", "pcs", "10")
	svc := newTestService(repo)

	_, err := svc.ProcessSale(actorCtx(), SaleInput{
		PaymentMethod: PaymentCredit,
		Items: []SaleItemInput{
			{ProductID: 1, Quantity: dec("1"), UnitPrice: dec("10.00")},
		},
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "customer_id")
}

func TestProcessSaleRequiresActor(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.ProcessSale(context.Background(), SaleInput{
		PaymentMethod: PaymentCash,
		Items:         []SaleItemInput{{ProductID: 1, Quantity: dec("1"), UnitPrice: dec("1.00")}},
	})
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestProcessSaleValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.ProcessSale(actorCtx(), SaleInput{
		PaymentMethod: "cheque",
		TaxRate:       dec("150"),
		Discount:      dec("-1"),
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items")
	assert.Contains(t, verr.Fields, "payment_method")
	assert.Contains(t, verr.Fields, "tax_rate")
	assert.Contains(t, verr.Fields, "discount")
}

func TestProcessSaleRejectsInactiveProduct(t *testing.T) {
	repo := newMemoryRepo()
	p := testProduct(1, "Widget", "pcs", "10")
	p.IsActive = false
	repo.products[1] = p
	svc := newTestService(repo)

	_, err := svc.ProcessSale(actorCtx(), SaleInput{
		PaymentMethod: PaymentCash,
		Items:         []SaleItemInput{{ProductID: 1, Quantity: dec("1"), UnitPrice: dec("10.00")}},
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items.0.product_id")
}

func TestProcessSaleRejectsFractionalCountQuantity(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = testProduct(1, "Widget", "pcs", "10")
	svc := newTestService(repo)

	_, err := svc.ProcessSale(actorCtx(), SaleInput{
		PaymentMethod: PaymentCash,
		Items:         []SaleItemInput{{ProductID: 1, Quantity: dec("1.5"), UnitPrice: dec("10.00")}},
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items.0.quantity")
}

func TestGetSaleNotFound(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.GetSale(context.Background(), 99)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestProcessSaleIdempotencyKeyRejectsReplay(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = testProduct(1, "Widget", "pcs", "10")
	svc := newTestService(repo)

	input := SaleInput{
		PaymentMethod:  PaymentCash,
		Items:          []SaleItemInput{{ProductID: 1, Quantity: dec("2"), UnitPrice: dec("10.00")}},
		IdempotencyKey: "terminal-1-42",
	}
	_, err := svc.ProcessSale(actorCtx(), input)
	require.NoError(t, err)

	_, err = svc.ProcessSale(actorCtx(), input)
	require.ErrorIs(t, err, shared.ErrDuplicateRequest)
	require.ErrorIs(t, err, shared.ErrConflict)

	assert.Len(t, repo.sales, 1)
	assert.True(t, repo.products[1].StockQuantity.Equal(dec("8")))
}

func TestProcessSaleFailedAttemptFreesIdempotencyKey(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = testProduct(1, "Widget", "pcs", "10")
	svc := newTestService(repo)

	_, err := svc.ProcessSale(actorCtx(), SaleInput{
		PaymentMethod:  PaymentCash,
		Items:          []SaleItemInput{{ProductID: 1, Quantity: dec("50"), UnitPrice: dec("10.00")}},
		IdempotencyKey: "terminal-1-43",
	})
	var insufficient *shared.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	// the rolled-back attempt must not consume the key
	sale, err := svc.ProcessSale(actorCtx(), SaleInput{
		PaymentMethod:  PaymentCash,
		Items:          []SaleItemInput{{ProductID: 1, Quantity: dec("5"), UnitPrice: dec("10.00")}},
		IdempotencyKey: "terminal-1-43",
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-20250110-0001", sale.InvoiceNumber)
}
