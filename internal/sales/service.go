package sales

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian-pos/internal/catalog"
	"github.com/meridian-pos/meridian-pos/internal/credit"
	"github.com/meridian-pos/meridian-pos/internal/numbering"
	"github.com/meridian-pos/meridian-pos/internal/pricing"
	"github.com/meridian-pos/meridian-pos/internal/shared"
	"github.com/meridian-pos/meridian-pos/internal/stock"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Recorder counts processed documents for observability.
type Recorder interface {
	DocumentProcessed(kind string)
}

// Service orchestrates atomic multi-item sales: pricing, fail-fast stock
// checks, a single credit authorization, document numbering and the paired
// ledger writes, all inside one transaction.
type Service struct {
	repo   RepositoryPort
	stock  *stock.Engine
	credit *credit.Engine
	audit  AuditPort
	meter  Recorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the sale orchestrator.
func NewService(repo RepositoryPort, stockEngine *stock.Engine, creditEngine *credit.Engine, audit AuditPort, meter Recorder, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		stock:  stockEngine,
		credit: creditEngine,
		audit:  audit,
		meter:  meter,
		logger: logger,
		now:    time.Now,
	}
}

// ProcessSale validates, prices and persists a sale. Stock availability for
// every line is checked under row locks before any mutation; credit is
// authorized once for the whole sale before the document is written. Any
// failure rolls the entire transaction back so no partial sale is ever
// visible.
func (s *Service) ProcessSale(ctx context.Context, in SaleInput) (Sale, error) {
	userID := shared.ActorFromContext(ctx)
	if userID == 0 {
		return Sale{}, shared.ErrUnauthorized
	}
	if err := validateSaleInput(in); err != nil {
		return Sale{}, err
	}

	now := s.now()
	var created Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStores) error {
		// Claim the idempotency key before any mutation; the claim rolls
		// back with the transaction, so only a committed sale consumes it.
		if in.IdempotencyKey != "" {
			if err := tx.Keys.Claim(ctx, in.IdempotencyKey, "sale"); err != nil {
				return err
			}
		}

		// Lock and check every product before mutating anything so a late
		// line failure cannot leave earlier decrements behind.
		products := make([]catalog.Product, len(in.Items))
		for i, item := range in.Items {
			product, err := tx.Stock.GetProductForUpdate(ctx, item.ProductID)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			if !product.IsActive {
				return shared.NewValidationError(itemField(i, "product_id"), "product is inactive")
			}
			if !catalog.ValidQuantity(product.Unit, item.Quantity) {
				return shared.NewValidationError(itemField(i, "quantity"),
					fmt.Sprintf("invalid quantity for unit %q", product.Unit))
			}
			if product.StockQuantity.LessThan(item.Quantity) {
				return &shared.InsufficientStockError{
					ProductName: product.Name,
					Available:   product.StockQuantity,
				}
			}
			products[i] = product
		}

		lines := make([]pricing.LineTotals, len(in.Items))
		itemSubtotals := make([]decimal.Decimal, len(in.Items))
		for i, item := range in.Items {
			lines[i] = pricing.Line(item.Quantity, item.UnitPrice, item.Discount, in.TaxRate)
			itemSubtotals[i] = lines[i].Subtotal
		}
		totals := pricing.Order(itemSubtotals, in.Discount, in.TaxRate)

		// Credit is authorized exactly once for the whole sale, before the
		// document exists. The customer row lock taken here lives until
		// commit, serialising concurrent credit sales per customer.
		if in.PaymentMethod.Defers() {
			if in.CustomerID == nil {
				return shared.NewValidationError("customer_id", "required for credit sales")
			}
			if err := s.credit.Authorize(ctx, tx.Credit, *in.CustomerID, totals.Total); err != nil {
				return err
			}
		}

		invoiceNumber, err := tx.Numbers.Next(ctx, numbering.PrefixInvoice, now)
		if err != nil {
			return err
		}

		sale := Sale{
			InvoiceNumber: invoiceNumber,
			CustomerID:    in.CustomerID,
			UserID:        userID,
			SaleDate:      now,
			Subtotal:      totals.Subtotal,
			TaxRate:       in.TaxRate,
			TaxAmount:     totals.TaxAmount,
			Discount:      in.Discount,
			Total:         totals.Total,
			PaymentMethod: in.PaymentMethod,
			Status:        "completed",
			Notes:         in.Notes,
		}
		saleID, err := tx.Sales.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		sale.ID = saleID

		for i, item := range in.Items {
			saleItem := SaleItem{
				SaleID:    saleID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				Discount:  item.Discount,
				TaxRate:   in.TaxRate,
				TaxAmount: lines[i].TaxAmount,
				Subtotal:  lines[i].Subtotal,
				Total:     lines[i].Total,
			}
			itemID, err := tx.Sales.InsertSaleItem(ctx, saleItem)
			if err != nil {
				return err
			}
			saleItem.ID = itemID
			sale.Items = append(sale.Items, saleItem)

			if _, err := s.stock.Apply(ctx, tx.Stock, stock.MovementInput{
				ProductID: item.ProductID,
				Type:      stock.MovementSale,
				Quantity:  item.Quantity.Neg(),
				UnitCost:  products[i].CostPrice,
				Ref:       stock.Reference{Kind: stock.RefSale, ID: saleID},
				UserID:    userID,
			}); err != nil {
				return err
			}
		}

		created = sale
		return nil
	})
	if err != nil {
		return Sale{}, err
	}

	s.stock.InvalidateStats(ctx)
	if s.meter != nil {
		s.meter.DocumentProcessed("sale")
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  userID,
			Action:   "sale:create",
			Entity:   "sale",
			EntityID: created.InvoiceNumber,
			Meta: map[string]any{
				"total":          created.Total.StringFixed(2),
				"payment_method": string(created.PaymentMethod),
				"items":          len(created.Items),
			},
		})
	}
	if s.logger != nil {
		s.logger.Info("sale processed",
			slog.String("invoice", created.InvoiceNumber),
			slog.String("total", created.Total.StringFixed(2)),
			slog.Int("items", len(created.Items)))
	}
	return created, nil
}

// GetSale loads one sale with its items.
func (s *Service) GetSale(ctx context.Context, id int64) (Sale, error) {
	return s.repo.GetSale(ctx, id)
}

func validateSaleInput(in SaleInput) error {
	fields := map[string]string{}
	if len(in.Items) == 0 {
		fields["items"] = "at least one item is required"
	}
	if !in.PaymentMethod.Valid() {
		fields["payment_method"] = "must be cash, card, credit or mixed"
	}
	if in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		fields["tax_rate"] = "must be between 0 and 100"
	}
	if in.Discount.IsNegative() {
		fields["discount"] = "must not be negative"
	}
	for i, item := range in.Items {
		if item.ProductID == 0 {
			fields[itemField(i, "product_id")] = "required"
		}
		if !item.Quantity.IsPositive() {
			fields[itemField(i, "quantity")] = "must be positive"
		}
		if item.UnitPrice.IsNegative() {
			fields[itemField(i, "unit_price")] = "must not be negative"
		}
		if item.Discount.IsNegative() {
			fields[itemField(i, "discount")] = "must not be negative"
		}
	}
	if len(fields) > 0 {
		return &shared.ValidationError{Fields: fields}
	}
	return nil
}

func itemField(index int, name string) string {
	return fmt.Sprintf("items.%d.%s", index, name)
}
