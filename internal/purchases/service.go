package purchases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian-pos/internal/catalog"
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

// Service orchestrates purchase receiving: pricing on unit cost, document
// numbering and the paired stock increments, all inside one transaction.
// Inbound movements never fail the availability check, so unlike sales there
// is no fail-fast pass.
type Service struct {
	repo   RepositoryPort
	stock  *stock.Engine
	audit  AuditPort
	meter  Recorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the purchase orchestrator.
func NewService(repo RepositoryPort, stockEngine *stock.Engine, audit AuditPort, meter Recorder, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		stock:  stockEngine,
		audit:  audit,
		meter:  meter,
		logger: logger,
		now:    time.Now,
	}
}

// ProcessPurchase validates, prices and persists a purchase with its stock
// increments. Any failure rolls the whole transaction back.
func (s *Service) ProcessPurchase(ctx context.Context, in PurchaseInput) (Purchase, error) {
	userID := shared.ActorFromContext(ctx)
	if userID == 0 {
		return Purchase{}, shared.ErrUnauthorized
	}
	if err := validatePurchaseInput(in); err != nil {
		return Purchase{}, err
	}

	now := s.now()
	var created Purchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStores) error {
		if in.IdempotencyKey != "" {
			if err := tx.Keys.Claim(ctx, in.IdempotencyKey, "purchase"); err != nil {
				return err
			}
		}

		for i, item := range in.Items {
			product, err := tx.Stock.GetProductForUpdate(ctx, item.ProductID)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			if !catalog.ValidQuantity(product.Unit, item.Quantity) {
				return shared.NewValidationError(itemField(i, "quantity"),
					fmt.Sprintf("invalid quantity for unit %q", product.Unit))
			}
		}

		lines := make([]pricing.LineTotals, len(in.Items))
		itemSubtotals := make([]decimal.Decimal, len(in.Items))
		for i, item := range in.Items {
			lines[i] = pricing.Line(item.Quantity, item.UnitCost, item.Discount, in.TaxRate)
			itemSubtotals[i] = lines[i].Subtotal
		}
		totals := pricing.Order(itemSubtotals, in.Discount, in.TaxRate)

		billNumber, err := tx.Numbers.Next(ctx, numbering.PrefixBill, now)
		if err != nil {
			return err
		}

		purchase := Purchase{
			BillNumber:   billNumber,
			SupplierID:   in.SupplierID,
			UserID:       userID,
			PurchaseDate: now,
			Subtotal:     totals.Subtotal,
			TaxRate:      in.TaxRate,
			TaxAmount:    totals.TaxAmount,
			Discount:     in.Discount,
			Total:        totals.Total,
			Status:       "received",
			Notes:        in.Notes,
		}
		purchaseID, err := tx.Purchases.InsertPurchase(ctx, purchase)
		if err != nil {
			return err
		}
		purchase.ID = purchaseID

		for i, item := range in.Items {
			purchaseItem := PurchaseItem{
				PurchaseID: purchaseID,
				ProductID:  item.ProductID,
				Quantity:   item.Quantity,
				UnitCost:   item.UnitCost,
				Discount:   item.Discount,
				TaxRate:    in.TaxRate,
				TaxAmount:  lines[i].TaxAmount,
				Subtotal:   lines[i].Subtotal,
				Total:      lines[i].Total,
			}
			itemID, err := tx.Purchases.InsertPurchaseItem(ctx, purchaseItem)
			if err != nil {
				return err
			}
			purchaseItem.ID = itemID
			purchase.Items = append(purchase.Items, purchaseItem)

			if _, err := s.stock.Apply(ctx, tx.Stock, stock.MovementInput{
				ProductID: item.ProductID,
				Type:      stock.MovementPurchase,
				Quantity:  item.Quantity,
				UnitCost:  item.UnitCost,
				Ref:       stock.Reference{Kind: stock.RefPurchase, ID: purchaseID},
				UserID:    userID,
			}); err != nil {
				return err
			}
		}

		created = purchase
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}

	s.stock.InvalidateStats(ctx)
	if s.meter != nil {
		s.meter.DocumentProcessed("purchase")
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  userID,
			Action:   "purchase:create",
			Entity:   "purchase",
			EntityID: created.BillNumber,
			Meta: map[string]any{
				"total": created.Total.StringFixed(2),
				"items": len(created.Items),
			},
		})
	}
	if s.logger != nil {
		s.logger.Info("purchase processed",
			slog.String("bill", created.BillNumber),
			slog.String("total", created.Total.StringFixed(2)),
			slog.Int("items", len(created.Items)))
	}
	return created, nil
}

// GetPurchase loads one purchase with its items.
func (s *Service) GetPurchase(ctx context.Context, id int64) (Purchase, error) {
	return s.repo.GetPurchase(ctx, id)
}

func validatePurchaseInput(in PurchaseInput) error {
	fields := map[string]string{}
	if len(in.Items) == 0 {
		fields["items"] = "at least one item is required"
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
		if item.UnitCost.IsNegative() {
			fields[itemField(i, "unit_cost")] = "must not be negative"
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
