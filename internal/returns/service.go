package returns

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian-pos/internal/credit"
	"github.com/meridian-pos/meridian-pos/internal/numbering"
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

// Service orchestrates sale returns. A return can never hand back more of a
// product than the sale sold minus what earlier returns already took, and
// for credit sales the refund reduces the customer's outstanding balance.
type Service struct {
	repo   RepositoryPort
	stock  *stock.Engine
	credit *credit.Engine
	audit  AuditPort
	meter  Recorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the return orchestrator.
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

// ProcessReturn validates a return against the original sale and persists
// it with its stock increments and, for credit sales, the balance
// reduction. Any failure rolls the whole transaction back.
func (s *Service) ProcessReturn(ctx context.Context, in ReturnInput) (Return, error) {
	userID := shared.ActorFromContext(ctx)
	if userID == 0 {
		return Return{}, shared.ErrUnauthorized
	}
	if err := validateReturnInput(in); err != nil {
		return Return{}, err
	}

	now := s.now()
	var created Return
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStores) error {
		if in.IdempotencyKey != "" {
			if err := tx.Keys.Claim(ctx, in.IdempotencyKey, "return"); err != nil {
				return err
			}
		}

		sale, err := tx.Returns.GetSale(ctx, in.SaleID)
		if err != nil {
			return err
		}
		returned, err := tx.Returns.ReturnedQuantities(ctx, in.SaleID)
		if err != nil {
			return err
		}

		// What the sale actually sold, per product. Sale items for the same
		// product aggregate; refunds use the quantity-weighted average of the
		// line prices so a product sold at two prices refunds fairly.
		sold := map[int64]decimal.Decimal{}
		soldValue := map[int64]decimal.Decimal{}
		for _, item := range sale.Items {
			sold[item.ProductID] = sold[item.ProductID].Add(item.Quantity)
			soldValue[item.ProductID] = soldValue[item.ProductID].Add(item.Quantity.Mul(item.UnitPrice))
		}
		unitPrice := map[int64]decimal.Decimal{}
		for productID, qty := range sold {
			if qty.IsPositive() {
				unitPrice[productID] = soldValue[productID].Div(qty).Round(4)
			}
		}

		refund := decimal.Zero
		for i, item := range in.Items {
			soldQty, ok := sold[item.ProductID]
			if !ok {
				return shared.NewValidationError(itemField(i, "product_id"), "product is not part of the sale")
			}
			remaining := soldQty.Sub(returned[item.ProductID])
			if item.Quantity.GreaterThan(remaining) {
				return shared.NewValidationError(itemField(i, "quantity"),
					fmt.Sprintf("exceeds returnable quantity; remaining: %s", remaining))
			}
			returned[item.ProductID] = returned[item.ProductID].Add(item.Quantity)
			refund = refund.Add(item.Quantity.Mul(unitPrice[item.ProductID]).Round(2))
		}

		returnNumber, err := tx.Numbers.Next(ctx, numbering.PrefixReturn, now)
		if err != nil {
			return err
		}

		ret := Return{
			ReturnNumber: returnNumber,
			SaleID:       in.SaleID,
			CustomerID:   sale.CustomerID,
			UserID:       userID,
			ReturnDate:   now,
			Reason:       in.Reason,
			RefundAmount: refund,
			Status:       "completed",
			Notes:        in.Notes,
		}
		returnID, err := tx.Returns.InsertReturn(ctx, ret)
		if err != nil {
			return err
		}
		ret.ID = returnID

		for _, item := range in.Items {
			returnItem := ReturnItem{
				ReturnID:  returnID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: unitPrice[item.ProductID],
				Total:     item.Quantity.Mul(unitPrice[item.ProductID]).Round(2),
			}
			itemID, err := tx.Returns.InsertReturnItem(ctx, returnItem)
			if err != nil {
				return err
			}
			returnItem.ID = itemID
			ret.Items = append(ret.Items, returnItem)

			if _, err := s.stock.Apply(ctx, tx.Stock, stock.MovementInput{
				ProductID: item.ProductID,
				Type:      stock.MovementReturn,
				Quantity:  item.Quantity,
				Ref:       stock.Reference{Kind: stock.RefReturn, ID: returnID},
				UserID:    userID,
			}); err != nil {
				return err
			}
		}

		// A return against a credit sale releases the refunded amount from
		// the customer's outstanding balance.
		if sale.PaymentMethod.Defers() && sale.CustomerID != nil && refund.IsPositive() {
			if err := s.credit.Release(ctx, tx.Credit, *sale.CustomerID, refund); err != nil {
				return err
			}
		}

		created = ret
		return nil
	})
	if err != nil {
		return Return{}, err
	}

	s.stock.InvalidateStats(ctx)
	if s.meter != nil {
		s.meter.DocumentProcessed("return")
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  userID,
			Action:   "return:create",
			Entity:   "return",
			EntityID: created.ReturnNumber,
			Meta: map[string]any{
				"sale_id": created.SaleID,
				"refund":  created.RefundAmount.StringFixed(2),
				"reason":  string(created.Reason),
			},
		})
	}
	if s.logger != nil {
		s.logger.Info("return processed",
			slog.String("return", created.ReturnNumber),
			slog.Int64("sale_id", created.SaleID),
			slog.String("refund", created.RefundAmount.StringFixed(2)))
	}
	return created, nil
}

// GetReturn loads one return with its items.
func (s *Service) GetReturn(ctx context.Context, id int64) (Return, error) {
	return s.repo.GetReturn(ctx, id)
}

func validateReturnInput(in ReturnInput) error {
	fields := map[string]string{}
	if in.SaleID == 0 {
		fields["sale_id"] = "required"
	}
	if !in.Reason.Valid() {
		fields["reason"] = "must be defective, wrong_item, customer_request or other"
	}
	if len(in.Items) == 0 {
		fields["items"] = "at least one item is required"
	}
	for i, item := range in.Items {
		if item.ProductID == 0 {
			fields[itemField(i, "product_id")] = "required"
		}
		if !item.Quantity.IsPositive() {
			fields[itemField(i, "quantity")] = "must be positive"
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
