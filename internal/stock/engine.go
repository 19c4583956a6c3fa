package stock

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/meridian-pos/meridian-pos/internal/catalog"
	"github.com/meridian-pos/meridian-pos/internal/shared"
)

// TxStore exposes the row-locked ledger operations the engine needs. Every
// implementation is bound to the caller's transaction; the engine never
// commits on its own.
type TxStore interface {
	GetProductForUpdate(ctx context.Context, id int64) (catalog.Product, error)
	SetProductStock(ctx context.Context, id int64, qty decimal.Decimal) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

// RepositoryPort abstracts repository usage for the engine's standalone
// operations and reads.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	ListLowStock(ctx context.Context) ([]catalog.Product, error)
	Stats(ctx context.Context) (InventoryStats, error)
}

// StatsCache caches the inventory stats read.
type StatsCache interface {
	Get(ctx context.Context) (InventoryStats, bool)
	Set(ctx context.Context, stats InventoryStats)
	Invalidate(ctx context.Context)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Engine applies stock deltas under the non-negativity invariant and keeps
// the movement ledger in lockstep with the product projection.
type Engine struct {
	repo   RepositoryPort
	cache  StatsCache
	audit  AuditPort
	logger *slog.Logger
}

// NewEngine constructs Engine.
func NewEngine(repo RepositoryPort, cache StatsCache, audit AuditPort, logger *slog.Logger) *Engine {
	return &Engine{repo: repo, cache: cache, audit: audit, logger: logger}
}

// Apply posts one signed movement against the caller's transaction: locks the
// product row, enforces the unit's precision rule and the floor, updates the
// projection and appends the ledger row. Both writes commit or roll back with
// the caller.
func (e *Engine) Apply(ctx context.Context, tx TxStore, in MovementInput) (Movement, error) {
	if in.Quantity.IsZero() {
		return Movement{}, ErrInvalidQuantity
	}
	product, err := tx.GetProductForUpdate(ctx, in.ProductID)
	if err != nil {
		return Movement{}, err
	}
	if !catalog.ValidQuantity(product.Unit, in.Quantity.Abs()) {
		return Movement{}, shared.NewValidationError("quantity",
			fmt.Sprintf("invalid quantity for unit %q", product.Unit))
	}

	newQty := product.StockQuantity.Add(in.Quantity)
	if newQty.IsNegative() {
		return Movement{}, &shared.InsufficientStockError{
			ProductName: product.Name,
			Available:   product.StockQuantity,
		}
	}

	unitCost := in.UnitCost
	if unitCost.IsZero() {
		unitCost = product.CostPrice
	}

	if err := tx.SetProductStock(ctx, product.ID, newQty); err != nil {
		return Movement{}, err
	}

	movement := Movement{
		ProductID: in.ProductID,
		Type:      in.Type,
		Quantity:  in.Quantity,
		UnitCost:  unitCost,
		Ref:       in.Ref,
		UserID:    in.UserID,
		Notes:     in.Notes,
	}
	id, err := tx.InsertMovement(ctx, movement)
	if err != nil {
		return Movement{}, err
	}
	movement.ID = id
	return movement, nil
}

// Adjust posts an operator correction in its own transaction. Purchase-typed
// adjustments only ever add stock; corrections carry a signed delta and keep
// the floor.
func (e *Engine) Adjust(ctx context.Context, in AdjustmentInput) (catalog.Product, error) {
	switch in.Type {
	case AdjustPurchase:
		if !in.Quantity.IsPositive() {
			return catalog.Product{}, shared.NewValidationError("quantity", "must be positive for purchase adjustments")
		}
	case AdjustCorrection:
		if in.Quantity.IsZero() {
			return catalog.Product{}, shared.NewValidationError("quantity", "must be non zero")
		}
	default:
		return catalog.Product{}, shared.NewValidationError("type", "must be purchase or adjustment")
	}
	if in.UserID == 0 {
		return catalog.Product{}, shared.ErrUnauthorized
	}

	var after catalog.Product
	err := e.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		_, err := e.Apply(ctx, tx, MovementInput{
			ProductID: in.ProductID,
			Type:      MovementType(in.Type),
			Quantity:  in.Quantity,
			UnitCost:  in.UnitCost,
			UserID:    in.UserID,
			Notes:     in.Notes,
		})
		if err != nil {
			return err
		}
		product, err := tx.GetProductForUpdate(ctx, in.ProductID)
		if err != nil {
			return err
		}
		after = product
		return nil
	})
	if err != nil {
		return catalog.Product{}, err
	}

	e.InvalidateStats(ctx)
	if e.audit != nil {
		_ = e.audit.Record(ctx, shared.AuditLog{
			ActorID:  in.UserID,
			Action:   "stock:adjust",
			Entity:   "product",
			EntityID: fmt.Sprintf("%d", in.ProductID),
			Meta: map[string]any{
				"type":     string(in.Type),
				"quantity": in.Quantity.String(),
				"notes":    in.Notes,
			},
		})
	}
	return after, nil
}

// Movements lists ledger rows, newest first.
func (e *Engine) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return e.repo.ListMovements(ctx, filter)
}

// LowStock lists active products at or below their reorder threshold.
func (e *Engine) LowStock(ctx context.Context) ([]catalog.Product, error) {
	return e.repo.ListLowStock(ctx)
}

// Stats returns inventory counters, served from cache when fresh.
func (e *Engine) Stats(ctx context.Context) (InventoryStats, error) {
	if e.cache != nil {
		if stats, ok := e.cache.Get(ctx); ok {
			return stats, nil
		}
	}
	stats, err := e.repo.Stats(ctx)
	if err != nil {
		return InventoryStats{}, err
	}
	if e.cache != nil {
		e.cache.Set(ctx, stats)
	}
	return stats, nil
}

// InvalidateStats drops the cached stats after any write path commits.
func (e *Engine) InvalidateStats(ctx context.Context) {
	if e.cache != nil {
		e.cache.Invalidate(ctx)
	}
}
