package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-pos/meridian-pos/internal/catalog"
	"github.com/meridian-pos/meridian-pos/internal/shared"
)

// seenLowStockKey holds the set of product ids already reported low, so the
// scan only audits products that newly crossed the threshold.
const seenLowStockKey = "meridian:lowstock:seen"

// LowStockLister returns products at or below their reorder threshold.
type LowStockLister interface {
	ListLowStock(ctx context.Context) ([]catalog.Product, error)
}

// AuditRecorder captures audit events.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// LowStockScanner periodically scans for products that fell to or below
// their reorder threshold and audits each new occurrence once.
type LowStockScanner struct {
	lister  LowStockLister
	redis   *redis.Client
	audit   AuditRecorder
	metrics DriftRecorder
	logger  *slog.Logger
}

// NewLowStockScanner constructs LowStockScanner.
func NewLowStockScanner(lister LowStockLister, redisClient *redis.Client, audit AuditRecorder, metrics DriftRecorder, logger *slog.Logger) *LowStockScanner {
	return &LowStockScanner{lister: lister, redis: redisClient, audit: audit, metrics: metrics, logger: logger}
}

// HandleLowStockScan processes TaskLowStockScan tasks.
func (s *LowStockScanner) HandleLowStockScan(ctx context.Context, _ *asynq.Task) error {
	if err := s.Run(ctx); err != nil {
		if s.metrics != nil {
			s.metrics.JobRun(TaskLowStockScan, "error")
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.JobRun(TaskLowStockScan, "ok")
	}
	return nil
}

// Run performs one scan. Products that recovered since the last scan are
// dropped from the seen set so a later dip reports again.
func (s *LowStockScanner) Run(ctx context.Context) error {
	products, err := s.lister.ListLowStock(ctx)
	if err != nil {
		return err
	}

	current := make(map[string]catalog.Product, len(products))
	members := make([]string, 0, len(products))
	for _, p := range products {
		key := fmt.Sprintf("%d", p.ID)
		current[key] = p
		members = append(members, key)
	}

	seen, err := s.redis.SMembers(ctx, seenLowStockKey).Result()
	if err != nil {
		return fmt.Errorf("jobs: read seen set: %w", err)
	}
	seenSet := make(map[string]bool, len(seen))
	for _, key := range seen {
		seenSet[key] = true
		if _, still := current[key]; !still {
			if err := s.redis.SRem(ctx, seenLowStockKey, key).Err(); err != nil {
				return fmt.Errorf("jobs: trim seen set: %w", err)
			}
		}
	}

	for key, p := range current {
		if seenSet[key] {
			continue
		}
		if err := s.redis.SAdd(ctx, seenLowStockKey, key).Err(); err != nil {
			return fmt.Errorf("jobs: mark seen: %w", err)
		}
		if s.logger != nil {
			s.logger.Warn("product low on stock",
				slog.Int64("product_id", p.ID),
				slog.String("name", p.Name),
				slog.String("quantity", p.StockQuantity.String()),
				slog.String("min_level", p.MinStockLevel.String()))
		}
		if s.audit != nil {
			_ = s.audit.Record(ctx, shared.AuditLog{
				Action:   "stock:low",
				Entity:   "product",
				EntityID: key,
				Meta: map[string]any{
					"quantity":  p.StockQuantity.String(),
					"min_level": p.MinStockLevel.String(),
				},
			})
		}
	}
	return nil
}
