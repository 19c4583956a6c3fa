package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// keyRetention is how long processed idempotency keys stay claimable-proof.
// Clients retry within minutes; a day leaves generous slack.
const keyRetention = 24 * time.Hour

// KeyCleaner removes idempotency keys older than the retention window.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// KeyCleanup prunes expired idempotency keys on a schedule.
type KeyCleanup struct {
	keys    KeyCleaner
	metrics DriftRecorder
	logger  *slog.Logger
}

// NewKeyCleanup constructs KeyCleanup.
func NewKeyCleanup(keys KeyCleaner, metrics DriftRecorder, logger *slog.Logger) *KeyCleanup {
	return &KeyCleanup{keys: keys, metrics: metrics, logger: logger}
}

// HandleKeyCleanup processes TaskKeyCleanup tasks.
func (c *KeyCleanup) HandleKeyCleanup(ctx context.Context, _ *asynq.Task) error {
	if err := c.keys.Cleanup(ctx, keyRetention); err != nil {
		if c.metrics != nil {
			c.metrics.JobRun(TaskKeyCleanup, "error")
		}
		return err
	}
	if c.metrics != nil {
		c.metrics.JobRun(TaskKeyCleanup, "ok")
	}
	if c.logger != nil {
		c.logger.Info("idempotency keys pruned", slog.Duration("retention", keyRetention))
	}
	return nil
}
