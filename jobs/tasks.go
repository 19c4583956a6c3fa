package jobs

import "github.com/hibiken/asynq"

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerReconcile compares stock projections against the movement
	// ledger and publishes any drift.
	TaskLedgerReconcile = "ledger:reconcile"
	// TaskLowStockScan looks for products that fell to or below their
	// reorder threshold.
	TaskLowStockScan = "stock:lowscan"
	// TaskKeyCleanup prunes expired idempotency keys.
	TaskKeyCleanup = "keys:cleanup"
)

// NewLedgerReconcileTask constructs the reconciliation task. It carries no
// payload; the handler reads everything from the database.
func NewLedgerReconcileTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerReconcile, nil)
}

// NewLowStockScanTask constructs the low-stock scan task.
func NewLowStockScanTask() *asynq.Task {
	return asynq.NewTask(TaskLowStockScan, nil)
}

// NewKeyCleanupTask constructs the idempotency key pruning task.
func NewKeyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskKeyCleanup, nil)
}
