package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/stockledger/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity compares every balance with its ledger history.
	TaskLedgerIntegrity = "stock:ledger_integrity"
	// TaskLowStockScan reports pairs at or below their reorder level.
	TaskLowStockScan = "stock:low_stock_scan"
	// TaskIdempotencyCleanup purges expired Idempotency-Key records.
	TaskIdempotencyCleanup = "stock:idempotency_cleanup"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// LedgerIntegrityPayload configures a ledger integrity run.
type LedgerIntegrityPayload struct {
	// MaxReported caps how many discrepancies are logged individually.
	MaxReported int `json:"max_reported"`
}

// NewLedgerIntegrityTask constructs the ledger integrity task.
func NewLedgerIntegrityTask(maxReported int) (*asynq.Task, error) {
	data, err := json.Marshal(LedgerIntegrityPayload{MaxReported: maxReported})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// LowStockScanPayload configures a low-stock scan.
type LowStockScanPayload struct {
	MaxReported int `json:"max_reported"`
}

// NewLowStockScanTask constructs the low-stock scan task.
func NewLowStockScanTask(maxReported int) (*asynq.Task, error) {
	data, err := json.Marshal(LowStockScanPayload{MaxReported: maxReported})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, data), nil
}

// IdempotencyCleanupPayload configures a cleanup run.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// NewTask builds a task by type name with its default payload.
func NewTask(name string) (*asynq.Task, error) {
	switch name {
	case TaskLedgerIntegrity:
		return NewLedgerIntegrityTask(50)
	case TaskLowStockScan:
		return NewLowStockScanTask(100)
	case TaskIdempotencyCleanup:
		return NewIdempotencyCleanupTask(defaultIdempotencyRetention)
	default:
		return nil, &UnknownTaskError{Name: name}
	}
}

// UnknownTaskError reports a task name the worker does not handle.
type UnknownTaskError struct {
	Name string
}

func (e *UnknownTaskError) Error() string {
	return "jobs: unsupported task " + e.Name
}
