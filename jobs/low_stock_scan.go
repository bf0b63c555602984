package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/stockledger/internal/inventory"
	jobmetrics "github.com/odyssey-erp/stockledger/internal/jobs"
)

const jobLowStockScan = "low_stock_scan"

// LowStockSource lists pairs at or below their reorder level.
type LowStockSource interface {
	LowStock(ctx context.Context) ([]inventory.LowStockItem, error)
}

// LowStockScanJob logs and counts low-stock pairs.
type LowStockScanJob struct {
	Source  LowStockSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLowStockScanJob initialises the low-stock scan handler.
func NewLowStockScanJob(source LowStockSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{
		Source:  source,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Source == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.MaxReported <= 0 {
		payload.MaxReported = 100
	}

	start := j.now()
	tracker := j.metrics().Track(jobLowStockScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	items, err := j.Source.LowStock(ctx)
	if err != nil {
		logger.Error("low stock scan failed", slog.Any("error", err))
		return err
	}
	for i, item := range items {
		if i >= payload.MaxReported {
			break
		}
		logger.Info("low stock",
			slog.String("sku", item.ProductSKU),
			slog.String("warehouse", item.WarehouseCode),
			slog.Int64("quantity", item.Quantity),
			slog.Int64("reorder_level", item.ReorderLevel),
		)
	}
	j.metrics().AddFindings(jobLowStockScan, "low_stock", len(items))
	logger.Info("completed low stock scan",
		slog.Int("pairs", len(items)),
		slog.Duration("duration", j.now().Sub(start)),
	)
	return nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLowStockScan))
	}
	return slog.Default().With(slog.String("job", TaskLowStockScan))
}

func (j *LowStockScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LowStockScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
