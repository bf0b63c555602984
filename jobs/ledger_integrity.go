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

const jobLedgerIntegrity = "ledger_integrity"

// Reconciler reports balances that disagree with the ledger.
type Reconciler interface {
	ReconcileBalances(ctx context.Context) ([]inventory.Discrepancy, error)
}

// LedgerIntegrityJob checks that every balance equals the sum of its ledger
// rows and the balance_after of the latest row. Drift is reported, never
// repaired.
type LedgerIntegrityJob struct {
	Source  Reconciler
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLedgerIntegrityJob initialises the ledger integrity handler.
func NewLedgerIntegrityJob(source Reconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{
		Source:  source,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one integrity pass.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Source == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.MaxReported <= 0 {
		payload.MaxReported = 50
	}

	start := j.now()
	tracker := j.metrics().Track(jobLedgerIntegrity)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting ledger integrity check")

	found, err := j.Source.ReconcileBalances(ctx)
	if err != nil {
		logger.Error("ledger integrity check failed", slog.Any("error", err))
		return err
	}
	for i, d := range found {
		if i >= payload.MaxReported {
			logger.Warn("further discrepancies omitted", slog.Int("omitted", len(found)-i))
			break
		}
		logger.Warn("balance disagrees with ledger",
			slog.String("product_id", d.ProductID.String()),
			slog.String("warehouse_id", d.WarehouseID.String()),
			slog.Int64("balance", d.Balance),
			slog.Int64("ledger_sum", d.LedgerSum),
			slog.Int64("last_balance_after", d.LastBalanceAfter),
			slog.Int("ledger_rows", d.LedgerRows),
		)
	}
	j.metrics().AddFindings(jobLedgerIntegrity, "drift", len(found))

	logger.Info("completed ledger integrity check",
		slog.Int("discrepancies", len(found)),
		slog.Duration("duration", j.now().Sub(start)),
	)
	return nil
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *LedgerIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LedgerIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
