package inventory

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const sharedLoadTimeout = 30 * time.Second

// QueryRepository is the read side used by QueryService.
type QueryRepository interface {
	LedgerHistory(ctx context.Context, filter LedgerFilter) ([]LedgerHistoryEntry, int, error)
	LowStock(ctx context.Context) ([]LowStockItem, error)
	CountProducts(ctx context.Context) (int, error)
	PendingCounts(ctx context.Context) (map[Kind]int, error)
	Reconcile(ctx context.Context) ([]Discrepancy, error)
}

// ReadCache stores JSON read models under versioned keys.
type ReadCache interface {
	BuildKey(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
}

// QueryService answers read-only aggregate questions. It never writes stock
// state; cached answers are invalidated by every committed document or
// catalog write.
type QueryService struct {
	repo   QueryRepository
	cache  ReadCache
	logger *slog.Logger
	group  singleflight.Group
}

// NewQueryService constructs QueryService. cache may be nil.
func NewQueryService(repo QueryRepository, cache ReadCache, logger *slog.Logger) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{repo: repo, cache: cache, logger: logger.With(slog.String("component", "inventory.query"))}
}

// Dashboard returns the headline counters.
func (q *QueryService) Dashboard(ctx context.Context) (Dashboard, error) {
	var out Dashboard
	err := q.cached(ctx, &out, func(ctx context.Context) (any, error) {
		return q.buildDashboard(ctx)
	}, "stockledger", "query", "dashboard")
	return out, err
}

// LowStock lists pairs whose balance is at or below the reorder level.
func (q *QueryService) LowStock(ctx context.Context) ([]LowStockItem, error) {
	var out []LowStockItem
	err := q.cached(ctx, &out, func(ctx context.Context) (any, error) {
		return q.repo.LowStock(ctx)
	}, "stockledger", "query", "low_stock")
	return out, err
}

// LedgerHistory pages through ledger rows newest first.
func (q *QueryService) LedgerHistory(ctx context.Context, filter LedgerFilter) ([]LedgerHistoryEntry, int, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, 0, &ValidationError{Field: "limit", Reason: "limit and offset must be >= 0"}
	}
	return q.repo.LedgerHistory(ctx, filter)
}

// ReconcileBalances reports every balance that disagrees with its ledger.
func (q *QueryService) ReconcileBalances(ctx context.Context) ([]Discrepancy, error) {
	return q.repo.Reconcile(ctx)
}

func (q *QueryService) buildDashboard(ctx context.Context) (Dashboard, error) {
	var (
		dash    Dashboard
		low     []LowStockItem
		pending map[Kind]int
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := q.repo.CountProducts(ctx)
		dash.TotalProducts = n
		return err
	})
	g.Go(func() error {
		var err error
		low, err = q.repo.LowStock(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		pending, err = q.repo.PendingCounts(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	dash.LowStockCount = len(low)
	dash.Pending = make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		dash.Pending[k] = pending[k]
	}
	return dash, nil
}

// cached collapses concurrent builds of the same key and stores the result in
// the read cache when one is configured.
func (q *QueryService) cached(ctx context.Context, dest any, loader func(context.Context) (any, error), parts ...string) error {
	key := strings.Join(parts, ":")
	useCache := q.cache != nil
	if useCache {
		versioned, err := q.cache.BuildKey(ctx, parts...)
		if err != nil {
			q.logger.Warn("cache key unavailable, loading directly", slog.Any("error", err))
			useCache = false
		} else {
			key = versioned
		}
	}
	parent := ctx
	ch := q.group.DoChan(key, func() (any, error) {
		// Collapsed callers share one load; detach it from the leader's
		// cancellation.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), sharedLoadTimeout)
		defer cancel()
		if !useCache {
			value, err := loader(ctx)
			if err != nil {
				return nil, err
			}
			return json.Marshal(value)
		}
		var buf json.RawMessage
		if err := q.cache.FetchJSON(ctx, key, &buf, loader); err != nil {
			return nil, err
		}
		return []byte(buf), nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.([]byte), dest)
	}
}
