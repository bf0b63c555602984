package inventory

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockledger/internal/platform/cache"
)

// newQueryFixture shares one versioned cache between the service and the
// query side, as the server does.
func newQueryFixture(t *testing.T) (*fixture, *QueryService, *cache.Versioned) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	versioned := cache.NewVersioned(client, "stockledger:test", time.Minute)
	f := newFixture(t, func(cfg *ServiceConfig) { cfg.Cache = versioned })
	q := NewQueryService(f.repo, versioned, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f, q, versioned
}

func TestDashboardCountsAndCaching(t *testing.T) {
	f, q, versioned := newQueryFixture(t)
	ctx := context.Background()

	f.receive(t, f.mainWH, f.widget, 3)
	f.draft(t, KindDelivery, Header{WarehouseID: f.mainWH}, LineInput{ProductID: f.widget, Quantity: 1})

	dash, err := q.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, dash.TotalProducts)
	require.Equal(t, 1, dash.LowStockCount)
	require.Equal(t, 1, dash.Pending[KindDelivery])
	require.Equal(t, 0, dash.Pending[KindReceipt])
	require.Len(t, dash.Pending, len(Kinds))

	receipt := f.draft(t, KindReceipt, Header{WarehouseID: f.mainWH}, LineInput{ProductID: f.gadget, Quantity: 1})
	dash, err = q.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, dash.Pending[KindReceipt])

	_, err = f.svc.Cancel(ctx, receipt.ID, actor)
	require.NoError(t, err)
	dash, err = q.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, dash.Pending[KindReceipt])

	// Writes that bypass the services are served from cache until the next bump.
	f.repo.addProduct("BOLT-1", 0)
	dash, err = q.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, dash.TotalProducts)

	require.NoError(t, versioned.Bump(ctx))
	dash, err = q.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, dash.TotalProducts)
}

func TestLowStockRefreshesAfterValidate(t *testing.T) {
	f, q, _ := newQueryFixture(t)
	ctx := context.Background()

	f.receive(t, f.mainWH, f.widget, 9)
	items, err := q.LowStock(ctx)
	require.NoError(t, err)
	require.Empty(t, items)

	doc := f.draft(t, KindDelivery, Header{WarehouseID: f.mainWH}, LineInput{ProductID: f.widget, Quantity: 6})
	_, err = f.svc.Validate(ctx, doc.ID, actor)
	require.NoError(t, err)

	items, err = q.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, int64(3), items[0].Quantity)
}

// gatedRepo holds CountProducts until release is closed and reports the
// state of the load context it saw.
type gatedRepo struct {
	*memoryRepo
	started chan struct{}
	release chan struct{}
	seen    chan error
}

func (g *gatedRepo) CountProducts(ctx context.Context) (int, error) {
	close(g.started)
	<-g.release
	g.seen <- ctx.Err()
	return g.memoryRepo.CountProducts(ctx)
}

func TestDashboardLoadSurvivesCallerCancellation(t *testing.T) {
	f := newFixture(t)
	repo := &gatedRepo{
		memoryRepo: f.repo,
		started:    make(chan struct{}),
		release:    make(chan struct{}),
		seen:       make(chan error, 1),
	}
	q := NewQueryService(repo, nil, nil)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := q.Dashboard(leaderCtx)
		leaderErr <- err
	}()
	<-repo.started
	cancel()
	require.ErrorIs(t, <-leaderErr, context.Canceled)

	close(repo.release)
	require.NoError(t, <-repo.seen)
}

func TestLowStockReportsPairsAtOrBelowReorderLevel(t *testing.T) {
	f, q, _ := newQueryFixture(t)
	ctx := context.Background()

	f.receive(t, f.mainWH, f.widget, 5)
	f.receive(t, f.otherWH, f.widget, 6)
	f.receive(t, f.mainWH, f.gadget, 1)

	items, err := q.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, f.widget, items[0].ProductID)
	require.Equal(t, f.mainWH, items[0].WarehouseID)
	require.Equal(t, int64(5), items[0].Quantity)
	require.Equal(t, int64(5), items[0].ReorderLevel)
	require.Equal(t, "WID-1", items[0].ProductSKU)
}

func TestQueryServiceWithoutCache(t *testing.T) {
	f := newFixture(t)
	q := NewQueryService(f.repo, nil, nil)
	f.receive(t, f.mainWH, f.gadget, 4)

	dash, err := q.Dashboard(context.Background())
	require.NoError(t, err)
	require.Zero(t, dash.LowStockCount)
	require.Equal(t, 2, dash.TotalProducts)
}

func TestLedgerHistoryNewestFirst(t *testing.T) {
	f, q, _ := newQueryFixture(t)
	ctx := context.Background()
	f.receive(t, f.mainWH, f.widget, 8)
	doc := f.draft(t, KindTransfer, Header{FromWarehouseID: f.mainWH, ToWarehouseID: f.otherWH}, LineInput{ProductID: f.widget, Quantity: 3})
	_, err := f.svc.Validate(ctx, doc.ID, actor)
	require.NoError(t, err)

	rows, total, err := q.LedgerHistory(ctx, LedgerFilter{ProductID: f.widget, WarehouseID: f.mainWH})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, OpTransferOut, rows[0].OperationType)
	require.Equal(t, "MAIN", rows[0].WarehouseCode)

	rows, total, err = q.LedgerHistory(ctx, LedgerFilter{ReferenceNumber: doc.ReferenceNumber})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, rows, 2)

	_, _, err = q.LedgerHistory(ctx, LedgerFilter{Limit: -1})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestReconcileBalancesCleanAfterValidations(t *testing.T) {
	f, q, _ := newQueryFixture(t)
	f.receive(t, f.mainWH, f.widget, 8)
	f.receive(t, f.otherWH, f.gadget, 2)

	found, err := q.ReconcileBalances(context.Background())
	require.NoError(t, err)
	require.Empty(t, found)

	f.repo.mu.Lock()
	f.repo.balances[Pair{f.widget, f.mainWH}] = 99
	f.repo.mu.Unlock()

	found, err = q.ReconcileBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, int64(99), found[0].Balance)
	require.Equal(t, int64(8), found[0].LedgerSum)
}
