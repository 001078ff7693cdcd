package reports

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/stockledger/stockledger/internal/ledger"
)

type mockRepo struct {
	stockRows    []StockRow
	stockCalls   int
	inOutRows    []InOutRow
	inOutCalls   int
	inOutFilter  InOutFilter
	topRows      []TopMoverRow
	topCalls     int
	topSince     time.Time
	topLimit     int
	recentRows   []RecentRow
	recentCalls  int
	recentLimit  int
	detailRows   []RecentRow
	detailCalls  int
	detailFilter TxnFilter
}

func (m *mockRepo) CurrentStock(ctx context.Context, warehouseID int64) ([]StockRow, error) {
	m.stockCalls++
	return m.stockRows, nil
}

func (m *mockRepo) InOutTotals(ctx context.Context, filter InOutFilter) ([]InOutRow, error) {
	m.inOutCalls++
	m.inOutFilter = filter
	return m.inOutRows, nil
}

func (m *mockRepo) TopMoving(ctx context.Context, since time.Time, limit int) ([]TopMoverRow, error) {
	m.topCalls++
	m.topSince = since
	m.topLimit = limit
	return m.topRows, nil
}

func (m *mockRepo) RecentByType(ctx context.Context, txnType ledger.MovementType, limit int) ([]RecentRow, error) {
	m.recentCalls++
	m.recentLimit = limit
	return m.recentRows, nil
}

func (m *mockRepo) TxnDetails(ctx context.Context, filter TxnFilter) ([]RecentRow, error) {
	m.detailCalls++
	m.detailFilter = filter
	return m.detailRows, nil
}

func newTestService(t *testing.T, repo Repository) (*Service, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)
	svc := NewService(repo, cache)
	return svc, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestCurrentStockCaches(t *testing.T) {
	repo := &mockRepo{
		stockRows: []StockRow{
			{ProductID: 1, SKU: "SKU-1", WarehouseID: 1, QtyOnHand: 40, ReorderLevel: 10},
			{ProductID: 2, SKU: "SKU-2", WarehouseID: 1, QtyOnHand: 3, ReorderLevel: 5},
		},
	}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()

	ctx := context.Background()
	rows, err := svc.CurrentStock(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows got %d", len(rows))
	}
	if repo.stockCalls != 1 {
		t.Fatalf("expected 1 repo call, got %d", repo.stockCalls)
	}

	// Second call should hit cache.
	if _, err := svc.CurrentStock(ctx, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.stockCalls != 1 {
		t.Fatalf("expected cached result, repo called %d times", repo.stockCalls)
	}

	// Bumping the cache should trigger reload.
	if err := svc.Invalidate(ctx); err != nil {
		t.Fatalf("bump failed: %v", err)
	}
	repo.stockRows = repo.stockRows[:1]
	rows, err = svc.CurrentStock(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected refreshed view with 1 row got %d", len(rows))
	}
	if repo.stockCalls != 2 {
		t.Fatalf("expected repo to refresh, calls %d", repo.stockCalls)
	}
}

func TestLowStockFiltersBelowReorderLevel(t *testing.T) {
	repo := &mockRepo{
		stockRows: []StockRow{
			{ProductID: 1, SKU: "SKU-1", QtyOnHand: 40, ReorderLevel: 10},
			{ProductID: 2, SKU: "SKU-2", QtyOnHand: 3, ReorderLevel: 5},
			{ProductID: 3, SKU: "SKU-3", QtyOnHand: 5, ReorderLevel: 5},
			{ProductID: 4, SKU: "SKU-4", QtyOnHand: 0, ReorderLevel: 0},
		},
	}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()

	rows, err := svc.LowStock(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 low stock row got %d", len(rows))
	}
	if rows[0].ProductID != 2 {
		t.Fatalf("expected product 2 flagged, got %d", rows[0].ProductID)
	}
}

func TestInOutMonthlyDefaultsToCurrentMonth(t *testing.T) {
	repo := &mockRepo{}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()
	svc.now = func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) }

	if _, err := svc.InOut(context.Background(), BucketMonth, InOutFilter{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.inOutCalls != 1 {
		t.Fatalf("expected 1 repo call got %d", repo.inOutCalls)
	}
	wantFrom := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if !repo.inOutFilter.From.Equal(wantFrom) {
		t.Fatalf("expected from %v got %v", wantFrom, repo.inOutFilter.From)
	}
	if repo.inOutFilter.To.Month() != time.March || repo.inOutFilter.To.Day() != 31 {
		t.Fatalf("expected end of March, got %v", repo.inOutFilter.To)
	}
}

func TestInOutDailyDefaultsToTrailingThirtyDays(t *testing.T) {
	repo := &mockRepo{}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	if _, err := svc.InOut(context.Background(), BucketDay, InOutFilter{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.inOutFilter.From.Equal(now.Add(-30 * 24 * time.Hour)) {
		t.Fatalf("expected trailing window start, got %v", repo.inOutFilter.From)
	}
	if !repo.inOutFilter.To.Equal(now) {
		t.Fatalf("expected window end now, got %v", repo.inOutFilter.To)
	}
}

func TestInOutRejectsUnknownBucket(t *testing.T) {
	repo := &mockRepo{}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()

	if _, err := svc.InOut(context.Background(), Bucket("hour"), InOutFilter{}); err != ErrInvalidBucket {
		t.Fatalf("expected ErrInvalidBucket got %v", err)
	}
	if repo.inOutCalls != 0 {
		t.Fatalf("repo should not be called for bad bucket")
	}
}

func TestTopMovingUsesThirtyDayWindow(t *testing.T) {
	repo := &mockRepo{topRows: []TopMoverRow{{ProductID: 1, SKU: "SKU-1", TotalMovement: 90}}}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()
	now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	rows, err := svc.TopMoving(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].TotalMovement != 90 {
		t.Fatalf("unexpected rows %#v", rows)
	}
	if repo.topLimit != 10 {
		t.Fatalf("expected limit 10 got %d", repo.topLimit)
	}
	if !repo.topSince.Equal(now.Add(-30 * 24 * time.Hour)) {
		t.Fatalf("expected 30 day window, got %v", repo.topSince)
	}
}

func TestRecentByTypeValidatesAndClampsLimit(t *testing.T) {
	repo := &mockRepo{}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()
	ctx := context.Background()

	if _, err := svc.RecentByType(ctx, ledger.MovementType("TRANSFER"), 10); err != ErrInvalidType {
		t.Fatalf("expected ErrInvalidType got %v", err)
	}
	if _, err := svc.RecentByType(ctx, ledger.MovementReceipt, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.recentLimit != 20 {
		t.Fatalf("expected default limit 20 got %d", repo.recentLimit)
	}
	if _, err := svc.RecentByType(ctx, ledger.MovementIssue, 500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.recentLimit != 20 {
		t.Fatalf("expected oversized limit clamped to 20 got %d", repo.recentLimit)
	}
}

func TestTxnDetailsDefaultsTrailingThirtyDays(t *testing.T) {
	repo := &mockRepo{}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	if _, err := svc.TxnDetails(context.Background(), TxnFilter{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.detailFilter.From.Equal(now.Add(-30 * 24 * time.Hour)) {
		t.Fatalf("expected trailing window start, got %v", repo.detailFilter.From)
	}
	if !repo.detailFilter.To.Equal(now) {
		t.Fatalf("expected window end now, got %v", repo.detailFilter.To)
	}
}
