package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/stockledger/stockledger/internal/jobs"
	"github.com/stockledger/stockledger/internal/ledger"
	"github.com/stockledger/stockledger/internal/reports"
)

type stubReportsRepo struct {
	mu            sync.Mutex
	stockCalls    int
	inOutCalls    int
	topCalls      int
	rows          []reports.StockRow
	lastWarehouse int64
}

func (s *stubReportsRepo) CurrentStock(ctx context.Context, warehouseID int64) ([]reports.StockRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stockCalls++
	s.lastWarehouse = warehouseID
	return s.rows, nil
}

func (s *stubReportsRepo) InOutTotals(ctx context.Context, filter reports.InOutFilter) ([]reports.InOutRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inOutCalls++
	return nil, nil
}

func (s *stubReportsRepo) TopMoving(ctx context.Context, since time.Time, limit int) ([]reports.TopMoverRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topCalls++
	return nil, nil
}

func (s *stubReportsRepo) RecentByType(ctx context.Context, txnType ledger.MovementType, limit int) ([]reports.RecentRow, error) {
	return nil, nil
}

func (s *stubReportsRepo) TxnDetails(ctx context.Context, filter reports.TxnFilter) ([]reports.RecentRow, error) {
	return nil, nil
}

func newStubService(repo *stubReportsRepo) *reports.Service {
	return reports.NewService(repo, reports.NewCache(nil, time.Minute))
}

func testJobMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

func TestLowStockScanFlagsRows(t *testing.T) {
	repo := &stubReportsRepo{rows: []reports.StockRow{
		{ProductID: 1, SKU: "SKU-1", WarehouseID: 2, QtyOnHand: 3, ReorderLevel: 10},
	}}
	job := NewLowStockScanJob(newStubService(repo), nil, testJobMetrics())

	task, err := NewLowStockScanTask(LowStockScanPayload{WarehouseID: 2})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, repo.stockCalls)
	require.EqualValues(t, 2, repo.lastWarehouse)
}

func TestLowStockScanRejectsMalformedPayload(t *testing.T) {
	repo := &stubReportsRepo{}
	job := NewLowStockScanJob(newStubService(repo), nil, testJobMetrics())

	err := job.Handle(context.Background(), asynq.NewTask(TaskLowStockScan, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, repo.stockCalls)
}

func TestReportsWarmupTouchesEveryProjection(t *testing.T) {
	repo := &stubReportsRepo{}
	job := NewReportsWarmupJob(newStubService(repo), nil, testJobMetrics())

	task, err := NewReportsWarmupTask(ReportsWarmupPayload{})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, repo.stockCalls)
	require.Equal(t, 1, repo.topCalls)
	require.Equal(t, 3, repo.inOutCalls)
}
