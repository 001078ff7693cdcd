package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stockledger/stockledger/internal/jobs"
	"github.com/stockledger/stockledger/internal/reports"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// LowStockScanJob walks the current stock projection and flags products
// sitting below their reorder level.
type LowStockScanJob struct {
	Reports *reports.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockScanJob wires dependencies for the scan handler.
func NewLowStockScanJob(reportsSvc *reports.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Reports: reportsSvc, Logger: logger, Metrics: metrics}
}

// Handle processes low stock scan tasks.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskLowStockScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := time.Now()

	rows, err := j.Reports.LowStock(ctx, payload.WarehouseID)
	if err != nil {
		resultErr = err
		logger.Error("load low stock rows", slog.Any("error", err))
		return resultErr
	}

	scope := "all"
	if payload.WarehouseID > 0 {
		scope = strconv.FormatInt(payload.WarehouseID, 10)
	}
	j.metrics().SetLowStock(scope, len(rows))

	for _, row := range rows {
		logger.Warn("product below reorder level",
			slog.String("sku", row.SKU),
			slog.Int64("warehouse_id", row.WarehouseID),
			slog.Int64("qty_on_hand", row.QtyOnHand),
			slog.Int64("reorder_level", row.ReorderLevel))
	}

	logger.Info("completed low stock scan",
		slog.Int("flagged", len(rows)),
		slog.Duration("duration", time.Since(start)))
	return resultErr
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
