package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/stockledger/stockledger/internal/jobs"
	"github.com/stockledger/stockledger/internal/reports"
)

// ReportsWarmupJob pre-populates the report caches so the first dashboard
// request after an invalidation stays fast.
type ReportsWarmupJob struct {
	Reports *reports.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReportsWarmupJob wires dependencies for the warmup handler.
func NewReportsWarmupJob(reportsSvc *reports.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportsWarmupJob {
	return &ReportsWarmupJob{Reports: reportsSvc, Logger: logger, Metrics: metrics}
}

// Handle processes report warmup tasks.
func (j *ReportsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("reports warmup: handler not configured")
	}
	var payload ReportsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskReportsWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	buckets := payload.Buckets
	if len(buckets) == 0 {
		buckets = []string{string(reports.BucketDay), string(reports.BucketWeek), string(reports.BucketMonth)}
	}

	logger := j.logger()
	start := time.Now()

	// Each view is warmed with its own timeout so one slow query cannot
	// stall the whole run.
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return j.warm(groupCtx, func(ctx context.Context) error {
			_, err := j.Reports.CurrentStock(ctx, 0)
			return err
		})
	})
	group.Go(func() error {
		return j.warm(groupCtx, func(ctx context.Context) error {
			_, err := j.Reports.TopMoving(ctx)
			return err
		})
	})
	for _, bucket := range buckets {
		bucket := reports.Bucket(bucket)
		group.Go(func() error {
			return j.warm(groupCtx, func(ctx context.Context) error {
				_, err := j.Reports.InOut(ctx, bucket, reports.InOutFilter{})
				return err
			})
		})
	}

	if err := group.Wait(); err != nil {
		resultErr = err
		logger.Error("reports warmup failed", slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed reports warmup",
		slog.Int("buckets", len(buckets)),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *ReportsWarmupJob) warm(ctx context.Context, fn func(context.Context) error) error {
	warmCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	return fn(warmCtx)
}

func (j *ReportsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportsWarmup))
}

func (j *ReportsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
