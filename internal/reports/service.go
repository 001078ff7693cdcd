package reports

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/stockledger/stockledger/internal/ledger"
)

const (
	defaultTxnWindow = 30 * 24 * time.Hour
	topMovingWindow  = 30 * 24 * time.Hour
	topMovingLimit   = 10
)

// Service builds read-side projections from the ledger with a versioned
// cache in front of the repository.
type Service struct {
	repo  Repository
	cache *Cache
	group singleflight.Group
	now   func() time.Time
}

// NewService wires the reporting service.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

func (s *Service) load(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	return s.cache.FetchJSON(ctx, key, dest, func(ctx context.Context) (interface{}, error) {
		result, err, _ := s.group.Do(key, func() (interface{}, error) {
			return loader(ctx)
		})
		return result, err
	})
}

// CurrentStock returns the stock on hand for every product and warehouse
// pair, optionally narrowed to a single warehouse.
func (s *Service) CurrentStock(ctx context.Context, warehouseID int64) ([]StockRow, error) {
	key, err := s.cache.BuildKey(ctx, "reports", "stock", fmt.Sprintf("%d", warehouseID))
	if err != nil {
		return nil, err
	}
	var rows []StockRow
	err = s.load(ctx, key, &rows, func(ctx context.Context) (interface{}, error) {
		return s.repo.CurrentStock(ctx, warehouseID)
	})
	return rows, err
}

// LowStock returns products whose quantity on hand fell below their reorder
// level. Derived from the current stock projection so both views agree.
func (s *Service) LowStock(ctx context.Context, warehouseID int64) ([]StockRow, error) {
	rows, err := s.CurrentStock(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	low := make([]StockRow, 0, len(rows))
	for _, row := range rows {
		if row.ReorderLevel > 0 && row.QtyOnHand < row.ReorderLevel {
			low = append(low, row)
		}
	}
	return low, nil
}

// InOut aggregates inbound and outbound quantities per bucket. When the
// filter carries no range, daily and weekly views default to the trailing
// thirty days and the monthly view to the current calendar month.
func (s *Service) InOut(ctx context.Context, bucket Bucket, filter InOutFilter) ([]InOutRow, error) {
	if !bucket.Valid() {
		return nil, ErrInvalidBucket
	}
	filter.Bucket = bucket
	filter = s.defaultInOutRange(bucket, filter)
	key, err := s.cache.BuildKey(ctx, "reports", "inout", string(bucket),
		filter.From.UTC().Format(time.RFC3339), filter.To.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	var rows []InOutRow
	err = s.load(ctx, key, &rows, func(ctx context.Context) (interface{}, error) {
		return s.repo.InOutTotals(ctx, filter)
	})
	return rows, err
}

func (s *Service) defaultInOutRange(bucket Bucket, filter InOutFilter) InOutFilter {
	if !filter.From.IsZero() || !filter.To.IsZero() {
		if filter.To.IsZero() {
			filter.To = s.now()
		}
		if filter.From.IsZero() {
			filter.From = filter.To.Add(-defaultTxnWindow)
		}
		return filter
	}
	now := s.now()
	if bucket == BucketMonth {
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		filter.From = start
		filter.To = start.AddDate(0, 1, 0).Add(-time.Nanosecond)
		return filter
	}
	filter.From = now.Add(-defaultTxnWindow)
	filter.To = now
	return filter
}

// TopMoving lists the products with the highest absolute movement over the
// trailing thirty days.
func (s *Service) TopMoving(ctx context.Context) ([]TopMoverRow, error) {
	since := s.now().Add(-topMovingWindow)
	key, err := s.cache.BuildKey(ctx, "reports", "topmoving", since.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	var rows []TopMoverRow
	err = s.load(ctx, key, &rows, func(ctx context.Context) (interface{}, error) {
		return s.repo.TopMoving(ctx, since, topMovingLimit)
	})
	return rows, err
}

// RecentByType returns the latest movements of one type with master data
// joined in.
func (s *Service) RecentByType(ctx context.Context, movementType ledger.MovementType, limit int) ([]RecentRow, error) {
	if !validType(movementType) {
		return nil, ErrInvalidType
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	key, err := s.cache.BuildKey(ctx, "reports", "recent", string(movementType), fmt.Sprintf("%d", limit))
	if err != nil {
		return nil, err
	}
	var rows []RecentRow
	err = s.load(ctx, key, &rows, func(ctx context.Context) (interface{}, error) {
		return s.repo.RecentByType(ctx, movementType, limit)
	})
	return rows, err
}

// TxnDetails returns the joined transaction listing. Without an explicit
// range the trailing thirty days are reported.
func (s *Service) TxnDetails(ctx context.Context, filter TxnFilter) ([]RecentRow, error) {
	if filter.From.IsZero() && filter.To.IsZero() {
		now := s.now()
		filter.From = now.Add(-defaultTxnWindow)
		filter.To = now
	}
	key, err := s.cache.BuildKey(ctx, "reports", "txns",
		filter.From.UTC().Format(time.RFC3339), filter.To.UTC().Format(time.RFC3339),
		string(filter.Type), fmt.Sprintf("%d:%d", filter.ProductID, filter.WarehouseID))
	if err != nil {
		return nil, err
	}
	var rows []RecentRow
	err = s.load(ctx, key, &rows, func(ctx context.Context) (interface{}, error) {
		return s.repo.TxnDetails(ctx, filter)
	})
	return rows, err
}

// Invalidate bumps the cache version, retiring every cached report.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
