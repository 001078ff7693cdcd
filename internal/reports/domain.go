package reports

import (
	"errors"
	"time"

	"github.com/stockledger/stockledger/internal/ledger"
)

// Bucket selects the time grouping for in/out totals.
type Bucket string

const (
	// BucketDay groups by calendar day.
	BucketDay Bucket = "day"
	// BucketWeek groups by ISO week.
	BucketWeek Bucket = "week"
	// BucketMonth groups by calendar month.
	BucketMonth Bucket = "month"
)

// Valid reports whether b is a known bucket.
func (b Bucket) Valid() bool {
	switch b {
	case BucketDay, BucketWeek, BucketMonth:
		return true
	}
	return false
}

// StockRow is one line of the current-stock view: balance joined with the
// product's reorder threshold.
type StockRow struct {
	ProductID     int64  `json:"product_id"`
	SKU           string `json:"sku"`
	ProductName   string `json:"product_name"`
	WarehouseID   int64  `json:"warehouse_id"`
	WarehouseCode string `json:"warehouse_code"`
	WarehouseName string `json:"warehouse_name"`
	QtyOnHand     int64  `json:"qty_on_hand"`
	ReorderLevel  int64  `json:"reorder_level"`
}

// InOutRow sums receipts and issues per product, warehouse and bucket.
type InOutRow struct {
	Bucket      string `json:"bucket"`
	ProductID   int64  `json:"product_id"`
	WarehouseID int64  `json:"warehouse_id"`
	QtyIn       int64  `json:"qty_in"`
	QtyOut      int64  `json:"qty_out"`
	TxnCount    int64  `json:"txn_count"`
}

// TopMoverRow ranks a product by absolute movement volume.
type TopMoverRow struct {
	ProductID     int64  `json:"product_id"`
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	TotalMovement int64  `json:"total_movement_30d"`
}

// RecentRow is a ledger entry joined with display names for listings.
type RecentRow struct {
	ID            int64     `json:"id"`
	TxnCode       string    `json:"txn_code"`
	ProductID     int64     `json:"product_id"`
	ProductSKU    string    `json:"product_sku"`
	ProductName   string    `json:"product_name"`
	WarehouseID   int64     `json:"warehouse_id"`
	WarehouseCode string    `json:"warehouse_code"`
	WarehouseName string    `json:"warehouse_name"`
	Quantity      int64     `json:"quantity"`
	TxnType       string    `json:"txn_type"`
	Reason        string    `json:"reason,omitempty"`
	RefDocument   string    `json:"ref_document,omitempty"`
	SupplierName  string    `json:"supplier_name,omitempty"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// InOutFilter bounds a periodic totals query.
type InOutFilter struct {
	Bucket Bucket
	From   time.Time
	To     time.Time
}

// TxnFilter bounds the transaction detail listing.
type TxnFilter struct {
	From        time.Time
	To          time.Time
	Type        ledger.MovementType
	ProductID   int64
	WarehouseID int64
}

// ErrInvalidBucket indicates an unknown grouping bucket.
var ErrInvalidBucket = errors.New("reports: invalid bucket")

// ErrInvalidType indicates an unknown movement type filter.
var ErrInvalidType = errors.New("reports: invalid movement type")

func validType(t ledger.MovementType) bool {
	return t.Valid()
}
