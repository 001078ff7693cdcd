package reports

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockledger/stockledger/internal/ledger"
)

// Repository reads projections from PostgreSQL. All queries are read-only and
// never touch the write path.
type Repository interface {
	CurrentStock(ctx context.Context, warehouseID int64) ([]StockRow, error)
	InOutTotals(ctx context.Context, filter InOutFilter) ([]InOutRow, error)
	TopMoving(ctx context.Context, since time.Time, limit int) ([]TopMoverRow, error)
	RecentByType(ctx context.Context, txnType ledger.MovementType, limit int) ([]RecentRow, error)
	TxnDetails(ctx context.Context, filter TxnFilter) ([]RecentRow, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL-backed report repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) CurrentStock(ctx context.Context, warehouseID int64) ([]StockRow, error) {
	query := `SELECT b.product_id, p.sku, p.product_name, b.warehouse_id, w.warehouse_code, w.warehouse_name, b.quantity, p.min_stock_level
FROM stock_balances b
JOIN products p ON p.product_id = b.product_id
JOIN warehouses w ON w.warehouse_id = b.warehouse_id`
	args := []interface{}{}
	if warehouseID != 0 {
		query += ` WHERE b.warehouse_id = $1`
		args = append(args, warehouseID)
	}
	query += ` ORDER BY p.sku, w.warehouse_code`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []StockRow
	for rows.Next() {
		var s StockRow
		if err := rows.Scan(&s.ProductID, &s.SKU, &s.ProductName, &s.WarehouseID, &s.WarehouseCode, &s.WarehouseName, &s.QtyOnHand, &s.ReorderLevel); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func bucketPattern(b Bucket) string {
	switch b {
	case BucketDay:
		return "YYYY-MM-DD"
	case BucketWeek:
		return "IYYY-IW"
	default:
		return "YYYY-MM"
	}
}

func (r *repository) InOutTotals(ctx context.Context, filter InOutFilter) ([]InOutRow, error) {
	query := `SELECT to_char(created_at, '` + bucketPattern(filter.Bucket) + `') AS bucket,
  product_id,
  warehouse_id,
  COALESCE(SUM(CASE WHEN transaction_type = 'IN' THEN quantity ELSE 0 END), 0) AS qty_in,
  COALESCE(SUM(CASE WHEN transaction_type = 'OUT' THEN quantity ELSE 0 END), 0) AS qty_out,
  COUNT(*) AS txn_count
FROM inventory_transactions
WHERE 1=1`
	args := []interface{}{}
	argCount := 0
	if !filter.From.IsZero() {
		argCount++
		query += ` AND created_at >= $` + strconv.Itoa(argCount)
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		argCount++
		query += ` AND created_at <= $` + strconv.Itoa(argCount)
		args = append(args, filter.To)
	}
	query += ` GROUP BY bucket, product_id, warehouse_id ORDER BY bucket DESC, product_id, warehouse_id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []InOutRow
	for rows.Next() {
		var row InOutRow
		if err := rows.Scan(&row.Bucket, &row.ProductID, &row.WarehouseID, &row.QtyIn, &row.QtyOut, &row.TxnCount); err != nil {
			return nil, err
		}
		items = append(items, row)
	}
	return items, rows.Err()
}

func (r *repository) TopMoving(ctx context.Context, since time.Time, limit int) ([]TopMoverRow, error) {
	const query = `SELECT p.product_id, p.sku, p.product_name, COALESCE(SUM(ABS(it.quantity)), 0) AS total_movement
FROM inventory_transactions it
JOIN products p ON p.product_id = it.product_id
WHERE it.created_at >= $1
GROUP BY p.product_id, p.sku, p.product_name
ORDER BY total_movement DESC
LIMIT $2`
	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []TopMoverRow
	for rows.Next() {
		var row TopMoverRow
		if err := rows.Scan(&row.ProductID, &row.SKU, &row.Name, &row.TotalMovement); err != nil {
			return nil, err
		}
		items = append(items, row)
	}
	return items, rows.Err()
}

const recentSelect = `SELECT it.transaction_id, it.transaction_code, it.product_id, p.sku, p.product_name,
  it.warehouse_id, w.warehouse_code, w.warehouse_name, it.quantity, it.transaction_type,
  COALESCE(it.reason, ''), COALESCE(it.reference_document, ''), COALESCE(s.supplier_name, ''), u.full_name, it.created_at
FROM inventory_transactions it
JOIN products p ON p.product_id = it.product_id
JOIN warehouses w ON w.warehouse_id = it.warehouse_id
JOIN users u ON u.user_id = it.created_by
LEFT JOIN suppliers s ON s.supplier_id = it.supplier_id`

func scanRecentRows(rows pgx.Rows) ([]RecentRow, error) {
	var items []RecentRow
	for rows.Next() {
		var row RecentRow
		if err := rows.Scan(&row.ID, &row.TxnCode, &row.ProductID, &row.ProductSKU, &row.ProductName,
			&row.WarehouseID, &row.WarehouseCode, &row.WarehouseName, &row.Quantity, &row.TxnType,
			&row.Reason, &row.RefDocument, &row.SupplierName, &row.CreatedBy, &row.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, row)
	}
	return items, rows.Err()
}

func (r *repository) RecentByType(ctx context.Context, txnType ledger.MovementType, limit int) ([]RecentRow, error) {
	query := recentSelect + `
WHERE it.transaction_type = $1
ORDER BY it.created_at DESC, it.transaction_id DESC
LIMIT $2`
	rows, err := r.pool.Query(ctx, query, string(txnType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecentRows(rows)
}

func (r *repository) TxnDetails(ctx context.Context, filter TxnFilter) ([]RecentRow, error) {
	query := recentSelect + `
WHERE 1=1`
	args := []interface{}{}
	argCount := 0
	if !filter.From.IsZero() {
		argCount++
		query += ` AND it.created_at >= $` + strconv.Itoa(argCount)
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		argCount++
		query += ` AND it.created_at <= $` + strconv.Itoa(argCount)
		args = append(args, filter.To)
	}
	if filter.Type != "" {
		argCount++
		query += ` AND it.transaction_type = $` + strconv.Itoa(argCount)
		args = append(args, string(filter.Type))
	}
	if filter.ProductID != 0 {
		argCount++
		query += ` AND it.product_id = $` + strconv.Itoa(argCount)
		args = append(args, filter.ProductID)
	}
	if filter.WarehouseID != 0 {
		argCount++
		query += ` AND it.warehouse_id = $` + strconv.Itoa(argCount)
		args = append(args, filter.WarehouseID)
	}
	query += ` ORDER BY it.created_at DESC, it.transaction_id DESC LIMIT 500`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecentRows(rows)
}
