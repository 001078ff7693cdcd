package ledger

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations available inside a movement transaction.
type TxRepository interface {
	GetBalanceForUpdate(ctx context.Context, productID, warehouseID int64) (Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
	InsertEntry(ctx context.Context, entry Entry) (Entry, error)
}

type txRepository struct {
	tx pgx.Tx
}

// ErrBalanceNotFound indicates a missing balance row; first movement for a
// pair starts from zero.
var ErrBalanceNotFound = errors.New("ledger: balance not found")

// ErrDuplicateCode indicates the transaction code is already recorded.
var ErrDuplicateCode = errors.New("ledger: duplicate transaction code")

// WithTx executes the callback inside a repeatable-read transaction. The row
// lock taken by GetBalanceForUpdate serialises concurrent movements against
// the same (product, warehouse) pair; a lost race surfaces as ErrTxConflict.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger: repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return mapConflict(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapConflict(err)
	}
	return nil
}

func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "40001" {
		return ErrTxConflict
	}
	return err
}

// GetBalance returns the current quantity on hand, zero when no movements exist.
func (r *Repository) GetBalance(ctx context.Context, productID, warehouseID int64) (Balance, error) {
	const query = `SELECT product_id, warehouse_id, quantity, updated_at FROM stock_balances WHERE product_id = $1 AND warehouse_id = $2`
	var b Balance
	err := r.pool.QueryRow(ctx, query, productID, warehouseID).Scan(&b.ProductID, &b.WarehouseID, &b.Quantity, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{ProductID: productID, WarehouseID: warehouseID}, nil
	}
	if err != nil {
		return Balance{}, err
	}
	return b, nil
}

// ListEntries returns committed movements, newest first.
func (r *Repository) ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, error) {
	query := `SELECT transaction_id, transaction_code, product_id, warehouse_id, COALESCE(supplier_id, 0), quantity, transaction_type, COALESCE(reason, ''), COALESCE(reference_document, ''), stock_before, stock_after, created_by, created_at FROM inventory_transactions WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filter.ProductID != 0 {
		argCount++
		query += ` AND product_id = $` + strconv.Itoa(argCount)
		args = append(args, filter.ProductID)
	}
	if filter.WarehouseID != 0 {
		argCount++
		query += ` AND warehouse_id = $` + strconv.Itoa(argCount)
		args = append(args, filter.WarehouseID)
	}
	if filter.Type != "" {
		argCount++
		query += ` AND transaction_type = $` + strconv.Itoa(argCount)
		args = append(args, string(filter.Type))
	}
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

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	argCount++
	query += ` ORDER BY created_at DESC, transaction_id DESC LIMIT $` + strconv.Itoa(argCount)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var txType string
		if err := rows.Scan(&e.ID, &e.Code, &e.ProductID, &e.WarehouseID, &e.SupplierID, &e.Quantity, &txType, &e.Reason, &e.RefDocument, &e.StockBefore, &e.StockAfter, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = MovementType(txType)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *txRepository) GetBalanceForUpdate(ctx context.Context, productID, warehouseID int64) (Balance, error) {
	const query = `SELECT product_id, warehouse_id, quantity, updated_at FROM stock_balances WHERE product_id = $1 AND warehouse_id = $2 FOR UPDATE`
	var b Balance
	err := r.tx.QueryRow(ctx, query, productID, warehouseID).Scan(&b.ProductID, &b.WarehouseID, &b.Quantity, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{ProductID: productID, WarehouseID: warehouseID}, ErrBalanceNotFound
	}
	if err != nil {
		return Balance{}, err
	}
	return b, nil
}

func (r *txRepository) UpsertBalance(ctx context.Context, balance Balance) error {
	const query = `INSERT INTO stock_balances (product_id, warehouse_id, quantity, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (product_id, warehouse_id) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()`
	_, err := r.tx.Exec(ctx, query, balance.ProductID, balance.WarehouseID, balance.Quantity)
	return err
}

func (r *txRepository) InsertEntry(ctx context.Context, entry Entry) (Entry, error) {
	const query = `INSERT INTO inventory_transactions
(transaction_code, product_id, warehouse_id, supplier_id, quantity, transaction_type, reason, reference_document, stock_before, stock_after, created_by, created_at)
VALUES ($1, $2, $3, NULLIF($4, 0), $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11, $12)
RETURNING transaction_id`
	err := r.tx.QueryRow(ctx, query,
		entry.Code,
		entry.ProductID,
		entry.WarehouseID,
		entry.SupplierID,
		entry.Quantity,
		string(entry.Type),
		entry.Reason,
		entry.RefDocument,
		entry.StockBefore,
		entry.StockAfter,
		entry.CreatedBy,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Entry{}, ErrDuplicateCode
		}
		return Entry{}, err
	}
	return entry, nil
}
