package products

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockledger/stockledger/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id int64, product Product) error
	Deactivate(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const selectColumns = `product_id, sku, product_name, COALESCE(category, ''), unit, min_stock_level, COALESCE(default_warehouse_id, 0), status, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	query := `SELECT ` + selectColumns + ` FROM products WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM products WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	appendCond := func(cond string, value interface{}) {
		argCount++
		clause := ` AND ` + cond + `$` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, value)
	}
	if filters.Search != "" {
		argCount++
		placeholder := `$` + strconv.Itoa(argCount)
		clause := ` AND (product_name ILIKE ` + placeholder + ` OR sku ILIKE ` + placeholder + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.Category != "" {
		appendCond(`category = `, filters.Category)
	}
	if filters.Status != "" {
		appendCond(`status = `, filters.Status)
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.Unit, &p.MinStockLevel, &p.DefaultWarehouseID, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	query := `SELECT ` + selectColumns + ` FROM products WHERE product_id = $1`
	var p Product
	err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.Unit, &p.MinStockLevel, &p.DefaultWarehouseID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.ErrNotFound
	}
	return p, err
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	query := `INSERT INTO products (sku, product_name, category, unit, min_stock_level, default_warehouse_id, status, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, 0), $7, $8, $8) RETURNING product_id`
	now := time.Now()
	err := r.db.QueryRow(ctx, query, product.SKU, product.Name, product.Category, product.Unit, product.MinStockLevel, product.DefaultWarehouseID, product.Status, now).Scan(&product.ID)
	if err != nil {
		return Product{}, mapDuplicate(err)
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

func (r *repository) Update(ctx context.Context, id int64, product Product) error {
	query := `UPDATE products SET sku = $1, product_name = $2, category = NULLIF($3, ''), unit = $4, min_stock_level = $5, default_warehouse_id = NULLIF($6, 0), status = $7, updated_at = $8 WHERE product_id = $9`
	tag, err := r.db.Exec(ctx, query, product.SKU, product.Name, product.Category, product.Unit, product.MinStockLevel, product.DefaultWarehouseID, product.Status, time.Now(), id)
	if err != nil {
		return mapDuplicate(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes the product. Rows referenced by the ledger are
// never removed.
func (r *repository) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE products SET status = $1, updated_at = $2 WHERE product_id = $3`
	tag, err := r.db.Exec(ctx, query, shared.StatusInactive, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func mapDuplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "sku":
		return "sku " + dir
	case "name":
		return "product_name " + dir
	case "category":
		return "category " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "product_name " + dir
	}
}
