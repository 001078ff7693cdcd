// Package masterdata hosts the product, warehouse and supplier catalogues
// plus the directory lookups the movement pipeline depends on.
package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory answers existence and status lookups against the catalogue
// tables. The movement pipeline calls it before entering the balance
// critical section, so each lookup is a single indexed query.
type Directory struct {
	db *pgxpool.Pool
}

// NewDirectory builds the PostgreSQL-backed directory.
func NewDirectory(db *pgxpool.Pool) *Directory {
	return &Directory{db: db}
}

// ProductActive reports whether the product exists and is active.
func (d *Directory) ProductActive(ctx context.Context, id int64) (bool, error) {
	return d.active(ctx, `SELECT status = 'active' FROM products WHERE product_id = $1`, id)
}

// WarehouseActive reports whether the warehouse exists and is active.
func (d *Directory) WarehouseActive(ctx context.Context, id int64) (bool, error) {
	return d.active(ctx, `SELECT status = 'active' FROM warehouses WHERE warehouse_id = $1`, id)
}

// SupplierActive reports whether the supplier exists and is active.
func (d *Directory) SupplierActive(ctx context.Context, id int64) (bool, error) {
	return d.active(ctx, `SELECT status = 'active' FROM suppliers WHERE supplier_id = $1`, id)
}

// UserActive reports whether the acting user exists and is active. Users
// have no write surface here; accounts come from the seed or operations.
func (d *Directory) UserActive(ctx context.Context, id int64) (bool, error) {
	return d.active(ctx, `SELECT status = 'active' FROM users WHERE user_id = $1`, id)
}

func (d *Directory) active(ctx context.Context, query string, id int64) (bool, error) {
	var active bool
	err := d.db.QueryRow(ctx, query, id).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return active, nil
}
