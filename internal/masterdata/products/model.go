package products

import (
	"time"
)

// Product represents a stocked item.
type Product struct {
	ID                 int64     `json:"id"`
	SKU                string    `json:"sku"`
	Name               string    `json:"name"`
	Category           string    `json:"category,omitempty"`
	Unit               string    `json:"unit"`
	MinStockLevel      int64     `json:"min_stock_level"`
	DefaultWarehouseID int64     `json:"default_warehouse_id,omitempty"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
