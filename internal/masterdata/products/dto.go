package products

type ProductForm struct {
	SKU                string `json:"sku"`
	Name               string `json:"name"`
	Category           string `json:"category"`
	Unit               string `json:"unit"`
	MinStockLevel      int64  `json:"min_stock_level"`
	DefaultWarehouseID int64  `json:"default_warehouse_id"`
	Status             string `json:"status"`
}
