package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StockStatusInStock    = "In Stock"
	StockStatusLowStock   = "LOW STOCK"
	StockStatusOutOfStock = "OUT OF STOCK"
)

// Product is a catalog/inventory item.
type Product struct {
	ID                  int64               `json:"id"`
	WooProductID        *int64              `json:"woo_product_id,omitempty"`
	Name                string              `json:"name"`
	SKU                 string              `json:"sku,omitempty"`
	StartingQty         int                 `json:"starting_qty"`
	QtySold             int                 `json:"qty_sold"`
	CurrentStock        int                 `json:"current_stock"`
	StockStatus         string              `json:"stock_status"`
	StockStatusOverride *string             `json:"stock_status_override,omitempty"`
	RetailPrice         decimal.Decimal     `json:"retail_price"`
	SalePrice           decimal.NullDecimal `json:"sale_price"`
	UnitCost            decimal.Decimal     `json:"unit_cost"`
	EffectivePrice      decimal.Decimal     `json:"effective_price"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// CurrentStock is starting minus sold, floored at zero.
func CurrentStock(startingQty, qtySold int) int {
	if qtySold >= startingQty {
		return 0
	}
	return startingQty - qtySold
}

// DeriveStockStatus maps a stock level to a status; a non-empty override wins.
func DeriveStockStatus(stock, lowThreshold int, override *string) string {
	if override != nil && *override != "" {
		return *override
	}
	switch {
	case stock <= 0:
		return StockStatusOutOfStock
	case stock <= lowThreshold:
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}

// Refresh recomputes the derived stock and price fields.
func (p *Product) Refresh(lowThreshold int) {
	p.CurrentStock = CurrentStock(p.StartingQty, p.QtySold)
	p.StockStatus = DeriveStockStatus(p.CurrentStock, lowThreshold, p.StockStatusOverride)
	p.EffectivePrice = p.RetailPrice
	if p.SalePrice.Valid {
		p.EffectivePrice = p.SalePrice.Decimal
	}
}
