package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Money fields serialize as JSON numbers for the dashboard.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	OrderStatusPending       = "pending"
	OrderStatusProcessing    = "processing"
	OrderStatusCompleted     = "completed"
	OrderStatusOnHold        = "on-hold"
	OrderStatusCancelled     = "cancelled"
	OrderStatusRefunded      = "refunded"
	OrderStatusFailed        = "failed"
	OrderStatusCheckoutDraft = "checkout-draft"
	OrderStatusDraft         = "draft"
)

// ExcludedOrderStatuses never count towards revenue, profit or qty sold.
var ExcludedOrderStatuses = []string{
	OrderStatusCheckoutDraft,
	OrderStatusCancelled,
	OrderStatusDraft,
	OrderStatusRefunded,
	OrderStatusFailed,
}

// IsExcludedStatus reports whether an order in this status is left out of aggregates.
func IsExcludedStatus(status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	for _, ex := range ExcludedOrderStatuses {
		if s == ex {
			return true
		}
	}
	return false
}

// Order is one purchase transaction, keyed by OrderNumber ("Order #2654").
type Order struct {
	ID                  int64           `json:"id"`
	OrderNumber         string          `json:"order_number"`
	WooOrderID          *int64          `json:"woo_order_id,omitempty"`
	Status              string          `json:"status"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	Total               decimal.Decimal `json:"total"`
	ProductCost         decimal.Decimal `json:"product_cost"`
	Profit              decimal.Decimal `json:"profit"`
	ShippingCharged     decimal.Decimal `json:"shipping_charged"`
	ShippingCost        decimal.Decimal `json:"shipping_cost"`
	CouponDiscount      decimal.Decimal `json:"coupon_discount"`
	CouponCode          string          `json:"coupon_code,omitempty"`
	CustomerName        string          `json:"customer_name,omitempty"`
	CustomerEmail       string          `json:"customer_email,omitempty"`
	Currency            string          `json:"currency,omitempty"`
	Notes               string          `json:"notes,omitempty"`
	ShippoOrderID       *string         `json:"shippo_order_id,omitempty"`
	ShippoTransactionID *string         `json:"shippo_transaction_id,omitempty"`
	OrderDate           *time.Time      `json:"order_date,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	Lines               []OrderLine     `json:"line_items,omitempty"`
}

// OrderLine is one product line. Identity is (WooOrderID, LineItemID).
type OrderLine struct {
	WooOrderID          int64           `json:"woo_order_id"`
	LineItemID          int64           `json:"line_item_id"`
	OrderNumber         string          `json:"order_number"`
	ProductID           *int64          `json:"product_id,omitempty"`
	ProductName         string          `json:"product_name"`
	SKU                 string          `json:"sku,omitempty"`
	QtyOrdered          int             `json:"qty_ordered"`
	CustomerPaidPerUnit decimal.Decimal `json:"customer_paid_per_unit"`
	OurCostPerUnit      decimal.Decimal `json:"our_cost_per_unit"`
	LineTotal           decimal.Decimal `json:"line_total"`
	LineCost            decimal.Decimal `json:"line_cost"`
	LineProfit          decimal.Decimal `json:"line_profit"`
}

// Derive fills LineTotal, LineCost and LineProfit from quantity and unit figures.
func (l *OrderLine) Derive() {
	qty := decimal.NewFromInt(int64(l.QtyOrdered))
	l.LineTotal = qty.Mul(l.CustomerPaidPerUnit)
	l.LineCost = qty.Mul(l.OurCostPerUnit)
	l.LineProfit = l.LineTotal.Sub(l.LineCost)
}

// OrderFilters defines the available filters for querying orders.
type OrderFilters struct {
	Status    *string `form:"status"`
	StartDate *string `form:"start_date"`
	EndDate   *string `form:"end_date"`
	Search    *string `form:"search"`
	Page      int     `form:"page"`
	PageSize  int     `form:"page_size"`
}
