package models

import "github.com/shopspring/decimal"

// OrderTotals aggregates non-excluded orders in a date window.
type OrderTotals struct {
	OrderCount   int             `json:"order_count"`
	Revenue      decimal.Decimal `json:"revenue"`
	ProductCost  decimal.Decimal `json:"product_cost"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	Profit       decimal.Decimal `json:"profit"`
	QtySold      int             `json:"qty_sold"`
}

// CategoryTotal is the sum of expenses in one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// DashboardSummary holds key metrics for the dashboard.
type DashboardSummary struct {
	StartDate          string          `json:"start_date,omitempty"`
	EndDate            string          `json:"end_date,omitempty"`
	OrderCount         int             `json:"order_count"`
	Revenue            decimal.Decimal `json:"revenue"`
	ProductCost        decimal.Decimal `json:"product_cost"`
	ShippingCost       decimal.Decimal `json:"shipping_cost"`
	GrossProfit        decimal.Decimal `json:"gross_profit"`
	Expenses           decimal.Decimal `json:"expenses"`
	NetProfit          decimal.Decimal `json:"net_profit"`
	Margin             decimal.Decimal `json:"margin"`
	QtySold            int             `json:"qty_sold"`
	ExpensesByCategory []CategoryTotal `json:"expenses_by_category"`
	Warning            string          `json:"warning,omitempty"`
}

// ReportRequestParams holds the date window for summaries (YYYY-MM-DD, inclusive).
type ReportRequestParams struct {
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}
