package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ExpenseSourceManual        = "manual"
	ExpenseSourceImport        = "import"
	ExpenseSourceShippoAPI     = "shippo_api"
	ExpenseSourceShippoEmail   = "shippo_email"
	ExpenseSourceShippoInvoice = "shippo_invoice"
	ExpenseSourceAffiliateAuto = "affiliate_auto"
)

const (
	CategoryShipping      = "shipping"
	CategoryAffiliate     = "affiliate"
	CategoryUncategorized = "Uncategorized"
)

// Expense is a recorded cost. ExpenseDate is YYYY-MM-DD.
type Expense struct {
	ID          int64           `json:"id"`
	ExpenseDate string          `json:"expense_date"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Vendor      string          `json:"vendor,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Source      string          `json:"source"`
	OrderNumber *string         `json:"order_number,omitempty"`
	ExternalRef *string         `json:"external_ref,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NormalizeCategory maps a blank category to "Uncategorized" and folds the
// order-linked categories (shipping, affiliate) to their lowercase form so
// the one-per-order constraint cannot be sidestepped by case.
func NormalizeCategory(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return CategoryUncategorized
	}
	switch lower := strings.ToLower(category); lower {
	case CategoryShipping, CategoryAffiliate:
		return lower
	}
	return category
}

// IsValidExpenseSource reports whether s is one of the known sources.
func IsValidExpenseSource(s string) bool {
	switch s {
	case ExpenseSourceManual, ExpenseSourceImport, ExpenseSourceShippoAPI,
		ExpenseSourceShippoEmail, ExpenseSourceShippoInvoice, ExpenseSourceAffiliateAuto:
		return true
	}
	return false
}

// ExpenseFilters narrows expense listings.
type ExpenseFilters struct {
	Category    *string `form:"category"`
	Source      *string `form:"source"`
	OrderNumber *string `form:"order_number"`
	StartDate   *string `form:"start_date"`
	EndDate     *string `form:"end_date"`
	Page        int     `form:"page"`
	PageSize    int     `form:"page_size"`
}
