package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostLookupRow is one entry of the per-unit cost table.
// Strength is optional ("10mg"); an empty strength acts as a wildcard.
type CostLookupRow struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name" binding:"required"`
	Strength    string          `json:"strength"`
	Vendor      string          `json:"vendor"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CostMatch is the result of a cost lookup. The zero value means "no match".
type CostMatch struct {
	CostPerUnit     decimal.Decimal `json:"cost_per_unit"`
	MatchedName     string          `json:"matched_name"`
	MatchedStrength string          `json:"matched_strength"`
}
