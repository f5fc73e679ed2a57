package models

import "time"

const (
	PatternTypeContains = "contains"
	PatternTypeExact    = "exact"
	PatternTypeRegex    = "regex"
)

// CategorizationRule assigns Category to transactions whose text matches Pattern.
// Higher Priority is evaluated first.
type CategorizationRule struct {
	ID          int64     `json:"id"`
	Pattern     string    `json:"pattern"`
	PatternType string    `json:"pattern_type"`
	Category    string    `json:"category"`
	Priority    int       `json:"priority"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsValidPatternType reports whether t is contains, exact or regex.
func IsValidPatternType(t string) bool {
	return t == PatternTypeContains || t == PatternTypeExact || t == PatternTypeRegex
}

// RulePatch carries the optional fields of a rule update.
type RulePatch struct {
	Pattern     *string `json:"pattern"`
	PatternType *string `json:"pattern_type"`
	Category    *string `json:"category"`
	Priority    *int    `json:"priority"`
	IsActive    *bool   `json:"is_active"`
}
