package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ImportStatusPending  = "pending"
	ImportStatusPartial  = "partial"
	ImportStatusApproved = "approved"
)

const (
	LineStatePending  = "pending"
	LineStateApproved = "approved"
	LineStateRejected = "rejected"
)

// ExpenseImportBatch is one uploaded statement awaiting review.
type ExpenseImportBatch struct {
	ID            int64               `json:"id"`
	Filename      string              `json:"filename"`
	Status        string              `json:"status"`
	TotalLines    int                 `json:"total_lines"`
	ApprovedLines int                 `json:"approved_lines"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Lines         []ExpenseImportLine `json:"lines,omitempty"`
}

// ExpenseImportLine is a staged statement row.
type ExpenseImportLine struct {
	ID              int64           `json:"id"`
	BatchID         int64           `json:"batch_id"`
	LineNumber      int             `json:"line_number"`
	TransactionDate *string         `json:"transaction_date"`
	Description     string          `json:"description"`
	Vendor          string          `json:"vendor"`
	Amount          decimal.Decimal `json:"amount"`
	Category        *string         `json:"category"`
	AutoCategorized bool            `json:"auto_categorized"`
	Approved        bool            `json:"approved"`
	Rejected        bool            `json:"rejected"`
	ExpenseID       *int64          `json:"expense_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// State folds the approved/rejected flags into one of the line states.
func (l ExpenseImportLine) State() string {
	switch {
	case l.Approved:
		return LineStateApproved
	case l.Rejected:
		return LineStateRejected
	default:
		return LineStatePending
	}
}

// Eligible reports whether the line can be promoted into an expense.
func (l ExpenseImportLine) Eligible() bool {
	return l.State() == LineStatePending && l.Category != nil && *l.Category != ""
}

// DeriveImportStatus computes batch status from approved vs total lines.
func DeriveImportStatus(approved, total int) string {
	switch {
	case total > 0 && approved == total:
		return ImportStatusApproved
	case approved > 0:
		return ImportStatusPartial
	default:
		return ImportStatusPending
	}
}
