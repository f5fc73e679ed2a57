package statement

import (
	"strings"
	"time"

	"ecom_ops_backend/pkg/utils"

	"github.com/shopspring/decimal"
)

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"2006/01/02",
	"01-02-2006",
	"Jan 2, 2006",
	"02 Jan 2006",
	time.RFC3339,
}

// ParseDate normalizes a statement date to YYYY-MM-DD.
func ParseDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(utils.DateLayout), true
		}
	}
	return "", false
}

// Row is one accepted statement line. Amount is always positive.
type Row struct {
	LineNumber  int
	Date        *string
	Description string
	Vendor      string
	Amount      decimal.Decimal
}

// Statement is the result of Extract.
type Statement struct {
	Headers []string
	Columns Columns
	Rows    []Row
	Skipped int
}

// Extract treats the first row as the header and converts the remaining rows.
// Rows whose amount is missing, unparseable or zero are skipped.
func Extract(rows [][]string) (*Statement, error) {
	if len(rows) == 0 {
		return nil, ErrNoDataRows
	}
	cols, err := DetectColumns(rows[0])
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, ErrNoDataRows
	}

	st := &Statement{Headers: rows[0], Columns: cols}
	for i, record := range rows[1:] {
		amount, ok := utils.ParseLooseAmount(cell(record, cols.Amount))
		if !ok || amount.IsZero() {
			st.Skipped++
			continue
		}

		row := Row{
			LineNumber:  i + 2,
			Description: cell(record, cols.Description),
			Vendor:      cell(record, cols.Vendor),
			Amount:      amount.Abs(),
		}
		if d, ok := ParseDate(cell(record, cols.Date)); ok {
			row.Date = &d
		}
		if row.Vendor == "" {
			row.Vendor = utils.FirstWords(row.Description, 3)
		}
		st.Rows = append(st.Rows, row)
	}
	return st, nil
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}
