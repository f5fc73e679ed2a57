package statement

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingColumns is matched by every ColumnDetectionError.
var ErrMissingColumns = errors.New("required statement columns not found")

const (
	FieldDate        = "date"
	FieldDescription = "description"
	FieldAmount      = "amount"
	FieldVendor      = "vendor"
)

type fieldCandidates struct {
	field     string
	exact     []string
	substring []string
	required  bool
}

// Fields are resolved in this order; a column claimed by an earlier field is
// not offered to later ones.
var candidates = []fieldCandidates{
	{
		field:     FieldDate,
		exact:     []string{"date", "transaction date", "trans date", "posting date", "post date", "posted date"},
		substring: []string{"date"},
		required:  true,
	},
	{
		field:     FieldAmount,
		exact:     []string{"amount", "debit", "transaction amount", "charge", "value"},
		substring: []string{"amount", "debit"},
		required:  true,
	},
	{
		field:     FieldDescription,
		exact:     []string{"description", "memo", "details", "transaction description", "name", "payee"},
		substring: []string{"desc", "memo"},
	},
	{
		field:     FieldVendor,
		exact:     []string{"vendor", "merchant", "merchant name", "payee name"},
		substring: []string{"merchant", "vendor"},
	},
}

// Columns holds header indexes; -1 means the column is absent.
type Columns struct {
	Date        int
	Description int
	Amount      int
	Vendor      int
}

// ColumnDetectionError reports mandatory columns that could not be located,
// together with the headers that were seen.
type ColumnDetectionError struct {
	Missing []string
	Headers []string
}

func (e *ColumnDetectionError) Error() string {
	return fmt.Sprintf("could not find %s column(s) in headers [%s]",
		strings.Join(e.Missing, ", "), strings.Join(e.Headers, ", "))
}

func (e *ColumnDetectionError) Is(target error) bool {
	return target == ErrMissingColumns
}

// DetectColumns locates the statement columns in a header row: exact
// case-insensitive names first, then substring matches.
func DetectColumns(header []string) (Columns, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	taken := map[int]bool{}
	found := map[string]int{}
	var missing []string

	for _, fc := range candidates {
		idx := findExact(normalized, fc.exact, taken)
		if idx < 0 {
			idx = findSubstring(normalized, fc.substring, taken)
		}
		if idx >= 0 {
			taken[idx] = true
		} else if fc.required {
			missing = append(missing, fc.field)
		}
		found[fc.field] = idx
	}

	if len(missing) > 0 {
		return Columns{}, &ColumnDetectionError{Missing: missing, Headers: append([]string(nil), header...)}
	}
	return Columns{
		Date:        found[FieldDate],
		Description: found[FieldDescription],
		Amount:      found[FieldAmount],
		Vendor:      found[FieldVendor],
	}, nil
}

func findExact(headers, names []string, taken map[int]bool) int {
	for _, name := range names {
		for i, h := range headers {
			if !taken[i] && h == name {
				return i
			}
		}
	}
	return -1
}

func findSubstring(headers, needles []string, taken map[int]bool) int {
	for _, needle := range needles {
		for i, h := range headers {
			if !taken[i] && strings.Contains(h, needle) {
				return i
			}
		}
	}
	return -1
}
