// Package statement turns bank and card exports (.csv, .xlsx) into staged
// expense rows.
package statement

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrNoDataRows means the file had a header but no rows after it, or nothing at all.
	ErrNoDataRows = errors.New("statement has no data rows")

	// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
	ErrUnsupportedFormat = errors.New("unsupported statement format")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrUnterminatedQuote means a quoted field ran to the end of the input.
var ErrUnterminatedQuote = errors.New("unterminated quoted field")

// ParseCSV tokenizes CSV text into rows of trimmed cells. Quoted fields may
// hold commas, doubled quotes and line breaks, which are kept byte for byte
// (a CRLF inside quotes stays CRLF). Whitespace between a comma and an
// opening quote is ignored. Rows end at LF, CRLF or a lone CR. Blank lines
// are dropped.
func ParseCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var (
		rows  [][]string
		row   []string
		field strings.Builder
		line  = 1
	)
	endField := func() {
		row = append(row, strings.TrimSpace(field.String()))
		field.Reset()
	}
	endRow := func() {
		endField()
		if !isBlank(row) {
			rows = append(rows, row)
		}
		row = nil
	}

	fieldStart := true
	for i := 0; i < len(data); i++ {
		if fieldStart {
			fieldStart = false
			j := i
			for j < len(data) && (data[j] == ' ' || data[j] == '\t') {
				j++
			}
			if j < len(data) && data[j] == '"' {
				next, err := readQuoted(data, j+1, &field)
				if err != nil {
					return nil, fmt.Errorf("reading csv line %d: %w", line, err)
				}
				line += bytes.Count(data[j:next], []byte{'\n'})
				i = next - 1
				continue
			}
		}

		switch ch := data[i]; ch {
		case ',':
			endField()
			fieldStart = true
		case '\r':
			if i+1 < len(data) && data[i+1] == '\n' {
				i++
			}
			endRow()
			fieldStart = true
			line++
		case '\n':
			endRow()
			fieldStart = true
			line++
		default:
			field.WriteByte(ch)
		}
	}
	if len(row) > 0 || field.Len() > 0 {
		endRow()
	}
	return rows, nil
}

// readQuoted copies the body of a quoted field starting at data[i] into
// field and returns the index just past the closing quote. Characters after
// the closing quote and before the next delimiter are appended by the caller.
func readQuoted(data []byte, i int, field *strings.Builder) (int, error) {
	for i < len(data) {
		if data[i] == '"' {
			if i+1 < len(data) && data[i+1] == '"' {
				field.WriteByte('"')
				i += 2
				continue
			}
			return i + 1, nil
		}
		field.WriteByte(data[i])
		i++
	}
	return 0, ErrUnterminatedQuote
}

// ReadXLSX returns the rows of the first sheet of a workbook.
func ReadXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoDataRows
	}
	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}

	rows := make([][]string, 0, len(raw))
	for _, record := range raw {
		row := make([]string, len(record))
		for i, cell := range record {
			row[i] = strings.TrimSpace(cell)
		}
		if isBlank(row) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadRows picks the reader from the file extension. Anything that is not
// .xlsx is read as CSV text.
func ReadRows(filename string, data []byte) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return ReadXLSX(data)
	case ".xls":
		return nil, fmt.Errorf("%w: %s (save it as .xlsx or .csv)", ErrUnsupportedFormat, filename)
	default:
		return ParseCSV(data)
	}
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
