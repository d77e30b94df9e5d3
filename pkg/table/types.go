// Package table reads meeting logs and rosters into header-addressed rows.
package table

import (
	"fmt"
	"strings"
)

// Row maps a header name to the cell value in that column.
type Row map[string]string

// Table is a parsed sheet with a header row.
type Table struct {
	// Headers lists the column names in file order.
	Headers []string

	// Rows holds the data rows; each row has every header as a key.
	Rows []Row
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Has reports whether the table has a column with exactly this header.
func (t *Table) Has(header string) bool {
	if t == nil || header == "" {
		return false
	}
	for _, h := range t.Headers {
		if h == header {
			return true
		}
	}
	return false
}

// Column returns every value of a column in row order.
func (t *Table) Column(header string) []string {
	if !t.Has(header) {
		return nil
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[header]
	}
	return values
}

// Records returns the table as a header row followed by data rows, for
// renderers that need positional cells.
func (t *Table) Records() [][]string {
	if t == nil {
		return nil
	}
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, append([]string(nil), t.Headers...))
	for _, row := range t.Rows {
		rec := make([]string, len(t.Headers))
		for i, h := range t.Headers {
			rec[i] = row[h]
		}
		out = append(out, rec)
	}
	return out
}

// FromRecords builds a table from positional records, treating the first
// record as the header. Blank headers get a positional name and duplicate
// headers get a numeric suffix so every column stays addressable.
func FromRecords(records [][]string) *Table {
	t := &Table{}
	if len(records) == 0 {
		return t
	}

	seen := make(map[string]int)
	for i, h := range records[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("Column %d", i+1)
		}
		if n := seen[h]; n > 0 {
			seen[h] = n + 1
			h = fmt.Sprintf("%s.%d", h, n)
		} else {
			seen[h] = 1
		}
		t.Headers = append(t.Headers, h)
	}

	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		row := make(Row, len(t.Headers))
		for i, h := range t.Headers {
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			} else {
				row[h] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}

	return t
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// InputError reports input that cannot be processed at all: missing required
// columns, no usable duration signal, or unreadable timestamps. It always
// fails the whole run.
type InputError struct {
	Msg string
	Err error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// Errorf builds an InputError with a formatted message.
func Errorf(format string, args ...any) *InputError {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}
