package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrNoHeader is returned when the participant header row cannot be located.
var ErrNoHeader = errors.New("could not locate the participants header row")

var reZoomHeader = regexp.MustCompile(`(?i)^\s*"?name\s*\(original name\)"?\s*,`)

// Decode converts raw file bytes to UTF-8 text. A UTF-8 or UTF-16 byte order
// mark selects the encoding; without one the bytes are read as UTF-8 and
// invalid sequences become U+FFFD.
func Decode(data []byte) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return "", fmt.Errorf("decoding input: %w", err)
	}
	return string(out), nil
}

// ReadLog reads a meeting participation export. Exports often start with a
// meeting summary block, so the participant header row is searched for
// before CSV parsing begins.
func ReadLog(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading log: %w", err)
	}

	text, err := Decode(data)
	if err != nil {
		return nil, err
	}

	payload, err := participantPayload(text)
	if err != nil {
		return nil, err
	}

	return parseCSV(payload)
}

// participantPayload returns the text starting at the participant header row.
func participantPayload(text string) (string, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	for i, ln := range lines {
		if reZoomHeader.MatchString(ln) {
			return strings.Join(lines[i:], "\n"), nil
		}
	}

	for i, ln := range lines {
		low := strings.ToLower(ln)
		if strings.Contains(low, "join time") && strings.Contains(low, "leave time") {
			return strings.Join(lines[i:], "\n"), nil
		}
	}

	// Duration-only exports have no join/leave columns.
	for i, ln := range lines {
		low := strings.ToLower(ln)
		if strings.Contains(low, "name") && strings.Contains(low, "duration") {
			return strings.Join(lines[i:], "\n"), nil
		}
	}

	return "", ErrNoHeader
}

// ReadCSV reads a plain CSV file whose first non-blank line is the header.
func ReadCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	text, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return parseCSV(strings.TrimLeft(text, "\r\n"))
}

func parseCSV(text string) (*Table, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoHeader
	}
	return FromRecords(records), nil
}

// ReadXLSX reads the first sheet of a workbook, using its first row as header.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}

	// Skip leading blank rows so the header is the first populated row.
	for len(rows) > 0 && isBlank(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}

	return FromRecords(rows), nil
}

// ReadFile reads a roster-style upload, choosing the parser by file name.
// Names ending in .xlsx or .xls are read as workbooks; anything else as CSV.
func ReadFile(name string, data []byte) (*Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xls", ".xlsm":
		return ReadXLSX(bytes.NewReader(data))
	default:
		if isZip(data) {
			return ReadXLSX(bytes.NewReader(data))
		}
		return ReadCSV(bytes.NewReader(data))
	}
}

// isZip sniffs the zip local file header used by xlsx workbooks.
func isZip(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], []byte("PK\x03\x04"))
}
