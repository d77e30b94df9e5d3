package output

import (
	"context"
	"fmt"
	"io"
)

// Formatter renders attendance reports in a specific format.
type Formatter interface {
	// Format renders the report to the given writer.
	Format(ctx context.Context, report *Report, w io.Writer) error

	// Name returns the format name (text, json, xlsx).
	Name() string
}

// FormatOptions controls formatter behavior.
type FormatOptions struct {
	// Verbose enables detailed output including reconnect events and run constants.
	Verbose bool

	// Quiet enables minimal summary-only output.
	Quiet bool
}

// Formats lists the supported format names.
var Formats = []string{"xlsx", "json", "text"}

// NewFormatter returns the formatter registered under name.
func NewFormatter(name string, opts FormatOptions) (Formatter, error) {
	switch name {
	case "xlsx":
		return NewXLSXFormatter(opts), nil
	case "json":
		return NewJSONFormatter(opts), nil
	case "text":
		return NewTextFormatter(opts), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (must be xlsx, json or text)", name)
	}
}
