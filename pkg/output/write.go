package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile renders the report into path. The output is written to a
// temporary file in the same directory and renamed into place, so a failed
// render never leaves a partial file behind.
func WriteFile(ctx context.Context, path string, f Formatter, report *Report) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := f.Format(ctx, report, tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming output: %w", err)
	}
	return nil
}

// DefaultFileName returns the conventional output file name for a format.
func DefaultFileName(format string) string {
	switch format {
	case "json":
		return "attendance_report.json"
	case "text":
		return "attendance_report.txt"
	default:
		return "attendance_report.xlsx"
	}
}
