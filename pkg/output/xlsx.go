package output

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXFormatter renders reports as a multi-sheet workbook.
type XLSXFormatter struct {
	opts FormatOptions
}

// NewXLSXFormatter creates a new workbook formatter with the given options.
func NewXLSXFormatter(opts FormatOptions) *XLSXFormatter {
	return &XLSXFormatter{opts: opts}
}

// Name returns the format name.
func (f *XLSXFormatter) Name() string {
	return "xlsx"
}

// Format renders the report as a workbook. Quiet mode writes only the
// Summary sheet.
func (f *XLSXFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	sheets := report.Sheets()
	if f.opts.Quiet {
		sheets = sheets[len(sheets)-1:]
	}

	book, err := buildWorkbook(ctx, sheets)
	if err != nil {
		return err
	}
	defer book.Close()

	if err := book.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func buildWorkbook(ctx context.Context, sheets []Sheet) (*excelize.File, error) {
	book := excelize.NewFile()

	header, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		book.Close()
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	for i, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			book.Close()
			return nil, err
		}
		if err := writeSheet(book, i, sheet, header); err != nil {
			book.Close()
			return nil, fmt.Errorf("sheet %q: %w", sheet.Name, err)
		}
	}
	return book, nil
}

func writeSheet(book *excelize.File, index int, sheet Sheet, headerStyle int) error {
	if index == 0 {
		// A new file starts with one default sheet.
		if err := book.SetSheetName(book.GetSheetName(0), sheet.Name); err != nil {
			return err
		}
	} else if _, err := book.NewSheet(sheet.Name); err != nil {
		return err
	}

	headers := make([]any, len(sheet.Headers))
	for i, h := range sheet.Headers {
		headers[i] = h
	}
	if err := book.SetSheetRow(sheet.Name, "A1", &headers); err != nil {
		return err
	}
	if err := book.SetRowStyle(sheet.Name, 1, 1, headerStyle); err != nil {
		return err
	}

	for i, row := range sheet.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := row
		if err := book.SetSheetRow(sheet.Name, cell, &row); err != nil {
			return err
		}
	}

	return book.SetPanes(sheet.Name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
