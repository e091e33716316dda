package export

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/use-agent/rcvscrap/models"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the records.
const SheetName = "Registros"

// ExcelWriter stores the records as one worksheet. A result without records
// leaves any previous file untouched.
type ExcelWriter struct {
	path string
}

// NewExcelWriter returns a writer targeting path.
func NewExcelWriter(path string) *ExcelWriter {
	return &ExcelWriter{path: path}
}

func (w *ExcelWriter) Path() string { return w.path }

func (w *ExcelWriter) Write(result *models.ExtractionResult) error {
	if len(result.Records) == 0 {
		slog.Info("no records, excel output skipped", "path", w.path)
		return nil
	}
	if err := writeFile(w.path, func(out io.Writer) error {
		return EncodeExcel(out, result.Records)
	}); err != nil {
		return err
	}
	slog.Info("results saved", "format", "excel", "path", w.path, "records", len(result.Records))
	return nil
}

// EncodeExcel writes records as an .xlsx workbook: a bold header row with
// Columns(records) followed by one row per record. Missing fields are blank.
func EncodeExcel(out io.Writer, records []*models.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}

	cols := Columns(records)
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}

	for r, rec := range records {
		row := make([]any, len(cols))
		for i, c := range cols {
			if v, ok := rec.Get(c); ok {
				row[i] = v
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return fmt.Errorf("export: cell name: %w", err)
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("export: write row %d: %w", r+1, err)
		}
	}

	if len(cols) > 0 {
		if err := styleHeader(f, len(cols)); err != nil {
			slog.Debug("header style not applied", "error", err)
		}
	}

	if err := f.Write(out); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func styleHeader(f *excelize.File, ncols int) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(ncols, 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(SheetName, "A1", last, style)
}
