package pipeline

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"respnorm/internal"
)

// ExportTableToXLSX writes the processed table to an xlsx workbook, one
// header row plus one row per response. Typed cells keep their native values
// so spreadsheet tooling sees numbers and dates, not text.
func ExportTableToXLSX(t internal.Table, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	for i, col := range t.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col.Name)
	}
	rows := t.NumRows()
	for r := 0; r < rows; r++ {
		for i, col := range t.Columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			_ = f.SetCellValue(sheet, cell, xlsxCellValue(col.Cells[r]))
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

// ExportTableToCSV writes the processed table as comma-separated text with
// missing cells rendered empty.
func ExportTableToCSV(t internal.Table, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.ColumnNames()); err != nil {
		return err
	}
	rows := t.NumRows()
	record := make([]string, len(t.Columns))
	for r := 0; r < rows; r++ {
		for i, col := range t.Columns {
			if col.Cells[r] == nil {
				record[i] = ""
			} else {
				record[i] = cellText(col.Cells[r])
			}
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func xlsxCellValue(cell any) any {
	switch v := cell.(type) {
	case nil:
		return ""
	case string, int64, float64, bool:
		return v
	case time.Time:
		return v
	}
	return cellText(cell)
}
