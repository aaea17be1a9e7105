package pipeline

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"

	"tezbuild/internal"
)

// ExportRejectsToXLSX writes rejected rows to a spreadsheet for the buyer
// to fix and re-upload. Columns are the union of row keys in sorted order,
// with the rejection reason first.
func ExportRejectsToXLSX(rows []internal.RawRow, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	seen := map[string]bool{}
	var headers []string
	for _, row := range rows {
		for key := range row {
			if key == internal.ErrorField || seen[key] {
				continue
			}
			seen[key] = true
			headers = append(headers, key)
		}
	}
	sort.Strings(headers)
	headers = append([]string{internal.ErrorField}, headers...)

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for r, row := range rows {
		for c, h := range headers {
			value, ok := row[h]
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
