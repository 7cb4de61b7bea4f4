// Package sheettest builds in-memory workbooks for tests.
package sheettest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// XLSX returns the bytes of a single-sheet workbook holding rows.
// A nil value leaves the cell empty.
func XLSX(tb testing.TB, rows ...[]any) []byte {
	tb.Helper()
	return build(tb, "", rows)
}

// FormattedXLSX is like XLSX but gives every cell below the header row
// the custom number format numFmt.
func FormattedXLSX(tb testing.TB, numFmt string, rows ...[]any) []byte {
	tb.Helper()
	return build(tb, numFmt, rows)
}

func build(tb testing.TB, numFmt string, rows [][]any) []byte {
	tb.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	style := 0
	if numFmt != "" {
		id, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
		if err != nil {
			tb.Fatalf("number format %q: %v", numFmt, err)
		}
		style = id
	}

	for i, row := range rows {
		for j, v := range row {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				tb.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				tb.Fatalf("set %s: %v", cell, err)
			}
			if style != 0 && i > 0 {
				if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
					tb.Fatalf("style %s: %v", cell, err)
				}
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		tb.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

// WriteFile writes data to name inside dir and returns the full path.
func WriteFile(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Column builds rows for a one-column sheet: header followed by values.
func Column(header string, values ...any) [][]any {
	rows := make([][]any, 0, len(values)+1)
	rows = append(rows, []any{header})
	for _, v := range values {
		rows = append(rows, []any{v})
	}
	return rows
}
