package sheet

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// timestampLayout is how date-formatted cells are rendered.
const timestampLayout = "2006-01-02 15:04:05"

// Decoder turns a workbook stream into rows of raw cell text.
// A sheet with no rows decodes to an empty slice and a nil error.
type Decoder interface {
	// Name identifies the decoder in logs.
	Name() string
	// Decode reads the first sheet of the workbook in r.
	Decode(r io.ReadSeeker) ([][]string, error)
}

// DefaultDecoders returns the decoders in priority order: zipped-XML
// workbooks first, then legacy binary workbooks.
func DefaultDecoders() []Decoder {
	return []Decoder{XLSXDecoder{}, XLSDecoder{Charset: "utf-8"}}
}

// XLSXDecoder reads Office Open XML workbooks (.xlsx) with excelize.
type XLSXDecoder struct{}

// Name implements Decoder.
func (XLSXDecoder) Name() string { return "excelize" }

// Decode implements Decoder.
func (XLSXDecoder) Decode(r io.ReadSeeker) (rows [][]string, err error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close workbook: %w", cerr)
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySheet
	}
	name := sheets[0]

	// Number formats can map distinct values to the same text ("0" shows
	// 1.2 and 1.4 as "1"), so cells are read as stored.
	rows, err = f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	display, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}

	cells := cellResolver{f: f, sheet: name}
	for r, row := range rows {
		for c, raw := range row {
			if r >= len(display) || c >= len(display[r]) || display[r][c] == raw {
				continue
			}
			row[c] = cells.resolve(r, c, raw)
		}
	}
	return rows, nil
}

// cellResolver decides the text of cells whose formatted value differs
// from the stored one. Booleans read as True/False, date and time formats
// read as timestamps, and everything else keeps its stored value.
type cellResolver struct {
	f        *excelize.File
	sheet    string
	date1904 *bool
	styles   map[int]bool
}

func (cr *cellResolver) resolve(row, col int, raw string) string {
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return raw
	}
	if typ, err := cr.f.GetCellType(cr.sheet, cell); err == nil && typ == excelize.CellTypeBool {
		switch raw {
		case "1":
			return "True"
		case "0":
			return "False"
		}
		return raw
	}

	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	styleID, err := cr.f.GetCellStyle(cr.sheet, cell)
	if err != nil || !cr.isDateStyle(styleID) {
		return raw
	}
	t, err := excelize.ExcelDateToTime(serial, cr.uses1904())
	if err != nil {
		return raw
	}
	return t.Format(timestampLayout)
}

func (cr *cellResolver) isDateStyle(id int) bool {
	if cr.styles == nil {
		cr.styles = make(map[int]bool)
	}
	if v, ok := cr.styles[id]; ok {
		return v
	}
	style, err := cr.f.GetStyle(id)
	v := err == nil && style != nil && isDateFormat(style.NumFmt, style.CustomNumFmt)
	cr.styles[id] = v
	return v
}

func (cr *cellResolver) uses1904() bool {
	if cr.date1904 == nil {
		v := false
		if props, err := cr.f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
			v = *props.Date1904
		}
		cr.date1904 = &v
	}
	return *cr.date1904
}

// isDateFormat reports whether a built-in format id or custom format code
// renders a date or time.
func isDateFormat(id int, custom *string) bool {
	if custom != nil {
		return isDateFormatCode(*custom)
	}
	switch {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 45 && id <= 47, id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormatCode looks for date or time tokens outside quoted literals,
// escapes and bracketed sections such as colors and locales.
func isDateFormatCode(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case inQuote:
			inQuote = ch != '"'
		case inBracket:
			inBracket = ch != ']'
		case ch == '"':
			inQuote = true
		case ch == '[':
			inBracket = true
		case ch == '\\':
			i++
		default:
			b.WriteByte(ch)
		}
	}
	return strings.ContainsAny(strings.ToLower(b.String()), "ymdhs")
}

// XLSDecoder reads legacy BIFF workbooks (.xls) with extrame/xls.
type XLSDecoder struct {
	// Charset is passed to the BIFF reader for byte strings (default utf-8).
	Charset string
}

// Name implements Decoder.
func (XLSDecoder) Name() string { return "xls" }

// Decode implements Decoder. The BIFF reader panics on some malformed
// input; such panics are reported as errors.
func (d XLSDecoder) Decode(r io.ReadSeeker) (rows [][]string, err error) {
	defer func() {
		if p := recover(); p != nil {
			rows, err = nil, fmt.Errorf("malformed workbook: %v", p)
		}
	}()

	charset := d.Charset
	if charset == "" {
		charset = "utf-8"
	}

	wb, err := xls.OpenReader(r, charset)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	if wb == nil {
		return nil, errNoWorkbookStream
	}
	if wb.NumSheets() == 0 {
		return nil, ErrEmptySheet
	}

	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, ErrEmptySheet
	}

	for i := 0; i <= int(ws.MaxRow); i++ {
		row := rowAt(ws, i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			cells[c] = row.Col(c)
		}
		rows = append(rows, cells)
	}

	return trimTrailingEmpty(rows), nil
}

var errNoWorkbookStream = errors.New("no workbook stream")

// rowAt returns row i, or nil when the sheet holds no record for it.
// WorkSheet.Row dereferences missing rows, so that panic is absorbed here.
func rowAt(ws *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(i)
}

// trimTrailingEmpty drops empty rows at the bottom of the sheet, matching
// what excelize returns for the same data.
func trimTrailingEmpty(rows [][]string) [][]string {
	for len(rows) > 0 && isEmptyRow(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	return rows
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
