// Package sheet decodes spreadsheet workbooks into column-oriented tables.
//
// A Loader tries an ordered list of Decoders (modern zipped-XML first,
// legacy BIFF second) until one succeeds. Only the first sheet of a
// workbook is read and its first non-blank row is taken as the header row.
package sheet

import (
	"errors"
	"strconv"
)

// ErrEmptySheet is returned by a decoder when the workbook has no sheets.
var ErrEmptySheet = errors.New("empty sheet")

// Cell is one value of a column. Null cells had no content in the
// workbook and are distinct from cells holding whitespace.
type Cell struct {
	Text string
	Null bool
}

// Column is a named vertical slice of a table.
type Column struct {
	Name  string
	Cells []Cell
}

// Table is an immutable column-oriented view of one sheet.
type Table struct {
	name    string
	columns []Column
	index   map[string]int
}

// NewTable builds a table from a header row and data rows of raw cell text.
// Empty raw text is treated as null. Rows shorter than the header are padded
// with nulls and cells beyond the header width are ignored.
func NewTable(name string, header []string, rows [][]string) *Table {
	names := headerNames(header)

	columns := make([]Column, len(names))
	for i, n := range names {
		columns[i] = Column{Name: n, Cells: make([]Cell, len(rows))}
	}

	for r, row := range rows {
		for c := range columns {
			if c < len(row) && row[c] != "" {
				columns[c].Cells[r] = Cell{Text: row[c]}
			} else {
				columns[c].Cells[r] = Cell{Null: true}
			}
		}
	}

	return newTable(name, columns)
}

func newTable(name string, columns []Column) *Table {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c.Name] = i
	}
	return &Table{name: name, columns: columns, index: index}
}

// Name returns the display name of the source the table came from.
func (t *Table) Name() string { return t.name }

// Headers returns the column names in sheet order.
func (t *Table) Headers() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Name
	}
	return out
}

// Column returns the named column. Matching is exact and case-sensitive.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// Rows returns the number of data rows below the header.
func (t *Table) Rows() int {
	if len(t.columns) == 0 {
		return 0
	}
	return len(t.columns[0].Cells)
}

// headerNames resolves blank and repeated header cells to unique names.
// A blank cell at index i becomes "Unnamed: i"; the n-th repeat of a
// name becomes "name.n".
func headerNames(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	taken := make(map[string]bool, len(header))

	for i, h := range header {
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for taken[name] {
			seen[h]++
			name = h + "." + strconv.Itoa(seen[h])
		}
		taken[name] = true
		names[i] = name
	}
	return names
}
