package grid

import (
	"strconv"
	"strings"
)

// Kind classifies a cell's value.
type Kind int

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
)

// Cell is one loosely-typed spreadsheet value. The zero value is an empty cell.
type Cell struct {
	kind Kind
	text string
	num  float64
}

// Text returns a text cell.
func Text(s string) Cell { return Cell{kind: KindText, text: s} }

// Number returns a numeric cell.
func Number(f float64) Cell { return Cell{kind: KindNumber, num: f} }

// Kind returns the cell's kind.
func (c Cell) Kind() Kind { return c.kind }

// IsNumber reports whether the cell holds a number.
func (c Cell) IsNumber() bool { return c.kind == KindNumber }

// IsBlank reports whether the cell is empty or holds only whitespace.
func (c Cell) IsBlank() bool {
	switch c.kind {
	case KindEmpty:
		return true
	case KindText:
		return strings.TrimSpace(c.text) == ""
	default:
		return false
	}
}

// Float returns the numeric value of a number cell.
func (c Cell) Float() (float64, bool) {
	if c.kind != KindNumber {
		return 0, false
	}
	return c.num, true
}

// String returns text verbatim, numbers without exponent or trailing zeros,
// and "" for empty cells.
func (c Cell) String() string {
	switch c.kind {
	case KindText:
		return c.text
	case KindNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	default:
		return ""
	}
}

// Trimmed returns String() with surrounding whitespace removed.
func (c Cell) Trimmed() string {
	return strings.TrimSpace(c.String())
}

// Row is an ordered sequence of cells.
type Row []Cell

// At returns the cell at column i, or an empty cell when out of range.
func (r Row) At(i int) Cell {
	if i < 0 || i >= len(r) {
		return Cell{}
	}
	return r[i]
}

// IsEmpty reports whether the row has no cells or only blank ones.
func (r Row) IsEmpty() bool {
	for _, c := range r {
		if !c.IsBlank() {
			return false
		}
	}
	return true
}

// Grid is a row-major table of cells. Row 0 may be a title, a header, or data.
type Grid []Row

// Cell returns the cell at (row, col), or an empty cell when out of range.
func (g Grid) Cell(row, col int) Cell {
	if row < 0 || row >= len(g) {
		return Cell{}
	}
	return g[row].At(col)
}

// Rows builds a Grid from plain Go values: string, float64, int, nil.
// It is meant for tests and fixtures.
func Rows(rows ...[]any) Grid {
	g := make(Grid, len(rows))
	for i, vals := range rows {
		row := make(Row, len(vals))
		for j, v := range vals {
			row[j] = valueCell(v)
		}
		g[i] = row
	}
	return g
}

func valueCell(v any) Cell {
	switch x := v.(type) {
	case nil:
		return Cell{}
	case string:
		return Text(x)
	case float64:
		return Number(x)
	case int:
		return Number(float64(x))
	case Cell:
		return x
	default:
		return Cell{}
	}
}
