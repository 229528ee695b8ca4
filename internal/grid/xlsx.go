package grid

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// ReadXLSX reads the first sheet of a workbook. Values are taken raw, so
// date-formatted cells keep their serial number; numeric cells become number
// cells and strings stay text.
func ReadXLSX(r io.Reader) (Grid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}

	g := make(Grid, len(rows))
	for i, values := range rows {
		row := make(Row, len(values))
		for j, v := range values {
			cell, err := xlsxCell(f, sheet, i, j, v)
			if err != nil {
				return nil, err
			}
			row[j] = cell
		}
		g[i] = row
	}
	return g, nil
}

func xlsxCell(f *excelize.File, sheet string, row, col int, v string) (Cell, error) {
	if v == "" {
		return Cell{}, nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return Text(v), nil
	}

	// A numeric-looking string ("123" typed as text) must stay text.
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return Cell{}, fmt.Errorf("cell (%d,%d): %w", row, col, err)
	}
	typ, err := f.GetCellType(sheet, name)
	if err != nil {
		return Cell{}, fmt.Errorf("cell %s type: %w", name, err)
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return Text(v), nil
	default:
		return Number(n), nil
	}
}
