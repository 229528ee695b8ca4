package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Header is the CSV header of a transaction export.
const Header = "date,description,type,amount,account,card,category,person,document"

const (
	numFields   = 9
	dateFormat  = "2006-01-02"
	colDate     = 0
	colDesc     = 1
	colType     = 2
	colAmount   = 3
	colAccount  = 4
	colCard     = 5
	colCategory = 6
	colPerson   = 7
	colDocument = 8

	exportSheet = "Transactions"
)

// MarshalRow converts an ExportRow to a CSV row.
func MarshalRow(r ExportRow) []string {
	row := make([]string, numFields)
	row[colDate] = r.Date.Format(dateFormat)
	row[colDesc] = r.Description
	row[colType] = string(r.Type)
	row[colAmount] = r.Amount.StringFixed(2)
	row[colAccount] = r.Account
	row[colCard] = r.Card
	row[colCategory] = r.Category
	row[colPerson] = r.Person
	row[colDocument] = r.Document
	return row
}

// WriteCSV writes rows to w, header first. A UTF-8 BOM is emitted so
// spreadsheet apps detect the encoding of accented descriptions.
func WriteCSV(w io.Writer, rows []ExportRow) error {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("writing BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, r := range rows {
		if err := cw.Write(MarshalRow(r)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes rows to w as a single-sheet workbook with typed date and
// amount cells.
func WriteXLSX(w io.Writer, rows []ExportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := strings.Split(Header, ",")
	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return fmt.Errorf("creating date style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("creating amount style: %w", err)
	}

	for i, r := range rows {
		rowNum := i + 2
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		values := []any{
			r.Date,
			r.Description,
			string(r.Type),
			r.Amount.InexactFloat64(),
			r.Account,
			r.Card,
			r.Category,
			r.Person,
			r.Document,
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return fmt.Errorf("writing row %d: %w", rowNum, err)
		}
	}

	if len(rows) > 0 {
		last := len(rows) + 1
		if err := f.SetCellStyle(exportSheet, "A2", fmt.Sprintf("A%d", last), dateStyle); err != nil {
			return fmt.Errorf("styling dates: %w", err)
		}
		if err := f.SetCellStyle(exportSheet, "D2", fmt.Sprintf("D%d", last), moneyStyle); err != nil {
			return fmt.Errorf("styling amounts: %w", err)
		}
	}

	for col, width := range map[string]float64{"A": 12, "B": 40, "C": 10, "D": 14, "E": 20, "F": 20, "G": 20, "H": 16, "I": 12} {
		if err := f.SetColWidth(exportSheet, col, col, width); err != nil {
			return fmt.Errorf("sizing column %s: %w", col, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
