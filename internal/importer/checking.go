package importer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/grid"
	"github.com/tallyhq/tally/internal/model"
)

// CheckingParser parses "EXTRATO DE CONTA CORRENTE" checking-account exports:
// a title block, a "Data | Descrição | Docto | Situação | Crédito | Débito | Saldo"
// header, data rows, and a trailing TOTAL row.
type CheckingParser struct {
	opts Options
}

const (
	checkingMarker  = "EXTRATO DE CONTA CORRENTE"
	checkingMinRows = 6
	openingBalance  = "SALDO ANTERIOR"
	totalLabel      = "TOTAL"

	checkingColDate    = 0
	checkingColDesc    = 1
	checkingColDoc     = 2
	checkingColStatus  = 3
	checkingColCredit  = 4
	checkingColDebit   = 5
	checkingColBalance = 6
)

var checkingDate = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})`)

// NewCheckingParser creates a checking-account parser.
func NewCheckingParser(opts Options) *CheckingParser {
	return &CheckingParser{opts: opts}
}

// Name returns the parser name.
func (p *CheckingParser) Name() string { return "checking" }

// Description returns the human-readable format name.
func (p *CheckingParser) Description() string {
	return "checking-account statement (EXTRATO DE CONTA CORRENTE)"
}

// ImportType returns model.ImportTypeChecking.
func (p *CheckingParser) ImportType() model.ImportType { return model.ImportTypeChecking }

// Detect reports whether the title cell carries the checking-statement marker.
func (p *CheckingParser) Detect(g grid.Grid) bool {
	return len(g) >= checkingMinRows && strings.Contains(g.Cell(0, 0).String(), checkingMarker)
}

// Parse locates the table header and reads rows until an empty row or TOTAL.
func (p *CheckingParser) Parse(g grid.Grid) ([]model.ParsedTransaction, error) {
	header := findCheckingHeader(g)
	if header < 0 {
		return nil, fmt.Errorf("%w: %w", ErrFormatNotRecognized, ErrHeaderNotFound)
	}

	var txns []model.ParsedTransaction
	for i := header + 1; i < len(g); i++ {
		row := g[i]
		if row.IsEmpty() || row.At(checkingColDate).Trimmed() == totalLabel {
			break
		}

		txn, ok, err := p.parseRow(i, row)
		if err != nil {
			return nil, err
		}
		if ok {
			txns = append(txns, txn)
		}
	}
	return txns, nil
}

func findCheckingHeader(g grid.Grid) int {
	for i, row := range g {
		if row.At(checkingColDate).Trimmed() == "Data" &&
			strings.Contains(row.At(checkingColDesc).String(), "Descrição") {
			return i
		}
	}
	return -1
}

// parseRow returns ok=false for rows that are not transactions. A non-nil
// error is only returned under the Strict policy.
func (p *CheckingParser) parseRow(idx int, row grid.Row) (model.ParsedTransaction, bool, error) {
	if strings.Contains(row.At(checkingColDesc).String(), openingBalance) {
		return model.ParsedTransaction{}, false, nil
	}

	m := checkingDate.FindStringSubmatch(row.At(checkingColDate).Trimmed())
	if m == nil {
		// Annotation rows between transactions.
		return model.ParsedTransaction{}, false, nil
	}
	date, ok := calendarDate(m[1], m[2], m[3], p.opts.location())
	if !ok {
		return model.ParsedTransaction{}, false, p.opts.malformed(idx, "invalid date "+m[0])
	}

	creditCell := row.At(checkingColCredit)
	debitCell := row.At(checkingColDebit)
	credit, err := p.amount(idx, creditCell)
	if err != nil {
		return model.ParsedTransaction{}, false, err
	}
	debit, err := p.amount(idx, debitCell)
	if err != nil {
		return model.ParsedTransaction{}, false, err
	}

	var amount decimal.Decimal
	var typ model.TransactionType
	switch {
	case !creditCell.IsBlank() && !credit.IsZero():
		amount, typ = credit, model.TypeIncome
	case !debitCell.IsBlank():
		amount, typ = debit.Abs(), model.TypeExpense
	default:
		return model.ParsedTransaction{}, false, nil
	}
	if !amount.IsPositive() {
		return model.ParsedTransaction{}, false, nil
	}

	desc := row.At(checkingColDesc).Trimmed()
	if desc == "" {
		desc = model.NoDescription
	}

	doc := row.At(checkingColDoc).Trimmed()
	txn := model.ParsedTransaction{
		Date:        date,
		Description: desc,
		Amount:      amount,
		Type:        typ,
		RawData: map[string]string{
			"document": doc,
			"status":   row.At(checkingColStatus).Trimmed(),
			"balance":  row.At(checkingColBalance).Trimmed(),
		},
	}
	if doc != "" {
		txn.Document = &doc
	}
	return txn, true, nil
}

// amount decodes a credit or debit cell. Undecodable text counts as zero
// unless the policy is Strict.
func (p *CheckingParser) amount(idx int, c grid.Cell) (decimal.Decimal, error) {
	d, err := cellAmount(c)
	if err != nil {
		return decimal.Zero, p.opts.malformed(idx, err.Error())
	}
	return d, nil
}

// calendarDate builds midnight of DD/MM/YYYY, rejecting dates that
// time.Date would normalize (31/02, 00/01).
func calendarDate(dd, mm, yyyy string, loc *time.Location) (time.Time, bool) {
	day, _ := strconv.Atoi(dd)
	month, _ := strconv.Atoi(mm)
	year, _ := strconv.Atoi(yyyy)
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, false
	}
	return t, true
}
