package importer

import (
	"strings"

	"github.com/tallyhq/tally/internal/grid"
	"github.com/tallyhq/tally/internal/model"
)

// CardParser parses credit-card "Lançamentos" exports. Card and cardholder
// label rows introduce each card's block; data rows carry a date serial, a
// description, a foreign-currency amount and a local-currency amount.
type CardParser struct {
	opts Options
}

const (
	cardMarker  = "Lançamentos"
	cardMinRows = 4

	cardColDate    = 0
	cardColDesc    = 1
	cardColForeign = 2
	cardColLocal   = 3
)

// Description fragments of lines that are not spend: subtotals, the
// automatic invoice payment and the annual fee, which the ledger records
// on its own.
var cardSkipDescriptions = []string{"Subtotal", "Deb Autom De Fatura", "Anuidade"}

// NewCardParser creates a credit-card statement parser.
func NewCardParser(opts Options) *CardParser {
	return &CardParser{opts: opts}
}

// Name returns the parser name.
func (p *CardParser) Name() string { return "card" }

// Description returns the human-readable format name.
func (p *CardParser) Description() string {
	return "credit-card statement (Lançamentos)"
}

// ImportType returns model.ImportTypeCard.
func (p *CardParser) ImportType() model.ImportType { return model.ImportTypeCard }

// Detect reports whether the title cell carries the card-statement marker.
func (p *CardParser) Detect(g grid.Grid) bool {
	return len(g) >= cardMinRows && strings.Contains(g.Cell(0, 0).String(), cardMarker)
}

// Parse makes one forward pass, tracking the current card label. Every
// emitted line is an expense without a document.
func (p *CardParser) Parse(g grid.Grid) ([]model.ParsedTransaction, error) {
	var txns []model.ParsedTransaction
	currentCard := ""

	for i, row := range g {
		label := row.At(cardColDate).Trimmed()
		desc := row.At(cardColDesc).Trimmed()

		switch {
		case label == "Cartão" || label == "Cartão on-line":
			currentCard = desc
			continue
		case label == "Titular":
			continue
		case label == "Data" && strings.Contains(desc, "Descrição"):
			continue
		case containsAny(desc, cardSkipDescriptions):
			continue
		}

		serial, ok := cellSerial(row.At(cardColDate))
		if !ok || desc == "" {
			continue
		}

		date, err := SerialDate(serial, p.opts.location())
		if err != nil {
			if err := p.opts.malformed(i, err.Error()); err != nil {
				return nil, err
			}
			continue
		}

		local, err := cellAmount(row.At(cardColLocal))
		if err != nil {
			if err := p.opts.malformed(i, err.Error()); err != nil {
				return nil, err
			}
			continue
		}
		amount := local
		if amount.IsZero() {
			foreign, err := cellAmount(row.At(cardColForeign))
			if err != nil {
				if err := p.opts.malformed(i, err.Error()); err != nil {
					return nil, err
				}
				continue
			}
			amount = foreign
		}
		amount = amount.Abs()
		if amount.IsZero() {
			continue
		}

		txns = append(txns, model.ParsedTransaction{
			Date:        date,
			Description: desc,
			Amount:      amount,
			Type:        model.TypeExpense,
			RawData: map[string]string{
				"card":          currentCard,
				"amountForeign": row.At(cardColForeign).Trimmed(),
				"amountLocal":   row.At(cardColLocal).Trimmed(),
			},
		})
	}
	return txns, nil
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
