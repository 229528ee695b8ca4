package importer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/grid"
)

var (
	errEmptyAmount = errors.New("empty amount")
	amountJunk     = regexp.MustCompile(`[^0-9.\-]`)
)

// ParseAmount decodes Brazilian-format money text ("1.202,68", "-280,00",
// "R$ 15,90"). Periods are thousands separators and the comma is the decimal
// mark. Anything that does not decode yields zero.
func ParseAmount(s string) decimal.Decimal {
	d, _ := parseAmount(s)
	return d
}

func parseAmount(s string) (decimal.Decimal, error) {
	norm := strings.Join(strings.Fields(s), "")
	norm = strings.ReplaceAll(norm, ".", "")
	norm = strings.ReplaceAll(norm, ",", ".")
	norm = amountJunk.ReplaceAllString(norm, "")
	if norm == "" {
		return decimal.Zero, errEmptyAmount
	}
	d, err := decimal.NewFromString(norm)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return d, nil
}

// cellAmount decodes a money cell. Number cells are taken as-is; blank cells
// are zero; text goes through ParseAmount's normalization.
func cellAmount(c grid.Cell) (decimal.Decimal, error) {
	if f, ok := c.Float(); ok {
		return decimal.NewFromFloat(f), nil
	}
	if c.IsBlank() {
		return decimal.Zero, nil
	}
	return parseAmount(c.String())
}
