// Package categorize suggests a category and a person for imported rows.
// Suggestions are hints for the review screen and never block an upload.
package categorize

import (
	"context"
	"io"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/model"
)

// Input is the part of a parsed line suggesters look at.
type Input struct {
	Description string
	Type        model.TransactionType
	Amount      decimal.Decimal
}

// Suggestion holds suggested IDs; empty means no suggestion.
type Suggestion struct {
	CategoryID string
	PersonID   string
}

// Suggester proposes categories for a batch of inputs. The result has one
// entry per input.
type Suggester interface {
	Name() string
	Suggest(ctx context.Context, workspaceID string, in []Input) ([]Suggestion, error)
}

// Chain asks each suggester in turn about the inputs still lacking a
// category. The first non-empty category and the first non-empty person win
// independently.
type Chain struct {
	suggesters []Suggester
	logger     *log.Logger
}

// NewChain creates a Chain. A nil logger discards suggester failures.
func NewChain(logger *log.Logger, suggesters ...Suggester) *Chain {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Chain{suggesters: suggesters, logger: logger}
}

func (c *Chain) Name() string { return "chain" }

// Suggest never fails: a failing suggester is logged and skipped.
func (c *Chain) Suggest(ctx context.Context, workspaceID string, in []Input) ([]Suggestion, error) {
	out := make([]Suggestion, len(in))

	for _, s := range c.suggesters {
		var pending []int
		for i := range out {
			if out[i].CategoryID == "" {
				pending = append(pending, i)
			}
		}
		if len(pending) == 0 {
			break
		}

		batch := make([]Input, len(pending))
		for j, i := range pending {
			batch[j] = in[i]
		}

		got, err := s.Suggest(ctx, workspaceID, batch)
		if err != nil {
			c.logger.Warn("suggester failed", "suggester", s.Name(), "workspace", workspaceID, "err", err)
			continue
		}
		if len(got) != len(batch) {
			c.logger.Warn("suggester returned wrong count", "suggester", s.Name(), "want", len(batch), "got", len(got))
			continue
		}

		hits := 0
		for j, i := range pending {
			if out[i].CategoryID == "" && got[j].CategoryID != "" {
				out[i].CategoryID = got[j].CategoryID
				hits++
			}
			if out[i].PersonID == "" {
				out[i].PersonID = got[j].PersonID
			}
		}
		c.logger.Debug("suggestions", "suggester", s.Name(), "asked", len(batch), "hits", hits)
	}
	return out, nil
}

// tokens lowercases a description and splits it into words, dropping
// digits-only fragments such as dates and card numbers.
func tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 2 || isNumeric(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
