package categorize

import (
	"context"
	"strings"

	"github.com/tallyhq/tally/internal/model"
)

// RuleLister loads a workspace's rules in the order they are tried.
type RuleLister interface {
	ListRules(ctx context.Context, workspaceID string) ([]model.CategoryRule, error)
}

// RuleSuggester matches rule patterns against descriptions,
// case-insensitively. The first matching rule wins.
type RuleSuggester struct {
	rules RuleLister
}

// NewRuleSuggester creates a RuleSuggester.
func NewRuleSuggester(rules RuleLister) *RuleSuggester {
	return &RuleSuggester{rules: rules}
}

func (s *RuleSuggester) Name() string { return "rules" }

func (s *RuleSuggester) Suggest(ctx context.Context, workspaceID string, in []Input) ([]Suggestion, error) {
	rules, err := s.rules.ListRules(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	out := make([]Suggestion, len(in))
	for i, input := range in {
		desc := strings.ToLower(input.Description)
		for _, r := range rules {
			if r.Pattern == "" || !strings.Contains(desc, strings.ToLower(r.Pattern)) {
				continue
			}
			out[i].CategoryID = r.CategoryID
			if r.PersonID != nil {
				out[i].PersonID = *r.PersonID
			}
			break
		}
	}
	return out, nil
}
