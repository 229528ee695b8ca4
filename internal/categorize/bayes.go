package categorize

import (
	"context"

	"github.com/jbrukh/bayesian"

	"github.com/tallyhq/tally/internal/ledger"
	"github.com/tallyhq/tally/internal/model"
)

// History provides the training data for BayesSuggester.
type History interface {
	ListTransactions(ctx context.Context, workspaceID string, f ledger.TransactionFilter) ([]model.Transaction, error)
	ListCategories(ctx context.Context, workspaceID string) ([]model.Category, error)
}

// BayesSuggester learns description words from the workspace's categorized
// ledger and suggests the most probable category. Income and expense lines
// get separate classifiers. It retrains on every call, so new commits are
// picked up by the next upload.
type BayesSuggester struct {
	history History
}

// NewBayesSuggester creates a BayesSuggester.
func NewBayesSuggester(history History) *BayesSuggester {
	return &BayesSuggester{history: history}
}

func (s *BayesSuggester) Name() string { return "bayes" }

func (s *BayesSuggester) Suggest(ctx context.Context, workspaceID string, in []Input) ([]Suggestion, error) {
	txns, err := s.history.ListTransactions(ctx, workspaceID, ledger.TransactionFilter{})
	if err != nil {
		return nil, err
	}
	cats, err := s.history.ListCategories(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	live := make(map[string]bool, len(cats))
	for _, c := range cats {
		live[c.ID] = true
	}

	models := map[model.TransactionType]*classifier{
		model.TypeIncome:  train(txns, model.TypeIncome, live),
		model.TypeExpense: train(txns, model.TypeExpense, live),
	}

	out := make([]Suggestion, len(in))
	for i, input := range in {
		if m := models[input.Type]; m != nil {
			out[i].CategoryID = m.classify(tokens(input.Description))
		}
	}
	return out, nil
}

// classifier wraps a trained bayesian.Classifier with the vocabulary it saw,
// so descriptions with no known word get no suggestion instead of the prior.
type classifier struct {
	cl      *bayesian.Classifier
	classes []bayesian.Class
	vocab   map[string]bool
}

// train returns nil when fewer than two categories have examples; the
// classifier needs at least two classes.
func train(txns []model.Transaction, typ model.TransactionType, live map[string]bool) *classifier {
	docs := map[string][][]string{}
	var order []string
	for _, t := range txns {
		if t.Type != typ || t.CategoryID == nil || !live[*t.CategoryID] {
			continue
		}
		words := tokens(t.Description)
		if len(words) == 0 {
			continue
		}
		if _, ok := docs[*t.CategoryID]; !ok {
			order = append(order, *t.CategoryID)
		}
		docs[*t.CategoryID] = append(docs[*t.CategoryID], words)
	}
	if len(order) < 2 {
		return nil
	}

	classes := make([]bayesian.Class, len(order))
	for i, id := range order {
		classes[i] = bayesian.Class(id)
	}

	m := &classifier{
		cl:      bayesian.NewClassifier(classes...),
		classes: classes,
		vocab:   map[string]bool{},
	}
	for _, id := range order {
		for _, words := range docs[id] {
			m.cl.Learn(words, bayesian.Class(id))
			for _, w := range words {
				m.vocab[w] = true
			}
		}
	}
	return m
}

// classify returns the top class when it is a strict winner.
func (m *classifier) classify(words []string) string {
	known := words[:0:0]
	for _, w := range words {
		if m.vocab[w] {
			known = append(known, w)
		}
	}
	if len(known) == 0 {
		return ""
	}

	_, inx, strict := m.cl.LogScores(known)
	if !strict {
		return ""
	}
	return string(m.classes[inx])
}
