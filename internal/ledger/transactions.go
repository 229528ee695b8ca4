package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/model"
)

// TransactionFilter narrows ListTransactions. Zero fields match everything;
// To is inclusive.
type TransactionFilter struct {
	From       time.Time
	To         time.Time
	AccountID  string
	CardID     string
	CategoryID string
	PersonID   string
	BatchID    string
	Type       model.TransactionType
}

// ListTransactions returns ledger transactions by date, oldest first.
func (s *Service) ListTransactions(ctx context.Context, workspaceID string, f TransactionFilter) ([]model.Transaction, error) {
	q := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID)
	if !f.From.IsZero() {
		q = q.Where("date >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("date <= ?", f.To)
	}
	for col, v := range map[string]string{
		"account_id":      f.AccountID,
		"card_id":         f.CardID,
		"category_id":     f.CategoryID,
		"person_id":       f.PersonID,
		"import_batch_id": f.BatchID,
		"type":            string(f.Type),
	} {
		if v != "" {
			q = q.Where(col+" = ?", v)
		}
	}

	var txns []model.Transaction
	if err := q.Order("date, created_at, id").Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return txns, nil
}

// Summary totals a set of transactions.
type Summary struct {
	Count   int             `json:"count"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// Summarize totals income and expense. Amounts are positive, so Net is
// income minus expense.
func Summarize(txns []model.Transaction) Summary {
	s := Summary{Count: len(txns)}
	for _, t := range txns {
		switch t.Type {
		case model.TypeIncome:
			s.Income = s.Income.Add(t.Amount)
		case model.TypeExpense:
			s.Expense = s.Expense.Add(t.Amount)
		}
	}
	s.Net = s.Income.Sub(s.Expense)
	return s
}

// ExportRow is a transaction with its references resolved to names.
type ExportRow struct {
	Date        time.Time
	Description string
	Type        model.TransactionType
	Amount      decimal.Decimal
	Account     string
	Card        string
	Category    string
	Person      string
	Document    string
}

// ExportRows lists filtered transactions with account, card, category and
// person names resolved. Dangling references export as the raw ID.
func (s *Service) ExportRows(ctx context.Context, workspaceID string, f TransactionFilter) ([]ExportRow, error) {
	txns, err := s.ListTransactions(ctx, workspaceID, f)
	if err != nil {
		return nil, err
	}

	names, err := s.names(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	rows := make([]ExportRow, len(txns))
	for i, t := range txns {
		rows[i] = ExportRow{
			Date:        t.Date.In(s.loc),
			Description: t.Description,
			Type:        t.Type,
			Amount:      t.Amount,
			Account:     names.resolve(t.AccountID),
			Card:        names.resolve(t.CardID),
			Category:    names.resolve(t.CategoryID),
			Person:      names.resolve(t.PersonID),
			Document:    deref(t.Document),
		}
	}
	return rows, nil
}

type nameIndex map[string]string

func (n nameIndex) resolve(id *string) string {
	if id == nil {
		return ""
	}
	if name, ok := n[*id]; ok {
		return name
	}
	return *id
}

func (s *Service) names(ctx context.Context, workspaceID string) (nameIndex, error) {
	idx := nameIndex{}

	accounts, err := s.ListAccounts(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		idx[a.ID] = a.Name
	}

	cards, err := s.ListCards(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	for _, c := range cards {
		idx[c.ID] = c.Name
	}

	cats, err := s.ListCategories(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	for _, c := range cats {
		idx[c.ID] = c.Name
	}

	people, err := s.ListPeople(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	for _, p := range people {
		idx[p.ID] = p.Name
	}
	return idx, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
