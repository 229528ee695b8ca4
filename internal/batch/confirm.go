package batch

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tallyhq/tally/internal/auditlog"
	"github.com/tallyhq/tally/internal/ledger"
	"github.com/tallyhq/tally/internal/model"
)

// ConfirmParams names where the committed transactions are booked. At
// least one of AccountID and CardID is required. All marks every row
// confirmed first, inside the same transaction as the commit.
type ConfirmParams struct {
	AccountID string `json:"accountId"`
	CardID    string `json:"cardId"`
	All       bool   `json:"all"`
}

// ConfirmResult is the outcome of a successful commit.
type ConfirmResult struct {
	Batch        model.ImportBatch   `json:"batch"`
	Transactions []model.Transaction `json:"transactions"`
}

// Confirm commits the batch's confirmed rows to the ledger. Everything
// happens in one database transaction: either every confirmed row becomes a
// ledger transaction and the batch is confirmed, or nothing changes.
// Unconfirmed rows are left untouched and never reach the ledger.
//
// A batch that is not parsed, including one confirmed by a concurrent
// request, fails with ErrCommitConflict. Invalid input fails with a
// *CommitValidationError listing every problem found.
func (s *Service) Confirm(ctx context.Context, workspaceID, batchID string, p ConfirmParams) (*ConfirmResult, error) {
	var result ConfirmResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := s.load(ctx, tx, workspaceID, batchID, true)
		if err != nil {
			return err
		}
		if b.Status != model.BatchParsed {
			return fmt.Errorf("batch %s is %s: %w", b.ID, b.Status, ErrCommitConflict)
		}
		if p.All {
			if _, err := confirmRows(ctx, tx, b.ID); err != nil {
				return err
			}
			for i := range b.Rows {
				b.Rows[i].Confirmed = true
			}
		}

		var confirmed []model.ImportedRow
		for _, r := range b.Rows {
			if r.Confirmed {
				confirmed = append(confirmed, r)
			}
		}

		lg := s.ledger.WithTx(tx)
		if err := validateCommit(ctx, lg, workspaceID, p, confirmed); err != nil {
			return err
		}

		now := s.now()
		if err := s.advance(ctx, tx, b, model.BatchConfirmed, map[string]any{"confirmed_at": now}); err != nil {
			return err
		}
		b.ConfirmedAt = &now

		txns := make([]model.Transaction, len(confirmed))
		for i, r := range confirmed {
			txns[i] = ledgerTransaction(workspaceID, b.ID, p, r)
		}
		if err := tx.CreateInBatches(&txns, insertBatch).Error; err != nil {
			return fmt.Errorf("creating ledger transactions: %w", err)
		}

		linked := make(map[string]string, len(confirmed))
		for i, r := range confirmed {
			err := tx.Model(&model.ImportedRow{}).
				Where("id = ?", r.ID).
				Update("transaction_id", txns[i].ID).Error
			if err != nil {
				return fmt.Errorf("linking row %s: %w", r.ID, err)
			}
			linked[r.ID] = txns[i].ID
		}
		for i := range b.Rows {
			if id, ok := linked[b.Rows[i].ID]; ok {
				b.Rows[i].TransactionID = &id
			}
		}

		result = ConfirmResult{Batch: *b, Transactions: txns}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("import confirmed", "workspace", workspaceID, "batch", batchID, "transactions", len(result.Transactions))
	s.record(&result.Batch, auditlog.ActionConfirmed, fmt.Sprintf("transactions=%d account=%s card=%s",
		len(result.Transactions), p.AccountID, p.CardID))
	return &result, nil
}

// validateCommit collects every reason the commit cannot proceed.
func validateCommit(ctx context.Context, lg *ledger.Service, workspaceID string, p ConfirmParams, rows []model.ImportedRow) error {
	var violations []Violation

	if p.AccountID == "" && p.CardID == "" {
		violations = append(violations, Violation{
			Field:       "destination",
			Description: "accountId or cardId is required",
		})
	}
	if p.AccountID != "" {
		ok, err := lg.AccountExists(ctx, workspaceID, p.AccountID)
		if err != nil {
			return err
		}
		if !ok {
			violations = append(violations, Violation{
				Field:       "accountId",
				Description: fmt.Sprintf("account %q does not exist", p.AccountID),
			})
		}
	}
	if p.CardID != "" {
		ok, err := lg.CardExists(ctx, workspaceID, p.CardID)
		if err != nil {
			return err
		}
		if !ok {
			violations = append(violations, Violation{
				Field:       "cardId",
				Description: fmt.Sprintf("card %q does not exist", p.CardID),
			})
		}
	}

	if len(rows) == 0 {
		violations = append(violations, Violation{
			Field:       "rows",
			Description: "no rows are confirmed",
		})
	}

	categories := map[string]bool{}
	people := map[string]bool{}
	for _, r := range rows {
		cat := r.EffectiveCategoryID()
		if cat == "" {
			violations = append(violations, Violation{
				RowID:       r.ID,
				Field:       "categoryId",
				Description: "a category is required",
			})
		} else {
			ok, err := cached(ctx, categories, cat, func(ctx context.Context, id string) (bool, error) {
				return lg.CategoryExists(ctx, workspaceID, id)
			})
			if err != nil {
				return err
			}
			if !ok {
				violations = append(violations, Violation{
					RowID:       r.ID,
					Field:       "categoryId",
					Description: fmt.Sprintf("category %q does not exist", cat),
				})
			}
		}

		if person := r.EffectivePersonID(); person != "" {
			ok, err := cached(ctx, people, person, func(ctx context.Context, id string) (bool, error) {
				return lg.PersonExists(ctx, workspaceID, id)
			})
			if err != nil {
				return err
			}
			if !ok {
				violations = append(violations, Violation{
					RowID:       r.ID,
					Field:       "personId",
					Description: fmt.Sprintf("person %q does not exist", person),
				})
			}
		}
	}

	if len(violations) > 0 {
		return &CommitValidationError{Violations: violations}
	}
	return nil
}

func cached(ctx context.Context, seen map[string]bool, id string, check func(context.Context, string) (bool, error)) (bool, error) {
	if ok, hit := seen[id]; hit {
		return ok, nil
	}
	ok, err := check(ctx, id)
	if err != nil {
		return false, err
	}
	seen[id] = ok
	return ok, nil
}

func ledgerTransaction(workspaceID, batchID string, p ConfirmParams, r model.ImportedRow) model.Transaction {
	rowID := r.ID
	return model.Transaction{
		WorkspaceID:   workspaceID,
		Date:          r.Date,
		Description:   r.Description,
		Amount:        r.Amount,
		Type:          r.Type,
		AccountID:     optional(p.AccountID),
		CardID:        optional(p.CardID),
		CategoryID:    optional(r.EffectiveCategoryID()),
		PersonID:      optional(r.EffectivePersonID()),
		Document:      r.Document,
		ImportBatchID: &batchID,
		ImportedRowID: &rowID,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
