package batch

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tallyhq/tally/internal/ledger"
	"github.com/tallyhq/tally/internal/model"
)

// RowPatch is a partial update of a row under review. Nil fields are left
// alone; an empty CategoryID or PersonID clears the override so the
// suggestion applies again.
type RowPatch struct {
	CategoryID *string `json:"categoryId"`
	PersonID   *string `json:"personId"`
	Confirmed  *bool   `json:"confirmed"`
}

func (p RowPatch) empty() bool {
	return p.CategoryID == nil && p.PersonID == nil && p.Confirmed == nil
}

// PatchRow applies p to one row of a batch in review. Each field is written
// in a single statement guarded on the batch still being parsed, so
// concurrent edits to the same row resolve last-writer-wins per field.
func (s *Service) PatchRow(ctx context.Context, workspaceID, batchID, rowID string, p RowPatch) (*model.ImportedRow, error) {
	if p.empty() {
		return nil, fmt.Errorf("%w: nothing to update", ledger.ErrInvalid)
	}

	b, err := s.load(ctx, s.db, workspaceID, batchID, false)
	if err != nil {
		return nil, err
	}
	if b.Status != model.BatchParsed {
		return nil, ErrBatchNotEditable
	}

	updates := map[string]any{}
	if p.CategoryID != nil {
		id, err := s.checkRef(ctx, workspaceID, *p.CategoryID, "category", s.ledger.CategoryExists)
		if err != nil {
			return nil, err
		}
		updates["category_id"] = id
	}
	if p.PersonID != nil {
		id, err := s.checkRef(ctx, workspaceID, *p.PersonID, "person", s.ledger.PersonExists)
		if err != nil {
			return nil, err
		}
		updates["person_id"] = id
	}
	if p.Confirmed != nil {
		updates["confirmed"] = *p.Confirmed
	}

	res := s.db.WithContext(ctx).Model(&model.ImportedRow{}).
		Where("id = ? AND batch_id = ?", rowID, batchID).
		Where("EXISTS (SELECT 1 FROM import_batches WHERE id = ? AND status = ?)", batchID, model.BatchParsed).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("updating imported row: %w", res.Error)
	}

	// MySQL reports changed rows, not matched rows, so zero is not proof
	// of a miss. Re-read to tell the cases apart.
	row, err := s.loadRow(ctx, batchID, rowID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		cur, err := s.load(ctx, s.db, workspaceID, batchID, false)
		if err != nil {
			return nil, err
		}
		if cur.Status != model.BatchParsed {
			return nil, ErrBatchNotEditable
		}
	}
	return row, nil
}

// checkRef validates an optional reference. It returns nil for "" so the
// column is cleared.
func (s *Service) checkRef(ctx context.Context, workspaceID, id, what string,
	exists func(context.Context, string, string) (bool, error)) (*string, error) {
	if id == "" {
		return nil, nil
	}
	ok, err := exists(ctx, workspaceID, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s %q does not exist", ledger.ErrInvalid, what, id)
	}
	return &id, nil
}

func (s *Service) loadRow(ctx context.Context, batchID, rowID string) (*model.ImportedRow, error) {
	var row model.ImportedRow
	err := s.db.WithContext(ctx).First(&row, "id = ? AND batch_id = ?", rowID, batchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("row %s: %w", rowID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading imported row: %w", err)
	}
	return &row, nil
}

// ConfirmAll marks every row of a batch in review as confirmed, under the
// same status guard as PatchRow.
func (s *Service) ConfirmAll(ctx context.Context, workspaceID, batchID string) (int64, error) {
	b, err := s.load(ctx, s.db, workspaceID, batchID, false)
	if err != nil {
		return 0, err
	}
	if b.Status != model.BatchParsed {
		return 0, ErrBatchNotEditable
	}
	return confirmRows(ctx, s.db, batchID)
}

// confirmRows marks every row of the batch confirmed while it is parsed.
func confirmRows(ctx context.Context, db *gorm.DB, batchID string) (int64, error) {
	res := db.WithContext(ctx).Model(&model.ImportedRow{}).
		Where("batch_id = ?", batchID).
		Where("EXISTS (SELECT 1 FROM import_batches WHERE id = ? AND status = ?)", batchID, model.BatchParsed).
		Update("confirmed", true)
	if res.Error != nil {
		return 0, fmt.Errorf("confirming rows: %w", res.Error)
	}
	return res.RowsAffected, nil
}
