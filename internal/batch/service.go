package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"github.com/tallyhq/tally/internal/auditlog"
	"github.com/tallyhq/tally/internal/categorize"
	"github.com/tallyhq/tally/internal/grid"
	"github.com/tallyhq/tally/internal/importer"
	"github.com/tallyhq/tally/internal/ledger"
	"github.com/tallyhq/tally/internal/model"
)

const (
	maxErrorLen = 1024
	insertBatch = 200
)

// Service runs the import review workflow: upload and parse a statement
// into reviewable rows, let the user adjust them, then commit the confirmed
// rows to the ledger in one transaction.
type Service struct {
	db        *gorm.DB
	registry  *importer.Registry
	ledger    *ledger.Service
	suggester categorize.Suggester
	audit     *auditlog.Log
	logger    *log.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSuggester sets the category suggester used on upload.
func WithSuggester(s categorize.Suggester) Option {
	return func(svc *Service) { svc.suggester = s }
}

// WithAudit records lifecycle events to l.
func WithAudit(l *auditlog.Log) Option {
	return func(svc *Service) { svc.audit = l }
}

// WithLogger sets the structured logger.
func WithLogger(l *log.Logger) Option {
	return func(svc *Service) { svc.logger = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

// NewService creates a batch Service.
func NewService(db *gorm.DB, registry *importer.Registry, opts ...Option) *Service {
	s := &Service{
		db:       db,
		registry: registry,
		ledger:   ledger.NewService(db, nil),
		logger:   log.New(io.Discard),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// UploadParams holds the statement file being imported.
type UploadParams struct {
	WorkspaceID string
	FileName    string
	File        io.Reader
}

// Upload records a batch, parses the file and stores one unconfirmed row per
// parsed line with its suggestions. When the file cannot be read or parsed
// the batch is marked failed and the cause is returned;
// importer.ErrFormatNotRecognized and importer.ErrNoTransactions stay
// matchable with errors.Is.
func (s *Service) Upload(ctx context.Context, p UploadParams) (*model.ImportBatch, error) {
	if _, err := s.ledger.GetWorkspace(ctx, p.WorkspaceID); err != nil {
		return nil, err
	}

	b := &model.ImportBatch{
		WorkspaceID: p.WorkspaceID,
		FileName:    p.FileName,
		Status:      model.BatchCreated,
	}
	if err := s.db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, fmt.Errorf("creating import batch: %w", err)
	}

	g, err := grid.Read(p.FileName, p.File)
	if err != nil {
		return nil, s.fail(ctx, b, err)
	}
	if err := s.advance(ctx, s.db, b, model.BatchUploaded, nil); err != nil {
		return nil, err
	}
	s.record(b, auditlog.ActionUploaded, p.FileName)

	res, err := s.registry.ParseData(g)
	if err != nil {
		return nil, s.fail(ctx, b, err)
	}

	rows := s.buildRows(ctx, b, res.Transactions)
	uploaded := b.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(&rows, insertBatch).Error; err != nil {
			return fmt.Errorf("storing imported rows: %w", err)
		}
		return s.advance(ctx, tx, b, model.BatchParsed, map[string]any{
			"parser":      res.Parser,
			"import_type": res.ImportType,
		})
	})
	if err != nil {
		b.Status = uploaded
		return nil, s.fail(ctx, b, err)
	}
	b.Parser = res.Parser
	b.ImportType = res.ImportType
	b.Rows = rows

	s.logger.Info("import parsed", "workspace", b.WorkspaceID, "batch", b.ID, "parser", res.Parser, "rows", len(rows))
	s.record(b, auditlog.ActionParsed, fmt.Sprintf("parser=%s rows=%d", res.Parser, len(rows)))
	return b, nil
}

func (s *Service) buildRows(ctx context.Context, b *model.ImportBatch, txns []model.ParsedTransaction) []model.ImportedRow {
	suggestions := s.suggest(ctx, b.WorkspaceID, txns)

	rows := make([]model.ImportedRow, len(txns))
	for i, t := range txns {
		rows[i] = model.ImportedRow{
			BatchID:     b.ID,
			Position:    i,
			Date:        t.Date,
			Description: t.Description,
			Amount:      t.Amount,
			Type:        t.Type,
			Document:    t.Document,
			RawData:     t.RawData,
		}
		if sg := suggestions[i]; sg.CategoryID != "" {
			rows[i].SuggestedCategoryID = &sg.CategoryID
		}
		if sg := suggestions[i]; sg.PersonID != "" {
			rows[i].SuggestedPersonID = &sg.PersonID
		}
	}
	return rows
}

// suggest is best-effort: any failure yields no suggestions.
func (s *Service) suggest(ctx context.Context, workspaceID string, txns []model.ParsedTransaction) []categorize.Suggestion {
	empty := make([]categorize.Suggestion, len(txns))
	if s.suggester == nil {
		return empty
	}

	in := make([]categorize.Input, len(txns))
	for i, t := range txns {
		in[i] = categorize.Input{Description: t.Description, Type: t.Type, Amount: t.Amount}
	}
	out, err := s.suggester.Suggest(ctx, workspaceID, in)
	if err != nil || len(out) != len(txns) {
		s.logger.Warn("suggestions unavailable", "workspace", workspaceID, "err", err)
		return empty
	}
	return out
}

// advance moves b to next with a status-guarded update, so a concurrent
// change to the same batch makes it fail instead of overwriting.
func (s *Service) advance(ctx context.Context, db *gorm.DB, b *model.ImportBatch, next model.BatchStatus, extra map[string]any) error {
	if !b.Status.CanTransitionTo(next) {
		return fmt.Errorf("batch %s: cannot move from %s to %s: %w", b.ID, b.Status, next, ErrCommitConflict)
	}

	updates := map[string]any{"status": next, "updated_at": s.now()}
	for k, v := range extra {
		updates[k] = v
	}
	res := db.WithContext(ctx).Model(&model.ImportBatch{}).
		Where("id = ? AND status = ?", b.ID, b.Status).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("updating batch status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("batch %s changed concurrently: %w", b.ID, ErrCommitConflict)
	}
	b.Status = next
	return nil
}

// fail marks b failed with cause and returns cause.
func (s *Service) fail(ctx context.Context, b *model.ImportBatch, cause error) error {
	msg := cause.Error()
	if len(msg) > maxErrorLen {
		msg = msg[:maxErrorLen]
	}
	if err := s.advance(ctx, s.db, b, model.BatchFailed, map[string]any{"error": msg}); err != nil {
		s.logger.Error("marking batch failed", "batch", b.ID, "err", err)
	}
	b.Error = msg

	s.logger.Warn("import failed", "workspace", b.WorkspaceID, "batch", b.ID, "file", b.FileName, "err", cause)
	s.record(b, auditlog.ActionFailed, msg)
	return cause
}

func (s *Service) record(b *model.ImportBatch, action, details string) {
	if err := s.audit.Record(b.WorkspaceID, b.ID, action, details); err != nil {
		s.logger.Error("writing audit log", "batch", b.ID, "action", action, "err", err)
	}
}

// Preview is a batch under review.
type Preview struct {
	Batch     model.ImportBatch `json:"batch"`
	Pending   int               `json:"pending"`
	Confirmed int               `json:"confirmed"`
}

// Preview returns the batch with its rows in file order.
func (s *Service) Preview(ctx context.Context, workspaceID, batchID string) (*Preview, error) {
	b, err := s.load(ctx, s.db, workspaceID, batchID, true)
	if err != nil {
		return nil, err
	}

	p := &Preview{Batch: *b}
	for _, r := range b.Rows {
		if r.Confirmed {
			p.Confirmed++
		} else {
			p.Pending++
		}
	}
	return p, nil
}

// List returns the workspace's batches, newest first, without rows.
func (s *Service) List(ctx context.Context, workspaceID string) ([]model.ImportBatch, error) {
	var batches []model.ImportBatch
	err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at DESC, id").
		Find(&batches).Error
	if err != nil {
		return nil, fmt.Errorf("listing import batches: %w", err)
	}
	return batches, nil
}

// Delete discards a batch and its rows. Confirmed batches are part of the
// ledger history and cannot be deleted.
func (s *Service) Delete(ctx context.Context, workspaceID, batchID string) error {
	var b *model.ImportBatch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		b, err = s.load(ctx, tx, workspaceID, batchID, false)
		if err != nil {
			return err
		}
		if b.Status == model.BatchConfirmed {
			return ErrBatchNotEditable
		}
		if err := tx.Where("batch_id = ?", b.ID).Delete(&model.ImportedRow{}).Error; err != nil {
			return fmt.Errorf("deleting imported rows: %w", err)
		}
		res := tx.Where("id = ? AND status <> ?", b.ID, model.BatchConfirmed).Delete(&model.ImportBatch{})
		if res.Error != nil {
			return fmt.Errorf("deleting import batch: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrBatchNotEditable
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.record(b, auditlog.ActionDeleted, b.FileName)
	return nil
}

func (s *Service) load(ctx context.Context, db *gorm.DB, workspaceID, batchID string, withRows bool) (*model.ImportBatch, error) {
	q := db.WithContext(ctx)
	if withRows {
		q = q.Preload("Rows", func(db *gorm.DB) *gorm.DB { return db.Order("position") })
	}
	var b model.ImportBatch
	err := q.First(&b, "id = ? AND workspace_id = ?", batchID, workspaceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("batch %s: %w", batchID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading import batch: %w", err)
	}
	return &b, nil
}
