package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tallyhq/tally/internal/model"
)

var (
	// ErrNotFound means the record does not exist in the workspace.
	ErrNotFound = errors.New("not found")
	// ErrInvalid wraps input validation failures.
	ErrInvalid = errors.New("invalid input")
)

// Service provides workspace-scoped access to reference data and the ledger.
type Service struct {
	db  *gorm.DB
	loc *time.Location
}

// NewService creates a ledger Service. Exported dates are shown in loc;
// nil means time.Local.
func NewService(db *gorm.DB, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{db: db, loc: loc}
}

// WithTx returns a Service bound to tx, for use inside another service's
// transaction.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{db: tx, loc: s.loc}
}

// CreateWorkspace creates a workspace. An empty ID is generated.
func (s *Service) CreateWorkspace(ctx context.Context, id, name string) (*model.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: workspace name is required", ErrInvalid)
	}
	ws := &model.Workspace{ID: id, Name: name}
	if err := s.db.WithContext(ctx).Create(ws).Error; err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	return ws, nil
}

// GetWorkspace returns the workspace with the given ID.
func (s *Service) GetWorkspace(ctx context.Context, id string) (*model.Workspace, error) {
	var ws model.Workspace
	err := s.db.WithContext(ctx).First(&ws, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("workspace %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading workspace: %w", err)
	}
	return &ws, nil
}

// CreateAccount validates and stores an account.
func (s *Service) CreateAccount(ctx context.Context, a *model.Account) error {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return fmt.Errorf("%w: account name is required", ErrInvalid)
	}
	if a.Kind == "" {
		a.Kind = model.AccountKindChecking
	}
	switch a.Kind {
	case model.AccountKindChecking, model.AccountKindSavings, model.AccountKindCash:
	default:
		return fmt.Errorf("%w: unknown account kind %q", ErrInvalid, a.Kind)
	}
	return s.create(ctx, a.WorkspaceID, a, "account")
}

// ListAccounts returns the workspace's accounts by name.
func (s *Service) ListAccounts(ctx context.Context, workspaceID string) ([]model.Account, error) {
	return list[model.Account](ctx, s.db, workspaceID)
}

// DeleteAccount removes an account.
func (s *Service) DeleteAccount(ctx context.Context, workspaceID, id string) error {
	return remove[model.Account](ctx, s.db, workspaceID, id, "account")
}

// AccountExists reports whether id is an account of the workspace.
func (s *Service) AccountExists(ctx context.Context, workspaceID, id string) (bool, error) {
	return exists[model.Account](ctx, s.db, workspaceID, id)
}

// CreateCard validates and stores a credit card.
func (s *Service) CreateCard(ctx context.Context, c *model.CreditCard) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: card name is required", ErrInvalid)
	}
	if c.LastFour != "" && !isDigits(c.LastFour, 4) {
		return fmt.Errorf("%w: last four must be 4 digits", ErrInvalid)
	}
	return s.create(ctx, c.WorkspaceID, c, "card")
}

// ListCards returns the workspace's credit cards by name.
func (s *Service) ListCards(ctx context.Context, workspaceID string) ([]model.CreditCard, error) {
	return list[model.CreditCard](ctx, s.db, workspaceID)
}

// DeleteCard removes a credit card.
func (s *Service) DeleteCard(ctx context.Context, workspaceID, id string) error {
	return remove[model.CreditCard](ctx, s.db, workspaceID, id, "card")
}

// CardExists reports whether id is a credit card of the workspace.
func (s *Service) CardExists(ctx context.Context, workspaceID, id string) (bool, error) {
	return exists[model.CreditCard](ctx, s.db, workspaceID, id)
}

// CreateCategory validates and stores a category.
func (s *Service) CreateCategory(ctx context.Context, c *model.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: category name is required", ErrInvalid)
	}
	if c.Kind == "" {
		c.Kind = model.CategoryKindExpense
	}
	if c.Kind != model.CategoryKindIncome && c.Kind != model.CategoryKindExpense {
		return fmt.Errorf("%w: unknown category kind %q", ErrInvalid, c.Kind)
	}
	return s.create(ctx, c.WorkspaceID, c, "category")
}

// ListCategories returns the workspace's categories by name.
func (s *Service) ListCategories(ctx context.Context, workspaceID string) ([]model.Category, error) {
	return list[model.Category](ctx, s.db, workspaceID)
}

// DeleteCategory removes a category.
func (s *Service) DeleteCategory(ctx context.Context, workspaceID, id string) error {
	return remove[model.Category](ctx, s.db, workspaceID, id, "category")
}

// CategoryExists reports whether id is a category of the workspace.
func (s *Service) CategoryExists(ctx context.Context, workspaceID, id string) (bool, error) {
	return exists[model.Category](ctx, s.db, workspaceID, id)
}

// SeedCategories creates DefaultCategories in a workspace that has none.
// Returns the number created.
func (s *Service) SeedCategories(ctx context.Context, workspaceID string) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Category{}).
		Where("workspace_id = ?", workspaceID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting categories: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	cats := DefaultCategories()
	for i := range cats {
		cats[i].WorkspaceID = workspaceID
	}
	if err := s.db.WithContext(ctx).Create(&cats).Error; err != nil {
		return 0, fmt.Errorf("seeding categories: %w", err)
	}
	return len(cats), nil
}

// CreatePerson validates and stores a household member.
func (s *Service) CreatePerson(ctx context.Context, p *model.Person) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("%w: person name is required", ErrInvalid)
	}
	return s.create(ctx, p.WorkspaceID, p, "person")
}

// ListPeople returns the workspace's people by name.
func (s *Service) ListPeople(ctx context.Context, workspaceID string) ([]model.Person, error) {
	return list[model.Person](ctx, s.db, workspaceID)
}

// DeletePerson removes a person.
func (s *Service) DeletePerson(ctx context.Context, workspaceID, id string) error {
	return remove[model.Person](ctx, s.db, workspaceID, id, "person")
}

// PersonExists reports whether id is a person of the workspace.
func (s *Service) PersonExists(ctx context.Context, workspaceID, id string) (bool, error) {
	return exists[model.Person](ctx, s.db, workspaceID, id)
}

// CreateRule validates and stores a categorization rule. The category and
// the optional person must belong to the workspace.
func (s *Service) CreateRule(ctx context.Context, r *model.CategoryRule) error {
	r.Pattern = strings.TrimSpace(r.Pattern)
	if r.Pattern == "" {
		return fmt.Errorf("%w: rule pattern is required", ErrInvalid)
	}

	ok, err := s.CategoryExists(ctx, r.WorkspaceID, r.CategoryID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: category %q does not exist", ErrInvalid, r.CategoryID)
	}

	if r.PersonID != nil && *r.PersonID == "" {
		r.PersonID = nil
	}
	if r.PersonID != nil {
		ok, err := s.PersonExists(ctx, r.WorkspaceID, *r.PersonID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: person %q does not exist", ErrInvalid, *r.PersonID)
		}
	}
	return s.create(ctx, r.WorkspaceID, r, "rule")
}

// ListRules returns the workspace's rules in creation order, which is the
// order they are tried in.
func (s *Service) ListRules(ctx context.Context, workspaceID string) ([]model.CategoryRule, error) {
	var rules []model.CategoryRule
	err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at, id").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	return rules, nil
}

// DeleteRule removes a rule.
func (s *Service) DeleteRule(ctx context.Context, workspaceID, id string) error {
	return remove[model.CategoryRule](ctx, s.db, workspaceID, id, "rule")
}

func (s *Service) create(ctx context.Context, workspaceID string, v any, what string) error {
	if workspaceID == "" {
		return fmt.Errorf("%w: workspace is required", ErrInvalid)
	}
	if err := s.db.WithContext(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("creating %s: %w", what, err)
	}
	return nil
}

func list[T any](ctx context.Context, db *gorm.DB, workspaceID string) ([]T, error) {
	var out []T
	err := db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("name").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing %T: %w", out, err)
	}
	return out, nil
}

func remove[T any](ctx context.Context, db *gorm.DB, workspaceID, id, what string) error {
	res := db.WithContext(ctx).
		Where("workspace_id = ? AND id = ?", workspaceID, id).
		Delete(new(T))
	if res.Error != nil {
		return fmt.Errorf("deleting %s: %w", what, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}

func exists[T any](ctx context.Context, db *gorm.DB, workspaceID, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	var n int64
	err := db.WithContext(ctx).Model(new(T)).
		Where("workspace_id = ? AND id = ?", workspaceID, id).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("checking %T: %w", *new(T), err)
	}
	return n > 0, nil
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
