package model

import (
	"time"

	"gorm.io/gorm"
)

// Workspace owns every other record; a family shares one workspace.
type Workspace struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func (w *Workspace) BeforeCreate(*gorm.DB) error {
	w.ID = ensureID(w.ID)
	return nil
}

// AccountKind classifies bank accounts.
type AccountKind string

const (
	AccountKindChecking AccountKind = "checking"
	AccountKindSavings  AccountKind = "savings"
	AccountKindCash     AccountKind = "cash"
)

// Account is a bank or cash account.
type Account struct {
	ID          string      `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID string      `gorm:"size:36;index;not null" json:"workspaceId"`
	Name        string      `gorm:"size:128;not null" json:"name"`
	Kind        AccountKind `gorm:"size:16;not null" json:"kind"`
	Institution string      `gorm:"size:128" json:"institution,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

func (a *Account) BeforeCreate(*gorm.DB) error {
	a.ID = ensureID(a.ID)
	return nil
}

// CreditCard is a card whose statements are imported as expenses.
type CreditCard struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID string    `gorm:"size:36;index;not null" json:"workspaceId"`
	Name        string    `gorm:"size:128;not null" json:"name"`
	LastFour    string    `gorm:"size:4" json:"lastFour,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (c *CreditCard) BeforeCreate(*gorm.DB) error {
	c.ID = ensureID(c.ID)
	return nil
}

// CategoryKind says which side of the ledger a category belongs to.
type CategoryKind string

const (
	CategoryKindIncome  CategoryKind = "income"
	CategoryKindExpense CategoryKind = "expense"
)

// Category groups transactions for budgets and reports.
type Category struct {
	ID          string       `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID string       `gorm:"size:36;index;not null" json:"workspaceId"`
	Name        string       `gorm:"size:64;not null" json:"name"`
	Kind        CategoryKind `gorm:"size:16;not null" json:"kind"`
	CreatedAt   time.Time    `json:"createdAt"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	c.ID = ensureID(c.ID)
	return nil
}

// Person is a household member a transaction can be attributed to.
type Person struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID string    `gorm:"size:36;index;not null" json:"workspaceId"`
	Name        string    `gorm:"size:64;not null" json:"name"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (p *Person) BeforeCreate(*gorm.DB) error {
	p.ID = ensureID(p.ID)
	return nil
}

// CategoryRule maps a description keyword (case-insensitive) to a category
// and, optionally, a person.
type CategoryRule struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID string    `gorm:"size:36;index;not null" json:"workspaceId"`
	Pattern     string    `gorm:"size:128;not null" json:"pattern"`
	CategoryID  string    `gorm:"size:36;not null" json:"categoryId"`
	PersonID    *string   `gorm:"size:36" json:"personId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (r *CategoryRule) BeforeCreate(*gorm.DB) error {
	r.ID = ensureID(r.ID)
	return nil
}
