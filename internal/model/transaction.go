package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType carries the sign of a movement; amounts are always positive.
type TransactionType string

const (
	TypeIncome  TransactionType = "INCOME"
	TypeExpense TransactionType = "EXPENSE"
)

// NoDescription replaces blank descriptions.
const NoDescription = "No description"

// ParsedTransaction is one normalized statement line. It lives only between
// parsing and the creation of ImportedRows and is never persisted directly.
type ParsedTransaction struct {
	Date        time.Time       // midnight, time of day is not meaningful
	Description string
	Amount      decimal.Decimal // always > 0
	Type        TransactionType
	Document    *string           // bank document number, nil for card statements
	RawData     map[string]string // source fields kept for audit, never interpreted
}

// Transaction is a committed ledger entry.
type Transaction struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID   string          `gorm:"size:36;index;not null" json:"workspaceId"`
	Date          time.Time       `gorm:"index;not null" json:"date"`
	Description   string          `gorm:"size:255;not null" json:"description"`
	Amount        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Type          TransactionType `gorm:"size:16;not null" json:"type"`
	AccountID     *string         `gorm:"size:36;index" json:"accountId,omitempty"`
	CardID        *string         `gorm:"size:36;index" json:"cardId,omitempty"`
	CategoryID    *string         `gorm:"size:36;index" json:"categoryId,omitempty"`
	PersonID      *string         `gorm:"size:36" json:"personId,omitempty"`
	Document      *string         `gorm:"size:64" json:"document,omitempty"`
	ImportBatchID *string         `gorm:"size:36;index" json:"importBatchId,omitempty"`
	ImportedRowID *string         `gorm:"size:36;uniqueIndex" json:"importedRowId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// BeforeCreate assigns a UUID when none is set.
func (t *Transaction) BeforeCreate(*gorm.DB) error {
	t.ID = ensureID(t.ID)
	return nil
}

func ensureID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
