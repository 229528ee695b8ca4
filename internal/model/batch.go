package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ImportType is the statement family a batch was parsed as.
type ImportType string

const (
	ImportTypeChecking ImportType = "checking"
	ImportTypeCard     ImportType = "card"
)

// BatchStatus is the lifecycle state of an import batch.
type BatchStatus string

const (
	BatchCreated   BatchStatus = "created"
	BatchUploaded  BatchStatus = "uploaded"
	BatchParsed    BatchStatus = "parsed"
	BatchConfirmed BatchStatus = "confirmed"
	BatchFailed    BatchStatus = "failed"
)

var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchCreated:  {BatchUploaded, BatchFailed},
	BatchUploaded: {BatchParsed, BatchFailed},
	BatchParsed:   {BatchConfirmed, BatchFailed},
}

// CanTransitionTo reports whether next is a legal successor of s.
// Confirmed and failed are terminal.
func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	for _, allowed := range batchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ImportBatch is one file-upload session.
type ImportBatch struct {
	ID          string        `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID string        `gorm:"size:36;index;not null" json:"workspaceId"`
	FileName    string        `gorm:"size:255;not null" json:"fileName"`
	ImportType  ImportType    `gorm:"size:16" json:"importType,omitempty"`
	Parser      string        `gorm:"size:32" json:"parser,omitempty"`
	Status      BatchStatus   `gorm:"size:16;index;not null" json:"status"`
	Error       string        `gorm:"size:1024" json:"error,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	ConfirmedAt *time.Time    `json:"confirmedAt,omitempty"`
	Rows        []ImportedRow `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE" json:"rows,omitempty"`
}

func (b *ImportBatch) BeforeCreate(*gorm.DB) error {
	b.ID = ensureID(b.ID)
	return nil
}

// ImportedRow is a candidate transaction awaiting review.
type ImportedRow struct {
	ID                  string            `gorm:"primaryKey;size:36" json:"id"`
	BatchID             string            `gorm:"size:36;index;not null" json:"batchId"`
	Position            int               `gorm:"not null" json:"position"`
	Date                time.Time         `gorm:"not null" json:"date"`
	Description         string            `gorm:"size:255;not null" json:"description"`
	Amount              decimal.Decimal   `gorm:"type:decimal(14,2);not null" json:"amount"`
	Type                TransactionType   `gorm:"size:16;not null" json:"type"`
	Document            *string           `gorm:"size:64" json:"document,omitempty"`
	RawData             map[string]string `gorm:"serializer:json" json:"rawData,omitempty"`
	SuggestedCategoryID *string           `gorm:"size:36" json:"suggestedCategoryId,omitempty"`
	SuggestedPersonID   *string           `gorm:"size:36" json:"suggestedPersonId,omitempty"`
	CategoryID          *string           `gorm:"size:36" json:"categoryId,omitempty"`
	PersonID            *string           `gorm:"size:36" json:"personId,omitempty"`
	Confirmed           bool              `gorm:"not null;default:false" json:"confirmed"`
	TransactionID       *string           `gorm:"size:36" json:"transactionId,omitempty"`
}

func (r *ImportedRow) BeforeCreate(*gorm.DB) error {
	r.ID = ensureID(r.ID)
	return nil
}

// EffectiveCategoryID is the user override, falling back to the suggestion.
func (r ImportedRow) EffectiveCategoryID() string {
	return firstNonEmpty(r.CategoryID, r.SuggestedCategoryID)
}

// EffectivePersonID is the user override, falling back to the suggestion.
func (r ImportedRow) EffectivePersonID() string {
	return firstNonEmpty(r.PersonID, r.SuggestedPersonID)
}

func firstNonEmpty(ptrs ...*string) string {
	for _, p := range ptrs {
		if p != nil && *p != "" {
			return *p
		}
	}
	return ""
}
