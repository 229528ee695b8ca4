package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to BatchStatus
		want     bool
	}{
		{BatchCreated, BatchUploaded, true},
		{BatchUploaded, BatchParsed, true},
		{BatchParsed, BatchConfirmed, true},
		{BatchCreated, BatchFailed, true},
		{BatchParsed, BatchFailed, true},
		{BatchCreated, BatchConfirmed, false},
		{BatchConfirmed, BatchParsed, false},
		{BatchConfirmed, BatchConfirmed, false},
		{BatchFailed, BatchParsed, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestImportedRowEffectiveIDs(t *testing.T) {
	cat, sug, empty := "cat-1", "cat-2", ""

	r := ImportedRow{SuggestedCategoryID: &sug}
	assert.Equal(t, "cat-2", r.EffectiveCategoryID())

	r.CategoryID = &cat
	assert.Equal(t, "cat-1", r.EffectiveCategoryID())

	r.CategoryID = &empty
	assert.Equal(t, "cat-2", r.EffectiveCategoryID())

	assert.Equal(t, "", ImportedRow{}.EffectivePersonID())
}
