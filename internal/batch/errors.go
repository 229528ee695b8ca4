package batch

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound means the batch or row does not exist in the workspace.
	ErrNotFound = errors.New("import batch not found")
	// ErrCommitConflict means the batch is not awaiting confirmation, either
	// because it was already confirmed or because it never parsed.
	ErrCommitConflict = errors.New("import batch is not awaiting confirmation")
	// ErrBatchNotEditable means the batch left the review state.
	ErrBatchNotEditable = errors.New("import batch can no longer be edited")
)

// Violation is one reason a commit was rejected. RowID is empty for
// batch-level problems.
type Violation struct {
	RowID       string `json:"rowId,omitempty"`
	Field       string `json:"field"`
	Description string `json:"description"`
}

func (v Violation) Error() string {
	if v.RowID == "" {
		return fmt.Sprintf("%s: %s", v.Field, v.Description)
	}
	return fmt.Sprintf("row %s %s: %s", v.RowID, v.Field, v.Description)
}

// CommitValidationError collects every violation found while validating a
// commit. Nothing is written when it is returned.
type CommitValidationError struct {
	Violations []Violation
}

func (e *CommitValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("commit rejected (%d violations): %s", len(e.Violations), strings.Join(msgs, "; "))
}
