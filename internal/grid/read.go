package grid

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFile is returned for file types that cannot be reduced to a Grid.
var ErrUnsupportedFile = errors.New("unsupported file type")

// Read reduces an uploaded spreadsheet to a Grid, choosing the reader by the
// file name's extension.
func Read(name string, r io.Reader) (Grid, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".xlsx":
		return ReadXLSX(r)
	case ".csv":
		return ReadCSV(r)
	case ".xls":
		return nil, fmt.Errorf("%w: legacy .xls workbooks must be re-saved as .xlsx", ErrUnsupportedFile)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFile, ext)
	}
}
