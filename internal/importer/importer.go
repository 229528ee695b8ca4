package importer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tallyhq/tally/internal/grid"
	"github.com/tallyhq/tally/internal/model"
)

var (
	// ErrFormatNotRecognized means no registered parser's detector matched.
	ErrFormatNotRecognized = errors.New("statement format not recognized")
	// ErrNoTransactions means a parser matched but produced no records.
	ErrNoTransactions = errors.New("no transactions found in statement")
	// ErrHeaderNotFound means a matched grid lacks its table header. It is
	// returned wrapped together with ErrFormatNotRecognized.
	ErrHeaderNotFound = errors.New("transaction table header not found")
)

// Parser detects and parses one statement layout. Implementations keep no
// state between calls.
type Parser interface {
	Name() string
	Description() string
	ImportType() model.ImportType
	Detect(g grid.Grid) bool
	Parse(g grid.Grid) ([]model.ParsedTransaction, error)
}

// RowPolicy decides what happens to a row whose date or amount cannot be decoded.
type RowPolicy int

const (
	// BestEffort skips malformed rows so one bad line never blocks the rest.
	BestEffort RowPolicy = iota
	// Strict aborts the parse at the first malformed row.
	Strict
)

// MalformedRowError reports the first malformed row under the Strict policy.
type MalformedRowError struct {
	Row    int // 1-based, as shown by spreadsheet apps
	Reason string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// Options configures the built-in parsers.
type Options struct {
	Location *time.Location // dates are midnight in this zone; nil means time.Local
	Policy   RowPolicy
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

// malformed returns a *MalformedRowError under Strict and nil otherwise,
// in which case the caller skips the row.
func (o Options) malformed(rowIdx int, reason string) error {
	if o.Policy != Strict {
		return nil
	}
	return &MalformedRowError{Row: rowIdx + 1, Reason: reason}
}

// ParserInfo is the display metadata of a supported format.
type ParserInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Result is the outcome of a successful dispatch.
type Result struct {
	Parser       string
	ImportType   model.ImportType
	Transactions []model.ParsedTransaction
}

// Registry holds parsers in a fixed try order. The first parser whose
// detector matches wins; there is no scoring between candidates.
type Registry struct {
	parsers []Parser
	byName  map[string]Parser
}

// NewRegistry creates a registry trying parsers in the given order.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{byName: make(map[string]Parser)}
	for _, p := range parsers {
		r.Register(p)
	}
	return r
}

// Register appends a parser to the try order. Panics on duplicate name.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Name())
	if _, ok := r.byName[key]; ok {
		panic("duplicate parser: " + key)
	}
	r.byName[key] = p
	r.parsers = append(r.parsers, p)
}

// Get returns the parser named name, or nil.
func (r *Registry) Get(name string) Parser {
	return r.byName[strings.ToLower(name)]
}

// DefaultRegistry returns the built-in parsers: checking account first,
// then credit card.
func DefaultRegistry(opts Options) *Registry {
	return NewRegistry(
		NewCheckingParser(opts),
		NewCardParser(opts),
	)
}

// DetectParser returns the first parser in try order whose detector matches.
func (r *Registry) DetectParser(g grid.Grid) (Parser, bool) {
	for _, p := range r.parsers {
		if p.Detect(g) {
			return p, true
		}
	}
	return nil, false
}

// ParseData detects the layout and parses it. It fails with
// ErrFormatNotRecognized when nothing matches and ErrNoTransactions when
// the matched parser yields an empty result.
func (r *Registry) ParseData(g grid.Grid) (*Result, error) {
	p, ok := r.DetectParser(g)
	if !ok {
		return nil, fmt.Errorf("%w: expected %s", ErrFormatNotRecognized, r.expected())
	}

	txns, err := p.Parse(g)
	if err != nil {
		return nil, fmt.Errorf("parsing %s statement: %w", p.Name(), err)
	}
	if len(txns) == 0 {
		return nil, fmt.Errorf("%w (%s)", ErrNoTransactions, p.Description())
	}

	return &Result{
		Parser:       p.Name(),
		ImportType:   p.ImportType(),
		Transactions: txns,
	}, nil
}

// Catalog lists the supported formats in try order.
func (r *Registry) Catalog() []ParserInfo {
	infos := make([]ParserInfo, len(r.parsers))
	for i, p := range r.parsers {
		infos[i] = ParserInfo{Name: p.Name(), Description: p.Description()}
	}
	return infos
}

func (r *Registry) expected() string {
	if len(r.parsers) == 0 {
		return "no formats registered"
	}
	descs := make([]string, len(r.parsers))
	for i, p := range r.parsers {
		descs[i] = p.Description()
	}
	return strings.Join(descs, " or ")
}
