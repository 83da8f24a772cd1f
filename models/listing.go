package models

import (
	"fmt"
	"strings"
	"time"
)

// Columns every input dataset must carry
const (
	PriceColumn      = "price"
	LastReviewColumn = "last_review"
)

// RequiredColumns is the expected schema checked when a table is loaded
var RequiredColumns = []string{PriceColumn, LastReviewColumn}

// Listing is one row of the dataset. Fields holds the raw cell values in header
// order; the typed fields are filled in by the cleaner.
type Listing struct {
	Line   int // 1-based line in the source file, header is line 1
	Fields []string

	Price    float64
	HasPrice bool

	LastReview    time.Time
	HasLastReview bool
}

// Table is an ordered set of listings sharing one header
type Table struct {
	Header []string
	Rows   []*Listing

	index map[string]int
}

// NewTable builds a table for the given header and checks it against RequiredColumns
func NewTable(header []string) (*Table, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: empty header", ErrMissingColumn)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q in header", name)
		}
		index[name] = i
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	return &Table{Header: header, index: index}, nil
}

// Column returns the position of a column in the header
func (t *Table) Column(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Value returns the raw value of a column for a row, or "" when the column is absent
func (t *Table) Value(row *Listing, name string) string {
	i, ok := t.index[name]
	if !ok || i >= len(row.Fields) {
		return ""
	}
	return row.Fields[i]
}

// Append adds a row, enforcing the header width
func (t *Table) Append(row *Listing) error {
	if len(row.Fields) != len(t.Header) {
		return fmt.Errorf("line %d has %d fields, expected %d", row.Line, len(row.Fields), len(t.Header))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// WithRows returns a table sharing this header but holding the given rows
func (t *Table) WithRows(rows []*Listing) *Table {
	return &Table{Header: t.Header, Rows: rows, index: t.index}
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// CleaningParams are the invocation parameters of the cleaning stage
type CleaningParams struct {
	InputArtifact     string
	OutputArtifact    string
	OutputType        string
	OutputDescription string
	MinPrice          float64
	MaxPrice          float64
}

// AsMap returns the parameters keyed by their flag names
func (p CleaningParams) AsMap() map[string]any {
	return map[string]any{
		"input_artifact":     p.InputArtifact,
		"output_artifact":    p.OutputArtifact,
		"output_type":        p.OutputType,
		"output_description": p.OutputDescription,
		"min_price":          p.MinPrice,
		"max_price":          p.MaxPrice,
	}
}

// CleaningStats summarizes what a cleaning pass did
type CleaningStats struct {
	RowsRead            int
	RowsKept            int
	DroppedOutOfRange   int
	DroppedMissingPrice int
	NullLastReview      int
	DateLayout          string
}

// InsightReport holds computed analytics from the cleaned dataset
type InsightReport struct {
	Stats           CleaningStats
	Artifact        string
	TotalListings   int
	AveragePrice    float64
	MinPrice        float64
	MaxPrice        float64
	MostExpensive   string
	ListingsByGroup map[string]int
}
