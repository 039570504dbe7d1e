package backend

import (
	"fmt"
	"time"
)

// QueryResult is the canonical tabular result shape shared by every
// adapter, irrespective of the native result representation.
//
// INVARIANTS:
//   - RowCount == len(Rows)
//   - every row has exactly len(Columns) values
type QueryResult struct {
	// Columns is the ordered list of column names.
	Columns []string

	// Rows is the ordered sequence of fixed-width value tuples.
	Rows [][]any

	// RowCount equals len(Rows). Kept explicit because it crosses the wire.
	RowCount int

	// Elapsed is the wall-clock execution time measured by the adapter.
	Elapsed time.Duration

	// Truncated is set when the adapter stopped reading at its row limit.
	Truncated bool
}

// EmptyResult returns a QueryResult with the given columns and no rows.
// Adapters use it for statements that succeed but yield nothing.
func EmptyResult(columns []string) *QueryResult {
	if columns == nil {
		columns = []string{}
	}
	return &QueryResult{Columns: columns, Rows: [][]any{}}
}

// Validate checks the shape invariant. A violation is a programmer error
// in the adapter, not a query failure.
func (r *QueryResult) Validate() error {
	if r.RowCount != len(r.Rows) {
		return fmt.Errorf("row_count %d does not match len(rows) %d", r.RowCount, len(r.Rows))
	}
	for i, row := range r.Rows {
		if len(row) != len(r.Columns) {
			return fmt.Errorf("row %d has %d values, expected %d columns", i, len(row), len(r.Columns))
		}
	}
	return nil
}
