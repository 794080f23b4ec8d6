package conn

import (
	"time"

	"github.com/google/uuid"
)

// ColumnMeta describes one column of a query result.
type ColumnMeta struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Nullable bool   `json:"nullable"`
	Ordinal  int    `json:"ordinal"`
}

// QueryResult holds the rows returned by Query.
type QueryResult struct {
	// ID uniquely identifies this result, e.g. for UI tabs and logs.
	ID uuid.UUID `json:"id"`

	Columns []ColumnMeta `json:"columns"`
	Rows    [][]any      `json:"rows"`

	// AffectedRows is set for statements that both modify and return rows
	// (e.g. INSERT ... RETURNING).
	AffectedRows uint64 `json:"affected_rows"`

	ExecutionTime time.Duration `json:"execution_time"`
}

// NewQueryResult returns an empty result with a fresh ID.
func NewQueryResult(columns []ColumnMeta) *QueryResult {
	return &QueryResult{
		ID:      uuid.New(),
		Columns: columns,
		Rows:    make([][]any, 0),
	}
}

// RowCount returns the number of rows in the result.
func (r *QueryResult) RowCount() int {
	return len(r.Rows)
}

// ColumnNames returns the column names in ordinal order.
func (r *QueryResult) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// StatementResult is returned by Execute.
type StatementResult struct {
	// IsQuery is true when the statement produced rows, in which case
	// Result is set.
	IsQuery bool         `json:"is_query"`
	Result  *QueryResult `json:"result,omitempty"`

	AffectedRows uint64 `json:"affected_rows"`
}
