package sqlite

import (
	"database/sql"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
)

// collect reads every row into a QueryResult and closes rows.
func collect(rows *sql.Rows) (*conn.QueryResult, error) {
	defer rows.Close() //nolint:errcheck // Err() below reports iteration errors

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	columns := make([]conn.ColumnMeta, len(types))
	for i, ct := range types {
		nullable, ok := ct.Nullable()
		columns[i] = conn.ColumnMeta{
			Name:     ct.Name(),
			DataType: ct.DatabaseTypeName(),
			Nullable: nullable || !ok,
			Ordinal:  i,
		}
	}

	result := conn.NewQueryResult(columns)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
