// Package sqldb loads relations from database/sql queries.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/guileen/memquery/algebra"
	"github.com/guileen/memquery/exec"
	"github.com/guileen/memquery/logger"
	"github.com/guileen/memquery/types"
)

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// OpenSQLite opens a SQLite database file read-only. ":memory:" opens a
// private in-memory database.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?mode=ro"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	return db, nil
}

// Load runs query and materialises its result as a relation called name.
// Declared column types are used where the driver reports them; otherwise
// the type is inferred from the values.
func Load(ctx context.Context, db Queryer, name, query string, args ...any) (*exec.Relation, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", name, err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types of %q: %w", name, err)
	}

	var data [][]any
	for rows.Next() {
		values := make([]any, len(colTypes))
		dest := make([]any, len(colTypes))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("read row of %q: %w", name, err)
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %q: %w", name, err)
	}

	cols := make([]*algebra.ColSpec, len(colTypes))
	for i, ct := range colTypes {
		typ := ColumnType(ct.DatabaseTypeName())
		if typ == types.ColumnTypeUnknown {
			for _, row := range data {
				typ = types.Merge(typ, types.InferColumnType(row[i]))
			}
		}
		cols[i] = algebra.NewColSpec(ct.Name(), typ)
	}
	schema, err := algebra.NewRelationSchema(name, cols...)
	if err != nil {
		return nil, err
	}
	rel, err := exec.NewRelationFromValues(schema, data...)
	if err != nil {
		return nil, err
	}

	logger.DebugContext(ctx, "relation loaded",
		logger.Component("source.sqldb"),
		logger.String("relation", name),
		logger.Int("rows", rel.Len()),
	)
	return rel, nil
}

// ColumnType maps a declared SQL type name to a column type.
func ColumnType(declared string) types.ColumnType {
	name := strings.ToUpper(strings.TrimSpace(declared))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	switch name {
	case "INT", "INTEGER", "BIGINT", "INT8", "SMALLINT", "TINYINT", "MEDIUMINT":
		return types.ColumnTypeBigInt
	case "REAL", "DOUBLE", "DOUBLE PRECISION", "FLOAT":
		return types.ColumnTypeDouble
	case "NUMERIC", "DECIMAL":
		return types.ColumnTypeNumeric
	case "TEXT", "VARCHAR", "CHAR", "CLOB", "NVARCHAR", "CHARACTER":
		return types.ColumnTypeString
	case "BOOLEAN", "BOOL":
		return types.ColumnTypeBoolean
	case "DATE":
		return types.ColumnTypeDate
	case "DATETIME", "TIMESTAMP":
		return types.ColumnTypeTimestamp
	case "BLOB":
		return types.ColumnTypeBinary
	case "JSON":
		return types.ColumnTypeJSON
	}
	return types.ColumnTypeUnknown
}
