// Package postgres loads relations from PostgreSQL queries.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guileen/memquery/algebra"
	"github.com/guileen/memquery/exec"
	"github.com/guileen/memquery/logger"
	"github.com/guileen/memquery/types"
)

// Querier is satisfied by *pgx.Conn, *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Connect opens a connection pool for dsn.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	config.MaxConns = 4
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return pool, nil
}

// Load runs sql and materialises its result as a relation called name.
// Column types come from the result's field OIDs.
func Load(ctx context.Context, q Querier, name, sql string, args ...any) (*exec.Relation, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", name, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]*algebra.ColSpec, len(fields))
	for i, f := range fields {
		cols[i] = algebra.NewColSpec(f.Name, ColumnType(f.DataTypeOID))
	}
	schema, err := algebra.NewRelationSchema(name, cols...)
	if err != nil {
		return nil, err
	}

	rel := exec.NewRelation(schema)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row of %q: %w", name, err)
		}
		for i, v := range values {
			values[i] = normalize(v)
		}
		if err := rel.AppendValues(values...); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %q: %w", name, err)
	}

	logger.DebugContext(ctx, "relation loaded",
		logger.Component("source.postgres"),
		logger.String("relation", name),
		logger.Int("rows", rel.Len()),
	)
	return rel, nil
}

// ColumnType maps a PostgreSQL type OID to a column type.
func ColumnType(oid uint32) types.ColumnType {
	switch oid {
	case pgtype.Int2OID, pgtype.Int4OID:
		return types.ColumnTypeInteger
	case pgtype.Int8OID:
		return types.ColumnTypeBigInt
	case pgtype.Float4OID, pgtype.Float8OID:
		return types.ColumnTypeDouble
	case pgtype.NumericOID:
		return types.ColumnTypeNumeric
	case pgtype.BoolOID:
		return types.ColumnTypeBoolean
	case pgtype.TextOID, pgtype.VarcharOID, pgtype.BPCharOID, pgtype.NameOID:
		return types.ColumnTypeString
	case pgtype.TimestampOID, pgtype.TimestamptzOID:
		return types.ColumnTypeTimestamp
	case pgtype.DateOID:
		return types.ColumnTypeDate
	case pgtype.UUIDOID:
		return types.ColumnTypeUUID
	case pgtype.ByteaOID:
		return types.ColumnTypeBinary
	case pgtype.JSONOID, pgtype.JSONBOID:
		return types.ColumnTypeJSON
	}
	return types.ColumnTypeUnknown
}

// normalize converts pgx's decoded values to the engine's value kinds.
func normalize(v any) any {
	switch x := v.(type) {
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case [16]byte:
		return uuid.UUID(x)
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		if i, err := x.Int64Value(); err == nil && i.Valid && x.Exp >= 0 {
			return i.Int64
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	}
	return v
}
