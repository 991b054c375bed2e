package types

import (
	"time"

	"github.com/google/uuid"
)

// ColumnType represents the data type of a relation column
type ColumnType string

const (
	ColumnTypeUnknown   ColumnType = ""
	ColumnTypeString    ColumnType = "string"
	ColumnTypeInteger   ColumnType = "integer"
	ColumnTypeBigInt    ColumnType = "bigint"
	ColumnTypeDouble    ColumnType = "double"
	ColumnTypeNumeric   ColumnType = "numeric"
	ColumnTypeBoolean   ColumnType = "boolean"
	ColumnTypeTimestamp ColumnType = "timestamp"
	ColumnTypeDate      ColumnType = "date"
	ColumnTypeUUID      ColumnType = "uuid"
	ColumnTypeBinary    ColumnType = "binary"
	ColumnTypeJSON      ColumnType = "json"
)

// IsValidColumnType checks if a column type is valid
func IsValidColumnType(typ ColumnType) bool {
	switch typ {
	case ColumnTypeUnknown, ColumnTypeString, ColumnTypeInteger, ColumnTypeBigInt,
		ColumnTypeDouble, ColumnTypeNumeric, ColumnTypeBoolean, ColumnTypeTimestamp,
		ColumnTypeDate, ColumnTypeUUID, ColumnTypeBinary, ColumnTypeJSON:
		return true
	default:
		return false
	}
}

// IsNumeric reports whether values of typ are numbers.
func (t ColumnType) IsNumeric() bool {
	switch t {
	case ColumnTypeInteger, ColumnTypeBigInt, ColumnTypeDouble, ColumnTypeNumeric:
		return true
	}
	return false
}

func (t ColumnType) String() string {
	if t == ColumnTypeUnknown {
		return "unknown"
	}
	return string(t)
}

// InferColumnType maps a Go value to the column type that best describes it.
// Nil yields ColumnTypeUnknown.
func InferColumnType(v any) ColumnType {
	switch v.(type) {
	case nil:
		return ColumnTypeUnknown
	case string:
		return ColumnTypeString
	case int8, int16, int32, uint8, uint16:
		return ColumnTypeInteger
	case int, int64, uint, uint32, uint64:
		return ColumnTypeBigInt
	case float32, float64:
		return ColumnTypeDouble
	case bool:
		return ColumnTypeBoolean
	case time.Time:
		return ColumnTypeTimestamp
	case uuid.UUID, [16]byte:
		return ColumnTypeUUID
	case []byte:
		return ColumnTypeBinary
	default:
		return ColumnTypeJSON
	}
}

// Merge combines the types observed for one column across rows. Unknown
// defers to the other side; integer widths widen; mixed numbers become double;
// anything else mixed becomes json.
func Merge(a, b ColumnType) ColumnType {
	switch {
	case a == b:
		return a
	case a == ColumnTypeUnknown:
		return b
	case b == ColumnTypeUnknown:
		return a
	case isInt(a) && isInt(b):
		return ColumnTypeBigInt
	case a.IsNumeric() && b.IsNumeric():
		return ColumnTypeDouble
	default:
		return ColumnTypeJSON
	}
}

func isInt(t ColumnType) bool {
	return t == ColumnTypeInteger || t == ColumnTypeBigInt
}
