package types

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestInferColumnType(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  ColumnType
	}{
		{"nil", nil, ColumnTypeUnknown},
		{"string", "x", ColumnTypeString},
		{"int32", int32(1), ColumnTypeInteger},
		{"int", 1, ColumnTypeBigInt},
		{"float", 1.5, ColumnTypeDouble},
		{"bool", true, ColumnTypeBoolean},
		{"time", time.Now(), ColumnTypeTimestamp},
		{"uuid", uuid.New(), ColumnTypeUUID},
		{"bytes", []byte("x"), ColumnTypeBinary},
		{"map", map[string]any{"a": 1}, ColumnTypeJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferColumnType(tt.value))
		})
	}
}

func TestMerge(t *testing.T) {
	assert.Equal(t, ColumnTypeString, Merge(ColumnTypeUnknown, ColumnTypeString))
	assert.Equal(t, ColumnTypeBigInt, Merge(ColumnTypeInteger, ColumnTypeBigInt))
	assert.Equal(t, ColumnTypeDouble, Merge(ColumnTypeBigInt, ColumnTypeDouble))
	assert.Equal(t, ColumnTypeJSON, Merge(ColumnTypeString, ColumnTypeBoolean))
}

func TestIsValidColumnType(t *testing.T) {
	assert.True(t, IsValidColumnType(ColumnTypeBigInt))
	assert.True(t, IsValidColumnType(ColumnTypeUnknown))
	assert.False(t, IsValidColumnType(ColumnType("serial")))
	assert.Equal(t, "unknown", ColumnTypeUnknown.String())
}
