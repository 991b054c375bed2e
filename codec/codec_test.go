package codec

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemComparableInt64Encoding(t *testing.T) {
	tests := []struct {
		name   string
		values []int64
	}{
		{"ascending order", []int64{-1000, -100, -10, -1, 0, 1, 10, 100, 1000}},
		{"min and max", []int64{math.MinInt64, -1, 0, 1, math.MaxInt64}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prev []byte
			for _, v := range tt.values {
				encoded := appendMemComparableInt64(nil, v)
				decoded, n := readMemComparableInt64(encoded)
				assert.Equal(t, v, decoded)
				assert.Equal(t, 8, n)
				if prev != nil {
					assert.Negative(t, bytes.Compare(prev, encoded), "%d", v)
				}
				prev = encoded
			}
		})
	}
}

func TestMemComparableFloat64Ordering(t *testing.T) {
	values := []float64{math.Inf(-1), -1e9, -1.5, -0.25, 0, 0.25, 1.5, 1e9, math.Inf(1)}
	var prev []byte
	for _, v := range values {
		encoded := appendMemComparableFloat64(nil, v)
		decoded, _ := readMemComparableFloat64(encoded)
		assert.Equal(t, v, decoded)
		if prev != nil {
			assert.Negative(t, bytes.Compare(prev, encoded), "%v", v)
		}
		prev = encoded
	}
}

func TestMemComparableBytes(t *testing.T) {
	tests := [][]byte{{}, []byte("abc"), {0x00}, {0x00, 0xFF, 0x00}, []byte("a\x00b")}
	for _, tt := range tests {
		encoded := appendMemComparableBytes(nil, tt)
		decoded, n := readMemComparableBytes(append(encoded, 0x42))
		assert.Equal(t, tt, decoded)
		assert.Equal(t, len(encoded), n)
	}

	_, n := readMemComparableBytes([]byte("abc"))
	assert.Equal(t, -1, n)

	assert.Negative(t, bytes.Compare(appendMemComparableBytes(nil, []byte("a")), appendMemComparableBytes(nil, []byte("a\x00"))))
	assert.Negative(t, bytes.Compare(appendMemComparableBytes(nil, []byte("ab")), appendMemComparableBytes(nil, []byte("b"))))
}

func TestEncodeValue_RoundTrip(t *testing.T) {
	id := uuid.New()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 42, time.UTC)
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"int", 42, int64(42)},
		{"negative int32", int32(-7), int64(-7)},
		{"uint", uint16(9), int64(9)},
		{"float", 2.5, 2.5},
		{"integral float", 3.0, int64(3)},
		{"string", "héllo\x00", "héllo\x00"},
		{"bytes", []byte{0, 1, 2}, []byte{0, 1, 2}},
		{"time", ts, ts},
		{"uuid", id, id},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := EncodeValue(tt.in)
			require.NoError(t, err)
			got, n, err := DecodeValue(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(encoded), n)
		})
	}
}

func TestEncodeValue_EqualNumbersShareEncoding(t *testing.T) {
	groups := [][]any{
		{1, int8(1), int64(1), uint32(1), 1.0, float32(1)},
		{0, -0.0},
		{uint64(math.MaxUint64), float64(math.MaxUint64)},
		{math.NaN(), math.Float64frombits(0x7FF8000000000001), float32(math.NaN())},
	}
	for _, group := range groups {
		first, err := EncodeValue(group[0])
		require.NoError(t, err)
		for _, v := range group[1:] {
			encoded, err := EncodeValue(v)
			require.NoError(t, err)
			assert.Equal(t, first, encoded, "%T(%v)", v, v)
		}
	}

	a, _ := EncodeValue(2)
	b, _ := EncodeValue(2.5)
	assert.NotEqual(t, a, b)

	a, _ = EncodeValue(int64(1<<53 + 1))
	b, _ = EncodeValue(float64(1 << 53))
	assert.NotEqual(t, a, b)
}

func TestEncodeValue_KindsDoNotCollide(t *testing.T) {
	values := []any{nil, "1", []byte("1"), 1, true, uuid.Nil}
	seen := make(map[string]any)
	for _, v := range values {
		encoded, err := EncodeValue(v)
		require.NoError(t, err)
		prev, dup := seen[string(encoded)]
		assert.False(t, dup, "%#v collides with %#v", v, prev)
		seen[string(encoded)] = v
	}
}

type custom struct{ v int }

func (c custom) Equal(other any) bool { return false }

func TestEncodeValue_Unhashable(t *testing.T) {
	_, err := EncodeValue(custom{v: 1})
	assert.True(t, errors.Is(err, ErrUnhashable))

	_, err = EncodeValue(map[string]any{"a": 1})
	assert.True(t, errors.Is(err, ErrUnhashable))

	_, err = EncodeKey(1, []int{1})
	assert.True(t, errors.Is(err, ErrUnhashable))
}

func TestEncodeKey(t *testing.T) {
	a, err := EncodeKey("ab", "c")
	require.NoError(t, err)
	b, err := EncodeKey("a", "bc")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	c, err := EncodeKey(nil, 1)
	require.NoError(t, err)
	d, err := EncodeKey(nil, 1.0)
	require.NoError(t, err)
	assert.Equal(t, c, d)

	empty, err := EncodeKey()
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEncodeRow_RoundTrip(t *testing.T) {
	values := []any{nil, int64(1), 2.0, uint64(math.MaxUint64), "x", []byte("y"), false, map[string]any{"k": "v"}}
	encoded, err := EncodeRow(values)
	require.NoError(t, err)

	decoded, err := DecodeRow(encoded)
	require.NoError(t, err)
	assert.Equal(t, values, decoded)

	empty, err := EncodeRow(nil)
	require.NoError(t, err)
	decoded, err = DecodeRow(empty)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestDecodeRow_Corrupt(t *testing.T) {
	encoded, err := EncodeRow([]any{"abc", int64(1)})
	require.NoError(t, err)

	_, err = DecodeRow(encoded[:len(encoded)-3])
	assert.True(t, errors.Is(err, ErrCorrupt))

	_, err = DecodeRow(append(encoded, 0x00))
	assert.True(t, errors.Is(err, ErrCorrupt))

	_, err = DecodeRow(nil)
	assert.True(t, errors.Is(err, ErrCorrupt))

	_, _, err = DecodeValue([]byte{0x42})
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func BenchmarkEncodeKey(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = EncodeKey(int64(i), "customer", 3.5)
	}
}
