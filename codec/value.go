// Package codec encodes values into self-describing, memcomparable byte
// strings. Key encodings are canonical: two values that compare equal under
// algebra.ValuesEqual encode to the same bytes, which lets hash joins and
// grouping use encoded keys as map keys.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnhashable is returned for values with no canonical encoding, such as
	// types with their own Equal method.
	ErrUnhashable = errors.New("codec: value has no canonical encoding")
	// ErrCorrupt is returned when decoding malformed input.
	ErrCorrupt = errors.New("codec: corrupt encoding")
)

type equaler interface {
	Equal(other any) bool
}

// EncodeValue returns the canonical encoding of v.
func EncodeValue(v any) ([]byte, error) {
	return AppendValue(nil, v)
}

// AppendValue appends the canonical encoding of v to buf.
func AppendValue(buf []byte, v any) ([]byte, error) {
	return appendValue(buf, v, true)
}

// EncodeKey concatenates the canonical encodings of values. Every encoding is
// self-delimiting, so distinct tuples never share a key.
func EncodeKey(values ...any) ([]byte, error) {
	buf := make([]byte, 0, 16*len(values))
	var err error
	for i, v := range values {
		if buf, err = appendValue(buf, v, true); err != nil {
			return nil, fmt.Errorf("key element %d: %w", i, err)
		}
	}
	return buf, nil
}

func appendValue(buf []byte, v any, canonical bool) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return append(buf, nilFlag), nil
	case bool:
		if x {
			return append(buf, boolFlag, 0x01), nil
		}
		return append(buf, boolFlag, 0x00), nil
	case int:
		return appendInt(buf, int64(x)), nil
	case int8:
		return appendInt(buf, int64(x)), nil
	case int16:
		return appendInt(buf, int64(x)), nil
	case int32:
		return appendInt(buf, int64(x)), nil
	case int64:
		return appendInt(buf, x), nil
	case uint:
		return appendUint(buf, uint64(x), canonical), nil
	case uint8:
		return appendUint(buf, uint64(x), canonical), nil
	case uint16:
		return appendUint(buf, uint64(x), canonical), nil
	case uint32:
		return appendUint(buf, uint64(x), canonical), nil
	case uint64:
		return appendUint(buf, x, canonical), nil
	case float32:
		return appendFloat(buf, float64(x), canonical), nil
	case float64:
		return appendFloat(buf, x, canonical), nil
	case string:
		buf = append(buf, stringFlag)
		return appendMemComparableBytes(buf, []byte(x)), nil
	case []byte:
		buf = append(buf, bytesFlag)
		return appendMemComparableBytes(buf, x), nil
	case time.Time:
		buf = append(buf, timeFlag)
		return appendMemComparableInt64(buf, x.UnixNano()), nil
	case uuid.UUID:
		buf = append(buf, uuidFlag)
		return append(buf, x[:]...), nil
	case equaler:
		return nil, fmt.Errorf("%T: %w", v, ErrUnhashable)
	}
	if canonical {
		return nil, fmt.Errorf("%T: %w", v, ErrUnhashable)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	buf = append(buf, jsonFlag)
	return appendMemComparableBytes(buf, data), nil
}

func appendInt(buf []byte, v int64) []byte {
	buf = append(buf, intFlag)
	return appendMemComparableInt64(buf, v)
}

func appendUint(buf []byte, v uint64, canonical bool) []byte {
	switch {
	case v <= math.MaxInt64:
		if canonical {
			return appendInt(buf, int64(v))
		}
	case canonical:
		// Out of int64 range; equal floats must share the key.
		return appendFloat(buf, float64(v), true)
	}
	buf = append(buf, uintFlag)
	return appendMemComparableUint64(buf, v)
}

func appendFloat(buf []byte, f float64, canonical bool) []byte {
	if canonical && f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return appendInt(buf, int64(f))
	}
	if canonical && math.IsNaN(f) {
		// every NaN payload shares one key
		f = math.NaN()
	}
	buf = append(buf, floatFlag)
	return appendMemComparableFloat64(buf, f)
}

// DecodeValue decodes the value at the start of data and reports how many
// bytes it used. Integers decode as int64, unsigned integers as uint64 and
// times as UTC time.Time values.
func DecodeValue(data []byte) (any, int, error) {
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("empty input: %w", ErrCorrupt)
	}
	body := data[1:]
	switch data[0] {
	case nilFlag:
		return nil, 1, nil
	case boolFlag:
		if len(body) < 1 {
			return nil, 0, fmt.Errorf("bool: %w", ErrCorrupt)
		}
		return body[0] != 0x00, 2, nil
	case intFlag:
		v, n := readMemComparableInt64(body)
		if n == 0 {
			return nil, 0, fmt.Errorf("int: %w", ErrCorrupt)
		}
		return v, n + 1, nil
	case uintFlag:
		v, n := readMemComparableUint64(body)
		if n == 0 {
			return nil, 0, fmt.Errorf("uint: %w", ErrCorrupt)
		}
		return v, n + 1, nil
	case floatFlag:
		v, n := readMemComparableFloat64(body)
		if n == 0 {
			return nil, 0, fmt.Errorf("float: %w", ErrCorrupt)
		}
		return v, n + 1, nil
	case timeFlag:
		v, n := readMemComparableInt64(body)
		if n == 0 {
			return nil, 0, fmt.Errorf("time: %w", ErrCorrupt)
		}
		return time.Unix(0, v).UTC(), n + 1, nil
	case uuidFlag:
		if len(body) < 16 {
			return nil, 0, fmt.Errorf("uuid: %w", ErrCorrupt)
		}
		var id uuid.UUID
		copy(id[:], body[:16])
		return id, 17, nil
	case stringFlag, bytesFlag, jsonFlag:
		raw, n := readMemComparableBytes(body)
		if n < 0 {
			return nil, 0, fmt.Errorf("unterminated bytes: %w", ErrCorrupt)
		}
		switch data[0] {
		case stringFlag:
			return string(raw), n + 1, nil
		case bytesFlag:
			return raw, n + 1, nil
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, 0, fmt.Errorf("json: %w", err)
		}
		return v, n + 1, nil
	}
	return nil, 0, fmt.Errorf("unknown flag 0x%02x: %w", data[0], ErrCorrupt)
}
