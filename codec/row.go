package codec

import (
	"encoding/binary"
	"fmt"
)

// EncodeRow encodes a row's values for storage. Unlike keys, row encodings
// keep floats and unsigned integers in their own kind, and fall back to JSON
// for composite values.
func EncodeRow(values []any) ([]byte, error) {
	buf := make([]byte, 0, 8+16*len(values))
	buf = binary.AppendUvarint(buf, uint64(len(values)))
	var err error
	for i, v := range values {
		if buf, err = appendValue(buf, v, false); err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
	}
	return buf, nil
}

// DecodeRow is the inverse of EncodeRow.
func DecodeRow(data []byte) ([]any, error) {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("row header: %w", ErrCorrupt)
	}
	if count > uint64(len(data)) {
		return nil, fmt.Errorf("row claims %d values: %w", count, ErrCorrupt)
	}
	values := make([]any, count)
	offset := n
	for i := range values {
		v, used, err := DecodeValue(data[offset:])
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		values[i] = v
		offset += used
	}
	if offset != len(data) {
		return nil, fmt.Errorf("%d trailing bytes: %w", len(data)-offset, ErrCorrupt)
	}
	return values, nil
}
