package codec

import (
	"encoding/binary"
	"math"
)

func appendMemComparableInt64(buf []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(v)^0x8000000000000000)
}

func readMemComparableInt64(data []byte) (int64, int) {
	if len(data) < 8 {
		return 0, 0
	}
	return int64(binary.BigEndian.Uint64(data[:8]) ^ 0x8000000000000000), 8
}

func appendMemComparableUint64(buf []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(buf, v)
}

func readMemComparableUint64(data []byte) (uint64, int) {
	if len(data) < 8 {
		return 0, 0
	}
	return binary.BigEndian.Uint64(data[:8]), 8
}

func appendMemComparableFloat64(buf []byte, f float64) []byte {
	u := math.Float64bits(f)
	if f >= 0 {
		u |= 0x8000000000000000
	} else {
		u = ^u
	}
	return binary.BigEndian.AppendUint64(buf, u)
}

func readMemComparableFloat64(data []byte) (float64, int) {
	if len(data) < 8 {
		return 0, 0
	}
	u := binary.BigEndian.Uint64(data[:8])
	if u&0x8000000000000000 != 0 {
		u &^= 0x8000000000000000
	} else {
		u = ^u
	}
	return math.Float64frombits(u), 8
}

// appendMemComparableBytes escapes 0x00 as 0x00 0xFF and terminates with
// 0x00 0x00, so that byte order equals lexical order.
func appendMemComparableBytes(buf []byte, b []byte) []byte {
	for _, ch := range b {
		buf = append(buf, ch)
		if ch == 0x00 {
			buf = append(buf, 0xFF)
		}
	}
	return append(buf, 0x00, 0x00)
}

// readMemComparableBytes returns the unescaped bytes and the number of input
// bytes consumed, or -1 if the terminator is missing.
func readMemComparableBytes(data []byte) ([]byte, int) {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != 0x00 {
			out = append(out, data[i])
			continue
		}
		if i+1 >= len(data) {
			return nil, -1
		}
		switch data[i+1] {
		case 0x00:
			return out, i + 2
		case 0xFF:
			out = append(out, 0x00)
			i++
		default:
			return nil, -1
		}
	}
	return nil, -1
}
