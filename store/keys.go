package store

import (
	"encoding/binary"

	"github.com/guileen/memquery/codec"
)

// Key layout:
//
//	m <name>                       relation metadata
//	r <codec(name)> <rowid:8 BE>   one row
//
// codec string encodings are self-terminating, so the rows of one relation
// form a contiguous range that no other relation's rows can fall into.
const (
	metaPrefix = 'm'
	rowPrefix  = 'r'
)

func metaKey(name string) []byte {
	key := make([]byte, 0, len(name)+1)
	key = append(key, metaPrefix)
	return append(key, name...)
}

func metaBounds() (lower, upper []byte) {
	return []byte{metaPrefix}, []byte{metaPrefix + 1}
}

func rowPrefixKey(name string) []byte {
	key, _ := codec.AppendValue([]byte{rowPrefix}, name)
	return key
}

func rowKey(prefix []byte, id uint64) []byte {
	key := make([]byte, len(prefix), len(prefix)+8)
	copy(key, prefix)
	return binary.BigEndian.AppendUint64(key, id)
}

// rowBounds returns the key range holding every row of name.
func rowBounds(name string) (lower, upper []byte) {
	lower = rowPrefixKey(name)
	upper = append([]byte(nil), lower...)
	upper[len(upper)-1]++
	return lower, upper
}
