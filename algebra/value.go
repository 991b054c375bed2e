package algebra

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

// Equaler is implemented by values that define their own equality. It takes
// precedence over the built-in comparison rules of ValuesEqual.
type Equaler interface {
	Equal(other any) bool
}

// ValuesEqual is the null-safe equality used by joins and grouping: two nils
// are equal, nil never equals a non-nil value, numbers compare by value across
// Go integer and float kinds.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if eq, ok := a.(Equaler); ok {
		return eq.Equal(b)
	}
	if eq, ok := b.(Equaler); ok {
		return eq.Equal(a)
	}
	if an, ok := toNumber(a); ok {
		bn, ok := toNumber(b)
		return ok && an.compare(bn) == 0
	}

	switch av := a.(type) {
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	}

	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// CompareValues orders two non-nil values of compatible kinds. Nil sorts
// before everything else.
func CompareValues(a, b any) (int, error) {
	switch {
	case a == nil && b == nil:
		return 0, nil
	case a == nil:
		return -1, nil
	case b == nil:
		return 1, nil
	}

	if an, ok := toNumber(a); ok {
		if bn, ok := toNumber(b); ok {
			return an.compare(bn), nil
		}
		return 0, fmt.Errorf("cannot compare %T with %T", a, b)
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv), nil
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0, nil
			case !av:
				return -1, nil
			default:
				return 1, nil
			}
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv), nil
		}
	case []byte:
		if bv, ok := b.([]byte); ok {
			return bytes.Compare(av, bv), nil
		}
	}
	return 0, fmt.Errorf("cannot compare %T with %T", a, b)
}

// number is an integer or a float, normalised for cross-kind comparison.
type number struct {
	isFloat bool
	i       int64
	f       float64
}

func toNumber(v any) (number, bool) {
	switch n := v.(type) {
	case int:
		return number{i: int64(n)}, true
	case int8:
		return number{i: int64(n)}, true
	case int16:
		return number{i: int64(n)}, true
	case int32:
		return number{i: int64(n)}, true
	case int64:
		return number{i: n}, true
	case uint:
		return fromUint(uint64(n)), true
	case uint8:
		return number{i: int64(n)}, true
	case uint16:
		return number{i: int64(n)}, true
	case uint32:
		return number{i: int64(n)}, true
	case uint64:
		return fromUint(n), true
	case float32:
		return number{isFloat: true, f: float64(n)}, true
	case float64:
		return number{isFloat: true, f: n}, true
	}
	return number{}, false
}

func fromUint(u uint64) number {
	if u > math.MaxInt64 {
		return number{isFloat: true, f: float64(u)}
	}
	return number{i: int64(u)}
}

func (n number) float() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

// compare orders numbers exactly, without rounding integers through float64.
// NaN equals only NaN and sorts before every other number.
func (n number) compare(o number) int {
	switch {
	case !n.isFloat && !o.isFloat:
		return compareInts(n.i, o.i)
	case n.isFloat && o.isFloat:
		return compareFloats(n.f, o.f)
	case n.isFloat:
		return -compareIntFloat(o.i, n.f)
	}
	return compareIntFloat(n.i, o.f)
}

func compareInts(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloats(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return -1
	case bNaN:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// 2^63 as a float64; float64(math.MaxInt64) rounds up to it.
const twoTo63 = float64(1 << 63)

func compareIntFloat(i int64, f float64) int {
	switch {
	case math.IsNaN(f):
		return 1
	case f >= twoTo63:
		return -1
	case f < -twoTo63:
		return 1
	}
	// f is within int64 range: compare i against its integral part.
	fl := math.Floor(f)
	if c := compareInts(i, int64(fl)); c != 0 || fl == f {
		return c
	}
	// i == floor(f) < f
	return -1
}

// canonicalNumber returns a comparable map key shared by every number equal
// to n under compare.
func canonicalNumber(n number) any {
	if !n.isFloat {
		return n.i
	}
	switch {
	case math.IsNaN(n.f):
		return nanKey{}
	case n.f == math.Trunc(n.f) && n.f >= -twoTo63 && n.f < twoTo63:
		return int64(n.f)
	}
	return n.f
}

type nanKey struct{}
