package parcel

import (
	"fmt"
	"math"
	"reflect"
)

// Spread converts items into the output map of a spreading node: one entry
// per element under base[i], plus the companion count under CountName(base).
//
//	Spread("user", []any{"a", "b"})
//	// {"user[0]": "a", "user[1]": "b", "user_count": 2}
func Spread(base string, items []any) map[string]any {
	out := make(map[string]any, len(items)+1)
	for i, item := range items {
		out[At(base, i).String()] = item
	}
	out[CountName(base)] = len(items)
	return out
}

// AsList converts an arbitrary slice or array value into []any.
// It returns false when v is not a slice or array.
func AsList(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if l, ok := v.([]any); ok {
		return l, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// AsCount interprets v as a family size.
//
// Any Go integer kind is accepted, as are integral floats (values decoded
// from JSON or YAML). Negative and fractional values are rejected.
func AsCount(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return checkCount(int64(n))
	case int8:
		return checkCount(int64(n))
	case int16:
		return checkCount(int64(n))
	case int32:
		return checkCount(int64(n))
	case int64:
		return checkCount(n)
	case uint:
		return checkCount(int64(n))
	case uint8:
		return checkCount(int64(n))
	case uint16:
		return checkCount(int64(n))
	case uint32:
		return checkCount(int64(n))
	case uint64:
		if n > math.MaxInt32 {
			return 0, fmt.Errorf("count %d out of range", n)
		}
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("count %v is not an integer", n)
		}
		return checkCount(int64(n))
	case float32:
		return AsCount(float64(n))
	default:
		return 0, fmt.Errorf("count has non-numeric type %T", v)
	}
}

func checkCount(n int64) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("count %d is negative", n)
	}
	if n > math.MaxInt32 {
		return 0, fmt.Errorf("count %d out of range", n)
	}
	return int(n), nil
}
