package observable

import (
	"math"
	"reflect"
)

// Equal reports whether a write of b over a counts as no change.
//
// Composites (objects, sequences, proxies, pointers) compare by identity,
// a proxy being identical to the target it wraps. Numbers compare by value
// across widths and signedness, and an integer equals a float holding the
// same whole number, so 10 and 10.0 are equal. Other comparable values use
// ==; non-comparable values (maps, slices, funcs) are never equal.
func Equal(a, b any) bool {
	a, b = unwrapValue(a), unwrapValue(b)

	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if ai, ok := asInt(a); ok {
		return intEqual(ai, b)
	}
	if bi, ok := asInt(b); ok {
		return intEqual(bi, a)
	}
	if au, ok := asUint(a); ok {
		return uintEqual(au, b)
	}
	if bu, ok := asUint(b); ok {
		return uintEqual(bu, a)
	}
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af == bf
	}
	if _, ok := asFloat(b); ok {
		return false
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// intEqual compares i with any numeric v.
func intEqual(i int64, v any) bool {
	if vi, ok := asInt(v); ok {
		return i == vi
	}
	if vu, ok := asUint(v); ok {
		return i >= 0 && uint64(i) == vu
	}
	if vf, ok := asFloat(v); ok {
		return vf == math.Trunc(vf) && vf >= math.MinInt64 && vf < math.MaxInt64 && int64(vf) == i
	}
	return false
}

// uintEqual compares u with any non-signed numeric v.
func uintEqual(u uint64, v any) bool {
	if vu, ok := asUint(v); ok {
		return u == vu
	}
	if vf, ok := asFloat(v); ok {
		return vf == math.Trunc(vf) && vf >= 0 && vf < math.MaxUint64 && uint64(vf) == u
	}
	return false
}

func unwrapValue(v any) any {
	if p, ok := v.(*Proxy); ok && p != nil {
		return p.raw
	}
	return v
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func asUint(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint:
		return uint64(n), true
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
