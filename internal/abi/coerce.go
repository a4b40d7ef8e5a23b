package abi

import (
	"math"
	"reflect"
)

// CoerceUnsigned converts any Go integer or integral float that fits in an
// unsigned integer of the given bit width. JSON and YAML decoders produce
// float64 and int for every number, so both are accepted.
func CoerceUnsigned(value any, bits int) (uint64, bool) {
	limit := uint64(math.MaxUint64)
	if bits < 64 {
		limit = 1<<uint(bits) - 1
	}

	var u uint64
	switch v := value.(type) {
	case uint8:
		u = uint64(v)
	case uint16:
		u = uint64(v)
	case uint32:
		u = uint64(v)
	case uint64:
		u = v
	case uint:
		u = uint64(v)
	case float64:
		if v < 0 || v != math.Trunc(v) || v >= math.MaxUint64 {
			return 0, false
		}
		u = uint64(v)
	case float32:
		return CoerceUnsigned(float64(v), bits)
	default:
		s, ok := signed(value)
		if !ok || s < 0 {
			return 0, false
		}
		u = uint64(s)
	}

	if u > limit {
		return 0, false
	}
	return u, true
}

// CoerceSigned converts any Go integer or integral float that fits in a
// signed integer of the given bit width.
func CoerceSigned(value any, bits int) (int64, bool) {
	lo, hi := int64(math.MinInt64), int64(math.MaxInt64)
	if bits < 64 {
		hi = 1<<uint(bits-1) - 1
		lo = -hi - 1
	}

	var s int64
	switch v := value.(type) {
	case uint8, uint16, uint32, uint64, uint:
		u, _ := CoerceUnsigned(v, 64)
		if u > math.MaxInt64 {
			return 0, false
		}
		s = int64(u)
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, false
		}
		s = int64(v)
	case float32:
		return CoerceSigned(float64(v), bits)
	default:
		var ok bool
		if s, ok = signed(value); !ok {
			return 0, false
		}
	}

	if s < lo || s > hi {
		return 0, false
	}
	return s, true
}

// CoerceFloat converts any Go number to float64.
func CoerceFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	if s, ok := signed(value); ok {
		return float64(s), true
	}
	if u, ok := CoerceUnsigned(value, 64); ok {
		return float64(u), true
	}
	return 0, false
}

func signed(value any) (int64, bool) {
	switch v := value.(type) {
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}

	// Named integer types such as `type Level int32`.
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if u := rv.Uint(); u <= math.MaxInt64 {
			return int64(u), true
		}
	}
	return 0, false
}
