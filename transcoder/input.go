package transcoder

import (
	"math"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/wippyai/wasm-canon/errors"
	"github.com/wippyai/wasm-canon/internal/abi"
	"github.com/wippyai/wasm-canon/types"
	"github.com/wippyai/wasm-canon/value"
)

// Accessors turning loosely typed host input into the shape a descriptor
// expects. Canonical value.* forms are accepted everywhere; Go structs,
// slices, maps and pointers are accepted where the mapping is unambiguous.

func mismatch(v any, t types.Type) error {
	return errors.TypeMismatch(errors.PhaseLower, nil, abi.TypeName(v), t.String())
}

func inputBool(v any) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Bool {
		return rv.Bool(), true
	}
	return false, false
}

func inputUnsigned(v any, t *types.Primitive, bits int) (uint64, error) {
	u, ok := abi.CoerceUnsigned(v, bits)
	if !ok {
		if _, isNum := abi.CoerceFloat(v); isNum {
			return 0, errors.Overflow(errors.PhaseLower, nil, v, t.String())
		}
		return 0, mismatch(v, t)
	}
	return u, nil
}

func inputSigned(v any, t *types.Primitive, bits int) (int64, error) {
	s, ok := abi.CoerceSigned(v, bits)
	if !ok {
		if _, isNum := abi.CoerceFloat(v); isNum {
			return 0, errors.Overflow(errors.PhaseLower, nil, v, t.String())
		}
		return 0, mismatch(v, t)
	}
	return s, nil
}

func inputChar(v any) (uint32, error) {
	var r uint32
	switch c := v.(type) {
	case value.Char:
		r = uint32(c)
	case rune:
		r = uint32(c)
	case string:
		ch, size := utf8.DecodeRuneInString(c)
		if size == 0 || size != len(c) || ch == utf8.RuneError {
			return 0, errors.InvalidData(errors.PhaseLower, nil, "char needs a string of exactly one scalar value")
		}
		r = uint32(ch)
	default:
		u, ok := abi.CoerceUnsigned(v, 32)
		if !ok {
			return 0, mismatch(v, types.Char)
		}
		r = uint32(u)
	}
	if !abi.ValidateChar(r) {
		return 0, errors.InvalidData(errors.PhaseLower, nil, "invalid char: surrogate or out of range")
	}
	return r, nil
}

func inputString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	return "", mismatch(v, types.String)
}

// inputElems returns list, tuple or fixed array elements.
func inputElems(v any, t types.Type) ([]any, error) {
	switch s := v.(type) {
	case value.List:
		return s, nil
	case value.Tuple:
		return s, nil
	case []any:
		return s, nil
	case nil:
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil
	}
	return nil, mismatch(v, t)
}

// normalizeName folds WIT kebab-case and Go identifiers to a common key:
// "first-name", "FirstName" and "first_name" all become "firstname".
func normalizeName(s string) string {
	return strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(s))
}

// inputFields returns record field values in declaration order.
func inputFields(v any, r *types.Record) ([]any, error) {
	fields := r.Fields()
	out := make([]any, len(fields))

	lookup := func(get func(name string) (any, bool), known func(yield func(string) bool)) error {
		for i, f := range fields {
			fv, ok := get(f.Name)
			if !ok {
				return errors.FieldMissing(errors.PhaseLower, nil, f.Name)
			}
			out[i] = fv
		}
		var unknown error
		known(func(name string) bool {
			if _, ok := r.FieldIndex(name); !ok {
				unknown = errors.FieldUnknown(errors.PhaseLower, nil, name)
				return false
			}
			return true
		})
		return unknown
	}

	switch rec := v.(type) {
	case value.Record:
		return out, lookup(rec.Get, func(yield func(string) bool) {
			for _, f := range rec {
				if !yield(f.Name) {
					return
				}
			}
		})
	case map[string]any:
		return out, lookup(func(name string) (any, bool) {
			fv, ok := rec[name]
			return fv, ok
		}, func(yield func(string) bool) {
			for name := range rec {
				if !yield(name) {
					return
				}
			}
		})
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, errors.NilPointer(errors.PhaseLower, nil, abi.TypeName(v))
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, mismatch(v, r)
	}
	idx := structFieldIndex(rv.Type())
	for i, f := range fields {
		fi, ok := idx[normalizeName(f.Name)]
		if !ok {
			return nil, errors.FieldMissing(errors.PhaseLower, nil, f.Name)
		}
		out[i] = rv.Field(fi).Interface()
	}
	return out, nil
}

// structFieldIndex maps normalized names of exported fields to their index.
// A `wit:"name"` tag overrides the Go field name.
func structFieldIndex(rt reflect.Type) map[string]int {
	idx := make(map[string]int, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("wit"); ok {
			if tag == "-" {
				continue
			}
			name = tag
		}
		idx[normalizeName(name)] = i
	}
	return idx
}

// inputCase picks the active case of a variant-like type and its payload.
func inputCase(v any, t types.Union) (int, any, error) {
	switch t := t.(type) {
	case *types.Option:
		switch o := v.(type) {
		case value.Option:
			if o.IsSome {
				return 1, o.Value, nil
			}
			return 0, nil, nil
		case nil:
			return 0, nil, nil
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return 0, nil, nil
			}
			return 1, rv.Elem().Interface(), nil
		}
		return 1, v, nil

	case *types.Result:
		if r, ok := v.(value.Result); ok {
			if r.IsErr {
				return 1, r.Value, nil
			}
			return 0, r.Value, nil
		}
		return 0, nil, mismatch(v, t)

	case *types.Variant:
		vv, ok := v.(value.Variant)
		if !ok {
			if s, isStr := v.(string); isStr {
				vv = value.Variant{Case: s}
			} else {
				return 0, nil, mismatch(v, t)
			}
		}
		i, ok := t.CaseIndex(vv.Case)
		if !ok {
			return 0, nil, errors.New(errors.PhaseLower, errors.KindInvalidVariant).
				WitType(t.String()).
				Detail("unknown case %q", vv.Case).
				Build()
		}
		return i, vv.Value, nil
	}
	return 0, nil, mismatch(v, t)
}

func inputEnum(v any, e *types.Enum) (uint32, error) {
	var name string
	switch c := v.(type) {
	case value.Enum:
		name = string(c)
	case string:
		name = c
	default:
		u, ok := abi.CoerceUnsigned(v, 32)
		if !ok {
			return 0, mismatch(v, e)
		}
		if u >= uint64(len(e.Cases())) {
			return 0, errors.InvalidEnum(errors.PhaseLower, nil, u, e.String())
		}
		return uint32(u), nil
	}
	i, ok := e.Index(name)
	if !ok {
		return 0, errors.InvalidEnum(errors.PhaseLower, nil, name, e.String())
	}
	return uint32(i), nil
}

// inputFlags returns the flag words, bit i of word i/32 for label i.
func inputFlags(v any, f *types.Flags) ([]uint32, error) {
	words := make([]uint32, f.Words())
	set := func(label string) error {
		i, ok := f.Index(label)
		if !ok {
			return errors.InvalidData(errors.PhaseLower, nil, "unknown flag "+label)
		}
		words[i/32] |= 1 << (i % 32)
		return nil
	}

	switch fl := v.(type) {
	case value.Flags:
		return words, setAll(fl, set)
	case map[string]bool:
		return words, setAll(fl, set)
	case []string:
		for _, label := range fl {
			if err := set(label); err != nil {
				return nil, err
			}
		}
		return words, nil
	case nil:
		return words, nil
	}

	// raw bit mask, at most 64 flags
	u, ok := abi.CoerceUnsigned(v, 64)
	if !ok || (len(f.Labels()) < 64 && u >= 1<<len(f.Labels())) {
		return nil, mismatch(v, f)
	}
	for i := range words {
		words[i] = uint32(u >> (32 * i) & math.MaxUint32)
	}
	return words, nil
}

func setAll(m map[string]bool, set func(string) error) error {
	for label, on := range m {
		if !on {
			continue
		}
		if err := set(label); err != nil {
			return err
		}
	}
	return nil
}

func inputHandle(v any, t types.Type) (uint32, error) {
	switch h := v.(type) {
	case value.Handle:
		return uint32(h), nil
	}
	u, ok := abi.CoerceUnsigned(v, 32)
	if !ok {
		return 0, mismatch(v, t)
	}
	return uint32(u), nil
}
