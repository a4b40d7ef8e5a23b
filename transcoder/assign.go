package transcoder

import (
	"reflect"
	"strconv"

	"github.com/wippyai/wasm-canon/errors"
	"github.com/wippyai/wasm-canon/internal/abi"
	"github.com/wippyai/wasm-canon/value"
)

// Into converts a lifted value to the Go type to. Besides direct
// assignment it widens or narrows numbers that fit, fills structs from
// records (fields matched the way lowering matches them) and tuples, builds
// typed slices and arrays from lists and maps option to pointers.
func Into(v any, to reflect.Type) (reflect.Value, error) {
	out := reflect.New(to).Elem()
	if err := assign(out, v); err != nil {
		return reflect.Value{}, err
	}
	return out, nil
}

func assign(dst reflect.Value, v any) error {
	to := dst.Type()
	if v == nil {
		switch to.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map:
			dst.SetZero()
			return nil
		}
		return intoMismatch(v, to)
	}

	src := reflect.ValueOf(v)
	if src.Type().AssignableTo(to) {
		dst.Set(src)
		return nil
	}

	switch to.Kind() {
	case reflect.Bool:
		if b, ok := inputBool(v); ok {
			dst.SetBool(b)
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if s, ok := abi.CoerceSigned(v, to.Bits()); ok {
			dst.SetInt(s)
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if u, ok := abi.CoerceUnsigned(v, to.Bits()); ok {
			dst.SetUint(u)
			return nil
		}
	case reflect.Float32, reflect.Float64:
		if f, ok := abi.CoerceFloat(v); ok {
			dst.SetFloat(f)
			return nil
		}
	case reflect.String:
		switch s := v.(type) {
		case string:
			dst.SetString(s)
			return nil
		case value.Enum:
			dst.SetString(string(s))
			return nil
		case value.Char:
			dst.SetString(s.String())
			return nil
		}
	case reflect.Slice:
		if src.Kind() == reflect.Slice && src.Type().ConvertibleTo(to) {
			dst.Set(src.Convert(to))
			return nil
		}
		elems, err := liftedElems(v)
		if err != nil {
			return intoMismatch(v, to)
		}
		s := reflect.MakeSlice(to, len(elems), len(elems))
		for i, ev := range elems {
			if err := assign(s.Index(i), ev); err != nil {
				return errors.WithPath(err, "["+strconv.Itoa(i)+"]")
			}
		}
		dst.Set(s)
		return nil
	case reflect.Array:
		elems, err := liftedElems(v)
		if err != nil || len(elems) != to.Len() {
			return intoMismatch(v, to)
		}
		for i, ev := range elems {
			if err := assign(dst.Index(i), ev); err != nil {
				return errors.WithPath(err, strconv.Itoa(i))
			}
		}
		return nil
	case reflect.Map:
		if src.Type().ConvertibleTo(to) {
			dst.Set(src.Convert(to))
			return nil
		}
	case reflect.Pointer:
		if o, ok := v.(value.Option); ok {
			if !o.IsSome {
				dst.SetZero()
				return nil
			}
			v = o.Value
		}
		p := reflect.New(to.Elem())
		if err := assign(p.Elem(), v); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	case reflect.Struct:
		return assignStruct(dst, v)
	case reflect.Interface:
		if src.Type().Implements(to) {
			dst.Set(src)
			return nil
		}
	}
	return intoMismatch(v, to)
}

func assignStruct(dst reflect.Value, v any) error {
	to := dst.Type()
	switch rec := v.(type) {
	case value.Record:
		idx := structFieldIndex(to)
		for _, f := range rec {
			fi, ok := idx[normalizeName(f.Name)]
			if !ok {
				return errors.FieldUnknown(errors.PhaseLift, nil, f.Name)
			}
			if err := assign(dst.Field(fi), f.Value); err != nil {
				return errors.WithPath(err, f.Name)
			}
		}
		return nil
	case value.Tuple:
		fields := exportedFields(to)
		if len(fields) != len(rec) {
			return intoMismatch(v, to)
		}
		for i, fi := range fields {
			if err := assign(dst.Field(fi), rec[i]); err != nil {
				return errors.WithPath(err, strconv.Itoa(i))
			}
		}
		return nil
	}
	return intoMismatch(v, to)
}

func exportedFields(rt reflect.Type) []int {
	var out []int
	for i := 0; i < rt.NumField(); i++ {
		if rt.Field(i).IsExported() {
			out = append(out, i)
		}
	}
	return out
}

func liftedElems(v any) ([]any, error) {
	switch s := v.(type) {
	case value.List:
		return s, nil
	case value.Tuple:
		return s, nil
	case []any:
		return s, nil
	case []byte:
		out := make([]any, len(s))
		for i, b := range s {
			out[i] = b
		}
		return out, nil
	}
	return nil, errors.InvalidInput(errors.PhaseLift, "not a list")
}

func intoMismatch(v any, to reflect.Type) error {
	return errors.New(errors.PhaseLift, errors.KindTypeMismatch).
		GoType(to.String()).
		Detail("cannot assign %s", abi.TypeName(v)).
		Build()
}
