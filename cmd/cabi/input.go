package main

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-canon/errors"
	"github.com/wippyai/wasm-canon/internal/abi"
	"github.com/wippyai/wasm-canon/types"
	"github.com/wippyai/wasm-canon/value"
)

// parseValue decodes a YAML (or JSON) value written for t.
//
// Variants are written {case: payload} or as a bare case name, results as
// {ok: v} or {err: v}, options as null or the payload, flags as a list of
// labels and handles as their number.
func parseValue(src string, t types.Type) (any, error) {
	var raw any
	if err := yaml.Unmarshal([]byte(src), &raw); err != nil {
		return nil, errors.ParseFailed(fmt.Sprintf("value %q", src), err)
	}
	return fromYAML(raw, t)
}

func fromYAML(v any, t types.Type) (any, error) {
	switch t := t.(type) {
	case *types.Record:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, shapeErr(v, t)
		}
		out := make(map[string]any, len(m))
		for _, f := range t.Fields() {
			fv, ok := m[f.Name]
			if !ok {
				return nil, errors.FieldMissing(errors.PhaseParse, nil, f.Name)
			}
			lv, err := fromYAML(fv, f.Type)
			if err != nil {
				return nil, errors.WithPath(err, f.Name)
			}
			out[f.Name] = lv
		}
		for k := range m {
			if _, ok := t.FieldIndex(k); !ok {
				return nil, errors.FieldUnknown(errors.PhaseParse, nil, k)
			}
		}
		return out, nil

	case *types.List:
		elems, ok := v.([]any)
		if !ok {
			if s, isStr := v.(string); isStr && t.Elem().Kind() == types.KindU8 {
				return []byte(s), nil
			}
			return nil, shapeErr(v, t)
		}
		out := make(value.List, len(elems))
		for i, e := range elems {
			lv, err := fromYAML(e, t.Elem())
			if err != nil {
				return nil, errors.WithPath(err, fmt.Sprintf("[%d]", i))
			}
			out[i] = lv
		}
		return out, nil

	case *types.Tuple:
		elems, ok := v.([]any)
		if !ok || len(elems) != len(t.Elems()) {
			return nil, shapeErr(v, t)
		}
		out := make(value.Tuple, len(elems))
		for i, e := range elems {
			lv, err := fromYAML(e, t.Elems()[i])
			if err != nil {
				return nil, errors.WithPath(err, fmt.Sprint(i))
			}
			out[i] = lv
		}
		return out, nil

	case *types.Option:
		if v == nil {
			return value.None(), nil
		}
		lv, err := fromYAML(v, t.Elem())
		if err != nil {
			return nil, err
		}
		return value.Some(lv), nil

	case *types.Result:
		name, payload, err := singleKey(v, t)
		if err != nil {
			return nil, err
		}
		var pt types.Type
		switch name {
		case "ok":
			pt = t.OK()
		case "err":
			pt = t.Err()
		default:
			return nil, errors.InvalidData(errors.PhaseParse, nil, "result needs an ok or err key, got "+name)
		}
		lv, err := payloadValue(payload, pt)
		if err != nil {
			return nil, errors.WithPath(err, name)
		}
		return value.Result{Value: lv, IsErr: name == "err"}, nil

	case *types.Variant:
		if s, ok := v.(string); ok {
			return value.Variant{Case: s}, nil
		}
		name, payload, err := singleKey(v, t)
		if err != nil {
			return nil, err
		}
		i, ok := t.CaseIndex(name)
		if !ok {
			return nil, errors.New(errors.PhaseParse, errors.KindInvalidVariant).
				WitType(t.String()).
				Detail("unknown case %q", name).
				Build()
		}
		lv, err := payloadValue(payload, t.Cases()[i].Type)
		if err != nil {
			return nil, errors.WithPath(err, name)
		}
		return value.Variant{Case: name, Value: lv}, nil

	case *types.Flags:
		switch fl := v.(type) {
		case nil:
			return value.Flags{}, nil
		case []any:
			out := make(value.Flags, len(fl))
			for _, l := range fl {
				s, ok := l.(string)
				if !ok {
					return nil, shapeErr(l, t)
				}
				out[s] = true
			}
			return out, nil
		}
		return v, nil

	case *types.Primitive:
		if str, ok := v.(string); ok && t.Kind() == types.KindChar {
			r := []rune(str)
			if len(r) != 1 {
				return nil, errors.InvalidData(errors.PhaseParse, nil,
					fmt.Sprintf("char needs one character, got %d", len(r)))
			}
			return value.Char(r[0]), nil
		}
		return v, nil

	case types.Handle:
		if v == nil {
			return nil, shapeErr(v, t)
		}
		if n, ok := v.(int); ok && n >= 0 {
			return value.Handle(n), nil
		}
		return nil, shapeErr(v, t)
	}
	return v, nil
}

func payloadValue(v any, t types.Type) (any, error) {
	if t == nil {
		if v != nil {
			return nil, errors.InvalidData(errors.PhaseParse, nil, "case has no payload")
		}
		return nil, nil
	}
	return fromYAML(v, t)
}

func singleKey(v any, t types.Type) (string, any, error) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return "", nil, shapeErr(v, t)
	}
	var name string
	var payload any
	for name, payload = range m {
	}
	return name, payload, nil
}

func shapeErr(v any, t types.Type) error {
	return errors.TypeMismatch(errors.PhaseParse, nil, abi.TypeName(v), t.String())
}
