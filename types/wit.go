package types

import (
	"fmt"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-canon/errors"
)

// WITConverter converts go.bytecodealliance.org/wit types to descriptors.
// Conversions are cached per *wit.TypeDef, so converting the same definition
// twice yields the same descriptor and resources keep their identity.
type WITConverter struct {
	cache     map[*wit.TypeDef]Type
	resources map[*wit.TypeDef]*Resource
}

func NewWITConverter() *WITConverter {
	return &WITConverter{
		cache:     make(map[*wit.TypeDef]Type),
		resources: make(map[*wit.TypeDef]*Resource),
	}
}

// only ever sees primitives, which carry no identity
var defaultConverter = NewWITConverter()

// FromWIT converts a single wit type with a fresh converter.
func FromWIT(t wit.Type) (Type, error) {
	return NewWITConverter().Convert(t)
}

// Convert returns the descriptor for t.
func (c *WITConverter) Convert(t wit.Type) (Type, error) {
	switch t := t.(type) {
	case wit.Bool:
		return Bool, nil
	case wit.U8:
		return U8, nil
	case wit.S8:
		return S8, nil
	case wit.U16:
		return U16, nil
	case wit.S16:
		return S16, nil
	case wit.U32:
		return U32, nil
	case wit.S32:
		return S32, nil
	case wit.U64:
		return U64, nil
	case wit.S64:
		return S64, nil
	case wit.F32:
		return F32, nil
	case wit.F64:
		return F64, nil
	case wit.Char:
		return Char, nil
	case wit.String:
		return String, nil
	case *wit.TypeDef:
		return c.convertTypeDef(t)
	case nil:
		return nil, errors.InvalidInput(errors.PhaseCompile, "nil wit type")
	}
	return nil, errors.Unsupported(errors.PhaseCompile, fmt.Sprintf("wit type %T", t))
}

// Resource returns the resource descriptor for a wit resource definition.
func (c *WITConverter) Resource(td *wit.TypeDef) (*Resource, error) {
	td = followAlias(td)
	if _, ok := td.Kind.(*wit.Resource); !ok {
		return nil, errors.TypeMismatch(errors.PhaseCompile, nil, fmt.Sprintf("%T", td.Kind), "resource")
	}
	if r, ok := c.resources[td]; ok {
		return r, nil
	}
	r := NewResource(typeDefName(td))
	c.resources[td] = r
	return r, nil
}

func (c *WITConverter) convertTypeDef(td *wit.TypeDef) (Type, error) {
	if cached, ok := c.cache[td]; ok {
		return cached, nil
	}

	name := typeDefName(td)
	var (
		out Type
		err error
	)

	switch kind := td.Kind.(type) {
	case *wit.Record:
		fields := make([]Field, len(kind.Fields))
		for i, f := range kind.Fields {
			ft, err := c.Convert(f.Type)
			if err != nil {
				return nil, errors.WithPath(err, f.Name)
			}
			fields[i] = Field{Name: f.Name, Type: ft}
		}
		out, err = NewRecord(name, fields...)
	case *wit.Variant:
		cases := make([]Case, len(kind.Cases))
		for i, cs := range kind.Cases {
			cases[i].Name = cs.Name
			if cs.Type != nil {
				ct, err := c.Convert(cs.Type)
				if err != nil {
					return nil, errors.WithPath(err, cs.Name)
				}
				cases[i].Type = ct
			}
		}
		out, err = NewVariant(name, cases...)
	case *wit.Enum:
		cases := make([]string, len(kind.Cases))
		for i, cs := range kind.Cases {
			cases[i] = cs.Name
		}
		out, err = NewEnum(name, cases...)
	case *wit.Flags:
		labels := make([]string, len(kind.Flags))
		for i, f := range kind.Flags {
			labels[i] = f.Name
		}
		out, err = NewFlags(name, labels...)
	case *wit.List:
		var elem Type
		if elem, err = c.Convert(kind.Type); err == nil {
			out = NewList(elem)
		}
	case *wit.Option:
		var elem Type
		if elem, err = c.Convert(kind.Type); err == nil {
			out = NewOption(elem)
		}
	case *wit.Result:
		var ok, fail Type
		if kind.OK != nil {
			if ok, err = c.Convert(kind.OK); err != nil {
				return nil, errors.WithPath(err, "ok")
			}
		}
		if kind.Err != nil {
			if fail, err = c.Convert(kind.Err); err != nil {
				return nil, errors.WithPath(err, "err")
			}
		}
		out = NewResult(ok, fail)
	case *wit.Tuple:
		elems := make([]Type, len(kind.Types))
		for i, et := range kind.Types {
			if elems[i], err = c.Convert(et); err != nil {
				return nil, errors.WithPath(err, fmt.Sprint(i))
			}
		}
		out = NewTuple(elems...)
	case *wit.Own:
		var r *Resource
		if r, err = c.Resource(kind.Type); err == nil {
			out = NewOwn(r)
		}
	case *wit.Borrow:
		var r *Resource
		if r, err = c.Resource(kind.Type); err == nil {
			out = NewBorrow(r)
		}
	case *wit.Resource:
		// A resource used directly in a value position is an owned handle.
		var r *Resource
		if r, err = c.Resource(td); err == nil {
			out = NewOwn(r)
		}
	case wit.Type:
		// type alias
		out, err = c.Convert(kind)
	default:
		err = errors.Unsupported(errors.PhaseCompile, fmt.Sprintf("wit type kind %T", kind))
	}

	if err != nil {
		return nil, err
	}
	c.cache[td] = out
	return out, nil
}

func typeDefName(td *wit.TypeDef) string {
	if td.Name != nil {
		return *td.Name
	}
	return ""
}

func followAlias(td *wit.TypeDef) *wit.TypeDef {
	for {
		next, ok := td.Kind.(*wit.TypeDef)
		if !ok {
			return td
		}
		td = next
	}
}
