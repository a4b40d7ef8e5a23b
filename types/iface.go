package types

import (
	"fmt"

	"github.com/wippyai/wasm-canon/errors"
)

// NamedType is a type definition of an interface.
type NamedType struct {
	Name string
	Type Type
}

// Interface groups the named types, resources and functions one binding
// covers. It is built once and treated as read-only afterwards.
type Interface struct {
	Name string

	types     []NamedType
	typeIdx   map[string]int
	resources []*Resource
	resIdx    map[string]*Resource
	funcs     []*FuncType
	funcIdx   map[string]*FuncType
}

func NewInterface(name string) *Interface {
	return &Interface{
		Name:    name,
		typeIdx: make(map[string]int),
		resIdx:  make(map[string]*Resource),
		funcIdx: make(map[string]*FuncType),
	}
}

// DefineType adds a named type.
func (i *Interface) DefineType(name string, t Type) error {
	if name == "" || t == nil {
		return errors.InvalidInput(errors.PhaseCompile, "type definition needs a name and a type")
	}
	if i.isDefined(name) {
		return errors.Duplicate(errors.PhaseCompile, "type", name)
	}
	i.typeIdx[name] = len(i.types)
	i.types = append(i.types, NamedType{Name: name, Type: t})
	return nil
}

// DefineResource adds a resource type.
func (i *Interface) DefineResource(r *Resource) error {
	if r == nil || r.name == "" {
		return errors.InvalidInput(errors.PhaseCompile, "resource needs a name")
	}
	if i.isDefined(r.name) {
		return errors.Duplicate(errors.PhaseCompile, "type", r.name)
	}
	i.resIdx[r.name] = r
	i.resources = append(i.resources, r)
	return nil
}

// DefineFunc adds a function. Constructors, methods and static functions
// must name a resource defined earlier; methods take borrow<R> as their
// first parameter.
func (i *Interface) DefineFunc(f *FuncType) error {
	if f == nil || f.Name == "" {
		return errors.InvalidInput(errors.PhaseCompile, "function needs a name")
	}
	if _, dup := i.funcIdx[f.Name]; dup {
		return errors.Duplicate(errors.PhaseCompile, "function", f.Name)
	}

	fn := ParseFuncName(f.Name)
	switch fn.Kind {
	case ResourceDrop:
		return errors.InvalidInput(errors.PhaseCompile,
			fmt.Sprintf("%s: drop functions are implied by the resource", f.Name))
	case Constructor, Method, Static:
		res, ok := i.resIdx[fn.Resource]
		if !ok {
			return errors.NotFound(errors.PhaseCompile, "resource", fn.Resource)
		}
		if fn.Kind == Method {
			if len(f.Params) == 0 {
				return errors.InvalidInput(errors.PhaseCompile, fmt.Sprintf("%s: method has no self parameter", f.Name))
			}
			self, ok := f.Params[0].Type.(*Borrow)
			if !ok || self.Resource() != res {
				return errors.TypeMismatch(errors.PhaseCompile, []string{f.Name, f.Params[0].Name},
					"", "borrow<"+res.name+">")
			}
		}
	}

	i.funcIdx[f.Name] = f
	i.funcs = append(i.funcs, f)
	return nil
}

// WithFuncs adds fs and panics on the first invalid function. Intended for
// interfaces built from literals.
func (i *Interface) WithFuncs(fs ...*FuncType) *Interface {
	for _, f := range fs {
		if err := i.DefineFunc(f); err != nil {
			panic(err)
		}
	}
	return i
}

func (i *Interface) isDefined(name string) bool {
	_, t := i.typeIdx[name]
	_, r := i.resIdx[name]
	return t || r
}

// Type returns the named type.
func (i *Interface) Type(name string) (Type, bool) {
	idx, ok := i.typeIdx[name]
	if !ok {
		return nil, false
	}
	return i.types[idx].Type, true
}

// Resource returns the named resource.
func (i *Interface) Resource(name string) (*Resource, bool) {
	r, ok := i.resIdx[name]
	return r, ok
}

// Func returns the named function.
func (i *Interface) Func(name string) (*FuncType, bool) {
	f, ok := i.funcIdx[name]
	return f, ok
}

// Types returns the named types in definition order.
func (i *Interface) Types() []NamedType { return i.types }

// Resources returns the resources in definition order.
func (i *Interface) Resources() []*Resource { return i.resources }

// Funcs returns the functions in definition order.
func (i *Interface) Funcs() []*FuncType { return i.funcs }

// Scope resolves names referenced by type expressions.
type Scope interface {
	Type(name string) (Type, bool)
	Resource(name string) (*Resource, bool)
}

var _ Scope = (*Interface)(nil)
