package types

import (
	"fmt"
	"strings"

	"github.com/wippyai/wasm-canon/errors"
)

const (
	// MaxFlatParams is the largest number of flat parameter slots passed
	// directly. Wider parameter lists are passed as a pointer to a tuple.
	MaxFlatParams = 16
	// MaxFlatResults is the largest number of flat result slots returned
	// directly. Wider results are written through a return pointer.
	MaxFlatResults = 1
)

// Param is a named function parameter.
type Param struct {
	Name string
	Type Type
}

// P is shorthand for Param{Name: name, Type: t}.
func P(name string, t Type) Param {
	return Param{Name: name, Type: t}
}

// FuncType is a component-level function type. Result is nil for a function
// without a result.
type FuncType struct {
	Name   string
	Params []Param
	Result Type
}

// NewFunc builds a function type. Parameter names must be non-empty and
// unique.
func NewFunc(name string, result Type, params ...Param) (*FuncType, error) {
	if name == "" {
		return nil, errors.InvalidInput(errors.PhaseCompile, "function has no name")
	}
	seen := make(map[string]bool, len(params))
	for i, p := range params {
		if p.Name == "" {
			return nil, errors.InvalidInput(errors.PhaseCompile, fmt.Sprintf("%s: parameter %d has no name", name, i))
		}
		if p.Type == nil {
			return nil, errors.InvalidInput(errors.PhaseCompile, fmt.Sprintf("%s: parameter %q has no type", name, p.Name))
		}
		if seen[p.Name] {
			return nil, errors.Duplicate(errors.PhaseCompile, "parameter", p.Name)
		}
		seen[p.Name] = true
	}
	return &FuncType{Name: name, Params: params, Result: result}, nil
}

// ParamTypes returns the parameter types in order.
func (f *FuncType) ParamTypes() []Type {
	out := make([]Type, len(f.Params))
	for i, p := range f.Params {
		out[i] = p.Type
	}
	return out
}

// ParamTuple returns the tuple the parameters are stored as when they are
// passed through memory.
func (f *FuncType) ParamTuple() *Tuple {
	return NewTuple(f.ParamTypes()...)
}

// Signature is a flattened core function signature.
type Signature struct {
	Params  []FlatType
	Results []FlatType
	// ParamsIndirect means Params is a single i32 pointing at the parameter
	// tuple in memory.
	ParamsIndirect bool
	// ResultIndirect means the last entry of Params is a return pointer and
	// Results is empty.
	ResultIndirect bool
}

// Flatten computes the core signature of f.
func (f *FuncType) Flatten() Signature {
	var sig Signature

	var params []FlatType
	for _, p := range f.Params {
		params = append(params, p.Type.Flat()...)
	}
	if len(params) > MaxFlatParams {
		sig.Params = []FlatType{FlatI32}
		sig.ParamsIndirect = true
	} else {
		sig.Params = params
	}

	if f.Result != nil {
		results := f.Result.Flat()
		if len(results) > MaxFlatResults {
			sig.Params = append(sig.Params, FlatI32)
			sig.ResultIndirect = true
		} else {
			sig.Results = append([]FlatType(nil), results...)
		}
	}

	if sig.Params == nil {
		sig.Params = []FlatType{}
	}
	if sig.Results == nil {
		sig.Results = []FlatType{}
	}
	return sig
}

func (s Signature) String() string {
	return "(" + flatList(s.Params) + ") -> (" + flatList(s.Results) + ")"
}

func flatList(ts []FlatType) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

func (f *FuncType) String() string {
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		parts[i] = p.Name + ": " + p.Type.String()
	}
	s := f.Name + ": func(" + strings.Join(parts, ", ") + ")"
	if f.Result != nil {
		s += " -> " + f.Result.String()
	}
	return s
}

// FuncKind classifies a function by the resource naming convention.
type FuncKind uint8

const (
	Freestanding FuncKind = iota
	Constructor
	Method
	Static
	ResourceDrop
)

var funcKindPrefixes = [...]string{
	Constructor:  "[constructor]",
	Method:       "[method]",
	Static:       "[static]",
	ResourceDrop: "[resource-drop]",
}

func (k FuncKind) String() string {
	switch k {
	case Freestanding:
		return "freestanding"
	case Constructor:
		return "constructor"
	case Method:
		return "method"
	case Static:
		return "static"
	case ResourceDrop:
		return "resource-drop"
	}
	return "unknown"
}

// FuncName is a parsed function name.
type FuncName struct {
	Kind FuncKind
	// Resource is the resource a constructor, method, static function or drop
	// belongs to.
	Resource string
	// Name is the function name for freestanding functions and the member
	// name for methods and static functions.
	Name string
}

// ParseFuncName classifies name. Names not following the bracket convention
// are freestanding.
func ParseFuncName(name string) FuncName {
	for k := Constructor; k <= ResourceDrop; k++ {
		rest, ok := strings.CutPrefix(name, funcKindPrefixes[k])
		if !ok {
			continue
		}
		switch k {
		case Constructor, ResourceDrop:
			if rest != "" {
				return FuncName{Kind: k, Resource: rest}
			}
		case Method, Static:
			res, member, ok := strings.Cut(rest, ".")
			if ok && res != "" && member != "" {
				return FuncName{Kind: k, Resource: res, Name: member}
			}
		}
	}
	return FuncName{Kind: Freestanding, Name: name}
}

func (n FuncName) String() string {
	switch n.Kind {
	case Constructor, ResourceDrop:
		return funcKindPrefixes[n.Kind] + n.Resource
	case Method, Static:
		return funcKindPrefixes[n.Kind] + n.Resource + "." + n.Name
	}
	return n.Name
}

// DropName returns the name of the drop function of resource.
func DropName(resource string) string {
	return funcKindPrefixes[ResourceDrop] + resource
}
