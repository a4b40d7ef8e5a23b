package types

import (
	"fmt"
	"strings"

	"github.com/wippyai/wasm-canon/errors"
	"github.com/wippyai/wasm-canon/internal/abi"
)

// List is list<T>. It flattens to (ptr, len).
type List struct {
	layout
	elem Type
}

// NewList panics if elem is nil.
func NewList(elem Type) *List {
	mustType(elem, "list element")
	return &List{layout: layout{flat: []FlatType{FlatI32, FlatI32}, size: 8, align: 4}, elem: elem}
}

func (l *List) Kind() Kind     { return KindList }
func (l *List) Elem() Type     { return l.elem }
func (l *List) String() string { return "list<" + l.elem.String() + ">" }

// Stride is the distance between consecutive elements in memory.
func (l *List) Stride() uint32 {
	return abi.AlignTo(l.elem.Size(), l.elem.Align())
}

// Tuple is tuple<T...>, laid out like a record with positional fields.
type Tuple struct {
	layout
	elems   []Type
	offsets []uint32
}

// NewTuple panics if any element is nil.
func NewTuple(elems ...Type) *Tuple {
	for _, e := range elems {
		mustType(e, "tuple element")
	}
	l, offsets := structLayout(elems)
	return &Tuple{layout: l, elems: elems, offsets: offsets}
}

func (t *Tuple) Kind() Kind          { return KindTuple }
func (t *Tuple) Elems() []Type       { return t.elems }
func (t *Tuple) Offset(i int) uint32 { return t.offsets[i] }
func (t *Tuple) String() string      { return "tuple<" + joinTypeNames(t.elems) + ">" }

// Field is a named record member.
type Field struct {
	Name string
	Type Type
}

// Record is a record with named fields in declaration order.
type Record struct {
	layout
	name    string
	fields  []Field
	offsets []uint32
	index   map[string]int
}

// NewRecord builds a record descriptor. Field names must be non-empty and
// unique.
func NewRecord(name string, fields ...Field) (*Record, error) {
	index := make(map[string]int, len(fields))
	elems := make([]Type, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return nil, errors.InvalidInput(errors.PhaseCompile, fmt.Sprintf("record %s: field %d has no name", name, i))
		}
		if f.Type == nil {
			return nil, errors.InvalidInput(errors.PhaseCompile, fmt.Sprintf("record %s: field %q has no type", name, f.Name))
		}
		if _, dup := index[f.Name]; dup {
			return nil, errors.Duplicate(errors.PhaseCompile, "record field", f.Name)
		}
		index[f.Name] = i
		elems[i] = f.Type
	}
	l, offsets := structLayout(elems)
	return &Record{layout: l, name: name, fields: fields, offsets: offsets, index: index}, nil
}

func (r *Record) Kind() Kind          { return KindRecord }
func (r *Record) Name() string        { return r.name }
func (r *Record) Fields() []Field     { return r.fields }
func (r *Record) Offset(i int) uint32 { return r.offsets[i] }

// FieldIndex returns the position of the named field.
func (r *Record) FieldIndex(name string) (int, bool) {
	i, ok := r.index[name]
	return i, ok
}

func (r *Record) String() string {
	if r.name != "" {
		return r.name
	}
	parts := make([]string, len(r.fields))
	for i, f := range r.fields {
		parts[i] = f.Name + ": " + f.Type.String()
	}
	return "record { " + strings.Join(parts, ", ") + " }"
}

// union is the shared layout of variant, option and result: a discriminant
// followed by the payload of the active case. Payload slots are the
// per-position join of every case's flat types.
type union struct {
	layout
	payloads      []Type
	discSize      uint32
	payloadOffset uint32
}

func newUnion(payloads []Type) union {
	discSize := abi.DiscriminantSize(len(payloads))
	var (
		maxSize  uint32
		maxAlign uint32 = 1
		joined   []FlatType
	)
	for _, p := range payloads {
		if p == nil {
			continue
		}
		if p.Size() > maxSize {
			maxSize = p.Size()
		}
		if p.Align() > maxAlign {
			maxAlign = p.Align()
		}
		for i, ft := range p.Flat() {
			if i < len(joined) {
				joined[i] = Join(joined[i], ft)
			} else {
				joined = append(joined, ft)
			}
		}
	}

	payloadOffset := abi.AlignTo(discSize, maxAlign)
	align := max(discSize, maxAlign)
	flat := append([]FlatType{FlatI32}, joined...)

	return union{
		layout: layout{
			flat:  flat,
			size:  abi.AlignTo(payloadOffset+maxSize, align),
			align: align,
		},
		payloads:      payloads,
		discSize:      discSize,
		payloadOffset: payloadOffset,
	}
}

// NumCases returns the number of cases.
func (u *union) NumCases() int { return len(u.payloads) }

// Payload returns the payload type of case i, or nil for a case without one.
func (u *union) Payload(i int) Type { return u.payloads[i] }

// DiscSize is the width of the discriminant in memory: 1, 2 or 4 bytes.
func (u *union) DiscSize() uint32 { return u.discSize }

// PayloadOffset is the offset of the payload from the start of the value.
func (u *union) PayloadOffset() uint32 { return u.payloadOffset }

// Case is a named variant alternative. Type is nil for a case without payload.
type Case struct {
	Name string
	Type Type
}

// Variant is a tagged union of named cases.
type Variant struct {
	union
	name  string
	cases []Case
	index map[string]int
}

// NewVariant builds a variant descriptor with at least one case.
func NewVariant(name string, cases ...Case) (*Variant, error) {
	if len(cases) == 0 {
		return nil, errors.InvalidInput(errors.PhaseCompile, fmt.Sprintf("variant %s has no cases", name))
	}
	index := make(map[string]int, len(cases))
	payloads := make([]Type, len(cases))
	for i, c := range cases {
		if c.Name == "" {
			return nil, errors.InvalidInput(errors.PhaseCompile, fmt.Sprintf("variant %s: case %d has no name", name, i))
		}
		if _, dup := index[c.Name]; dup {
			return nil, errors.Duplicate(errors.PhaseCompile, "variant case", c.Name)
		}
		index[c.Name] = i
		payloads[i] = c.Type
	}
	return &Variant{union: newUnion(payloads), name: name, cases: cases, index: index}, nil
}

func (v *Variant) Kind() Kind            { return KindVariant }
func (v *Variant) Name() string          { return v.name }
func (v *Variant) Cases() []Case         { return v.cases }
func (v *Variant) CaseName(i int) string { return v.cases[i].Name }

// CaseIndex returns the position of the named case.
func (v *Variant) CaseIndex(name string) (int, bool) {
	i, ok := v.index[name]
	return i, ok
}

func (v *Variant) String() string {
	if v.name != "" {
		return v.name
	}
	parts := make([]string, len(v.cases))
	for i, c := range v.cases {
		parts[i] = c.Name
		if c.Type != nil {
			parts[i] += "(" + c.Type.String() + ")"
		}
	}
	return "variant { " + strings.Join(parts, ", ") + " }"
}

// Option is option<T>: case 0 is none, case 1 is some(T).
type Option struct {
	union
}

// NewOption panics if elem is nil.
func NewOption(elem Type) *Option {
	mustType(elem, "option element")
	return &Option{union: newUnion([]Type{nil, elem})}
}

func (o *Option) Kind() Kind     { return KindOption }
func (o *Option) Elem() Type     { return o.payloads[1] }
func (o *Option) String() string { return "option<" + o.Elem().String() + ">" }

// Result is result<T, E>: case 0 is ok, case 1 is error. Either payload may
// be nil.
type Result struct {
	union
}

func NewResult(ok, err Type) *Result {
	return &Result{union: newUnion([]Type{ok, err})}
}

func (r *Result) Kind() Kind { return KindResult }
func (r *Result) OK() Type   { return r.payloads[0] }
func (r *Result) Err() Type  { return r.payloads[1] }

func (r *Result) String() string {
	ok, err := "_", "_"
	if r.OK() != nil {
		ok = r.OK().String()
	}
	if r.Err() != nil {
		err = r.Err().String()
	}
	switch {
	case r.OK() == nil && r.Err() == nil:
		return "result"
	case r.Err() == nil:
		return "result<" + ok + ">"
	}
	return "result<" + ok + ", " + err + ">"
}

// Enum is a variant whose cases carry no payload.
type Enum struct {
	layout
	name  string
	cases []string
	index map[string]int
}

// NewEnum builds an enum descriptor with at least one case.
func NewEnum(name string, cases ...string) (*Enum, error) {
	if len(cases) == 0 {
		return nil, errors.InvalidInput(errors.PhaseCompile, fmt.Sprintf("enum %s has no cases", name))
	}
	index, err := nameIndex("enum case", cases)
	if err != nil {
		return nil, err
	}
	size := abi.DiscriminantSize(len(cases))
	return &Enum{
		layout: layout{flat: []FlatType{FlatI32}, size: size, align: size},
		name:   name,
		cases:  cases,
		index:  index,
	}, nil
}

func (e *Enum) Kind() Kind       { return KindEnum }
func (e *Enum) Name() string     { return e.name }
func (e *Enum) Cases() []string  { return e.cases }
func (e *Enum) DiscSize() uint32 { return e.size }

// Index returns the discriminant of the named case.
func (e *Enum) Index(name string) (int, bool) {
	i, ok := e.index[name]
	return i, ok
}

func (e *Enum) String() string {
	if e.name != "" {
		return e.name
	}
	return "enum { " + strings.Join(e.cases, ", ") + " }"
}

// Flags is a set of named bits in declaration order.
type Flags struct {
	layout
	name  string
	names []string
	index map[string]int
}

// NewFlags builds a flags descriptor. Labels must be unique.
func NewFlags(name string, labels ...string) (*Flags, error) {
	index, err := nameIndex("flag", labels)
	if err != nil {
		return nil, err
	}
	size := abi.FlagsSize(len(labels))
	align := size
	if align > 4 {
		align = 4
	} else if align == 0 {
		align = 1
	}
	flat := make([]FlatType, abi.FlagsWords(len(labels)))
	return &Flags{
		layout: layout{flat: flat, size: size, align: align},
		name:   name,
		names:  labels,
		index:  index,
	}, nil
}

func (f *Flags) Kind() Kind       { return KindFlags }
func (f *Flags) Name() string     { return f.name }
func (f *Flags) Labels() []string { return f.names }

// Words is the number of 32-bit words the flags occupy when flattened.
func (f *Flags) Words() int { return len(f.flat) }

// Index returns the bit position of the named flag.
func (f *Flags) Index(name string) (int, bool) {
	i, ok := f.index[name]
	return i, ok
}

func (f *Flags) String() string {
	if f.name != "" {
		return f.name
	}
	return "flags { " + strings.Join(f.names, ", ") + " }"
}

// Resource is an abstract type whose values cross the boundary as handles.
// Resources are compared by identity.
type Resource struct {
	name string
}

func NewResource(name string) *Resource {
	return &Resource{name: name}
}

func (r *Resource) Name() string   { return r.name }
func (r *Resource) String() string { return r.name }

var handleLayout = layout{flat: []FlatType{FlatI32}, size: 4, align: 4}

// Own is own<R>, a handle transferring ownership.
type Own struct {
	layout
	res *Resource
}

// NewOwn panics if r is nil.
func NewOwn(r *Resource) *Own {
	if r == nil {
		panic("types: own of nil resource")
	}
	return &Own{layout: handleLayout, res: r}
}

func (o *Own) Kind() Kind          { return KindOwn }
func (o *Own) Resource() *Resource { return o.res }
func (o *Own) String() string      { return "own<" + o.res.name + ">" }

// Borrow is borrow<R>, a handle valid for the duration of one call.
type Borrow struct {
	layout
	res *Resource
}

// NewBorrow panics if r is nil.
func NewBorrow(r *Resource) *Borrow {
	if r == nil {
		panic("types: borrow of nil resource")
	}
	return &Borrow{layout: handleLayout, res: r}
}

func (b *Borrow) Kind() Kind          { return KindBorrow }
func (b *Borrow) Resource() *Resource { return b.res }
func (b *Borrow) String() string      { return "borrow<" + b.res.name + ">" }

// Union is implemented by Variant, Option and Result.
type Union interface {
	Type
	NumCases() int
	Payload(i int) Type
	DiscSize() uint32
	PayloadOffset() uint32
}

var (
	_ Union = (*Variant)(nil)
	_ Union = (*Option)(nil)
	_ Union = (*Result)(nil)
)

// Handle is implemented by Own and Borrow.
type Handle interface {
	Type
	Resource() *Resource
}

func mustType(t Type, what string) {
	if t == nil {
		panic("types: nil " + what)
	}
}

func nameIndex(what string, names []string) (map[string]int, error) {
	index := make(map[string]int, len(names))
	for i, n := range names {
		if n == "" {
			return nil, errors.InvalidInput(errors.PhaseCompile, fmt.Sprintf("%s %d has no name", what, i))
		}
		if _, dup := index[n]; dup {
			return nil, errors.Duplicate(errors.PhaseCompile, what, n)
		}
		index[n] = i
	}
	return index, nil
}
