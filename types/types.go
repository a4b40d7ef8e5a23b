package types

import (
	"strings"

	"github.com/wippyai/wasm-canon/internal/abi"
)

// Type is a Canonical ABI type descriptor.
type Type interface {
	Kind() Kind
	// Size is the number of bytes the value occupies in linear memory.
	Size() uint32
	// Align is the required alignment of the value in linear memory.
	Align() uint32
	// Flat is the sequence of core slots the value flattens to. The returned
	// slice is shared and must not be modified.
	Flat() []FlatType
	String() string

	layoutInfo() *layout
}

type layout struct {
	flat  []FlatType
	size  uint32
	align uint32
}

func (l *layout) Size() uint32        { return l.size }
func (l *layout) Align() uint32       { return l.align }
func (l *layout) Flat() []FlatType    { return l.flat }
func (l *layout) layoutInfo() *layout { return l }

// Primitive is a scalar type or string.
type Primitive struct {
	layout
	kind Kind
}

func (p *Primitive) Kind() Kind     { return p.kind }
func (p *Primitive) String() string { return p.kind.String() }

func newPrimitive(k Kind, size uint32, flat ...FlatType) *Primitive {
	align := size
	if k == KindString {
		align = 4
	}
	return &Primitive{layout: layout{flat: flat, size: size, align: align}, kind: k}
}

var (
	Bool   = newPrimitive(KindBool, 1, FlatI32)
	U8     = newPrimitive(KindU8, 1, FlatI32)
	S8     = newPrimitive(KindS8, 1, FlatI32)
	U16    = newPrimitive(KindU16, 2, FlatI32)
	S16    = newPrimitive(KindS16, 2, FlatI32)
	U32    = newPrimitive(KindU32, 4, FlatI32)
	S32    = newPrimitive(KindS32, 4, FlatI32)
	U64    = newPrimitive(KindU64, 8, FlatI64)
	S64    = newPrimitive(KindS64, 8, FlatI64)
	F32    = newPrimitive(KindF32, 4, FlatF32)
	F64    = newPrimitive(KindF64, 8, FlatF64)
	Char   = newPrimitive(KindChar, 4, FlatI32)
	String = newPrimitive(KindString, 8, FlatI32, FlatI32)
)

// Primitives lists the primitive descriptors in kind order.
var Primitives = []*Primitive{Bool, U8, S8, U16, S16, U32, S32, U64, S64, F32, F64, Char, String}

// PrimitiveByName returns the primitive descriptor with the given WIT name.
func PrimitiveByName(name string) (*Primitive, bool) {
	for _, p := range Primitives {
		if p.kind.String() == name {
			return p, true
		}
	}
	return nil, false
}

// Must panics if err is non-nil. Intended for descriptors built from
// literals.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// structLayout lays out elems consecutively at their natural alignment.
func structLayout(elems []Type) (layout, []uint32) {
	offsets := make([]uint32, len(elems))
	var (
		offset   uint32
		maxAlign uint32 = 1
		flat     []FlatType
	)
	for i, e := range elems {
		offset = abi.AlignTo(offset, e.Align())
		offsets[i] = offset
		offset += e.Size()
		if e.Align() > maxAlign {
			maxAlign = e.Align()
		}
		flat = append(flat, e.Flat()...)
	}
	return layout{flat: flat, size: abi.AlignTo(offset, maxAlign), align: maxAlign}, offsets
}

func joinTypeNames(elems []Type) string {
	names := make([]string, len(elems))
	for i, e := range elems {
		names[i] = e.String()
	}
	return strings.Join(names, ", ")
}
