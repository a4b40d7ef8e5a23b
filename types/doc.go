// Package types defines the type descriptors of the Canonical ABI.
//
// A descriptor is an immutable value describing one WIT value type. Its flat
// core representation, memory size and alignment are computed once when the
// descriptor is constructed and are a pure function of its structure, so
// descriptors can be shared freely between goroutines and bindings.
//
// The set of descriptors is closed: every Type is one of *Primitive, *List,
// *Tuple, *Record, *Variant, *Enum, *Flags, *Option, *Result, *Own or
// *Borrow. Code consuming descriptors switches over these concrete types.
//
// Function types flatten into core signatures:
//
//	add := types.Must(types.NewFunc("add", types.U32,
//		types.P("a", types.U32), types.P("b", types.U32)))
//	add.Flatten() // (i32, i32) -> i32
//
// Named descriptors, resources and functions are grouped into an Interface,
// which is the input contract of the host and service binders. Interfaces can
// be built by hand, parsed from type expressions with ParseType, or converted
// from go.bytecodealliance.org/wit with a WITConverter.
package types
