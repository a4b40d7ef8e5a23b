// Package value defines the host-side representation of component values.
//
// Numeric types map to the matching Go scalar (bool, uint8..uint64,
// int8..int64, float32, float64) and strings to string. Everything else uses
// the types in this package, so a lifted value can always be lowered again
// with the same descriptor.
package value

import (
	"fmt"
	"strings"
)

// Char is a Unicode scalar value.
type Char rune

func (c Char) String() string { return string(rune(c)) }

// Handle is a resource handle as seen by the guest.
type Handle uint32

// List is a list of values. list<u8> lifts to []byte instead.
type List []any

// Tuple holds positional values.
type Tuple []any

// Field is a named record member.
type Field struct {
	Name  string
	Value any
}

// Record holds fields in declaration order.
type Record []Field

// Get returns the value of the named field.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

func (r Record) String() string {
	parts := make([]string, len(r))
	for i, f := range r {
		parts[i] = fmt.Sprintf("%s: %v", f.Name, f.Value)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Variant is the active case of a variant. Value is nil for a case without
// payload.
type Variant struct {
	Case  string
	Value any
}

func (v Variant) String() string {
	if v.Value == nil {
		return v.Case
	}
	return fmt.Sprintf("%s(%v)", v.Case, v.Value)
}

// Enum is the active case of an enum.
type Enum string

// Flags is the set of raised flags. Absent labels are clear.
type Flags map[string]bool

// Has reports whether the label is raised.
func (f Flags) Has(label string) bool { return f[label] }

// Option is option<T>.
type Option struct {
	Value  any
	IsSome bool
}

func Some(v any) Option { return Option{Value: v, IsSome: true} }
func None() Option      { return Option{} }

func (o Option) String() string {
	if !o.IsSome {
		return "none"
	}
	return fmt.Sprintf("some(%v)", o.Value)
}

// Result is result<T, E>. Value holds the ok or the error payload, nil when
// the active case has none.
type Result struct {
	Value any
	IsErr bool
}

func Ok(v any) Result  { return Result{Value: v} }
func Err(v any) Result { return Result{Value: v, IsErr: true} }

func (r Result) String() string {
	tag := "ok"
	if r.IsErr {
		tag = "err"
	}
	if r.Value == nil {
		return tag
	}
	return fmt.Sprintf("%s(%v)", tag, r.Value)
}
