package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseCompile  Phase = "compile"  // descriptor construction
	PhaseFlatten  Phase = "flatten"  // signature flattening
	PhaseLower    Phase = "lower"    // host value to WASM
	PhaseLift     Phase = "lift"     // WASM to host value
	PhaseResource Phase = "resource" // handle table operations
	PhaseHost     Phase = "host"     // host binding and dispatch
	PhaseService  Phase = "service"  // guest export binding and calls
	PhaseParse    Phase = "parse"    // type expressions and interface files
	PhaseRuntime  Phase = "runtime"  // transport operations
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch      Kind = "type_mismatch"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindMisaligned        Kind = "misaligned"
	KindInvalidData       Kind = "invalid_data"
	KindUnsupported       Kind = "unsupported"
	KindAllocation        Kind = "allocation"
	KindFieldMissing      Kind = "field_missing"
	KindFieldUnknown      Kind = "field_unknown"
	KindInvalidUTF8       Kind = "invalid_utf8"
	KindOverflow          Kind = "overflow"
	KindNilPointer        Kind = "nil_pointer"
	KindInvalidEnum       Kind = "invalid_enum"
	KindInvalidVariant    Kind = "invalid_variant"
	KindBadHandle         Kind = "bad_handle"
	KindOutstandingBorrow Kind = "outstanding_borrow"
	KindMissingImport     Kind = "missing_import"
	KindMissingExport     Kind = "missing_export"
	KindNotFound          Kind = "not_found"
	KindInvalidInput      Kind = "invalid_input"
	KindDuplicate         Kind = "duplicate"
	KindHostFailure       Kind = "host_failure"
	KindClosed            Kind = "closed"
)

// Sentinels for errors.Is. They carry no phase and match any error of the
// same kind.
var (
	ErrBadHandle         = &Error{Kind: KindBadHandle}
	ErrOutstandingBorrow = &Error{Kind: KindOutstandingBorrow}
	ErrOutOfBounds       = &Error{Kind: KindOutOfBounds}
	ErrInvalidUTF8       = &Error{Kind: KindInvalidUTF8}
	ErrInvalidVariant    = &Error{Kind: KindInvalidVariant}
	ErrAllocation        = &Error{Kind: KindAllocation}
	ErrTypeMismatch      = &Error{Kind: KindTypeMismatch}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	GoType   string
	WitType  string
	Detail   string
	Path     []string
	Resource string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Resource != "" {
		b.WriteString(" (resource ")
		b.WriteString(e.Resource)
		b.WriteByte(')')
	}

	if e.GoType != "" || e.WitType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.WitType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", WIT type ")
			b.WriteString(e.WitType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("WIT type ")
			b.WriteString(e.WitType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.WitType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target without a phase
// matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Trap reports whether the error aborts the in-flight call: malformed guest
// data, memory faults, allocation failures and host-side failures.
func (e *Error) Trap() bool {
	switch e.Kind {
	case KindOutOfBounds, KindMisaligned, KindInvalidData, KindInvalidUTF8,
		KindOverflow, KindInvalidEnum, KindInvalidVariant, KindAllocation,
		KindTypeMismatch, KindHostFailure, KindFieldMissing, KindFieldUnknown,
		KindNilPointer:
		return true
	}
	return false
}

// IsTrap reports whether err carries a trap-class *Error anywhere in its chain.
func IsTrap(err error) bool {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Trap() {
			return true
		}
		err = e.Cause
	}
	return false
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }

// IsBadHandle reports whether err is a resource handle error.
func IsBadHandle(err error) bool {
	return stderrors.Is(err, ErrBadHandle)
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// WitType sets the WIT type name
func (b *Builder) WitType(t string) *Builder {
	b.err.WitType = t
	return b
}

// Resource sets the resource type name
func (b *Builder) Resource(name string) *Builder {
	b.err.Resource = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// WithPath prepends segment to the path of err when err is an *Error.
// Other errors are returned unchanged.
func WithPath(err error, segment string) error {
	var e *Error
	if !stderrors.As(err, &e) {
		return err
	}
	e.Path = append([]string{segment}, e.Path...)
	return err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, witType string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindTypeMismatch,
		Path:    path,
		GoType:  goType,
		WitType: witType,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
		Cause:  cause,
	}
}

// FieldMissing creates a missing field error
func FieldMissing(phase Phase, path []string, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldMissing,
		Path:   path,
		Detail: fmt.Sprintf("required field %q not found", fieldName),
	}
}

// InvalidDiscriminant creates an invalid discriminant error for variants
func InvalidDiscriminant(phase Phase, path []string, disc uint32, numCases int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidVariant,
		Path:   path,
		Detail: fmt.Sprintf("discriminant %d out of range (%d cases)", disc, numCases),
		Value:  disc,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds memory access error
func OutOfBounds(phase Phase, path []string, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("range [%d, %d+%d) outside linear memory", offset, offset, length),
		Value:  offset,
	}
}

// Misaligned creates a pointer alignment error
func Misaligned(phase Phase, path []string, ptr, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMisaligned,
		Path:   path,
		Detail: fmt.Sprintf("pointer %d not aligned to %d", ptr, align),
		Value:  ptr,
	}
}

// NilPointer creates a nil pointer error
func NilPointer(phase Phase, path []string, goType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNilPointer,
		Path:   path,
		GoType: goType,
		Detail: "nil pointer",
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindOverflow,
		Path:    path,
		WitType: targetType,
		Detail:  fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:   value,
	}
}

// FieldUnknown creates an unknown field error
func FieldUnknown(phase Phase, path []string, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldUnknown,
		Path:   path,
		Detail: fmt.Sprintf("unknown field %q", fieldName),
	}
}

// InvalidEnum creates an invalid enum value error
func InvalidEnum(phase Phase, path []string, value any, enumType string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindInvalidEnum,
		Path:    path,
		WitType: enumType,
		Detail:  fmt.Sprintf("invalid enum value %v for %s", value, enumType),
		Value:   value,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// BadHandle creates a bad resource handle error
func BadHandle(resource string, handle uint32, detail string) *Error {
	return &Error{
		Phase:    PhaseResource,
		Kind:     KindBadHandle,
		Resource: resource,
		Detail:   fmt.Sprintf("handle %d: %s", handle, detail),
		Value:    handle,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Duplicate creates a duplicate definition error
func Duplicate(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDuplicate,
		Detail: fmt.Sprintf("duplicate %s %q", what, name),
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// MissingFuncsError is returned when a binding cannot find every function an
// interface declares.
type MissingFuncsError struct {
	Namespace string
	What      string // "host function" or "guest export"
	Names     []string
}

func (e *MissingFuncsError) Error() string {
	if len(e.Names) == 0 {
		return fmt.Sprintf("missing %s: none specified", e.What)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "missing %d %s(s)", len(e.Names), e.What)
	if e.Namespace != "" {
		b.WriteString(" in ")
		b.WriteString(e.Namespace)
	}
	b.WriteByte(':')
	for _, name := range e.Names {
		b.WriteString("\n  - ")
		b.WriteString(name)
	}
	return b.String()
}

// Is reports whether target matches this error type
func (e *MissingFuncsError) Is(target error) bool {
	_, ok := target.(*MissingFuncsError)
	return ok
}
