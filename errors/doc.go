// Package errors provides the structured error types shared by every layer of
// the marshalling engine.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Kinds split into three classes:
//
//   - trap class: malformed guest data, memory faults and allocation failures.
//     The in-flight call is aborted; see IsTrap.
//   - bad handle: stale, unknown or double-dropped resource handles; see
//     IsBadHandle.
//   - binding errors: mismatched implementations, missing exports and invalid
//     descriptors, reported before any call runs.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLower, errors.KindTypeMismatch).
//		Path("point", "x").
//		GoType("string").
//		WitType("u32").
//		Detail("cannot convert string to integer").
//		Build()
//
// Sentinels such as ErrBadHandle match any error of their kind regardless of
// phase:
//
//	if errors.Is(err, errors.ErrBadHandle) { ... }
package errors
