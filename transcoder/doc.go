// Package transcoder lifts and lowers component values across the Canonical
// ABI boundary.
//
// An Encoder lowers host values, either into linear memory (Store) or into
// flat core values (LowerFlat). A Decoder lifts them back (Load, LiftFlat).
// Both run against an Env carrying the guest's memory, its allocator and an
// optional ResourceHook translating resource values to handles.
//
// # Memory Layout
//
//	Type            Size            Alignment
//	──────────────────────────────────────────
//	bool, u8, s8    1               1
//	u16, s16        2               2
//	u32, s32, f32   4               4
//	u64, s64, f64   8               8
//	char            4               4
//	string, list    8 (ptr, len)    4
//	record, tuple   fields, padded  max field align
//	variant         disc + payload  max(disc, case align)
//	flags           0/1/2/4, or 4 per 32 labels
//
// # Host Values
//
// Lifting always produces the canonical forms of the value package, with
// list<u8> as []byte. Lowering accepts those and looser Go input: any
// integer or integral float that fits, []any and typed slices for lists,
// map[string]any and structs for records, pointers for options and
// map[string]bool or []string for flags. Into converts lifted values to
// concrete Go types.
//
// # Calls
//
// PrepareCall flattens a function type once. LowerArgs and LiftResult serve
// calls into the guest, LiftArgs and LowerResult serve calls from it.
// Parameters beyond MaxFlatParams slots are passed through memory as a
// tuple; results beyond MaxFlatResults slots through a return pointer.
//
// # Failure
//
// Out-of-bounds ranges, misaligned pointers, invalid discriminants, invalid
// UTF-8 and invalid chars fail with trap-class errors; see errors.IsTrap. No
// partial value is returned. A failed lowering frees the memory it
// allocated.
//
// # Thread Safety
//
// Encoder and Decoder are not safe for concurrent use. Use one per
// instance.
package transcoder
