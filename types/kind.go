package types

// Kind identifies the kind of a descriptor.
type Kind uint8

const (
	KindBool Kind = iota
	KindU8
	KindS8
	KindU16
	KindS16
	KindU32
	KindS32
	KindU64
	KindS64
	KindF32
	KindF64
	KindChar
	KindString
	KindRecord
	KindList
	KindVariant
	KindOption
	KindResult
	KindTuple
	KindEnum
	KindFlags
	KindOwn
	KindBorrow
)

var kindNames = [...]string{
	KindBool:    "bool",
	KindU8:      "u8",
	KindS8:      "s8",
	KindU16:     "u16",
	KindS16:     "s16",
	KindU32:     "u32",
	KindS32:     "s32",
	KindU64:     "u64",
	KindS64:     "s64",
	KindF32:     "f32",
	KindF64:     "f64",
	KindChar:    "char",
	KindString:  "string",
	KindRecord:  "record",
	KindList:    "list",
	KindVariant: "variant",
	KindOption:  "option",
	KindResult:  "result",
	KindTuple:   "tuple",
	KindEnum:    "enum",
	KindFlags:   "flags",
	KindOwn:     "own",
	KindBorrow:  "borrow",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsPrimitive reports whether k is a scalar kind or string.
func (k Kind) IsPrimitive() bool {
	return k <= KindString
}

// IsHandle reports whether k is own or borrow.
func (k Kind) IsHandle() bool {
	return k == KindOwn || k == KindBorrow
}

// FlatType is a core WebAssembly value type.
type FlatType uint8

const (
	FlatI32 FlatType = iota
	FlatI64
	FlatF32
	FlatF64
)

func (f FlatType) String() string {
	switch f {
	case FlatI32:
		return "i32"
	case FlatI64:
		return "i64"
	case FlatF32:
		return "f32"
	case FlatF64:
		return "f64"
	}
	return "unknown"
}

// Join returns the slot type able to carry both a and b: identical types join
// to themselves, i32 and f32 share an i32, every other mix widens to i64.
func Join(a, b FlatType) FlatType {
	if a == b {
		return a
	}
	if (a == FlatI32 && b == FlatF32) || (a == FlatF32 && b == FlatI32) {
		return FlatI32
	}
	return FlatI64
}
