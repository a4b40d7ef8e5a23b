package transcoder

import (
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/wippyai/wasm-canon/errors"
	"github.com/wippyai/wasm-canon/internal/abi"
	"github.com/wippyai/wasm-canon/types"
)

// Encoder lowers host values into linear memory and flat core values.
// It is not safe for concurrent use.
type Encoder struct {
	cfg    config
	allocs *AllocationList
	depth  int
}

func NewEncoder(opts ...Option) *Encoder {
	return &Encoder{cfg: newConfig(opts)}
}

// Store writes v as a value of type t at addr. addr must be aligned for t.
// Allocations made for nested lists and strings are freed if Store fails.
func (e *Encoder) Store(env *Env, t types.Type, addr uint32, v any) error {
	return e.tracked(env, func() error {
		if !abi.IsAligned(addr, t.Align()) {
			return errors.Misaligned(errors.PhaseLower, nil, addr, t.Align())
		}
		return e.store(env, t, addr, v)
	})
}

// LowerFlat appends the flat representation of v to out.
func (e *Encoder) LowerFlat(env *Env, t types.Type, v any, out []uint64) ([]uint64, error) {
	err := e.tracked(env, func() error {
		var err error
		out, err = e.lowerFlat(env, t, v, out)
		return err
	})
	return out, err
}

// tracked runs fn with allocation tracking. Nested calls share the
// outermost list; only the outermost call rolls back.
func (e *Encoder) tracked(env *Env, fn func() error) error {
	if e.depth > 0 {
		return fn()
	}
	e.depth++
	e.allocs = NewAllocationList()
	defer func() {
		e.depth--
		e.allocs.Release()
		e.allocs = nil
	}()

	if err := fn(); err != nil {
		e.allocs.Free(env.Allocator)
		return err
	}
	return nil
}

func (e *Encoder) alloc(env *Env, size, align uint32) (uint32, error) {
	if env.Allocator == nil {
		return 0, errors.AllocationFailed(errors.PhaseLower, size, align,
			errors.InvalidInput(errors.PhaseLower, "no allocator"))
	}
	ptr, err := env.Allocator.Alloc(size, align)
	if err != nil {
		return 0, errors.AllocationFailed(errors.PhaseLower, size, align, err)
	}
	if !abi.IsAligned(ptr, align) {
		return 0, errors.Misaligned(errors.PhaseLower, nil, ptr, align)
	}
	if sz, ok := env.memSize(); ok && !abi.InRange(ptr, size, sz) {
		return 0, errors.OutOfBounds(errors.PhaseLower, nil, ptr, size)
	}
	if e.allocs != nil {
		e.allocs.Add(ptr, size, align)
	}
	return ptr, nil
}

func (e *Encoder) store(env *Env, t types.Type, addr uint32, v any) error {
	mem := env.Memory

	switch t := t.(type) {
	case *types.Primitive:
		if t.Kind() == types.KindString {
			ptr, n, err := e.lowerString(env, v)
			if err != nil {
				return err
			}
			return writePair(mem, addr, ptr, n)
		}
		bits, err := e.scalarBits(t, v)
		if err != nil {
			return err
		}
		return writeScalar(mem, t.Size(), addr, bits)

	case *types.List:
		ptr, n, err := e.lowerList(env, t, v)
		if err != nil {
			return err
		}
		return writePair(mem, addr, ptr, n)

	case *types.Record:
		vals, err := inputFields(v, t)
		if err != nil {
			return err
		}
		for i, f := range t.Fields() {
			if err := e.store(env, f.Type, addr+t.Offset(i), vals[i]); err != nil {
				return errors.WithPath(err, f.Name)
			}
		}
		return nil

	case *types.Tuple:
		vals, err := inputElems(v, t)
		if err != nil {
			return err
		}
		if len(vals) != len(t.Elems()) {
			return arity(t, len(t.Elems()), len(vals))
		}
		for i, et := range t.Elems() {
			if err := e.store(env, et, addr+t.Offset(i), vals[i]); err != nil {
				return errors.WithPath(err, strconv.Itoa(i))
			}
		}
		return nil

	case types.Union:
		disc, payload, err := inputCase(v, t)
		if err != nil {
			return err
		}
		if err := writeScalar(mem, t.DiscSize(), addr, uint64(disc)); err != nil {
			return err
		}
		// zero everything past the discriminant, alignment gap included
		if pad := t.Size() - t.DiscSize(); pad > 0 {
			if err := mem.Write(addr+t.DiscSize(), make([]byte, pad)); err != nil {
				return err
			}
		}
		pt := t.Payload(disc)
		if pt == nil {
			return nil
		}
		if err := e.store(env, pt, addr+t.PayloadOffset(), payload); err != nil {
			return errors.WithPath(err, caseName(t, disc))
		}
		return nil

	case *types.Enum:
		disc, err := inputEnum(v, t)
		if err != nil {
			return err
		}
		return writeScalar(mem, t.DiscSize(), addr, uint64(disc))

	case *types.Flags:
		words, err := inputFlags(v, t)
		if err != nil {
			return err
		}
		if t.Size() <= 4 {
			if len(words) == 0 {
				return nil
			}
			return writeScalar(mem, t.Size(), addr, uint64(words[0]))
		}
		for i, w := range words {
			if err := mem.WriteU32(addr+uint32(4*i), w); err != nil {
				return err
			}
		}
		return nil

	case types.Handle:
		h, err := e.lowerHandle(env, t, v)
		if err != nil {
			return err
		}
		return mem.WriteU32(addr, h)
	}
	return errors.Unsupported(errors.PhaseLower, t.String())
}

func (e *Encoder) lowerFlat(env *Env, t types.Type, v any, out []uint64) ([]uint64, error) {
	switch t := t.(type) {
	case *types.Primitive:
		if t.Kind() == types.KindString {
			ptr, n, err := e.lowerString(env, v)
			if err != nil {
				return out, err
			}
			return append(out, uint64(ptr), uint64(n)), nil
		}
		bits, err := e.scalarBits(t, v)
		if err != nil {
			return out, err
		}
		return append(out, flatScalar(t, bits)), nil

	case *types.List:
		ptr, n, err := e.lowerList(env, t, v)
		if err != nil {
			return out, err
		}
		return append(out, uint64(ptr), uint64(n)), nil

	case *types.Record:
		vals, err := inputFields(v, t)
		if err != nil {
			return out, err
		}
		for i, f := range t.Fields() {
			if out, err = e.lowerFlat(env, f.Type, vals[i], out); err != nil {
				return out, errors.WithPath(err, f.Name)
			}
		}
		return out, nil

	case *types.Tuple:
		vals, err := inputElems(v, t)
		if err != nil {
			return out, err
		}
		if len(vals) != len(t.Elems()) {
			return out, arity(t, len(t.Elems()), len(vals))
		}
		for i, et := range t.Elems() {
			if out, err = e.lowerFlat(env, et, vals[i], out); err != nil {
				return out, errors.WithPath(err, strconv.Itoa(i))
			}
		}
		return out, nil

	case types.Union:
		disc, payload, err := inputCase(v, t)
		if err != nil {
			return out, err
		}
		out = append(out, uint64(disc))
		joined := t.Flat()[1:]
		start := len(out)

		if pt := t.Payload(disc); pt != nil {
			// Case slots widen into the joined slots by zero extension,
			// which is the identity on the uint64 slot encoding.
			if out, err = e.lowerFlat(env, pt, payload, out); err != nil {
				return out, errors.WithPath(err, caseName(t, disc))
			}
		}
		for len(out)-start < len(joined) {
			out = append(out, 0)
		}
		return out, nil

	case *types.Enum:
		disc, err := inputEnum(v, t)
		if err != nil {
			return out, err
		}
		return append(out, uint64(disc)), nil

	case *types.Flags:
		words, err := inputFlags(v, t)
		if err != nil {
			return out, err
		}
		for _, w := range words {
			out = append(out, uint64(w))
		}
		return out, nil

	case types.Handle:
		h, err := e.lowerHandle(env, t, v)
		if err != nil {
			return out, err
		}
		return append(out, uint64(h)), nil
	}
	return out, errors.Unsupported(errors.PhaseLower, t.String())
}

// scalarBits returns the little-endian bit pattern of a numeric, bool or
// char value, NaNs canonicalised.
func (e *Encoder) scalarBits(t *types.Primitive, v any) (uint64, error) {
	switch t.Kind() {
	case types.KindBool:
		b, ok := inputBool(v)
		if !ok {
			return 0, mismatch(v, t)
		}
		if b {
			return 1, nil
		}
		return 0, nil
	case types.KindU8:
		return inputUnsigned(v, t, 8)
	case types.KindU16:
		return inputUnsigned(v, t, 16)
	case types.KindU32:
		return inputUnsigned(v, t, 32)
	case types.KindU64:
		return inputUnsigned(v, t, 64)
	case types.KindS8, types.KindS16, types.KindS32, types.KindS64:
		bits := int(t.Size()) * 8
		s, err := inputSigned(v, t, bits)
		if err != nil {
			return 0, err
		}
		if bits == 64 {
			return uint64(s), nil
		}
		return uint64(s) & (1<<bits - 1), nil
	case types.KindF32:
		f, ok := abi.CoerceFloat(v)
		if !ok {
			return 0, mismatch(v, t)
		}
		return uint64(abi.CanonicalizeF32(math.Float32bits(float32(f)))), nil
	case types.KindF64:
		f, ok := abi.CoerceFloat(v)
		if !ok {
			return 0, mismatch(v, t)
		}
		return abi.CanonicalizeF64(math.Float64bits(f)), nil
	case types.KindChar:
		r, err := inputChar(v)
		return uint64(r), err
	}
	return 0, errors.Unsupported(errors.PhaseLower, t.String())
}

// flatScalar widens the memory bit pattern of a scalar into its core slot.
// Signed values narrower than 32 bits are sign-extended to i32 the way the
// guest would see them after a load.
func flatScalar(t *types.Primitive, bits uint64) uint64 {
	switch t.Kind() {
	case types.KindS8:
		return uint64(uint32(int32(int8(bits))))
	case types.KindS16:
		return uint64(uint32(int32(int16(bits))))
	}
	return bits
}

func (e *Encoder) lowerString(env *Env, v any) (uint32, uint32, error) {
	s, err := inputString(v)
	if err != nil {
		return 0, 0, err
	}
	if !utf8.ValidString(s) {
		return 0, 0, errors.InvalidUTF8(errors.PhaseLower, nil, []byte(s))
	}

	data, units, align := []byte(s), uint32(len(s)), uint32(1)
	if e.cfg.encoding == UTF16 {
		if data, err = encodeUTF16(s); err != nil {
			return 0, 0, errors.Wrap(errors.PhaseLower, errors.KindInvalidData, err, "utf-16 encode")
		}
		units, align = uint32(len(data)/2), 2
	}
	if len(data) > abi.MaxStringSize {
		return 0, 0, errors.Overflow(errors.PhaseLower, nil, len(data), "string")
	}
	if len(data) == 0 {
		return align, 0, nil
	}

	ptr, err := e.alloc(env, uint32(len(data)), align)
	if err != nil {
		return 0, 0, err
	}
	if err := env.Memory.Write(ptr, data); err != nil {
		return 0, 0, err
	}
	return ptr, units, nil
}

func (e *Encoder) lowerList(env *Env, t *types.List, v any) (uint32, uint32, error) {
	elem := t.Elem()

	// list<u8> from []byte is a single copy
	if b, ok := v.([]byte); ok && elem.Kind() == types.KindU8 {
		if len(b) > abi.MaxListLength {
			return 0, 0, errors.Overflow(errors.PhaseLower, nil, len(b), t.String())
		}
		if len(b) == 0 {
			return 1, 0, nil
		}
		ptr, err := e.alloc(env, uint32(len(b)), 1)
		if err != nil {
			return 0, 0, err
		}
		return ptr, uint32(len(b)), env.Memory.Write(ptr, b)
	}

	vals, err := inputElems(v, t)
	if err != nil {
		return 0, 0, err
	}
	if len(vals) > abi.MaxListLength {
		return 0, 0, errors.Overflow(errors.PhaseLower, nil, len(vals), t.String())
	}
	n := uint32(len(vals))
	if n == 0 {
		return elem.Align(), 0, nil
	}

	stride := t.Stride()
	total, ok := abi.SafeMulU32(stride, n)
	if !ok {
		return 0, 0, errors.Overflow(errors.PhaseLower, nil, n, t.String())
	}
	ptr, err := e.alloc(env, total, elem.Align())
	if err != nil {
		return 0, 0, err
	}
	for i, ev := range vals {
		if err := e.store(env, elem, ptr+uint32(i)*stride, ev); err != nil {
			return 0, 0, errors.WithPath(err, "["+strconv.Itoa(i)+"]")
		}
	}
	return ptr, n, nil
}

func (e *Encoder) lowerHandle(env *Env, t types.Handle, v any) (uint32, error) {
	if env.Resources == nil {
		return inputHandle(v, t)
	}
	return env.Resources.Lower(t, v)
}

func writePair(mem Memory, addr, a, b uint32) error {
	if err := mem.WriteU32(addr, a); err != nil {
		return err
	}
	return mem.WriteU32(addr+4, b)
}

func writeScalar(mem Memory, size, addr uint32, bits uint64) error {
	switch size {
	case 1:
		return mem.WriteU8(addr, uint8(bits))
	case 2:
		return mem.WriteU16(addr, uint16(bits))
	case 4:
		return mem.WriteU32(addr, uint32(bits))
	case 8:
		return mem.WriteU64(addr, bits)
	}
	return nil
}

func arity(t types.Type, want, got int) error {
	return errors.New(errors.PhaseLower, errors.KindTypeMismatch).
		WitType(t.String()).
		Detail("expected %d elements, got %d", want, got).
		Build()
}

func caseName(t types.Union, i int) string {
	switch t := t.(type) {
	case *types.Variant:
		return t.CaseName(i)
	case *types.Option:
		if i == 0 {
			return "none"
		}
		return "some"
	}
	if i == 0 {
		return "ok"
	}
	return "err"
}
