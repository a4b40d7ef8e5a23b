package transcoder

import (
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/wippyai/wasm-canon/errors"
	"github.com/wippyai/wasm-canon/internal/abi"
	"github.com/wippyai/wasm-canon/types"
	"github.com/wippyai/wasm-canon/value"
)

// Decoder lifts values out of linear memory and flat core values into their
// host representation. Malformed guest data fails with a trap-class error and
// never yields a partial value.
type Decoder struct {
	cfg config
}

func NewDecoder(opts ...Option) *Decoder {
	return &Decoder{cfg: newConfig(opts)}
}

// Load reads a value of type t stored at addr.
func (d *Decoder) Load(env *Env, t types.Type, addr uint32) (any, error) {
	if !abi.IsAligned(addr, t.Align()) {
		return nil, errors.Misaligned(errors.PhaseLift, nil, addr, t.Align())
	}
	if err := checkRange(env, addr, t.Size()); err != nil {
		return nil, err
	}
	return d.load(env, t, addr)
}

// LiftFlat lifts a value of type t from exactly len(t.Flat()) slots.
func (d *Decoder) LiftFlat(env *Env, t types.Type, flat []uint64) (any, error) {
	if len(flat) != len(t.Flat()) {
		return nil, errors.New(errors.PhaseLift, errors.KindInvalidData).
			WitType(t.String()).
			Detail("expected %d flat values, got %d", len(t.Flat()), len(flat)).
			Build()
	}
	c := &cursor{flat: flat}
	return d.liftFlat(env, t, c)
}

type cursor struct {
	flat []uint64
	pos  int
}

func (c *cursor) next() uint64 {
	v := c.flat[c.pos]
	c.pos++
	return v
}

func checkRange(env *Env, addr, length uint32) error {
	if size, ok := env.memSize(); ok && !abi.InRange(addr, length, size) {
		return errors.OutOfBounds(errors.PhaseLift, nil, addr, length)
	}
	return nil
}

func (d *Decoder) load(env *Env, t types.Type, addr uint32) (any, error) {
	mem := env.Memory

	switch t := t.(type) {
	case *types.Primitive:
		if t.Kind() == types.KindString {
			ptr, n, err := readPair(mem, addr)
			if err != nil {
				return nil, err
			}
			return d.liftString(env, ptr, n)
		}
		bits, err := readScalar(mem, t.Size(), addr)
		if err != nil {
			return nil, err
		}
		return d.scalar(t, bits)

	case *types.List:
		ptr, n, err := readPair(mem, addr)
		if err != nil {
			return nil, err
		}
		return d.liftList(env, t, ptr, n)

	case *types.Record:
		rec := make(value.Record, len(t.Fields()))
		for i, f := range t.Fields() {
			fv, err := d.load(env, f.Type, addr+t.Offset(i))
			if err != nil {
				return nil, errors.WithPath(err, f.Name)
			}
			rec[i] = value.Field{Name: f.Name, Value: fv}
		}
		return rec, nil

	case *types.Tuple:
		tup := make(value.Tuple, len(t.Elems()))
		for i, et := range t.Elems() {
			ev, err := d.load(env, et, addr+t.Offset(i))
			if err != nil {
				return nil, errors.WithPath(err, strconv.Itoa(i))
			}
			tup[i] = ev
		}
		return tup, nil

	case types.Union:
		disc, err := readScalar(mem, t.DiscSize(), addr)
		if err != nil {
			return nil, err
		}
		if disc >= uint64(t.NumCases()) {
			return nil, errors.InvalidDiscriminant(errors.PhaseLift, nil, uint32(disc), t.NumCases())
		}
		var payload any
		if pt := t.Payload(int(disc)); pt != nil {
			if payload, err = d.load(env, pt, addr+t.PayloadOffset()); err != nil {
				return nil, errors.WithPath(err, caseName(t, int(disc)))
			}
		}
		return unionValue(t, int(disc), payload), nil

	case *types.Enum:
		disc, err := readScalar(mem, t.DiscSize(), addr)
		if err != nil {
			return nil, err
		}
		return d.enum(t, disc)

	case *types.Flags:
		words := make([]uint32, t.Words())
		if t.Size() <= 4 {
			if len(words) > 0 {
				w, err := readScalar(mem, t.Size(), addr)
				if err != nil {
					return nil, err
				}
				words[0] = uint32(w)
			}
		} else {
			for i := range words {
				w, err := mem.ReadU32(addr + uint32(4*i))
				if err != nil {
					return nil, err
				}
				words[i] = w
			}
		}
		return flagsValue(t, words), nil

	case types.Handle:
		h, err := mem.ReadU32(addr)
		if err != nil {
			return nil, err
		}
		return d.liftHandle(env, t, h)
	}
	return nil, errors.Unsupported(errors.PhaseLift, t.String())
}

func (d *Decoder) liftFlat(env *Env, t types.Type, c *cursor) (any, error) {
	switch t := t.(type) {
	case *types.Primitive:
		if t.Kind() == types.KindString {
			ptr, n := uint32(c.next()), uint32(c.next())
			return d.liftString(env, ptr, n)
		}
		return d.scalar(t, flatBits(t, c.next()))

	case *types.List:
		ptr, n := uint32(c.next()), uint32(c.next())
		return d.liftList(env, t, ptr, n)

	case *types.Record:
		rec := make(value.Record, len(t.Fields()))
		for i, f := range t.Fields() {
			fv, err := d.liftFlat(env, f.Type, c)
			if err != nil {
				return nil, errors.WithPath(err, f.Name)
			}
			rec[i] = value.Field{Name: f.Name, Value: fv}
		}
		return rec, nil

	case *types.Tuple:
		tup := make(value.Tuple, len(t.Elems()))
		for i, et := range t.Elems() {
			ev, err := d.liftFlat(env, et, c)
			if err != nil {
				return nil, errors.WithPath(err, strconv.Itoa(i))
			}
			tup[i] = ev
		}
		return tup, nil

	case types.Union:
		disc := c.next()
		if disc >= uint64(t.NumCases()) {
			return nil, errors.InvalidDiscriminant(errors.PhaseLift, nil, uint32(disc), t.NumCases())
		}
		joined := t.Flat()[1:]
		slots := c.flat[c.pos : c.pos+len(joined)]
		c.pos += len(joined)

		var payload any
		if pt := t.Payload(int(disc)); pt != nil {
			buf := getSlots()
			defer putSlots(buf)
			for i, ft := range pt.Flat() {
				*buf = append(*buf, narrow(slots[i], ft))
			}
			var err error
			if payload, err = d.liftFlat(env, pt, &cursor{flat: *buf}); err != nil {
				return nil, errors.WithPath(err, caseName(t, int(disc)))
			}
		}
		return unionValue(t, int(disc), payload), nil

	case *types.Enum:
		return d.enum(t, c.next())

	case *types.Flags:
		words := make([]uint32, t.Words())
		for i := range words {
			words[i] = uint32(c.next())
		}
		return flagsValue(t, words), nil

	case types.Handle:
		return d.liftHandle(env, t, uint32(c.next()))
	}
	return nil, errors.Unsupported(errors.PhaseLift, t.String())
}

// narrow converts a joined slot back to the case's own slot type: 32-bit
// types take the low word of a wider slot.
func narrow(slot uint64, to types.FlatType) uint64 {
	if to == types.FlatI32 || to == types.FlatF32 {
		return slot & math.MaxUint32
	}
	return slot
}

// flatBits turns a core slot back into the memory bit pattern of the scalar.
// Integers wrap to their width; bool keeps the whole i32 so any nonzero
// value reads as true.
func flatBits(t *types.Primitive, slot uint64) uint64 {
	if t.Kind() == types.KindBool {
		return slot & math.MaxUint32
	}
	switch t.Size() {
	case 1:
		return slot & 0xFF
	case 2:
		return slot & 0xFFFF
	case 4:
		return slot & math.MaxUint32
	}
	return slot
}

func (d *Decoder) scalar(t *types.Primitive, bits uint64) (any, error) {
	switch t.Kind() {
	case types.KindBool:
		if d.cfg.strictBool && bits > 1 {
			return nil, errors.InvalidData(errors.PhaseLift, nil, "bool value "+strconv.FormatUint(bits, 10))
		}
		return bits != 0, nil
	case types.KindU8:
		return uint8(bits), nil
	case types.KindS8:
		return int8(bits), nil
	case types.KindU16:
		return uint16(bits), nil
	case types.KindS16:
		return int16(bits), nil
	case types.KindU32:
		return uint32(bits), nil
	case types.KindS32:
		return int32(bits), nil
	case types.KindU64:
		return bits, nil
	case types.KindS64:
		return int64(bits), nil
	case types.KindF32:
		return math.Float32frombits(abi.CanonicalizeF32(uint32(bits))), nil
	case types.KindF64:
		return math.Float64frombits(abi.CanonicalizeF64(bits)), nil
	case types.KindChar:
		r := uint32(bits)
		if !abi.ValidateChar(r) {
			return nil, errors.New(errors.PhaseLift, errors.KindInvalidData).
				Value(r).
				Detail("invalid char %#x", r).
				Build()
		}
		return value.Char(r), nil
	}
	return nil, errors.Unsupported(errors.PhaseLift, t.String())
}

func (d *Decoder) enum(t *types.Enum, disc uint64) (any, error) {
	if disc >= uint64(len(t.Cases())) {
		return nil, errors.InvalidEnum(errors.PhaseLift, nil, disc, t.String())
	}
	return value.Enum(t.Cases()[disc]), nil
}

func (d *Decoder) liftString(env *Env, ptr, n uint32) (string, error) {
	unit, align := uint32(1), uint32(1)
	if d.cfg.encoding == UTF16 {
		unit, align = 2, 2
	}
	if n == 0 {
		return "", nil
	}
	byteLen, ok := abi.SafeMulU32(n, unit)
	if !ok || byteLen > abi.MaxStringSize {
		return "", errors.Overflow(errors.PhaseLift, nil, n, "string")
	}
	if !abi.IsAligned(ptr, align) {
		return "", errors.Misaligned(errors.PhaseLift, nil, ptr, align)
	}
	if err := checkRange(env, ptr, byteLen); err != nil {
		return "", err
	}
	data, err := env.Memory.Read(ptr, byteLen)
	if err != nil {
		return "", err
	}

	if d.cfg.encoding == UTF16 {
		return decodeUTF16(data)
	}
	if !utf8.Valid(data) {
		return "", errors.InvalidUTF8(errors.PhaseLift, nil, data)
	}
	return string(data), nil
}

func (d *Decoder) liftList(env *Env, t *types.List, ptr, n uint32) (any, error) {
	elem := t.Elem()
	if n > abi.MaxListLength {
		return nil, errors.Overflow(errors.PhaseLift, nil, n, t.String())
	}
	stride := t.Stride()
	byteLen, ok := abi.SafeMulU32(stride, n)
	if !ok {
		return nil, errors.Overflow(errors.PhaseLift, nil, n, t.String())
	}
	if n > 0 {
		if !abi.IsAligned(ptr, elem.Align()) {
			return nil, errors.Misaligned(errors.PhaseLift, nil, ptr, elem.Align())
		}
		if err := checkRange(env, ptr, byteLen); err != nil {
			return nil, err
		}
	}

	if elem.Kind() == types.KindU8 {
		out := make([]byte, n)
		if n > 0 {
			data, err := env.Memory.Read(ptr, n)
			if err != nil {
				return nil, err
			}
			copy(out, data)
		}
		return out, nil
	}

	out := make(value.List, n)
	for i := uint32(0); i < n; i++ {
		ev, err := d.load(env, elem, ptr+i*stride)
		if err != nil {
			return nil, errors.WithPath(err, "["+strconv.Itoa(int(i))+"]")
		}
		out[i] = ev
	}
	return out, nil
}

func (d *Decoder) liftHandle(env *Env, t types.Handle, h uint32) (any, error) {
	if env.Resources == nil {
		return value.Handle(h), nil
	}
	return env.Resources.Lift(t, h)
}

func unionValue(t types.Union, disc int, payload any) any {
	switch t := t.(type) {
	case *types.Option:
		if disc == 0 {
			return value.None()
		}
		return value.Some(payload)
	case *types.Result:
		return value.Result{Value: payload, IsErr: disc == 1}
	case *types.Variant:
		return value.Variant{Case: t.CaseName(disc), Value: payload}
	}
	return nil
}

func flagsValue(t *types.Flags, words []uint32) value.Flags {
	out := make(value.Flags)
	for i, label := range t.Labels() {
		if words[i/32]&(1<<(i%32)) != 0 {
			out[label] = true
		}
	}
	return out
}

func readPair(mem Memory, addr uint32) (uint32, uint32, error) {
	a, err := mem.ReadU32(addr)
	if err != nil {
		return 0, 0, err
	}
	b, err := mem.ReadU32(addr + 4)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func readScalar(mem Memory, size, addr uint32) (uint64, error) {
	switch size {
	case 1:
		v, err := mem.ReadU8(addr)
		return uint64(v), err
	case 2:
		v, err := mem.ReadU16(addr)
		return uint64(v), err
	case 4:
		v, err := mem.ReadU32(addr)
		return uint64(v), err
	case 8:
		return mem.ReadU64(addr)
	}
	return 0, nil
}
