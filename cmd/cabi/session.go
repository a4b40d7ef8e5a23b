package main

import (
	"slices"

	wasmcanon "github.com/wippyai/wasm-canon"
	"github.com/wippyai/wasm-canon/internal/linear"
	"github.com/wippyai/wasm-canon/transcoder"
	"github.com/wippyai/wasm-canon/types"
)

type block struct {
	ptr, size, align uint32
}

// session is a scratch guest: a fresh linear memory whose allocations are
// recorded so they can be shown.
type session struct {
	inst   *linear.Instance
	blocks []block
}

func newSession() *session {
	return &session{inst: linear.NewInstance()}
}

func (s *session) Memory() wasmcanon.Memory       { return s.inst.Mem }
func (s *session) Allocator() wasmcanon.Allocator { return s }

func (s *session) Alloc(size, align uint32) (uint32, error) {
	ptr, err := s.inst.Alloc.Alloc(size, align)
	if err == nil {
		s.blocks = append(s.blocks, block{ptr: ptr, size: size, align: align})
	}
	return ptr, err
}

func (s *session) Free(ptr, size, align uint32) {
	s.inst.Alloc.Free(ptr, size, align)
	s.blocks = slices.DeleteFunc(s.blocks, func(b block) bool { return b.ptr == ptr })
}

func (s *session) env() *transcoder.Env {
	return transcoder.EnvFor(s, nil)
}

func (s *session) bytes(b block) []byte {
	return s.inst.Mem.Bytes()[b.ptr : b.ptr+b.size]
}

// lowering is what one value of a type turns into.
type lowering struct {
	flat   []uint64
	addr   uint32
	blocks []block
	mem    *session
	lifted any
}

// lowerValue lowers v flat and into memory, then lifts the memory form
// back.
func lowerValue(t types.Type, v any, opts []transcoder.Option) (*lowering, error) {
	flatSess := newSession()
	flat, err := transcoder.NewEncoder(opts...).LowerFlat(flatSess.env(), t, v, nil)
	if err != nil {
		return nil, err
	}

	s := newSession()
	addr, err := s.Alloc(t.Size(), t.Align())
	if err != nil {
		return nil, err
	}
	if err := transcoder.NewEncoder(opts...).Store(s.env(), t, addr, v); err != nil {
		return nil, err
	}
	lifted, err := transcoder.NewDecoder(opts...).Load(s.env(), t, addr)
	if err != nil {
		return nil, err
	}
	return &lowering{flat: flat, addr: addr, blocks: s.blocks, mem: s, lifted: lifted}, nil
}

// call is a lowered argument list.
type call struct {
	sig    types.Signature
	flat   []uint64
	retptr uint32
	blocks []block
	mem    *session
}

func lowerCall(f *types.FuncType, args []any, opts []transcoder.Option) (*call, error) {
	c := transcoder.PrepareCall(f)
	s := newSession()
	flat, retptr, err := transcoder.NewEncoder(opts...).LowerArgs(s.env(), c, args)
	if err != nil {
		return nil, err
	}
	return &call{sig: c.Sig, flat: flat, retptr: retptr, blocks: s.blocks, mem: s}, nil
}
