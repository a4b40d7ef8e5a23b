package transcoder

import (
	"strconv"

	"github.com/wippyai/wasm-canon/errors"
	"github.com/wippyai/wasm-canon/internal/abi"
	"github.com/wippyai/wasm-canon/types"
	"github.com/wippyai/wasm-canon/value"
)

// Call is a function type with its flattened signature, prepared once and
// reused for every call.
type Call struct {
	Func *types.FuncType
	Sig  types.Signature

	params *types.Tuple
}

func PrepareCall(f *types.FuncType) *Call {
	c := &Call{Func: f, Sig: f.Flatten()}
	if c.Sig.ParamsIndirect {
		c.params = f.ParamTuple()
	}
	return c
}

// LowerArgs lowers args for a call into the guest. Parameters that do not fit
// in MaxFlatParams slots are stored in freshly allocated memory and passed by
// pointer. When the result is indirect a return area is allocated and its
// pointer appended; it is returned as retptr, zero otherwise.
func (e *Encoder) LowerArgs(env *Env, c *Call, args []any) (flat []uint64, retptr uint32, err error) {
	params := c.Func.Params
	if len(args) != len(params) {
		return nil, 0, errors.New(errors.PhaseLower, errors.KindInvalidInput).
			Detail("%s: expected %d arguments, got %d", c.Func.Name, len(params), len(args)).
			Build()
	}

	err = e.tracked(env, func() error {
		flat = make([]uint64, 0, len(c.Sig.Params))
		if c.Sig.ParamsIndirect {
			ptr, err := e.alloc(env, c.params.Size(), c.params.Align())
			if err != nil {
				return err
			}
			if err := e.store(env, c.params, ptr, value.Tuple(args)); err != nil {
				return paramPath(err, params)
			}
			flat = append(flat, uint64(ptr))
		} else {
			for i, p := range params {
				var err error
				if flat, err = e.lowerFlat(env, p.Type, args[i], flat); err != nil {
					return errors.WithPath(err, p.Name)
				}
			}
		}

		if c.Sig.ResultIndirect {
			res := c.Func.Result
			ptr, err := e.alloc(env, res.Size(), res.Align())
			if err != nil {
				return err
			}
			retptr = ptr
			flat = append(flat, uint64(ptr))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return flat, retptr, nil
}

// LiftArgs lifts the flat parameters of a call coming from the guest. The
// return pointer of an indirect result is returned as retptr.
func (d *Decoder) LiftArgs(env *Env, c *Call, flat []uint64) (args []any, retptr uint32, err error) {
	if len(flat) != len(c.Sig.Params) {
		return nil, 0, errors.New(errors.PhaseLift, errors.KindInvalidData).
			Detail("%s: expected %d core params, got %d", c.Func.Name, len(c.Sig.Params), len(flat)).
			Build()
	}
	if c.Sig.ResultIndirect {
		retptr = uint32(flat[len(flat)-1])
		flat = flat[:len(flat)-1]
		res := c.Func.Result
		if err := validArea(env, retptr, res); err != nil {
			return nil, 0, err
		}
	}

	params := c.Func.Params
	if c.Sig.ParamsIndirect {
		v, err := d.Load(env, c.params, uint32(flat[0]))
		if err != nil {
			return nil, 0, paramPath(err, params)
		}
		return []any(v.(value.Tuple)), retptr, nil
	}

	args = make([]any, len(params))
	cur := &cursor{flat: flat}
	for i, p := range params {
		if args[i], err = d.liftFlat(env, p.Type, cur); err != nil {
			return nil, 0, errors.WithPath(err, p.Name)
		}
	}
	return args, retptr, nil
}

// LowerResult lowers the result of a call coming from the guest: as flat
// results when direct, otherwise stored at retptr with no flat results.
func (e *Encoder) LowerResult(env *Env, c *Call, v any, retptr uint32) ([]uint64, error) {
	res := c.Func.Result
	if res == nil {
		return []uint64{}, nil
	}
	if c.Sig.ResultIndirect {
		if err := e.Store(env, res, retptr, v); err != nil {
			return nil, errors.WithPath(err, "result")
		}
		return []uint64{}, nil
	}
	out, err := e.LowerFlat(env, res, v, make([]uint64, 0, len(c.Sig.Results)))
	if err != nil {
		return nil, errors.WithPath(err, "result")
	}
	return out, nil
}

// LiftResult lifts the result of a call into the guest. retptr is the return
// area passed by LowerArgs.
func (d *Decoder) LiftResult(env *Env, c *Call, flat []uint64, retptr uint32) (any, error) {
	res := c.Func.Result
	if len(flat) != len(c.Sig.Results) {
		return nil, errors.New(errors.PhaseLift, errors.KindInvalidData).
			Detail("%s: expected %d core results, got %d", c.Func.Name, len(c.Sig.Results), len(flat)).
			Build()
	}
	if res == nil {
		return nil, nil
	}

	var (
		v   any
		err error
	)
	if c.Sig.ResultIndirect {
		v, err = d.Load(env, res, retptr)
	} else {
		v, err = d.LiftFlat(env, res, flat)
	}
	if err != nil {
		return nil, errors.WithPath(err, "result")
	}
	return v, nil
}

func validArea(env *Env, ptr uint32, t types.Type) error {
	if err := checkRange(env, ptr, t.Size()); err != nil {
		return errors.WithPath(err, "retptr")
	}
	if !abi.IsAligned(ptr, t.Align()) {
		return errors.Misaligned(errors.PhaseLift, []string{"retptr"}, ptr, t.Align())
	}
	return nil
}

// paramPath rewrites the positional path segment of a spilled tuple into the
// parameter name.
func paramPath(err error, params []types.Param) error {
	var e *errors.Error
	if !errors.As(err, &e) || len(e.Path) == 0 {
		return err
	}
	for i, p := range params {
		if e.Path[0] == strconv.Itoa(i) {
			e.Path[0] = p.Name
			break
		}
	}
	return err
}
