package transcoder

import "github.com/wippyai/wasm-canon/types"

// ResourceHook translates resource values at the boundary. Lower turns a
// host value into the handle the guest sees; Lift turns a handle received
// from the guest into a host value. t is the own or borrow descriptor.
type ResourceHook interface {
	Lower(t types.Handle, v any) (uint32, error)
	Lift(t types.Handle, handle uint32) (any, error)
}
