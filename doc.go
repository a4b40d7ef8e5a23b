// Package wasmcanon implements the Canonical ABI of the WebAssembly Component
// Model in Go.
//
// The library converts typed values between a guest's linear memory (or its
// flat core values) and host-side Go values, and binds host implementations
// and guest exports into typed call surfaces across that boundary.
//
// # Architecture Overview
//
//	wasmcanon/        Root package with Memory, Allocator, Caller and RawFunc
//	├── types/        Type descriptors, flattening, interface model
//	├── value/        Host-side value representations
//	├── transcoder/   Lifting and lowering engine, call convention
//	├── resource/     Generational resource handle tables
//	├── host/         Host binder: Go implementation -> raw imports
//	├── service/      Service binder: raw guest exports -> typed API
//	├── engine/       wazero transport adapter
//	├── iface/        YAML interface description loader
//	├── errors/       Structured error types and trap taxonomy
//	└── cmd/cabi/     Signature, layout and lowering inspection tool
//
// # Quick Start
//
// Describe an interface, bind a host implementation and call it back through
// the service binder:
//
//	add := types.Must(types.NewFunc("add", types.U32,
//	    types.P("a", types.U32), types.P("b", types.U32)))
//	iface := types.NewInterface("calculator").WithFuncs(add)
//
//	imports, err := host.Bind(iface, &Calculator{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := engine.HostModule(ctx, r, "calculator", imports); err != nil {
//	    log.Fatal(err)
//	}
//
//	guest, _ := r.Instantiate(ctx, wasmBytes)
//	svc, err := service.Bind(iface, engine.Exports(ctx, guest))
//	sum, err := svc.Call(ctx, "add", uint32(1), uint32(2))
//
// # Flattening
//
// Parameters flatten positionally to at most 16 core slots; beyond that they
// are passed through memory. Results flattening to a single slot are returned
// directly, anything wider is written through a trailing return pointer.
//
// # Thread Safety
//
// Descriptors are immutable and safe for concurrent use. A binding, its
// memory and its resource tables belong to one instance and must be used by
// one goroutine at a time.
package wasmcanon
