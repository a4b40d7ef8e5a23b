// Package engine connects the binders to wazero.
//
// # Host imports
//
// HostModule registers the functions of a host.Imports as a wazero host
// module. Each call sees the calling module's memory and its cabi_realloc
// export:
//
//	imports, _ := host.Bind(iface, impl)
//	if _, err := engine.HostModule(ctx, r, "test:calc/ops", imports); err != nil {
//	    log.Fatal(err)
//	}
//
// A failing host function aborts the guest call; the error is returned to
// the code that entered the guest.
//
// # Guest exports
//
// Exports adapts an instantiated module for service.Bind:
//
//	mod, _ := r.Instantiate(ctx, wasmBytes)
//	svc, _ := service.Bind(iface, engine.Exports(ctx, mod))
//
// Export names are looked up as written and then in their flat kebab form
// ("[method]file.read" as "method-file-read").
//
// # Thread Safety
//
// An adapter belongs to one module instance and must be used by one
// goroutine at a time, like the instance itself.
package engine
