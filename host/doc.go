// Package host binds Go implementations of an interface into raw imports a
// guest can call.
//
// Bind checks every handler against its function type once and returns an
// Imports table. Each Import lifts the guest's core arguments, calls the
// handler and lowers its result, writing through the return pointer when the
// result does not fit in one core value.
//
//	type Calculator struct{}
//
//	func (Calculator) Add(a, b uint32) uint32 { return a + b }
//
//	imports, err := host.Bind(iface, Calculator{})
//
// Handlers may take a leading context.Context and return (), (T), (error) or
// (T, error). For a function returning result<T, E> a non-nil error becomes
// err(E): a *ResultError supplies the payload, a string E receives
// err.Error() and a unit E carries nothing. Any other error, and any panic,
// fails the call with an errors.KindHostFailure error.
//
// # Resources
//
// Every resource of the interface gets a table in Imports.Resources and a
// synthesized [resource-drop]R import. Own parameters are taken out of the
// table, borrow parameters are borrowed for the call and own results are
// allocated. With ClassStyle, [method]R.m handlers may be omitted; the call
// is then dispatched to the Go method M of the resolved self value.
package host
