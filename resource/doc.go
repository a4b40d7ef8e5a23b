// Package resource implements the handle tables behind Component Model
// resources.
//
// A Table maps 32-bit handles to host values for one resource type within
// one instance:
//
//	files := resource.NewTable("file", resource.WithDestructor(func(v any) {
//	    v.(*os.File).Close()
//	}))
//
//	h, _ := files.Allocate(f)   // own<file> handed to the guest
//	v, _ := files.Resolve(h)    // guest passed the handle back
//	_ = files.Drop(h)           // [resource-drop]file, destructor runs once
//
// Handles carry a generation, so a dropped handle stays invalid even after
// its slot is reused. Resolving or dropping it fails with an error matching
// errors.ErrBadHandle.
//
// # Borrows
//
// Borrow and Release count call-scoped uses of an owned entry; Lend and
// EndLend issue separate borrow handles to a guest that die with the call.
// An entry with outstanding borrows cannot be dropped. A Scope releases every
// borrow and lend of one call at once:
//
//	var scope resource.Scope
//	defer scope.Close()
//	lh, _ := scope.Lend(files, h)
//
// With the Debug option a table remembers ended lends so that a guest
// keeping a borrow past its call gets a precise error.
//
// # Registry
//
// A Registry keeps the tables of one instance by resource name. Closing it
// destroys every live entry.
package resource
