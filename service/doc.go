// Package service turns the raw exports of a guest into a typed API.
//
//	svc, err := service.Bind(iface, exports)
//	sum, err := svc.Call(ctx, "add", uint32(1), uint32(2))
//
// Guest resources returned as own handles are tracked in Service.Guests and
// wrapped by style: ModuleStyle returns a Handle to pass back to Call and
// Drop, ClassStyle returns an *Object with its own Call and Drop. Dropping
// calls the guest's [resource-drop]R export exactly once.
//
// Resources with a table in the registry given to WithHostResources are host
// resources: own arguments are allocated there and borrow arguments are lent
// for the duration of the call.
package service
