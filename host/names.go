package host

import (
	"strings"

	"github.com/wippyai/wasm-canon/types"
)

// handlerKey returns the kebab-case key a Go method name is matched against
// in order to implement fn:
//
//	get-random              GetRandom
//	get-http-url            GetHTTPURL
//	[constructor]counter    NewCounter
//	[method]counter.inc     CounterInc
//	[static]counter.make    CounterMake
func handlerKey(fn types.FuncName) string {
	switch fn.Kind {
	case types.Constructor:
		return "new-" + fn.Resource
	case types.Method, types.Static:
		return fn.Resource + "-" + fn.Name
	}
	return fn.Name
}

// foldKey reduces a kebab-case key or a Go method name to lower case without
// dashes. Acronym runs carry no word boundaries, so GetHTTPURL and
// get-http-url fold to the same key.
func foldKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "-", ""))
}
