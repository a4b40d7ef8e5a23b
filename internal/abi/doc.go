// Package abi provides the arithmetic underneath the Canonical ABI: checked
// offset math, alignment, discriminant widths, character validation, NaN
// canonicalisation and coercion of loosely typed Go numbers.
//
// Nothing here knows about type descriptors; the types and transcoder
// packages build on it.
package abi
