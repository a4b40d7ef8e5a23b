package engine

import "strings"

var kebabReplacer = strings.NewReplacer("[", "", "]", "-", ".", "-")

// witToKebabName converts a WIT-style name to the flat kebab form some
// toolchains export, e.g. "[method]descriptor.is-same-object" becomes
// "method-descriptor-is-same-object". Leading and trailing dashes are
// trimmed.
func witToKebabName(wit string) string {
	return strings.Trim(kebabReplacer.Replace(wit), "-")
}
