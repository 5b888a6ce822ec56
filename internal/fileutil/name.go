package fileutil

import "regexp"

// MaxSafeNameLength is the maximum length of a filesystem-safe name.
const MaxSafeNameLength = 100

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// SafeName converts the string into a name safe to use as a single path
// component: every character outside [a-zA-Z0-9_-] becomes an underscore
// and the result is truncated to MaxSafeNameLength.
func SafeName(name string) string {
	safe := unsafeNameChars.ReplaceAllString(name, "_")
	if len(safe) > MaxSafeNameLength {
		safe = safe[:MaxSafeNameLength]
	}
	return safe
}
