// Package phone canonicalizes phone numbers for comparison and
// storage. No locale awareness: digits only, prefixed with "+".
package phone

import "strings"

// Normalize strips every non-digit character and prefixes the rest
// with "+". Input with no digits at all yields "", which callers
// treat as invalid.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "+" + b.String()
}
