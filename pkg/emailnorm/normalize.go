// Package emailnorm canonicalises email addresses for comparison.
//
// Raw values entered by hand or pasted from spreadsheets routinely carry
// stray whitespace, control characters and mixed casing. Every identity
// comparison in the roster core goes through Normalize; raw values are
// kept only for storage and display.
package emailnorm

import "strings"

// Normalize strips characters outside printable ASCII, removes all
// whitespace and lower-cases the remainder. It is pure and never fails:
// a malformed input simply yields a string that matches nothing real.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r <= ' ' || r > '~' {
			continue
		}
		if 'A' <= r && r <= 'Z' {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
