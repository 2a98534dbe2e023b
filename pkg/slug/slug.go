// Package slug derives URL-safe identifiers from human-readable names.
// Accented letters are folded to ASCII through Unicode NFKD decomposition;
// any remaining run of characters outside [a-z0-9] becomes a single dash.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLength is the longest slug Make returns, matching the organizations.slug column.
const MaxLength = 255

// Make returns the slug of s, e.g. "Ministère de l'Écologie" becomes
// "ministere-de-l-ecologie". It returns "" when s has no ASCII letters or digits
// after folding.
func Make(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
		if b.Len() >= MaxLength {
			break
		}
	}

	out := b.String()
	if len(out) > MaxLength {
		out = out[:MaxLength]
	}
	return strings.TrimRight(out, "-")
}

// Valid reports whether s is already in slug form.
func Valid(s string) bool {
	return s != "" && Make(s) == s
}
