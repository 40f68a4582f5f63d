// Package normalize turns the free-form strings found on listing pages into
// canonical values: dates, regions and amounts.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips combining marks, so "Thiès" and "THIES" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// collapseSpaces trims s and reduces every whitespace run to a single space.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
