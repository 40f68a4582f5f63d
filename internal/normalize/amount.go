package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	amountExpr   = regexp.MustCompile(`\d[\d\s\x{00a0}\x{202f}.,]*`)
	currencyExpr = regexp.MustCompile(`(?i)^[\s\x{00a0}\x{202f}]*(f\.?\s?cfa|cfa|xof|francs?\b)`)
)

// Amount extracts the amount in raw ("12 500 000 FCFA", "1.250.000,50").
// The number followed by a currency marker wins, otherwise the one with the
// most digits, so lot numbers and dates are not taken for the amount.
// Groups of exactly three digits after a lone separator are read as thousands.
func Amount(raw string) (float64, bool) {
	match := pickAmount(raw)
	if match == "" {
		return 0, false
	}
	digits := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, match)
	digits = strings.TrimRight(digits, ".,")

	lastDot := strings.LastIndex(digits, ".")
	lastComma := strings.LastIndex(digits, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		decimal := lastDot
		other := ","
		if lastComma > lastDot {
			decimal, other = lastComma, "."
		}
		digits = strings.ReplaceAll(digits[:decimal], other, "") + "." + digits[decimal+1:]
	case lastComma >= 0:
		digits = resolveSeparator(digits, ",")
	case lastDot >= 0:
		digits = resolveSeparator(digits, ".")
	}

	value, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func resolveSeparator(digits, sep string) string {
	parts := strings.Split(digits, sep)
	last := parts[len(parts)-1]
	if len(parts) > 2 || len(last) == 3 {
		return strings.Join(parts, "")
	}
	return strings.Join(parts, ".")
}

func pickAmount(raw string) string {
	best, bestDigits := "", 0
	for _, loc := range amountExpr.FindAllStringIndex(raw, -1) {
		match := raw[loc[0]:loc[1]]
		if currencyExpr.MatchString(raw[loc[1]:]) {
			return match
		}
		if n := countDigits(match); n > bestDigits {
			best, bestDigits = match, n
		}
	}
	return best
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
