// Package search implements the in-memory lookup structures and the query
// resolver of the results portal. The index is rebuilt from scratch on every
// data refresh; lookups are pure in-memory reads and never block each other.
package search

import (
	"strings"
	"unicode"
)

// Normalize canonicalizes text for indexing and matching: Arabic diacritics
// (tashkeel) are stripped, alef/hamza variants are unified, teh marbuta maps
// to heh, alef maqsura maps to yeh, and Latin letters are lowercased.
// The same function is applied to indexed names and to incoming queries, so
// matching is insensitive to these variations by construction.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range strings.TrimSpace(s) {
		switch {
		case isTashkeel(r):
			// Dropped entirely
		case r == 'أ' || r == 'إ' || r == 'آ' || r == 'ٱ':
			b.WriteRune('ا')
		case r == 'ة':
			b.WriteRune('ه')
		case r == 'ى':
			b.WriteRune('ي')
		case r == 'ؤ':
			b.WriteRune('و')
		case r == 'ئ':
			b.WriteRune('ي')
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}

	return b.String()
}

// isTashkeel reports whether the rune is an Arabic diacritic mark.
func isTashkeel(r rune) bool {
	return (r >= 0x064B && r <= 0x065F) || r == 0x0670
}

// Tokenize splits normalized text into whitespace-delimited tokens.
func Tokenize(s string) []string {
	return strings.Fields(s)
}

// NormalizeTokens normalizes and tokenizes in one step.
func NormalizeTokens(s string) []string {
	return Tokenize(Normalize(s))
}

// IsNumeric reports whether the query consists solely of ASCII or Arabic-Indic
// digits. Numeric queries route to the seating-number prefix path; everything
// else routes to the name-token path.
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 0x0660 || r > 0x0669) {
			return false
		}
	}
	return true
}

// NormalizeDigits maps Arabic-Indic digits to their ASCII equivalents so
// seating numbers typed either way hit the same prefix index.
func NormalizeDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 0x0660 && r <= 0x0669 {
			b.WriteRune('0' + (r - 0x0660))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
