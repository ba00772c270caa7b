package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Capitalize upper-cases the first letter of s and leaves the rest untouched
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// ContainsFold reports whether substr is within s, ignoring case
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// MatchAllowedAmount parses value as a decimal and returns the allowed entry
// it equals, so "2000.00" and "2000" both map to "2000".
func MatchAllowedAmount(value string, allowed []string) (string, bool) {
	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return "", false
	}
	for _, candidate := range allowed {
		want, err := decimal.NewFromString(candidate)
		if err != nil {
			continue
		}
		if amount.Equal(want) {
			return candidate, true
		}
	}
	return "", false
}
