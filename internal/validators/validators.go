// Package validators holds the syntactic checks and display formatting used
// on inbound lead contact details. Nothing here performs network lookups.
package validators

import (
	"regexp"
	"strings"
	"unicode"
)

const uaeCountryCode = "971"

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
)

// IsValidEmail reports whether s looks like local@domain.tld.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// IsValidPhone reports whether s, with whitespace removed, is an E.164-like
// number: optional +, 2-15 digits, no leading zero.
func IsValidPhone(s string) bool {
	return phonePattern.MatchString(stripSpace(s))
}

// FormatPhoneDisplay renders UAE numbers as "+971 XX XXX XXXX". Any other
// input is returned unchanged.
func FormatPhoneDisplay(s string) string {
	digits := digitsOnly(s)
	if !strings.HasPrefix(digits, uaeCountryCode) {
		return s
	}
	return "+" + uaeCountryCode + " " + slice(digits, 3, 5) + " " + slice(digits, 5, 8) + " " + slice(digits, 8, len(digits))
}

// NormalizePhone strips whitespace so the stored value matches what
// IsValidPhone accepted.
func NormalizePhone(s string) string {
	return stripSpace(s)
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func slice(s string, from, to int) string {
	if from >= len(s) {
		return ""
	}
	if to > len(s) {
		to = len(s)
	}
	return s[from:to]
}
