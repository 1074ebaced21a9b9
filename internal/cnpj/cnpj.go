// Package cnpj normalizes, validates and formats Brazilian company
// identifiers (CNPJ) and company web domains.
package cnpj

import (
	"net/url"
	"strings"
)

// Length is the number of digits in a normalized CNPJ.
const Length = 14

// Normalize strips every non-digit character. Empty input yields "".
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValid reports whether s normalizes to 14 digits that are not all the
// same digit. Check digits are not verified so that small data-entry errors
// still resolve to a company; use IsValidStrict for the official check.
func IsValid(s string) bool {
	n := Normalize(s)
	if len(n) != Length {
		return false
	}
	return !repeated(n)
}

// IsValidStrict is IsValid plus modulo-11 check-digit verification.
func IsValidStrict(s string) bool {
	if !IsValid(s) {
		return false
	}
	n := Normalize(s)
	d1 := checkDigit(n[:12], []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
	d2 := checkDigit(n[:12]+string(rune('0'+d1)), []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
	return int(n[12]-'0') == d1 && int(n[13]-'0') == d2
}

// Validator applies either lenient or strict validation.
type Validator struct {
	Strict bool
}

// Valid validates s according to the configured mode.
func (v Validator) Valid(s string) bool {
	if v.Strict {
		return IsValidStrict(s)
	}
	return IsValid(s)
}

// Format renders s as NN.NNN.NNN/NNNN-NN. Input that does not normalize to
// 14 digits is returned unchanged.
func Format(s string) string {
	n := Normalize(s)
	if len(n) != Length {
		return s
	}
	return n[0:2] + "." + n[2:5] + "." + n[5:8] + "/" + n[8:12] + "-" + n[12:14]
}

// NormalizeDomain reduces a URL or bare host to its hostname without a
// leading "www.".
func NormalizeDomain(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	withScheme := s
	if !strings.Contains(s, "://") {
		withScheme = "https://" + s
	}
	u, err := url.Parse(withScheme)
	if err != nil || u.Hostname() == "" {
		return fallbackDomain(s)
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func fallbackDomain(s string) string {
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimPrefix(s, "www.")
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}
	return s
}

func repeated(n string) bool {
	for i := 1; i < len(n); i++ {
		if n[i] != n[0] {
			return false
		}
	}
	return true
}

func checkDigit(digits string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}
