package utils

import "strings"

// NormalizeInstallment reduces an installment identifier to its bare digit
// form so "01", " 1 " and "1/3"-style values compare equal. Every component
// that touches installments must compare through this function; ad hoc string
// comparison is what produced the historical "01" != "1" mismatches.
//
// Rules: keep digits only, then drop leading zeros. "00" and "0" both become
// "0". A value with no digits at all normalizes to "".
func NormalizeInstallment(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// SameInstallment reports whether two raw installment values are equal under
// normalization.
func SameInstallment(a, b string) bool {
	return NormalizeInstallment(a) == NormalizeInstallment(b)
}
