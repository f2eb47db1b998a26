// Package validation holds the entity validators: CPF checksum, email,
// Brazilian phone numbers, CEP and UF codes.
package validation

import (
	"strings"
)

// OnlyDigits strips every non-digit character from s
func OnlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateCPF cleans s to its digits and checks the two CPF check digits.
// Sequences of one repeated digit are rejected even though they checksum.
func ValidateCPF(s string) (string, bool) {
	clean := OnlyDigits(s)
	if len(clean) != 11 {
		return clean, false
	}
	if strings.Count(clean, clean[:1]) == 11 {
		return clean, false
	}

	digits := make([]int, 11)
	for i := range clean {
		digits[i] = int(clean[i] - '0')
	}

	if cpfCheckDigit(digits[:9]) != digits[9] {
		return clean, false
	}
	if cpfCheckDigit(digits[:10]) != digits[10] {
		return clean, false
	}
	return clean, true
}

// cpfCheckDigit weights the digits from len+1 down to 2 and maps the
// mod-11 result onto 0..9 (10 and 11 become 0).
func cpfCheckDigit(digits []int) int {
	sum := 0
	weight := len(digits) + 1
	for _, d := range digits {
		sum += d * weight
		weight--
	}
	digit := 11 - sum%11
	if digit >= 10 {
		return 0
	}
	return digit
}

// IsValidCPF reports whether s is a valid CPF, formatted or not
func IsValidCPF(s string) bool {
	_, ok := ValidateCPF(s)
	return ok
}

// FormatCPF renders s as XXX.XXX.XXX-XX. Inputs that do not have exactly
// 11 digits are returned unchanged.
func FormatCPF(s string) string {
	d := OnlyDigits(s)
	if len(d) != 11 {
		return s
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}
