package validation

import "strings"

var (
	cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// ValidateCNPJ cleans s to its digits and checks the two CNPJ check digits
func ValidateCNPJ(s string) (string, bool) {
	clean := OnlyDigits(s)
	if len(clean) != 14 || strings.Count(clean, clean[:1]) == 14 {
		return clean, false
	}

	digits := make([]int, 14)
	for i := range clean {
		digits[i] = int(clean[i] - '0')
	}
	if cnpjCheckDigit(digits[:12], cnpjWeights1) != digits[12] {
		return clean, false
	}
	if cnpjCheckDigit(digits[:13], cnpjWeights2) != digits[13] {
		return clean, false
	}
	return clean, true
}

func cnpjCheckDigit(digits, weights []int) int {
	sum := 0
	for i, d := range digits {
		sum += d * weights[i]
	}
	if r := sum % 11; r >= 2 {
		return 11 - r
	}
	return 0
}

// IsValidCNPJ reports whether s is a valid CNPJ, formatted or not
func IsValidCNPJ(s string) bool {
	_, ok := ValidateCNPJ(s)
	return ok
}

// FormatCNPJ renders s as XX.XXX.XXX/XXXX-XX
func FormatCNPJ(s string) string {
	d := OnlyDigits(s)
	if len(d) != 14 {
		return s
	}
	return d[0:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:14]
}
