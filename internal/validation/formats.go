package validation

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ttacon/libphonenumber"
)

// PhoneRegion is the default region for numbers without a country code
const PhoneRegion = "BR"

var validate = validator.New()

var ufs = map[string]bool{
	"AC": true, "AL": true, "AP": true, "AM": true, "BA": true, "CE": true,
	"DF": true, "ES": true, "GO": true, "MA": true, "MT": true, "MS": true,
	"MG": true, "PA": true, "PB": true, "PR": true, "PE": true, "PI": true,
	"RJ": true, "RN": true, "RS": true, "RO": true, "RR": true, "SC": true,
	"SP": true, "SE": true, "TO": true,
}

// IsValidEmail reports whether email is a syntactically valid address
func IsValidEmail(email string) bool {
	return validate.Var(strings.TrimSpace(email), "required,email") == nil
}

// IsValidPhone reports whether phone is a valid Brazilian landline or mobile
// number. A leading +<country> is honoured.
func IsValidPhone(phone string) bool {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return false
	}
	p, err := libphonenumber.Parse(phone, PhoneRegion)
	if err != nil {
		return false
	}
	return libphonenumber.IsValidNumber(p)
}

// NormalizeCEP renders a valid postal code as "NNNNN-NNN". Anything else is
// returned trimmed for the validator to reject.
func NormalizeCEP(cep string) string {
	if !IsValidCEP(cep) {
		return strings.TrimSpace(cep)
	}
	d := OnlyDigits(cep)
	return d[:5] + "-" + d[5:]
}

// IsValidCEP reports whether cep has exactly 8 digits once punctuation is removed
func IsValidCEP(cep string) bool {
	d := OnlyDigits(cep)
	if len(d) != 8 {
		return false
	}
	// only digits and the usual separators are accepted
	for _, r := range cep {
		if !(r >= '0' && r <= '9') && r != '-' && r != '.' && r != ' ' {
			return false
		}
	}
	return true
}

// IsValidUF reports whether uf is one of the 27 federative unit codes
func IsValidUF(uf string) bool {
	return ufs[strings.ToUpper(strings.TrimSpace(uf))]
}
