package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Custom binding tags. Empty values pass; combine with "required" when needed.
var customTags = map[string]func(string) bool{
	"cpf":      IsValidCPF,
	"phone_br": IsValidPhone,
	"cep":      IsValidCEP,
	"uf":       IsValidUF,
	"cnpj":     IsValidCNPJ,
}

// RegisterGinValidators installs the custom tags on gin's validator engine
// and makes field errors report JSON names.
func RegisterGinValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected gin validator engine %T", binding.Validator.Engine())
	}
	return Register(v)
}

// Register installs the custom tags on v
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(jsonFieldName)
	for tag, fn := range customTags {
		check := fn
		err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			s, ok := fieldString(fl.Field())
			if !ok {
				return false
			}
			if s == "" {
				return true
			}
			return check(s)
		})
		if err != nil {
			return fmt.Errorf("register %s validator: %w", tag, err)
		}
	}
	return nil
}

func fieldString(v reflect.Value) (string, bool) {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return "", true
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.String {
		return "", false
	}
	return v.String(), true
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// FieldErrors converts validator errors into a JSON field → message map.
// It returns nil when err is not a validator.ValidationErrors.
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "cpf":
		return "must be a valid CPF"
	case "phone_br":
		return "must be a valid phone number"
	case "cep":
		return "must be a valid CEP"
	case "uf":
		return "must be a valid UF"
	case "cnpj":
		return "must be a valid CNPJ"
	}
	return "is invalid"
}
