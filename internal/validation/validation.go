// Package validation checks user input and turns violations into per-field messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"koydenal/internal/models"

	"github.com/go-playground/validator/v10"
)

var trMobileRegex = regexp.MustCompile(`^5\d{9}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("trmobile", func(fl validator.FieldLevel) bool {
		return IsTurkishMobile(fl.Field().String())
	})
	return v
}

// NormalizePhone strips separators and the +90 / 0 prefix, leaving the ten-digit subscriber number.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case strings.HasPrefix(digits, "90") && len(digits) == 12:
		digits = digits[2:]
	case strings.HasPrefix(digits, "0") && len(digits) == 11:
		digits = digits[1:]
	}
	return digits
}

// IsTurkishMobile reports whether phone is a Turkish mobile number in any common notation.
func IsTurkishMobile(phone string) bool {
	return trMobileRegex.MatchString(NormalizePhone(phone))
}

// Struct validates v by its `validate` tags. Violations come back as a
// VALIDATION_ERROR AppError whose Fields map is keyed by JSON field name.
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return models.NewInternalError(err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key := fieldKey(fe)
		if _, seen := fields[key]; !seen {
			fields[key] = message(fe)
		}
	}
	return models.NewFieldValidationError(fields)
}

func fieldKey(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "Bu alan zorunludur"
	case "min":
		if isString {
			return fmt.Sprintf("En az %s karakter olmalıdır", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("En az %s öğe gereklidir", fe.Param())
		}
		return fmt.Sprintf("En az %s olmalıdır", fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("En fazla %s karakter olabilir", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("En fazla %s öğe eklenebilir", fe.Param())
		}
		return fmt.Sprintf("En fazla %s olabilir", fe.Param())
	case "gte":
		return fmt.Sprintf("%s veya daha büyük olmalıdır", fe.Param())
	case "gt":
		return fmt.Sprintf("%s değerinden büyük olmalıdır", fe.Param())
	case "email":
		return "Geçerli bir e-posta adresi girin"
	case "trmobile":
		return "Geçerli bir cep telefonu numarası girin (5xx xxx xx xx)"
	case "oneof":
		return fmt.Sprintf("Şunlardan biri olmalıdır: %s", fe.Param())
	case "url":
		return "Geçerli bir adres girin"
	}
	return "Geçersiz değer"
}

// ValidatePassword enforces the account password policy.
func ValidatePassword(password string) error {
	if len([]rune(password)) < 8 {
		return models.NewFieldValidationError(map[string]string{"password": "Şifre en az 8 karakter olmalıdır"})
	}
	if len(password) > 72 {
		return models.NewFieldValidationError(map[string]string{"password": "Şifre en fazla 72 bayt olabilir"})
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return models.NewFieldValidationError(map[string]string{"password": "Şifre harf ve rakam içermelidir"})
	}
	return nil
}
