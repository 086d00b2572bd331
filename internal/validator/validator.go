package validator

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// New creates a new validator instance with custom validations registered.
// This ensures consistent validation across the application and tests.
func New() *validator.Validate {
	v := validator.New()

	// Register custom "notblank" validator - rejects whitespace-only strings
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true // Not a string, let other validators handle it
		}
		return strings.TrimSpace(str) != ""
	})

	// Register custom "fullname" validator - the student name captured at
	// enrollment time: 2..100 characters, letters plus spaces, hyphens
	// and apostrophes only.
	_ = v.RegisterValidation("fullname", func(fl validator.FieldLevel) bool {
		str, ok := fl.Field().Interface().(string)
		if !ok {
			return true
		}
		return IsFullName(str)
	})

	return v
}

// IsFullName reports whether s is an acceptable student full name. The
// service layer re-checks registration input with the same rule, so the
// rule lives here.
func IsFullName(s string) bool {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 2 || len(trimmed) > 100 {
		return false
	}
	hasLetter := false
	for _, r := range trimmed {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case r == ' ' || r == '-' || r == '\'':
		default:
			return false
		}
	}
	return hasLetter
}
