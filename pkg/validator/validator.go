package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var validate = newValidate()

func newValidate() *playground.Validate {
	v := playground.New(playground.WithRequiredStructEnabled())

	// report fields by their JSON names so errors match the request body
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(fmt.Sprintf("failed to register notblank validation: %v", err))
	}
	return v
}

// ValidateStruct validates a struct based on its validate tags and returns
// the first violation as a readable error.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs playground.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fieldError(fieldErrs[0])
	}
	return err
}

func fieldError(fe playground.FieldError) error {
	name := fe.Namespace()
	if _, rest, ok := strings.Cut(name, "."); ok {
		name = rest
	}

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", name)
	case "notblank":
		return fmt.Errorf("%s must not be blank", name)
	case "email":
		return fmt.Errorf("%s must be a valid email", name)
	case "oneof":
		return fmt.Errorf("%s must be one of: %s", name, strings.Join(strings.Fields(fe.Param()), ", "))
	case "min":
		return fmt.Errorf("%s must be at least %s%s", name, fe.Param(), unit(fe.Kind()))
	case "max":
		return fmt.Errorf("%s must be at most %s%s", name, fe.Param(), unit(fe.Kind()))
	default:
		return fmt.Errorf("%s failed %s validation", name, fe.Tag())
	}
}

func unit(k reflect.Kind) string {
	switch k {
	case reflect.String:
		return " characters"
	case reflect.Slice, reflect.Map, reflect.Array:
		return " items"
	}
	return ""
}

// SanitizeString sanitizes a string by removing potentially dangerous characters
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")
	// Trim whitespace
	s = strings.TrimSpace(s)
	return s
}

// SanitizeEmail sanitizes an email address
func SanitizeEmail(email string) string {
	email = SanitizeString(email)
	email = strings.ToLower(email)
	return email
}
