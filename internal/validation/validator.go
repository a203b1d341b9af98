// Package validation validates request structs with go-playground/validator
// and turns the first failure into a user-facing InvalidInput error.
//
// Field names in messages come from the `label` struct tag:
//
//	type passwordChange struct {
//	    Current string `validate:"required" label:"current password"`
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"

	"hubgate/internal/domain"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator returns the shared validator. It is safe for concurrent use.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			if label := f.Tag.Get("label"); label != "" {
				return label
			}
			return f.Name
		})
	})
	return validate
}

// Struct validates s. It returns nil or a *domain.Error of kind InvalidInput
// describing the first failing field.
func Struct(s any) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.WrapError(domain.KindInvalidInput, "The request is not valid.", err)
	}
	return domain.WrapError(domain.KindInvalidInput, translate(fieldErrs[0]), err)
}

var messages = map[string]string{
	"required": "Enter the %s.",
	"eqfield":  "The %s does not match.",
	"url":      "The %s must be a valid URL.",
}

func translate(fe validator.FieldError) string {
	field := fe.Field()
	if tmpl, ok := messages[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field)
	}

	switch fe.Tag() {
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("The %s must be at least %s characters.", field, fe.Param())
		}
		return fmt.Sprintf("The %s must be at least %s.", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("The %s must be at most %s characters.", field, fe.Param())
		}
		return fmt.Sprintf("The %s must be at most %s.", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("The %s must be one of: %s.", field, fe.Param())
	}
	return fmt.Sprintf("The %s is not valid.", field)
}
