package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	// validator.New never rejects a well-formed registration
	_ = v.RegisterValidation("flexdate", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

// ValidateStruct checks s against its `validate` tags and returns a
// ValidationError keyed by JSON field name.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return CreateBadRequestError(err.Error())
	}

	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return CreateValidationError(fields)
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "len":
		return fmt.Sprintf("%s must have %s characters", name, fe.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s characters", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be under %s characters", name, fe.Param())
	case "numeric":
		return name + " must contain digits only"
	case "email":
		return name + " must be a valid email"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", name, fe.Param())
	case "flexdate":
		return name + " must be a date (YYYY-MM-DD or RFC3339)"
	}
	return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
}
