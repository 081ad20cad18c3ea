package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report json names so messages match the request body.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// fieldError describes the first invalid field of a request body.
type fieldError struct {
	field string
	tag   string
	param string
}

func (e *fieldError) Error() string {
	switch e.tag {
	case "required":
		return fmt.Sprintf("%s is required", e.field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", e.field, e.param)
	default:
		return fmt.Sprintf("%s is invalid", e.field)
	}
}

// validateStruct runs struct tag validation and returns the first failing
// field as a *fieldError.
func validateStruct(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &fieldError{field: fe.Field(), tag: fe.Tag(), param: fe.Param()}
	}
	return fmt.Errorf("validate request: %w", err)
}
