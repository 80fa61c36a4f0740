package service

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"smart-contact-manager/internal/model"
	"smart-contact-manager/pkg/apierror"
)

const maxPasswordBytes = 72

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names so clients see "email", not "Email".
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	// bcrypt rejects inputs over 72 bytes; "max" counts runes.
	_ = v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
	return v
}

// validateStruct returns a BAD_REQUEST APIError naming the first invalid field.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		apiErr := apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "invalid request body", http.StatusBadRequest)
		apiErr.Details = fmt.Sprintf("%s failed the %q rule", first.Field(), first.Tag())
		return apiErr
	}

	return apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "invalid request body", http.StatusBadRequest)
}
