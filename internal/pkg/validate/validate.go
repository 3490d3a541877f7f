// Package validate adapts ozzo-validation results to the model error types.
package validate

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/FACorreiaa/medical-record/internal/app/models"
)

// Struct runs validation.ValidateStruct and converts per-field failures into
// a *models.ValidationError keyed by json field name.
func Struct(structPtr interface{}, fields ...*validation.FieldRules) error {
	return FieldErrors(validation.ValidateStruct(structPtr, fields...))
}

// FieldErrors converts validation.Errors. Any other error is returned as is.
func FieldErrors(err error) error {
	if err == nil {
		return nil
	}

	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err
	}

	fields := make(map[string]string, len(errs))
	for field, fieldErr := range errs {
		if fieldErr != nil {
			fields[field] = fieldErr.Error()
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return models.NewValidationError(fields)
}
