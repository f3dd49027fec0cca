package validator

import (
	"errors"
	"fmt"
	"strings"

	"lodgic/pkg/logger"
	"lodgic/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type UnitValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewUnitValidator(log *logger.Logger) *UnitValidator {
	return &UnitValidator{
		validate: validator.New(),
		logger:   log,
	}
}

func (v *UnitValidator) Validate(unit *model.Unit) error {
	if err := v.validate.Struct(unit); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}

	// MaxStayDays of zero means unlimited and is always consistent.
	if unit.MaxStayDays > 0 && unit.MinStayDays > unit.MaxStayDays {
		return ValidationErrors{
			ValidationError{
				Field:   "MinStayDays",
				Message: fmt.Sprintf("min_stay_days (%d) must not exceed max_stay_days (%d)", unit.MinStayDays, unit.MaxStayDays),
			},
		}
	}

	return nil
}

func (v *UnitValidator) ValidateUpdate(update *model.UnitUpdate) error {
	if err := v.validate.Struct(update); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
