package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"lodgic/pkg/clock"
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

type ReservationValidator struct {
	validate *validator.Validate
	clock    clock.Clock
	logger   *logger.Logger
}

func NewReservationValidator(c clock.Clock, log *logger.Logger) *ReservationValidator {
	v := validator.New()

	if err := v.RegisterValidation("dateonly", validateDateOnly); err != nil {
		log.Fatal("Failed to register 'dateonly' validator", "error", err)
	}

	log.Info("Reservation validator initialized successfully")

	return &ReservationValidator{
		validate: v,
		clock:    c,
		logger:   log,
	}
}

// validateDateOnly accepts only timestamps already normalized to UTC midnight.
func validateDateOnly(fl validator.FieldLevel) bool {
	t, ok := fl.Field().Interface().(time.Time)
	if !ok {
		return false
	}
	return t.Equal(model.NormalizeDate(t))
}

func (v *ReservationValidator) Validate(reservation *model.Reservation) error {
	if err := v.validate.Struct(reservation); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if !reservation.CheckOut.After(reservation.CheckIn) {
		return ValidationErrors{
			ValidationError{
				Field:   "CheckOut",
				Message: "check_out must be after check_in",
			},
		}
	}

	today := clock.Today(v.clock)
	if reservation.CheckIn.Before(today) {
		return ValidationErrors{
			ValidationError{
				Field:   "CheckIn",
				Message: "check_in cannot be in the past",
			},
		}
	}

	return nil
}

func (v *ReservationValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
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
		case "uuid4":
			message = fmt.Sprintf("%s must be a valid UUID", err.Field())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		case "dateonly":
			message = fmt.Sprintf("%s must be a date at UTC midnight", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
