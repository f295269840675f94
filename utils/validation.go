package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/upb/card-control-plane/models"
)

// validate is the shared validator instance
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "budget_category", func(fl validator.FieldLevel) bool {
		return models.BudgetCategory(fl.Field().String()).IsValid()
	})
	mustRegister(v, "budget_period", func(fl validator.FieldLevel) bool {
		return models.BudgetPeriod(fl.Field().String()).IsValid()
	})
	mustRegister(v, "txn_status", func(fl validator.FieldLevel) bool {
		return models.TxnStatus(fl.Field().String()).IsValid()
	})
	mustRegister(v, "card_status", func(fl validator.FieldLevel) bool {
		switch models.CardStatus(fl.Field().String()) {
		case models.CardStatusActive, models.CardStatusInactive, models.CardStatusSuspended, models.CardStatusCanceled:
			return true
		}
		return false
	})
	mustRegister(v, "card_network", func(fl validator.FieldLevel) bool {
		switch models.CardNetwork(fl.Field().String()) {
		case models.CardNetworkVisa, models.CardNetworkMastercard, models.CardNetworkAmex:
			return true
		}
		return false
	})
	mustRegister(v, "card_type", func(fl validator.FieldLevel) bool {
		switch models.CardType(fl.Field().String()) {
		case models.CardTypeCorporate, models.CardTypeEmployee:
			return true
		}
		return false
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// ValidateStruct validates a struct using go-playground/validator
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewValidationError(validationErrors)
		}
		return err
	}
	return nil
}

// ValidationError wraps validation errors with structured details
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError from validator.ValidationErrors
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	fields := make(map[string]string, len(errs))
	for _, err := range errs {
		fields[err.Field()] = describe(err)
	}

	return &ValidationError{
		Message: "Validation failed",
		Fields:  fields,
	}
}

func describe(err validator.FieldError) string {
	field := err.Field()
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, err.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, err.Param())
	case "len":
		return fmt.Sprintf("%s must have length %s", field, err.Param())
	case "numeric":
		return fmt.Sprintf("%s must contain only digits", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, err.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, err.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, err.Param())
	case "budget_category":
		return fmt.Sprintf("%s must be a budget category", field)
	case "budget_period":
		return fmt.Sprintf("%s must be DAILY, WEEKLY or MONTHLY", field)
	case "txn_status":
		return fmt.Sprintf("%s must be PENDING, APPROVED or DECLINED", field)
	case "card_status", "card_network", "card_type":
		return fmt.Sprintf("%s has an unsupported value", field)
	default:
		return fmt.Sprintf("%s validation failed on '%s' tag", field, err.Tag())
	}
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// GetValidationFields extracts field errors from a ValidationError
func GetValidationFields(err error) map[string]string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Fields
	}
	return nil
}

// ParseUUID parses s as a UUID, naming field in the error
func ParseUUID(s, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s must be a valid UUID", field)
	}
	return id, nil
}
