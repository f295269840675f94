package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeUnavailable  ErrorType = "unavailable"
	ErrorTypeInternal     ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError of the same type. When the target carries
// a message the messages must match too, so errors.Is(err, ErrCardNotFound)
// does not match ErrPolicyNotFound.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if e.Type != t.Type {
		return false
	}
	return t.Message == "" || e.Message == t.Message
}

// WithDetail returns a copy of the error with a detail added. Sentinels are
// never mutated.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{Type: e.Type, Message: e.Message, Err: e.Err, Details: details}
}

// Wrap returns a copy of the sentinel wrapping cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return &DomainError{Type: e.Type, Message: e.Message, Err: cause, Details: e.Details}
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Authorization pipeline
	ErrCardNotFound         = NewDomainError(ErrorTypeNotFound, "Card not found", nil)
	ErrOrganizationMismatch = NewDomainError(ErrorTypeForbidden, "Organization mismatch", nil)
	ErrMissingOrganization  = NewDomainError(ErrorTypeValidation, "Missing organization ID", nil)
	ErrInvalidSignature     = NewDomainError(ErrorTypeValidation, "invalid signature", nil)
	ErrMalformedEvent       = NewDomainError(ErrorTypeValidation, "malformed event", nil)

	// Not Found Errors
	ErrPolicyNotFound      = NewDomainError(ErrorTypeNotFound, "policy not found", nil)
	ErrTransactionNotFound = NewDomainError(ErrorTypeNotFound, "transaction not found", nil)
	ErrBudgetNotFound      = NewDomainError(ErrorTypeNotFound, "Budget not found", nil)

	// Validation Errors
	ErrInvalidInput      = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInvalidExpression = NewDomainError(ErrorTypeValidation, "invalid policy expression", nil)
	ErrReasonRequired    = NewDomainError(ErrorTypeValidation, "declined transactions require a reason", nil)

	// Authorization Errors
	ErrUnauthorized = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidToken = NewDomainError(ErrorTypeUnauthorized, "invalid authentication token", nil)
	ErrTokenExpired = NewDomainError(ErrorTypeUnauthorized, "authentication token expired", nil)

	// Permission Errors
	ErrForbidden = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)

	// Conflict Errors
	ErrDuplicateCard   = NewDomainError(ErrorTypeConflict, "card already registered", nil)
	ErrDuplicateBudget = NewDomainError(ErrorTypeConflict, "Budget for this category already exists", nil)

	// Availability Errors
	ErrQueueFull = NewDomainError(ErrorTypeUnavailable, "retry queue full", nil)

	// Internal Errors
	ErrInternal      = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrDatabaseError = NewDomainError(ErrorTypeInternal, "database error", nil)
)

func hasType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return hasType(err, ErrorTypeUnauthorized)
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return hasType(err, ErrorTypeForbidden)
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	return hasType(err, ErrorTypeConflict)
}

// IsUnavailableError checks if an error is a temporary availability error
func IsUnavailableError(err error) bool {
	return hasType(err, ErrorTypeUnavailable)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return hasType(err, ErrorTypeInternal)
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// DeclineReason returns the message of a domain error, suitable as a
// transaction decline reason, or fallback for other errors.
func DeclineReason(err error, fallback string) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		return domainErr.Message
	}
	return fallback
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
