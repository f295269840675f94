package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNotFound, "resource not found", baseErr)

	assert.Equal(t, ErrorTypeNotFound, domainErr.Type)
	assert.Equal(t, "resource not found", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name:    "error with wrapped error",
			err:     ErrDatabaseError.Wrap(errors.New("connection reset")),
			wantMsg: "internal: database error (connection reset)",
		},
		{
			name:    "error without wrapped error",
			err:     ErrCardNotFound,
			wantMsg: "not_found: Card not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeInternal, "internal error", baseErr)

	assert.Equal(t, baseErr, errors.Unwrap(domainErr))
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same sentinel", ErrCardNotFound, ErrCardNotFound, true},
		{"wrapped sentinel", fmt.Errorf("lookup: %w", ErrCardNotFound.Wrap(errors.New("no rows"))), ErrCardNotFound, true},
		{"same type different message", ErrPolicyNotFound, ErrCardNotFound, false},
		{"type-only target", ErrPolicyNotFound, &DomainError{Type: ErrorTypeNotFound}, true},
		{"different type", ErrInvalidInput, ErrCardNotFound, false},
		{"not a domain error", ErrCardNotFound, errors.New("Card not found"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_WithDetailDoesNotMutateSentinel(t *testing.T) {
	err := ErrInvalidInput.WithDetail("field", "name").WithDetail("reason", "too long")

	assert.Equal(t, "name", err.Details["field"])
	assert.Equal(t, "too long", err.Details["reason"])
	assert.Empty(t, ErrInvalidInput.Details)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestTypeHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"card not found", ErrCardNotFound, IsNotFoundError, true},
		{"wrapped policy not found", fmt.Errorf("wrapped: %w", ErrPolicyNotFound), IsNotFoundError, true},
		{"missing organization", ErrMissingOrganization, IsValidationError, true},
		{"invalid expression", ErrInvalidExpression, IsValidationError, true},
		{"organization mismatch", ErrOrganizationMismatch, IsForbiddenError, true},
		{"invalid token", ErrInvalidToken, IsUnauthorizedError, true},
		{"duplicate card", ErrDuplicateCard, IsConflictError, true},
		{"queue full", ErrQueueFull, IsUnavailableError, true},
		{"wrapped internal", WrapInternal("boom", errors.New("x")), IsInternalError, true},
		{"plain error", errors.New("regular"), IsNotFoundError, false},
		{"nil error", nil, IsInternalError, false},
		{"forbidden is not validation", ErrOrganizationMismatch, IsValidationError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestGetErrorType(t *testing.T) {
	assert.Equal(t, ErrorTypeNotFound, GetErrorType(ErrCardNotFound))
	assert.Equal(t, ErrorTypeForbidden, GetErrorType(fmt.Errorf("x: %w", ErrOrganizationMismatch)))
	assert.Equal(t, ErrorType(""), GetErrorType(errors.New("regular")))
}

func TestGetErrorDetails(t *testing.T) {
	err := ErrInvalidInput.WithDetail("field", "limit")

	details := GetErrorDetails(err)
	require.NotNil(t, details)
	assert.Equal(t, "limit", details["field"])
	assert.Nil(t, GetErrorDetails(errors.New("regular error")))
}

func TestDeclineReason(t *testing.T) {
	assert.Equal(t, "Card not found", DeclineReason(ErrCardNotFound, "fallback"))
	assert.Equal(t, "Organization mismatch", DeclineReason(fmt.Errorf("score: %w", ErrOrganizationMismatch), "fallback"))
	assert.Equal(t, "Missing organization ID", DeclineReason(ErrMissingOrganization, "fallback"))
	assert.Equal(t, "fallback", DeclineReason(errors.New("timeout"), "fallback"))
}

func TestWrapError(t *testing.T) {
	baseErr := errors.New("base error")
	wrapped := WrapError(ErrorTypeInternal, "wrapped message", baseErr)

	var domainErr *DomainError
	require.True(t, errors.As(wrapped, &domainErr))
	assert.Equal(t, ErrorTypeInternal, domainErr.Type)
	assert.Equal(t, "wrapped message", domainErr.Message)
	assert.Equal(t, baseErr, errors.Unwrap(wrapped))
}
