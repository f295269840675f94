package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/card-control-plane/repositories"
	"github.com/upb/card-control-plane/services"
	"github.com/upb/card-control-plane/utils"
)

// HandleServiceError maps domain errors to HTTP responses. Internal errors
// are logged and answered with a generic message.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	status := statusFor(err)
	message := "An internal error occurred"
	var details map[string]interface{}

	var domainErr *services.DomainError
	if errors.As(err, &domainErr) && status != http.StatusInternalServerError {
		message = domainErr.Message
		if len(domainErr.Details) > 0 {
			details = domainErr.Details
		}
	} else if status == http.StatusNotFound {
		message = "Resource not found"
	} else if status == http.StatusConflict {
		message = "Resource already exists"
	}

	if status >= http.StatusInternalServerError {
		logger.Error("service error",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
	} else {
		logger.Debug("handled service error",
			zap.Error(err),
			zap.Int("status", status))
	}

	if writeErr := utils.WriteError(w, status, message, details); writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

func statusFor(err error) int {
	switch {
	case services.IsNotFoundError(err), errors.Is(err, repositories.ErrNotFound):
		return http.StatusNotFound
	case services.IsValidationError(err):
		return http.StatusBadRequest
	case services.IsUnauthorizedError(err):
		return http.StatusUnauthorized
	case services.IsForbiddenError(err):
		return http.StatusForbidden
	case services.IsConflictError(err), errors.Is(err, repositories.ErrDuplicate):
		return http.StatusConflict
	case services.IsUnavailableError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
