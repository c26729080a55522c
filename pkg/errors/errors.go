package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Standard error codes
const (
	CodeValidationError         = "VALIDATION_ERROR"
	CodeNotFound                = "RESOURCE_NOT_FOUND"
	CodeConflict                = "CONFLICT"
	CodeInvalidStateTransition  = "INVALID_STATE_TRANSITION"
	CodeDuplicateReconciliation = "DUPLICATE_RECONCILIATION"
	CodeConcurrencyConflict     = "CONCURRENCY_CONFLICT"
	CodeCrateAlreadyAssigned    = "CRATE_ALREADY_ASSIGNED"
	CodeInternalError           = "INTERNAL_ERROR"
	CodeBadRequest              = "BAD_REQUEST"
	CodeServiceUnavailable      = "SERVICE_UNAVAILABLE"
	CodeTransientError          = "TRANSIENT_ERROR"
	CodeTimeout                 = "TIMEOUT"
	CodeSequenceExhausted       = "SEQUENCE_EXHAUSTED"
)

// AppError represents an application error with HTTP status and error code
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	HTTPStatus int               `json:"-"`
	Err        error             `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithDetail adds a single detail to the error
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Wrap wraps an existing error
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

// NewAppError creates a new AppError
func NewAppError(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// ErrValidation creates a validation error
func ErrValidation(message string) *AppError {
	return NewAppError(CodeValidationError, message, http.StatusBadRequest)
}

// ErrValidationWithFields creates a validation error with field details
func ErrValidationWithFields(message string, fields map[string]string) *AppError {
	return ErrValidation(message).WithDetails(fields)
}

// ErrNotFound creates a not found error
func ErrNotFound(resource string) *AppError {
	return NewAppError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// ErrNotFoundWithID creates a not found error with ID
func ErrNotFoundWithID(resource, id string) *AppError {
	return ErrNotFound(resource).WithDetail("id", id)
}

// ErrConflict creates a conflict error
func ErrConflict(message string) *AppError {
	return NewAppError(CodeConflict, message, http.StatusConflict)
}

// ErrInvalidStateTransition reports an operation that is illegal from the current status
func ErrInvalidStateTransition(message, currentStatus string) *AppError {
	return NewAppError(CodeInvalidStateTransition, message, http.StatusConflict).
		WithDetail("currentStatus", currentStatus)
}

// ErrDuplicateReconciliation reports that a crate already has a reconciliation record
func ErrDuplicateReconciliation(message string) *AppError {
	return NewAppError(CodeDuplicateReconciliation, message, http.StatusConflict)
}

// ErrConcurrencyConflict reports a failed optimistic concurrency check
func ErrConcurrencyConflict(message string) *AppError {
	return NewAppError(CodeConcurrencyConflict, message, http.StatusConflict)
}

// ErrCrateAlreadyAssigned reports a crate that belongs to another batch
func ErrCrateAlreadyAssigned(message string) *AppError {
	return NewAppError(CodeCrateAlreadyAssigned, message, http.StatusConflict)
}

// ErrInternal creates an internal error
func ErrInternal(message string) *AppError {
	if message == "" {
		message = "an internal error occurred"
	}
	return NewAppError(CodeInternalError, message, http.StatusInternalServerError)
}

// ErrBadRequest creates a bad request error
func ErrBadRequest(message string) *AppError {
	return NewAppError(CodeBadRequest, message, http.StatusBadRequest)
}

// ErrServiceUnavailable creates a service unavailable error
func ErrServiceUnavailable(service string) *AppError {
	return NewAppError(CodeServiceUnavailable, fmt.Sprintf("%s is temporarily unavailable", service), http.StatusServiceUnavailable)
}

// ErrTransient reports a failure that is safe to retry with the same idempotency key
func ErrTransient(message string) *AppError {
	return NewAppError(CodeTransientError, message, http.StatusServiceUnavailable)
}

// ErrSequenceExhausted reports that no identifier can be issued until the next day
func ErrSequenceExhausted(message string) *AppError {
	return NewAppError(CodeSequenceExhausted, message, http.StatusServiceUnavailable)
}

// ErrTimeout creates a timeout error
func ErrTimeout(operation string) *AppError {
	return NewAppError(CodeTimeout, fmt.Sprintf("%s timed out", operation), http.StatusGatewayTimeout)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// MapDomainError maps errors that were not translated by the caller. Context
// deadlines become timeouts; other errors fall back to message patterns.
func MapDomainError(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := AsAppError(err); ok {
		return appErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout("operation").Wrap(err)
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "not found"):
		return ErrNotFound("resource").Wrap(err)
	case strings.Contains(lower, "already exists"):
		return ErrConflict(msg).Wrap(err)
	case strings.Contains(lower, "invalid"), strings.Contains(lower, "required"):
		return ErrValidation(msg).Wrap(err)
	case strings.Contains(lower, "timeout"):
		return ErrTimeout("operation").Wrap(err)
	default:
		return ErrInternal("").Wrap(err)
	}
}
