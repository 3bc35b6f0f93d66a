// FilePath: internal/errors/errors.go
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/lib/pq"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Error types
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeDatabase    ErrorType = "database"
	ErrorTypeAuth        ErrorType = "authentication"
	ErrorTypeAuthorize   ErrorType = "authorization"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeConflict    ErrorType = "conflict"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeUnavailable ErrorType = "service_unavailable"
)

// Postgres SQLSTATE codes that signal a lost race rather than a broken request.
const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqQueryCanceled        = "57014"
)

// APIError represents a structured API error
type APIError struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Code      int       `json:"code"`
	Retryable bool      `json:"retryable"`
	RequestID string    `json:"request_id,omitempty"`
	Details   any       `json:"details,omitempty"`
	err       error     // Internal error for logging
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the internal error to errors.Is / errors.As.
func (e *APIError) Unwrap() error {
	return e.err
}

// WithRequestID adds a request ID to the error
func (e *APIError) WithRequestID(id string) *APIError {
	e.RequestID = id
	return e
}

// WithDetails adds additional details to the error
func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

// NewValidationError creates a new validation error
func NewValidationError(msg string, err error) *APIError {
	return &APIError{
		Type:    ErrorTypeValidation,
		Message: msg,
		Code:    http.StatusBadRequest,
		err:     err,
	}
}

// NewDatabaseError creates a new database error. Storage failures are always
// worth retrying from the caller's point of view.
func NewDatabaseError(msg string, err error) *APIError {
	return &APIError{
		Type:      ErrorTypeDatabase,
		Message:   msg,
		Code:      http.StatusServiceUnavailable,
		Retryable: true,
		err:       err,
	}
}

// NewAuthError creates a new authentication error
func NewAuthError(msg string, err error) *APIError {
	return &APIError{
		Type:    ErrorTypeAuth,
		Message: msg,
		Code:    http.StatusUnauthorized,
		err:     err,
	}
}

// NewAuthorizationError creates a new authorization error
func NewAuthorizationError(msg string, err error) *APIError {
	return &APIError{
		Type:    ErrorTypeAuthorize,
		Message: msg,
		Code:    http.StatusForbidden,
		err:     err,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(msg string, err error) *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Message: msg,
		Code:    http.StatusNotFound,
		err:     err,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(msg string, err error) *APIError {
	return &APIError{
		Type:      ErrorTypeConflict,
		Message:   msg,
		Code:      http.StatusConflict,
		Retryable: true,
		err:       err,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(msg string, err error) *APIError {
	return &APIError{
		Type:      ErrorTypeTimeout,
		Message:   msg,
		Code:      http.StatusGatewayTimeout,
		Retryable: true,
		err:       err,
	}
}

// NewUnavailableError creates a new service unavailable error
func NewUnavailableError(msg string, err error) *APIError {
	return &APIError{
		Type:      ErrorTypeUnavailable,
		Message:   msg,
		Code:      http.StatusServiceUnavailable,
		Retryable: true,
		err:       err,
	}
}

// NewInternalError creates a new internal server error
func NewInternalError(msg string, err error) *APIError {
	return &APIError{
		Type:    ErrorTypeInternal,
		Message: msg,
		Code:    http.StatusInternalServerError,
		err:     err,
	}
}

// FromDB classifies an error returned by the storage layer.
func FromDB(msg string, err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError(msg+": deadline exceeded", err)
	case stderrors.Is(err, context.Canceled):
		return NewUnavailableError(msg+": request cancelled", err)
	case IsRaceCondition(err):
		return NewConflictError(msg, err)
	case hasPQCode(err, pqQueryCanceled):
		return NewTimeoutError(msg+": statement cancelled", err)
	}
	return NewDatabaseError(msg, err)
}

// IsRaceCondition reports whether err is a postgres unique violation,
// serialization failure or deadlock.
func IsRaceCondition(err error) bool {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return false
	}
	switch string(pqErr.Code) {
	case pqUniqueViolation, pqSerializationFailure, pqDeadlockDetected:
		return true
	}
	return false
}

func hasPQCode(err error, code string) bool {
	var pqErr *pq.Error
	return stderrors.As(err, &pqErr) && string(pqErr.Code) == code
}

// As returns the APIError wrapped in err, if any.
func As(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func isType(err error, t ErrorType) bool {
	if apiErr, ok := As(err); ok {
		return apiErr.Type == t
	}
	return false
}

// IsNotFound checks if an error is a NotFound error
func IsNotFound(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is a Validation error
func IsValidation(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsConflict checks if an error is a Conflict error
func IsConflict(err error) bool {
	return isType(err, ErrorTypeConflict)
}

// IsTimeout checks if an error is a Timeout error
func IsTimeout(err error) bool {
	return isType(err, ErrorTypeTimeout)
}

// IsRetryable reports whether the caller may retry the failed operation.
func IsRetryable(err error) bool {
	if apiErr, ok := As(err); ok {
		return apiErr.Retryable
	}
	return false
}
