package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/hyperterse/tablescope/core/shared/redact"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Session errors
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"

	// Backend errors
	ErrCodeConnectFailed  ErrorCode = "CONNECT_FAILED"
	ErrCodeObjectNotFound ErrorCode = "OBJECT_NOT_FOUND"
	ErrCodeWriteConflict  ErrorCode = "WRITE_CONFLICT"
	ErrCodeBackendError   ErrorCode = "BACKEND_ERROR"

	// Request errors
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Infrastructure errors
	ErrCodeCacheError    ErrorCode = "CACHE_ERROR"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// AppError represents an application error with code and context
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
	Status  int // HTTP status code
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, redact.Mask(e.Err.Error()))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: redact.Mask(message),
		Err:     err,
		Status:  getHTTPStatus(code),
	}
}

// WrapError wraps an existing error with an error code and message
func WrapError(code ErrorCode, message string, err error) *AppError {
	return NewAppError(code, message, err)
}

// SessionNotFound reports an unknown or expired session token.
func SessionNotFound() *AppError {
	return NewAppError(ErrCodeSessionNotFound, "session not found or expired", nil)
}

// ConnectFailed reports an unreachable backend or rejected credentials. The
// cause is flattened into a masked message so the original driver error,
// which may echo the DSN, never travels further.
func ConnectFailed(backend string, err error) *AppError {
	var cause error
	if err != nil {
		cause = stderrors.New(redact.Mask(err.Error()))
	}
	return NewAppError(ErrCodeConnectFailed, fmt.Sprintf("could not connect to %s backend", backend), cause)
}

// ObjectNotFound reports a missing table, column or record.
func ObjectNotFound(kind, name string) *AppError {
	return NewAppError(ErrCodeObjectNotFound, fmt.Sprintf("%s '%s' not found", kind, name), nil)
}

// ValidationFailed reports unusable caller-supplied parameters.
func ValidationFailed(format string, args ...any) *AppError {
	return NewAppError(ErrCodeValidationFailed, fmt.Sprintf(format, args...), nil)
}

// WriteConflict is used by callers that decide to surface a zero-row write as an error.
func WriteConflict(table, id string) *AppError {
	return NewAppError(ErrCodeWriteConflict, fmt.Sprintf("no rows affected in '%s' for id '%s'", table, id), nil)
}

// BackendError wraps any other backend-raised fault.
func BackendError(op string, err error) *AppError {
	return NewAppError(ErrCodeBackendError, op+" failed", err)
}

// CacheError wraps a cache fault on a path that must not swallow it.
func CacheError(op string, err error) *AppError {
	return NewAppError(ErrCodeCacheError, op+" failed", err)
}

// getHTTPStatus maps error codes to HTTP status codes
func getHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeSessionNotFound:
		return http.StatusUnauthorized
	case ErrCodeObjectNotFound:
		return http.StatusNotFound
	case ErrCodeValidationFailed:
		return http.StatusBadRequest
	case ErrCodeWriteConflict:
		return http.StatusConflict
	case ErrCodeConnectFailed:
		return http.StatusBadGateway
	case ErrCodeCacheError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf returns the code of the first AppError in err's chain, or
// ErrCodeInternalError when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalError
}

// As extracts the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := stderrors.As(err, &appErr)
	return appErr, ok
}

// IsSessionNotFound checks if the error is a session lookup failure
func IsSessionNotFound(err error) bool {
	return err != nil && CodeOf(err) == ErrCodeSessionNotFound
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return err != nil && CodeOf(err) == ErrCodeObjectNotFound
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return err != nil && CodeOf(err) == ErrCodeValidationFailed
}

// IsConnectFailed checks if the error is a connection failure
func IsConnectFailed(err error) bool {
	return err != nil && CodeOf(err) == ErrCodeConnectFailed
}

// IsCacheError checks if the error is a cache fault
func IsCacheError(err error) bool {
	return err != nil && CodeOf(err) == ErrCodeCacheError
}
