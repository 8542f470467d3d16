// Package errors defines the structured error taxonomy shared by every
// component of the orchestration core. Domain errors are never plain
// fmt.Errorf values once they cross a component boundary: they carry an
// ErrorType (used for HTTP status mapping and retry policy), an optional
// underlying cause, and details safe (or not) to show a caller.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorType classifies an error for HTTP status mapping, retry policy,
// and safe-message selection.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeAuth         ErrorType = "auth"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeDatabase     ErrorType = "database"
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeInvalidState ErrorType = "invalid_state"
	ErrorTypeCircuitOpen  ErrorType = "circuit_open"
)

var statusByType = map[ErrorType]int{
	ErrorTypeValidation:   http.StatusBadRequest,
	ErrorTypeAuth:         http.StatusUnauthorized,
	ErrorTypeNotFound:     http.StatusNotFound,
	ErrorTypeConflict:     http.StatusConflict,
	ErrorTypeTimeout:      http.StatusRequestTimeout,
	ErrorTypeRateLimit:    http.StatusTooManyRequests,
	ErrorTypeDatabase:     http.StatusInternalServerError,
	ErrorTypeNetwork:      http.StatusInternalServerError,
	ErrorTypeInternal:     http.StatusInternalServerError,
	ErrorTypeInvalidState: http.StatusConflict,
	ErrorTypeCircuitOpen:  http.StatusServiceUnavailable,
}

// AppError is the single error type that crosses component boundaries.
type AppError struct {
	Type       ErrorType
	Message    string
	Details    string
	StatusCode int
	Cause      error
}

// New creates an AppError of the given type with no cause.
func New(t ErrorType, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: statusCodeFor(t),
	}
}

// Newf creates an AppError with a formatted message.
func Newf(t ErrorType, format string, args ...interface{}) *AppError {
	return New(t, fmt.Sprintf(format, args...))
}

// Wrap creates an AppError that records cause as the underlying error.
func Wrap(cause error, t ErrorType, message string) *AppError {
	err := New(t, message)
	err.Cause = cause
	return err
}

// Wrapf creates a Wrap with a formatted message.
func Wrapf(cause error, t ErrorType, format string, args ...interface{}) *AppError {
	return Wrap(cause, t, fmt.Sprintf(format, args...))
}

func statusCodeFor(t ErrorType) int {
	if code, ok := statusByType[t]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails attaches extra, non-sensitive detail and returns the same
// error (mutated in place) so call sites can chain construction.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithDetailsf attaches formatted detail.
func (e *AppError) WithDetailsf(format string, args ...interface{}) *AppError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// Predefined constructors for the most common domain errors.

func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message)
}

func NewDatabaseError(operation string, cause error) *AppError {
	return Wrapf(cause, ErrorTypeDatabase, "database operation failed: %s", operation)
}

func NewNotFoundError(entity string) *AppError {
	return Newf(ErrorTypeNotFound, "%s not found", entity)
}

func NewAuthError(message string) *AppError {
	return New(ErrorTypeAuth, message)
}

func NewTimeoutError(operation string) *AppError {
	return Newf(ErrorTypeTimeout, "operation timed out: %s", operation)
}

func NewConflictError(message string) *AppError {
	return New(ErrorTypeConflict, message)
}

func NewInvalidStateError(message string) *AppError {
	return New(ErrorTypeInvalidState, message)
}

func NewCircuitOpenError(name string) *AppError {
	return Newf(ErrorTypeCircuitOpen, "circuit breaker %q is open", name)
}

// IsType reports whether err is an *AppError of the given type.
func IsType(err error, t ErrorType) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	return appErr.Type == t
}

// GetType returns the ErrorType of err, or ErrorTypeInternal if err is
// not an *AppError.
func GetType(err error) ErrorType {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// GetStatusCode returns the HTTP status code associated with err.
func GetStatusCode(err error) int {
	if appErr, ok := err.(*AppError); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// ErrorMessages holds the caller-safe messages for error types whose
// underlying Message may contain internal detail.
var ErrorMessages = struct {
	ResourceNotFound       string
	AuthenticationFailed   string
	OperationTimeout       string
	RateLimitExceeded      string
	ConcurrentModification string
	ServiceUnavailable     string
}{
	ResourceNotFound:       "The requested resource was not found",
	AuthenticationFailed:   "Authentication failed",
	OperationTimeout:       "The operation timed out",
	RateLimitExceeded:      "Rate limit exceeded, please retry later",
	ConcurrentModification: "The resource was modified concurrently, please retry",
	ServiceUnavailable:     "The service is temporarily unavailable",
}

// SafeErrorMessage returns a message safe to show an external caller:
// validation messages pass through (they describe caller input), every
// other AppError type maps to a generic, pre-approved message, and
// non-AppError values get a fully generic message.
func SafeErrorMessage(err error) string {
	appErr, ok := err.(*AppError)
	if !ok {
		return "An unexpected error occurred"
	}

	switch appErr.Type {
	case ErrorTypeValidation:
		return appErr.Message
	case ErrorTypeNotFound:
		return ErrorMessages.ResourceNotFound
	case ErrorTypeAuth:
		return ErrorMessages.AuthenticationFailed
	case ErrorTypeTimeout:
		return ErrorMessages.OperationTimeout
	case ErrorTypeRateLimit:
		return ErrorMessages.RateLimitExceeded
	case ErrorTypeConflict:
		return ErrorMessages.ConcurrentModification
	case ErrorTypeCircuitOpen:
		return ErrorMessages.ServiceUnavailable
	default:
		return "An internal error occurred"
	}
}

// LogFields renders err as a flat field map suitable for structured
// logging (logrus.Fields or an equivalent).
func LogFields(err error) map[string]interface{} {
	fields := map[string]interface{}{
		"error": err.Error(),
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return fields
	}

	fields["error_type"] = string(appErr.Type)
	fields["status_code"] = appErr.StatusCode
	if appErr.Details != "" {
		fields["error_details"] = appErr.Details
	}
	if appErr.Cause != nil {
		fields["underlying_error"] = appErr.Cause.Error()
	}
	return fields
}

// Chain joins a sequence of errors (ignoring nils) into one error whose
// message is each non-nil error joined by " -> ". It returns nil if every
// error is nil, and returns the single error unchanged if exactly one is
// non-nil.
func Chain(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}

	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	}

	msg := nonNil[0].Error()
	for _, err := range nonNil[1:] {
		msg += " -> " + err.Error()
	}
	return New(ErrorTypeInternal, msg)
}

// Retryable reports whether err's type is one the retry policy should
// attempt again: TransientError-shaped (timeout, network, database) and
// conflicts (version-mismatch CAS races) are retryable; everything else
// (validation, auth, invalid state, not found) is not.
func Retryable(err error) bool {
	switch GetType(err) {
	case ErrorTypeTimeout, ErrorTypeNetwork, ErrorTypeDatabase, ErrorTypeConflict, ErrorTypeRateLimit:
		return true
	default:
		return false
	}
}
