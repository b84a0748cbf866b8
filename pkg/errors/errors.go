package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown        ErrorCode = "UNKNOWN"
	ErrInternal       ErrorCode = "INTERNAL"
	ErrInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrAlreadyExists  ErrorCode = "ALREADY_EXISTS"
	ErrNotImplemented ErrorCode = "NOT_IMPLEMENTED"

	// Configuration: bad script, unknown action, unknown phase, no hosts.
	ErrConfiguration ErrorCode = "CONFIGURATION"
	ErrConfigLoad    ErrorCode = "CONFIG_LOAD"
	ErrConfigParse   ErrorCode = "CONFIG_PARSE"

	// Transport could not be established.
	ErrConnection ErrorCode = "CONNECTION"

	// A local or remote command exited non-zero.
	ErrCommand ErrorCode = "COMMAND"

	// Directory creation or file transfer failed.
	ErrResource ErrorCode = "RESOURCE"

	// Build errors
	ErrRevision ErrorCode = "REVISION"
	ErrBuild    ErrorCode = "BUILD"

	// Release errors
	ErrPhaseFailed  ErrorCode = "PHASE_FAILED"
	ErrDeployFailed ErrorCode = "DEPLOY_FAILED"
	ErrNoRollback   ErrorCode = "NO_ROLLBACK_TARGET"
)

// RolloutError represents a structured error with code and details
type RolloutError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *RolloutError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *RolloutError) Unwrap() error {
	return e.Wrapped
}

// Is matches any RolloutError carrying the same code.
func (e *RolloutError) Is(target error) bool {
	var targetErr *RolloutError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new RolloutError with the given code and message
func New(code ErrorCode, message string) *RolloutError {
	return &RolloutError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new RolloutError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *RolloutError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error. A nil err yields nil.
func Wrap(err error, code ErrorCode, message string) *RolloutError {
	if err == nil {
		return nil
	}
	e := New(code, message)
	e.Wrapped = err
	return e
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *RolloutError {
	if err == nil {
		return nil
	}
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// WithDetail adds a detail to the error
func (e *RolloutError) WithDetail(key string, value interface{}) *RolloutError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails adds multiple details to the error
func (e *RolloutError) WithDetails(details map[string]interface{}) *RolloutError {
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var rErr *RolloutError
	if errors.As(err, &rErr) {
		return rErr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not a RolloutError
func GetErrorCode(err error) ErrorCode {
	var rErr *RolloutError
	if errors.As(err, &rErr) {
		return rErr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details from an error, or nil if not a RolloutError
func GetErrorDetails(err error) map[string]interface{} {
	var rErr *RolloutError
	if errors.As(err, &rErr) {
		return rErr.Details
	}
	return nil
}

// DetailString returns a string detail, or "" when absent.
func DetailString(err error, key string) string {
	if v, ok := GetErrorDetails(err)[key].(string); ok {
		return v
	}
	return ""
}

// Join combines errors the way the standard library does, dropping nils.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Find returns the outermost RolloutError in err's chain carrying code.
func Find(err error, code ErrorCode) *RolloutError {
	for err != nil {
		if rErr, ok := err.(*RolloutError); ok && rErr.Code == code {
			return rErr
		}
		err = errors.Unwrap(err)
	}
	return nil
}
