package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"datanomics/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// GetCode returns the code of the outermost AppError in the chain, otherwise
// "UNKNOWN". Gateway failures and the in-flight and stale sentinels of
// domain/core have codes of their own.
func GetCode(err error) string {
	var gwErr *GatewayError
	if stderrors.As(err, &gwErr) {
		return CodeGatewayError
	}
	switch {
	case stderrors.Is(err, core.ErrActionInFlight):
		return CodeInFlight
	case stderrors.Is(err, core.ErrStaleResponse):
		return CodeStaleResponse
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeDatabaseError   = "DATABASE_ERROR"
	CodeValidationError = "VALIDATION_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeResourceError   = "RESOURCE_ERROR"
	CodeGatewayError    = "GATEWAY_ERROR"
	CodeInFlight        = "IN_FLIGHT"
	CodeStaleResponse   = "STALE_RESPONSE"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

// DatabaseError marks a failed connection, ping or migration of the session cache database.
func DatabaseError(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeDatabaseError,
		Message: message,
		Cause:   cause,
	}
}

// ValidationError is a locally handled, user-facing error (no file selected, no data to export).
func ValidationError(message string) *AppError {
	return New(CodeValidationError, message)
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

// ResourceError marks a failed local resource operation (cache write, blob IO).
func ResourceError(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeResourceError,
		Message: message,
		Cause:   cause,
	}
}

// IsValidation reports whether err carries the VALIDATION_ERROR code
func IsValidation(err error) bool {
	return GetCode(err) == CodeValidationError
}

// IsResource reports whether err carries the RESOURCE_ERROR code
func IsResource(err error) bool {
	return GetCode(err) == CodeResourceError
}

// NetworkFailureMessage is the message of a GatewayError raised when no response arrived.
const NetworkFailureMessage = "network failure"

// GatewayError is raised by the backend gateway when the backend rejected a
// request or could not be reached. Details are surfaced verbatim.
type GatewayError struct {
	Status  int
	Message string
	Details []string
	Cause   error
}

func (e *GatewayError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(e.Details, "; "))
}

func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// Network reports whether the request never produced a response.
func (e *GatewayError) Network() bool {
	return e.Status == 0
}

// NetworkFailure builds the GatewayError for a transport failure.
func NetworkFailure(cause error) *GatewayError {
	return &GatewayError{
		Message: NetworkFailureMessage,
		Details: []string{},
		Cause:   cause,
	}
}

// InvalidResponseMessage is the message of a GatewayError raised for a 2xx
// reply that does not have the expected shape.
const InvalidResponseMessage = "invalid response from backend"

// InvalidResponse builds the GatewayError for a malformed success reply.
// Status stays non-zero so it is never mistaken for a network failure.
func InvalidResponse(status int, detail string, cause error) *GatewayError {
	return &GatewayError{
		Status:  status,
		Message: InvalidResponseMessage,
		Details: []string{detail},
		Cause:   cause,
	}
}

// AsGatewayError extracts a GatewayError from the chain
func AsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	if stderrors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}
