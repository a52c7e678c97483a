package types

import "fmt"

// ErrorCode represents a unified error code across the framework.
type ErrorCode string

// Ingestion / validation error codes — never staged, returned at the HTTP
// boundary (spec.md §7: "Signature errors are returned immediately").
const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrSignatureInvalid ErrorCode = "SIGNATURE_INVALID"
	ErrUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrForbidden        ErrorCode = "FORBIDDEN"
)

// Dependency error codes — the taxonomy the Job Runner classifies against
// (spec.md §7). Whether a given code is transient or permanent is carried
// on Error.Retryable, not baked into the code itself.
const (
	ErrRateLimit           ErrorCode = "RATE_LIMIT"
	ErrUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"
	ErrUpstreamError       ErrorCode = "UPSTREAM_ERROR"
	ErrServiceUnavailable  ErrorCode = "SERVICE_UNAVAILABLE"
	ErrProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrSchemaInvalid       ErrorCode = "SCHEMA_INVALID"
	ErrMissingField        ErrorCode = "MISSING_FIELD"
	ErrNotFound            ErrorCode = "NOT_FOUND"
	ErrConfigError         ErrorCode = "CONFIG_ERROR"
	ErrInternalError       ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// Transient builds an Error the Job Runner will retry (spec.md §7).
func Transient(code ErrorCode, provider, message string, cause error) *Error {
	return NewError(code, message).WithCause(cause).WithRetryable(true).WithProvider(provider)
}

// Permanent builds an Error the Job Runner will fail without retrying.
func Permanent(code ErrorCode, provider, message string, cause error) *Error {
	return NewError(code, message).WithCause(cause).WithRetryable(false).WithProvider(provider)
}

// ClassifyHTTPStatus maps a dependency's HTTP response status to a
// transient or permanent Error, per spec.md §7: 429 and 5xx are transient,
// 401/403 and other 4xx are permanent.
func ClassifyHTTPStatus(provider string, status int, message string, cause error) *Error {
	switch {
	case status == 429 || status >= 500:
		return Transient(ErrUpstreamError, provider, message, cause).WithHTTPStatus(status)
	case status == 401 || status == 403:
		return Permanent(ErrUnauthorized, provider, message, cause).WithHTTPStatus(status)
	default:
		return Permanent(ErrUpstreamError, provider, message, cause).WithHTTPStatus(status)
	}
}
