package provider

import "fmt"

// These constants mirror domain error codes to avoid circular imports.
// The handler layer maps these to HTTP status codes.
const (
	codeInvalid  = "invalid"
	codeNotFound = "not_found"
	codeNotImpl  = "not_implemented"
)

// ProviderError represents a factory or validation error with a code and
// message. It implements the domain.Error interface pattern for consistent
// HTTP status mapping.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// ErrorCode returns the error code for HTTP status mapping.
func (e *ProviderError) ErrorCode() string {
	return e.Code
}

// ErrorMessage returns the user-facing message.
func (e *ProviderError) ErrorMessage() string {
	return e.Message
}

// newProviderError creates a new provider error.
func newProviderError(code, message string) *ProviderError {
	return &ProviderError{Code: code, Message: message}
}

var (
	// ErrNilValidator is returned when a nil validator is passed to NewDefaultFactory.
	ErrNilValidator = newProviderError(codeInvalid, "validator cannot be nil")

	// ErrNoProviderConfigured is returned when a tenant has no active payment
	// configuration. Callers must treat this as a hard failure: checkout never
	// proceeds against an implicit default gateway.
	ErrNoProviderConfigured = newProviderError(codeNotFound, "no payment provider configured for tenant")
)

// ErrValidationFailed creates an error for config validation failures.
func ErrValidationFailed(method PaymentMethod, errors []string) error {
	return &ProviderError{
		Code:    codeInvalid,
		Message: fmt.Sprintf("%s config validation failed: %v", method, errors),
	}
}

// ErrUnknownPaymentMethod creates an error for unrecognized payment methods.
func ErrUnknownPaymentMethod(method PaymentMethod) error {
	return &ProviderError{
		Code:    codeInvalid,
		Message: fmt.Sprintf("unknown payment method: %s", method),
	}
}

// ErrMethodNotImplemented creates an error for recognized methods without an
// adapter yet. Distinct from unknown so the caller can message it correctly.
func ErrMethodNotImplemented(method PaymentMethod) error {
	return &ProviderError{
		Code:    codeNotImpl,
		Message: fmt.Sprintf("payment method %s is not yet supported", method),
	}
}

// ErrConfigKeyNotFound creates an error for missing config keys.
func ErrConfigKeyNotFound(key string) error {
	return &ProviderError{
		Code:    codeInvalid,
		Message: fmt.Sprintf("config key %q not found", key),
	}
}

// ErrConfigKeyWrongType creates an error for config keys with wrong type.
func ErrConfigKeyWrongType(key string, expectedType string, gotType interface{}) error {
	return &ProviderError{
		Code:    codeInvalid,
		Message: fmt.Sprintf("config key %q must be %s, got %T", key, expectedType, gotType),
	}
}
