package payment

import (
	"errors"
	"fmt"
)

var (
	// ErrNotImplemented is returned when a provider lacks a capability
	// (e.g., Cancel on Razorpay). Callers should treat it as a permanent
	// capability gap, not retry.
	ErrNotImplemented = errors.New("payment: capability not implemented for this provider")

	// ErrInvalidPlanType is returned when unit-amount resolution receives an
	// unrecognized plan variant. This is a data-integrity bug upstream and
	// must not be swallowed: silently pricing at zero would let a paid plan
	// check out for free.
	ErrInvalidPlanType = errors.New("payment: invalid payment plan type")

	// ErrMissingCurrency is returned by adapter constructors when the site
	// has no currency ISO code configured.
	ErrMissingCurrency = errors.New("payment: currency ISO code is required")
)

// ProviderError wraps a remote provider failure with the provider name, the
// failed operation, and the provider's own human-readable description. These
// surface to site operators mostly as misconfiguration diagnostics (wrong API
// key, currency mismatch), so the provider's description is kept verbatim.
type ProviderError struct {
	Provider string // provider name constant
	Op       string // "initiate", "cancel", "metadata", ...
	Message  string // provider's description, or ours when the provider gave none
	Err      error  // underlying error, if any
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Op, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// newProviderError creates a ProviderError, defaulting the message to the
// underlying error's text.
func newProviderError(provider, op, message string, err error) *ProviderError {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &ProviderError{Provider: provider, Op: op, Message: message, Err: err}
}
