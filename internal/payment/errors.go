package payment

import (
	"errors"
	"fmt"
)

// ErrMalformedEvent is returned when a verified webhook payload cannot be
// interpreted. Declined payments are not malformed.
var ErrMalformedEvent = errors.New("malformed webhook event")

// ErrUnhandledEvent is returned for authentic events whose type carries no
// payment state change.
var ErrUnhandledEvent = errors.New("unhandled webhook event type")

// ConfigurationError means an adapter lacks credentials. It disables that
// adapter only.
type ConfigurationError struct {
	Provider Provider
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("provider %s not configured: %s", e.Provider, e.Reason)
}

type UnsupportedCurrencyError struct {
	Currency Currency
}

func (e *UnsupportedCurrencyError) Error() string {
	return fmt.Sprintf("unsupported currency %q", string(e.Currency))
}

type UnknownProviderError struct {
	Name string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown payment provider %q", e.Name)
}

// ProviderAPIError wraps an upstream failure. Error() is safe to show to
// callers; Detail() carries the upstream message for logs.
type ProviderAPIError struct {
	Provider   Provider
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderAPIError) Error() string {
	return fmt.Sprintf("payment provider %s: %s failed", e.Provider, e.Op)
}

func (e *ProviderAPIError) Unwrap() error { return e.Err }

func (e *ProviderAPIError) Detail() string {
	if e.Err == nil {
		return fmt.Sprintf("status %d", e.StatusCode)
	}

	return fmt.Sprintf("status %d: %v", e.StatusCode, e.Err)
}

type SignatureVerificationError struct {
	Provider Provider
	Reason   string
}

func (e *SignatureVerificationError) Error() string {
	return fmt.Sprintf("%s webhook signature verification failed: %s", e.Provider, e.Reason)
}

type UnsupportedOperationError struct {
	Provider Provider
	Op       string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("provider %s does not support %s", e.Provider, e.Op)
}
