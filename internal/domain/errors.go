package domain

import (
	"errors"
	"fmt"
)

// Common errors used throughout the application.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")

	// ErrPropertyNotFound means the remote system has no property with the
	// requested name.
	ErrPropertyNotFound = errors.New("property not found")

	// ErrAmbiguousName means the name lookup matched more than one property.
	// This is a configuration problem, never retried.
	ErrAmbiguousName = errors.New("property name is ambiguous")

	// ErrVersionConflict means the remote system rejected the rule-tree
	// write (schema validation, stale version). Retrying the identical
	// payload cannot succeed, so this is surfaced as-is.
	ErrVersionConflict = errors.New("rule tree rejected by remote system")

	// ErrActivationTimeout means polling gave up before the activation
	// reached a terminal status. The activation may still complete on the
	// remote system; callers must not assume it failed.
	ErrActivationTimeout = errors.New("timed out waiting for activation")
)

// TransportError wraps a network/auth/5xx failure from the remote API,
// as opposed to an application-level rejection. Idempotent reads hitting
// a TransportError are retried with backoff.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: remote API returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ActivationError is a remote-reported terminal activation failure
// (FAILED, ABORTED or DEACTIVATED), carrying the remote system's reason.
type ActivationError struct {
	Network Network
	Status  ActivationStatus
	Reason  string
}

// Error implements the error interface.
func (e *ActivationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("activation on %s ended %s", e.Network, e.Status)
	}
	return fmt.Sprintf("activation on %s ended %s: %s", e.Network, e.Status, e.Reason)
}

// APIError represents an error response from the API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}
