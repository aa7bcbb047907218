// Package apperr holds the error taxonomy shared by services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks caller input problems. Wrap it with details via fmt.Errorf.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned when a unique resource already exists.
	ErrConflict = errors.New("already exists")
	// ErrInvalidCredentials covers bad passwords, unknown users and expired sessions.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotFound is returned by stores when nothing matches.
	ErrNotFound = errors.New("not found")
	// ErrBusy means no analysis slot became free before the request context ended.
	ErrBusy = errors.New("too many analyses in flight")
	// ErrStoreUnavailable wraps database and cache failures. Callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrMissingCredential means the inference API key was never configured.
	ErrMissingCredential = errors.New("inference API key is not configured")
	// ErrTooLarge means an upload exceeded the configured size limit.
	ErrTooLarge = errors.New("upload too large")
	// ErrEmptyCompletion means upstream answered without any completion text.
	ErrEmptyCompletion = errors.New("upstream returned no completion")
)

// UpstreamError is reported when the inference service itself answers with an error.
// Payload is the raw response body and is relayed to the caller unchanged.
type UpstreamError struct {
	StatusCode int
	Payload    []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("inference service returned an error (status %d): %s", e.StatusCode, string(e.Payload))
}

// TransportError is returned once the inference request could not be delivered,
// including after the retry.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("inference request failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Validation wraps ErrValidation with a message.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Store wraps a storage failure so it matches ErrStoreUnavailable.
func Store(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
