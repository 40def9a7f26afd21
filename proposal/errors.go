package proposal

import (
	"errors"
	"fmt"
)

// Error types for classifying fetch errors.

// TransientError represents a temporary error that may succeed on retry.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// NewTransientError wraps an error as transient (retryable).
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError represents a permanent error that should not be retried.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// NewFatalError wraps an error as fatal (non-retryable).
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient returns true if the error is transient and should be retried.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal returns true if the error is fatal and should not be retried.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// UpstreamError indicates a platform's external API could not be
// reached or returned an unparseable payload.
type UpstreamError struct {
	Platform string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream unavailable: %v", e.Platform, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// SchemaError indicates an upstream response violated an invariant the
// adapter depends on, such as endBlock-descending ordering or the
// pairing of two joined lists.
type SchemaError struct {
	Platform string
	Reason   string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s schema mismatch: %s", e.Platform, e.Reason)
}

// IsUpstream returns true if the error chain contains an UpstreamError.
func IsUpstream(err error) bool {
	var upstream *UpstreamError
	return errors.As(err, &upstream)
}

// IsSchemaMismatch returns true if the error chain contains a SchemaError.
func IsSchemaMismatch(err error) bool {
	var schema *SchemaError
	return errors.As(err, &schema)
}
