// Package types defines error types
package types

import (
	"errors"
	"fmt"
)

// Predefined errors
var (
	// ErrExhausted indicates the retry policy allows no further attempts
	ErrExhausted = errors.New("retry exhausted")

	// ErrBackOffInterrupted indicates a backoff pause was cancelled
	ErrBackOffInterrupted = errors.New("backoff interrupted")

	// ErrTerminatedByListener indicates a listener vetoed the episode before
	// the first attempt
	ErrTerminatedByListener = errors.New("retry terminated by listener")

	// ErrCacheCapacityExceeded indicates a context cache put on a full cache
	ErrCacheCapacityExceeded = errors.New("retry context cache capacity exceeded")

	// ErrCacheInconsistency indicates retry history was lost for a key that
	// has registered failures, usually an unstable key equality contract
	ErrCacheInconsistency = errors.New("inconsistent retry state: no history found for failed item key")
)

// ExhaustedError reports that all attempts for an episode were used without
// success and no recovery was supplied. Cause is the last attempt's error.
type ExhaustedError struct {
	Attempts int
	Cause    error
}

// Error implements the error interface
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.Cause)
}

// Unwrap returns the underlying error
func (e *ExhaustedError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is a specific error
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted || errors.Is(e.Cause, target)
}

// NewExhaustedError creates an exhaustion error for a finished episode
func NewExhaustedError(attempts int, cause error) *ExhaustedError {
	return &ExhaustedError{Attempts: attempts, Cause: cause}
}

// BackOffInterruptedError reports a cancelled backoff pause. Cause carries the
// cancellation reason, normally the context error.
type BackOffInterruptedError struct {
	Cause error
}

// Error implements the error interface
func (e *BackOffInterruptedError) Error() string {
	return fmt.Sprintf("backoff interrupted: %v", e.Cause)
}

// Unwrap returns the underlying error
func (e *BackOffInterruptedError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is a specific error
func (e *BackOffInterruptedError) Is(target error) bool {
	return target == ErrBackOffInterrupted || errors.Is(e.Cause, target)
}

// RetryError wraps an internal bookkeeping failure (policy or cache
// internals, not the wrapped operation) with its operation name and context
type RetryError struct {
	// Operation is the name of the operation where the error occurred
	Operation string

	// Cause is the underlying error
	Cause error

	// Context contains error context information
	Context map[string]interface{}
}

// Error implements the error interface
func (e *RetryError) Error() string {
	return fmt.Sprintf("retry error in operation %s: %v", e.Operation, e.Cause)
}

// Unwrap returns the underlying error
func (e *RetryError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is a specific error
func (e *RetryError) Is(target error) bool {
	return errors.Is(e.Cause, target)
}

// NewRetryError creates a new retry bookkeeping error
func NewRetryError(operation string, cause error) *RetryError {
	return &RetryError{
		Operation: operation,
		Cause:     cause,
		Context:   make(map[string]interface{}),
	}
}

// WithContext adds error context
func (e *RetryError) WithContext(key string, value interface{}) *RetryError {
	e.Context[key] = value
	return e
}

// IsExhausted checks whether err marks an exhausted episode
func IsExhausted(err error) bool {
	return errors.Is(err, ErrExhausted)
}

// IsBackOffInterrupted checks whether err is a cancelled backoff pause
func IsBackOffInterrupted(err error) bool {
	return errors.Is(err, ErrBackOffInterrupted)
}
