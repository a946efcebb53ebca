// Package future provides a promise-style result handle for asynchronous
// operations
package future

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrCancelled indicates a future was cancelled before completion
var ErrCancelled = errors.New("future cancelled")

// CancelError reports cancellation of a pending future
type CancelError struct{}

// Error implements the error interface
func (e *CancelError) Error() string {
	return "future cancelled"
}

// Is checks if the error is a specific error
func (e *CancelError) Is(target error) bool {
	return target == ErrCancelled
}

// ExecutionError wraps a failure raised inside an asynchronous computation.
// Consumers that classify failures should unwrap it first; UnwrapFailure does
// this peeling.
type ExecutionError struct {
	Cause error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed: %v", e.Cause)
}

// Unwrap returns the underlying error
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// UnwrapFailure peels substrate wrapper layers (ExecutionError) off err,
// returning the first cause that is not a wrapper. The order is fixed:
// wrappers are removed outermost first.
func UnwrapFailure(err error) error {
	for {
		var exec *ExecutionError
		if errors.As(err, &exec) && exec.Cause != nil {
			err = exec.Cause
			continue
		}
		return err
	}
}

// Future is a completable handle for a pending result. The zero value is not
// usable; create one with New, Completed or Failed.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	value     T
	err       error
	completed bool
	callbacks []func(T, error)
	cancelFwd func()
}

// New creates a pending future
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Completed creates an already-successful future
func Completed[T any](value T) *Future[T] {
	f := New[T]()
	f.Complete(value)
	return f
}

// Failed creates an already-failed future
func Failed[T any](err error) *Future[T] {
	f := New[T]()
	f.Fail(err)
	return f
}

// Complete resolves the future with a value. Returns false if the future was
// already settled.
func (f *Future[T]) Complete(value T) bool {
	return f.settle(value, nil)
}

// Fail resolves the future with an error. Returns false if the future was
// already settled.
func (f *Future[T]) Fail(err error) bool {
	var zero T
	return f.settle(zero, err)
}

// Cancel fails the future with a CancelError and forwards cancellation to
// the currently linked inner future, if any. Returns false if the future was
// already settled.
func (f *Future[T]) Cancel() bool {
	f.mu.Lock()
	fwd := f.cancelFwd
	f.mu.Unlock()

	var zero T
	ok := f.settle(zero, &CancelError{})
	if fwd != nil {
		fwd()
	}
	return ok
}

// ForwardCancelTo links cancellation of this future to fn. The executor uses
// this to point an outer handle at whichever inner attempt is active. A
// cancellation that already landed is forwarded immediately, so linking after
// Cancel never strands the inner attempt.
func (f *Future[T]) ForwardCancelTo(fn func()) {
	f.mu.Lock()
	f.cancelFwd = fn
	cancelled := f.completed && errors.Is(f.err, ErrCancelled)
	f.mu.Unlock()

	if cancelled {
		fn()
	}
}

func (f *Future[T]) settle(value T, err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.value = value
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(value, err)
	}
	return true
}

// Done returns a channel closed when the future settles
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the future settles or ctx is cancelled
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// OnComplete registers fn to run when the future settles. If the future is
// already settled fn runs inline; otherwise it runs on the goroutine that
// settles the future, in registration order.
func (f *Future[T]) OnComplete(fn func(T, error)) {
	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	value, err := f.value, f.err
	f.mu.Unlock()

	fn(value, err)
}
