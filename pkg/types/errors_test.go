package types

import (
	"errors"
	"testing"
)

var errBoom = errors.New("boom")

func TestExhaustedError(t *testing.T) {
	err := NewExhaustedError(3, errBoom)

	if !errors.Is(err, ErrExhausted) {
		t.Error("expected match on ErrExhausted")
	}
	if !errors.Is(err, errBoom) {
		t.Error("expected match on the underlying cause")
	}
	if !IsExhausted(err) {
		t.Error("IsExhausted should report true")
	}
	if errors.Unwrap(err) != errBoom {
		t.Error("Unwrap should return the cause")
	}
}

func TestExhaustedError_WithoutCause(t *testing.T) {
	err := NewExhaustedError(0, nil)
	if !IsExhausted(err) {
		t.Error("IsExhausted should report true without a cause")
	}
}

func TestBackOffInterruptedError(t *testing.T) {
	cause := errors.New("context canceled")
	err := &BackOffInterruptedError{Cause: cause}

	if !errors.Is(err, ErrBackOffInterrupted) {
		t.Error("expected match on ErrBackOffInterrupted")
	}
	if !errors.Is(err, cause) {
		t.Error("expected match on the cancellation cause")
	}
	if !IsBackOffInterrupted(err) {
		t.Error("IsBackOffInterrupted should report true")
	}
}

func TestRetryError(t *testing.T) {
	err := NewRetryError("register", errBoom).
		WithContext("key", "value")

	if !errors.Is(err, errBoom) {
		t.Error("expected match on the cause")
	}
	if err.Context["key"] != "value" {
		t.Errorf("expected context value, got %v", err.Context["key"])
	}
	if err.Operation != "register" {
		t.Errorf("expected operation name, got %q", err.Operation)
	}
}

func TestIsHelpers_RejectUnrelated(t *testing.T) {
	if IsExhausted(errBoom) {
		t.Error("unrelated error reported as exhausted")
	}
	if IsBackOffInterrupted(errBoom) {
		t.Error("unrelated error reported as interrupted")
	}
}
