package retry

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingListener(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	exec := NewExecutor(
		WithPolicy(NewMaxAttempts(2)),
		WithLabel("payment"),
		WithListener(NewLoggingListener(logger)),
	)

	calls := 0
	_, err := Execute(exec, context.Background(), func(ctx context.Context, rc Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errBoom
		}
		return "ok", nil
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "retry episode open")
	assert.Contains(t, out, "payment")
	assert.Contains(t, out, "retry attempt failed")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "retry episode closed")
}

func TestLoggingListener_FailureOutcome(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	exec := NewExecutor(
		WithPolicy(NewMaxAttempts(1)),
		WithListener(NewLoggingListener(logger)),
	)

	_, err := Execute(exec, context.Background(), func(ctx context.Context, rc Context) (string, error) {
		return "", errBoom
	})
	require.Error(t, err)

	assert.Contains(t, buf.String(), "retry episode failed")
}
