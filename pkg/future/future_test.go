package future

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestFuture_CompleteAndGet(t *testing.T) {
	f := New[int]()

	go f.Complete(42)

	v, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestFuture_Fail(t *testing.T) {
	f := New[int]()
	f.Fail(errBoom)

	_, err := f.Get(context.Background())
	assert.Equal(t, errBoom, err)
}

func TestFuture_SettlesOnce(t *testing.T) {
	f := New[int]()

	assert.True(t, f.Complete(1))
	assert.False(t, f.Complete(2))
	assert.False(t, f.Fail(errBoom))

	v, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFuture_Constructors(t *testing.T) {
	v, err := Completed("ok").Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	_, err = Failed[string](errBoom).Get(context.Background())
	assert.Equal(t, errBoom, err)
}

func TestFuture_Cancel(t *testing.T) {
	f := New[int]()

	require.True(t, f.Cancel())
	assert.False(t, f.Cancel())

	_, err := f.Get(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestFuture_CancelForwarding(t *testing.T) {
	outer := New[int]()
	inner := New[int]()

	outer.ForwardCancelTo(func() { inner.Cancel() })
	outer.Cancel()

	select {
	case <-inner.Done():
	case <-time.After(time.Second):
		t.Fatal("cancellation did not reach the inner future")
	}
	_, err := inner.Get(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestFuture_ForwardCancelToAfterCancel(t *testing.T) {
	outer := New[int]()
	inner := New[int]()

	// cancellation lands before the link exists; linking must still reach
	// the inner future
	outer.Cancel()
	outer.ForwardCancelTo(func() { inner.Cancel() })

	_, err := inner.Get(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestFuture_ForwardCancelToAfterCompletionDoesNotFire(t *testing.T) {
	outer := Completed(1)

	outer.ForwardCancelTo(func() {
		t.Error("forwarding fired on a successfully completed future")
	})
}

func TestFuture_OnCompleteAfterSettleRunsInline(t *testing.T) {
	f := Completed(7)

	ran := false
	f.OnComplete(func(v int, err error) {
		ran = true
		assert.Equal(t, 7, v)
		assert.NoError(t, err)
	})
	assert.True(t, ran)
}

func TestFuture_OnCompleteOrder(t *testing.T) {
	f := New[int]()

	var order []int
	f.OnComplete(func(int, error) { order = append(order, 1) })
	f.OnComplete(func(int, error) { order = append(order, 2) })
	f.Complete(0)

	assert.Equal(t, []int{1, 2}, order)
}

func TestFuture_GetHonoursContext(t *testing.T) {
	f := New[int]()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnwrapFailure(t *testing.T) {
	assert.Nil(t, UnwrapFailure(nil))
	assert.Equal(t, errBoom, UnwrapFailure(errBoom))
	assert.Equal(t, errBoom, UnwrapFailure(&ExecutionError{Cause: errBoom}))

	nested := &ExecutionError{Cause: &ExecutionError{Cause: errBoom}}
	assert.Equal(t, errBoom, UnwrapFailure(nested))
}

func TestExecutionError_Unwrap(t *testing.T) {
	err := &ExecutionError{Cause: errBoom}
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "boom")
}
