package retry

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jzx17/retrykit/pkg/types"
)

func TestCaches_PutGetRemove(t *testing.T) {
	lruCache, err := NewLRUCache(8)
	require.NoError(t, err)

	caches := map[string]ContextCache{
		"map":        NewMapCache(),
		"lru":        lruCache,
		"serialized": NewSerializedCache(),
	}

	for name, cache := range caches {
		t.Run(name, func(t *testing.T) {
			rc := NewBaseContext(nil)
			rc.RegisterError(errBoom)

			require.NoError(t, cache.Put("k", rc))
			require.True(t, cache.Contains("k"))

			got, ok := cache.Get("k")
			require.True(t, ok)
			assert.Equal(t, 1, got.RetryCount())

			cache.Remove("k")
			assert.False(t, cache.Contains("k"))
			_, ok = cache.Get("k")
			assert.False(t, ok)
		})
	}
}

func TestCaches_HardCapacityNeverEvicts(t *testing.T) {
	lruCache, err := NewLRUCache(2)
	require.NoError(t, err)

	caches := map[string]ContextCache{
		"map":        NewMapCacheWithCapacity(2),
		"lru":        lruCache,
		"serialized": NewSerializedCacheWithCapacity(2),
	}

	for name, cache := range caches {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, cache.Put("a", NewBaseContext(nil)))
			require.NoError(t, cache.Put("b", NewBaseContext(nil)))

			err := cache.Put("c", NewBaseContext(nil))
			require.ErrorIs(t, err, types.ErrCacheCapacityExceeded)

			// the rejected insert displaced nothing
			assert.True(t, cache.Contains("a"))
			assert.True(t, cache.Contains("b"))
			assert.False(t, cache.Contains("c"))

			// overwriting an existing key is not an insert
			assert.NoError(t, cache.Put("a", NewBaseContext(nil)))
		})
	}
}

func TestSerializedCache_ReturnsReconstructedCopies(t *testing.T) {
	cache := NewSerializedCache()

	rc := NewBaseContext(nil)
	rc.RegisterError(errBoom)
	require.NoError(t, cache.Put("k", rc))

	first, ok := cache.Get("k")
	require.True(t, ok)
	second, ok := cache.Get("k")
	require.True(t, ok)

	assert.NotSame(t, rc, first)
	assert.NotSame(t, first, second)
	assert.Equal(t, first.RetryCount(), second.RetryCount())

	// mutations to a copy never reach the stored bytes
	first.(*BaseContext).RegisterError(errBoom)
	again, _ := cache.Get("k")
	assert.Equal(t, 1, again.RetryCount())
}

func TestSerializedCache_RejectsForeignContextTypes(t *testing.T) {
	cache := NewSerializedCache()
	policy := NewCircuitBreaker(NewMaxAttempts(2))
	rc := policy.Open(nil)

	err := cache.Put("k", rc)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrCacheInconsistency)
}

func TestExecuteStateful_WithSerializedCache(t *testing.T) {
	cache := NewSerializedCache()
	exec := NewExecutor(WithPolicy(NewMaxAttempts(3)), WithCache(cache))
	state := NewState("ser-1")

	_, err := ExecuteStateful(exec, context.Background(), func(ctx context.Context, rc Context) (string, error) {
		return "", errBoom
	}, state)
	require.Error(t, err)

	var observed int
	result, err := ExecuteStateful(exec, context.Background(), func(ctx context.Context, rc Context) (string, error) {
		observed = rc.RetryCount()
		return "done", nil
	}, state)

	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, 1, observed, "failure history survives the byte round trip")
	assert.False(t, cache.Contains("ser-1"))
}

func TestMapCache_ConcurrentAccess(t *testing.T) {
	cache := NewMapCache()

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("g%d-%d", g, i%10)
				_ = cache.Put(key, NewBaseContext(nil))
				cache.Get(key)
				cache.Contains(key)
				cache.Remove(key)
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}
}
