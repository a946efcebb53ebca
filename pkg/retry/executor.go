package retry

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jzx17/retrykit/pkg/backoff"
	"github.com/jzx17/retrykit/pkg/sched"
	"github.com/jzx17/retrykit/pkg/types"
)

// Callback is the unit of work executed under the retry contract
type Callback[T any] func(ctx context.Context, rc Context) (T, error)

// RecoveryCallback substitutes a result once an episode is exhausted
type RecoveryCallback[T any] func(ctx context.Context, rc Context) (T, error)

// Executor composes one retry policy, one backoff policy, the context cache
// and listeners into the attempt loop. An Executor is safe for concurrent
// use; every episode's state travels in its own Context.
type Executor struct {
	policy                    Policy
	backOff                   backoff.Policy
	cache                     ContextCache
	listeners                 []Listener
	clock                     types.Clock
	logger                    zerolog.Logger
	scheduler                 sched.Scheduler
	label                     string
	throwLastErrorOnExhausted bool
}

// ExecutorOption is a configuration option for the retry executor
type ExecutorOption func(*Executor)

// WithPolicy sets the retry policy
func WithPolicy(p Policy) ExecutorOption {
	return func(e *Executor) {
		e.policy = p
	}
}

// WithBackOff sets the backoff policy
func WithBackOff(b backoff.Policy) ExecutorOption {
	return func(e *Executor) {
		e.backOff = b
	}
}

// WithCache sets the stateful context cache
func WithCache(c ContextCache) ExecutorOption {
	return func(e *Executor) {
		e.cache = c
	}
}

// WithListener appends a listener; listeners open in registration order and
// close in reverse
func WithListener(l Listener) ExecutorOption {
	return func(e *Executor) {
		e.listeners = append(e.listeners, l)
	}
}

// WithClock sets the clock for time operations
func WithClock(clock types.Clock) ExecutorOption {
	return func(e *Executor) {
		e.clock = clock
	}
}

// WithLogger sets the structured logger
func WithLogger(logger zerolog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithScheduler sets the executor asynchronous attempts are rescheduled on.
// Without one, rescheduled attempts run inline on the goroutine that
// completed the previous attempt.
func WithScheduler(s sched.Scheduler) ExecutorOption {
	return func(e *Executor) {
		e.scheduler = s
	}
}

// WithLabel names the operation for listeners and logs
func WithLabel(label string) ExecutorOption {
	return func(e *Executor) {
		e.label = label
	}
}

// WithThrowLastErrorOnExhausted makes exhausted stateful episodes re-raise
// the raw last failure instead of a distinct exhaustion error
func WithThrowLastErrorOnExhausted(enabled bool) ExecutorOption {
	return func(e *Executor) {
		e.throwLastErrorOnExhausted = enabled
	}
}

// NewExecutor creates a retry executor. Defaults: three attempts, no
// backoff, in-memory cache, no listeners.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		policy:  NewMaxAttempts(DefaultMaxAttempts),
		backOff: backoff.NewNoBackOff(),
		cache:   NewMapCache(),
		clock:   types.NewRealClock(),
		logger:  zerolog.Nop(),
		label:   "retry",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs cb under the retry contract
func Execute[T any](e *Executor, ctx context.Context, cb Callback[T]) (T, error) {
	return doExecute(e, ctx, cb, nil, nil)
}

// ExecuteWithRecovery runs cb under the retry contract, absorbing exhaustion
// through recovery
func ExecuteWithRecovery[T any](e *Executor, ctx context.Context, cb Callback[T], recovery RecoveryCallback[T]) (T, error) {
	return doExecute(e, ctx, cb, nil, recovery)
}

// ExecuteStateful runs cb as a stateful episode correlated by state's key
func ExecuteStateful[T any](e *Executor, ctx context.Context, cb Callback[T], state *State) (T, error) {
	return doExecute(e, ctx, cb, state, nil)
}

// ExecuteStatefulWithRecovery runs cb as a stateful episode with a recovery
// fallback
func ExecuteStatefulWithRecovery[T any](e *Executor, ctx context.Context, cb Callback[T], state *State, recovery RecoveryCallback[T]) (T, error) {
	return doExecute(e, ctx, cb, state, recovery)
}

func doExecute[T any](e *Executor, ctx context.Context, cb Callback[T], state *State, recovery RecoveryCallback[T]) (result T, err error) {
	var zero T

	rc, err := e.open(ctx, state)
	if err != nil {
		return zero, err
	}

	episodeCtx := WithEpisode(ctx, rc)
	publishEpisode(rc)

	var lastErr error
	exhausted := false

	defer func() {
		e.closeEpisode(rc, state, lastErr == nil || exhausted)
		e.notifyClose(rc, err)
		unpublishEpisode(rc)
	}()

	if !e.notifyOpen(rc) {
		err = types.ErrTerminatedByListener
		return zero, err
	}

	bctx := e.backOffContext(rc)

	for e.policy.CanRetry(rc) && !rc.ExhaustedOnly() {
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			err = ctx.Err()
			return zero, err
		default:
		}

		var attemptErr error
		start := e.clock.Now()
		result, attemptErr = cb(episodeCtx, rc)
		if attemptErr == nil {
			lastErr = nil
			return result, nil
		}
		lastErr = attemptErr

		e.logger.Debug().
			Str("label", e.label).
			Int("retry_count", rc.RetryCount()).
			Dur("elapsed", e.clock.Since(start)).
			Err(attemptErr).
			Msg("attempt failed")

		regErr := e.registerError(rc, state, attemptErr)
		e.notifyError(rc, attemptErr)
		if regErr != nil {
			// bookkeeping failures are never swallowed; the attempt's
			// own error rides along as context
			err = types.NewRetryError("register", regErr).
				WithContext("attempt_error", attemptErr.Error())
			return zero, err
		}

		if e.policy.CanRetry(rc) && !rc.ExhaustedOnly() {
			if boErr := e.backOff.BackOff(ctx, bctx); boErr != nil {
				err = boErr
				return zero, err
			}
		}

		if state != nil && state.RollbackFor(attemptErr) {
			err = attemptErr
			return zero, err
		}

		// globally persisted episodes run one attempt per invocation; the
		// failure propagates so the caller re-delivers, like a rollback
		if state != nil && HasAttributeTrue(rc, AttrGlobalState) {
			err = attemptErr
			return zero, err
		}
	}

	exhausted = true
	result, err = handleExhausted(e, episodeCtx, rc, state, recovery)
	return result, err
}

func handleExhausted[T any](e *Executor, ctx context.Context, rc Context, state *State, recovery RecoveryCallback[T]) (T, error) {
	var zero T

	rc.SetAttribute(AttrExhausted, true)
	if state != nil && !HasAttributeTrue(rc, AttrGlobalState) {
		e.cache.Remove(state.Key())
	}

	if recovery != nil {
		recovered, rerr := recovery(ctx, rc)
		if rerr != nil {
			return zero, rerr
		}
		rc.SetAttribute(AttrRecovered, true)
		return recovered, nil
	}

	e.logger.Debug().
		Str("label", e.label).
		Int("retry_count", rc.RetryCount()).
		Msg("retry exhausted with no recovery path")

	last := rc.LastError()
	if state == nil {
		// stateless episodes re-raise the last failure unchanged
		if last == nil {
			return zero, types.NewExhaustedError(rc.RetryCount(), nil)
		}
		return zero, last
	}
	if e.throwLastErrorOnExhausted && last != nil {
		return zero, last
	}
	return zero, types.NewExhaustedError(rc.RetryCount(), last)
}

// open returns a fresh context, or for stateful episodes rehydrates the one
// cached under the correlation key
func (e *Executor) open(ctx context.Context, state *State) (Context, error) {
	parent := EpisodeFromContext(ctx)

	if state == nil {
		return e.doOpen(parent, nil)
	}
	if state.ForceRefresh() {
		return e.doOpen(parent, state)
	}
	if !e.cache.Contains(state.Key()) {
		// the cache only holds keys with failure history
		return e.doOpen(parent, state)
	}

	rc, ok := e.cache.Get(state.Key())
	if !ok || rc == nil {
		return nil, types.NewRetryError("open", types.ErrCacheInconsistency)
	}
	rc.RemoveAttribute(AttrClosed)
	rc.RemoveAttribute(AttrExhausted)
	rc.RemoveAttribute(AttrRecovered)
	return rc, nil
}

func (e *Executor) doOpen(parent Context, state *State) (Context, error) {
	rc := e.policy.Open(parent)
	rc.SetAttribute(AttrLabel, e.label)
	if state != nil {
		rc.SetAttribute(AttrStateKey, state.Key())
		if HasAttributeTrue(rc, AttrGlobalState) {
			// globally persisted contexts enter the cache at open, not
			// on first failure
			if err := e.registerContext(rc, state); err != nil {
				return nil, types.NewRetryError("open", err)
			}
		}
	}
	return rc, nil
}

// registerContext persists a stateful episode under its key. A context with
// registered failures whose key is missing from the cache means the key's
// equality contract is unstable; that is fatal, not a restart.
func (e *Executor) registerContext(rc Context, state *State) error {
	key := state.Key()
	if key == nil {
		return nil
	}
	if rc.RetryCount() > 1 && !e.cache.Contains(key) {
		return types.ErrCacheInconsistency
	}
	return e.cache.Put(key, rc)
}

func (e *Executor) registerError(rc Context, state *State, err error) error {
	e.policy.RegisterError(rc, err)
	if state == nil {
		return nil
	}
	return e.registerContext(rc, state)
}

// backOffContext reuses the episode's backoff state so stateful
// re-deliveries resume the delay sequence instead of restarting it
func (e *Executor) backOffContext(rc Context) backoff.BackOffContext {
	if v, ok := rc.Attribute(attrBackOffContext); ok && v != nil {
		return v
	}
	bctx := e.backOff.Start()
	if bctx != nil {
		rc.SetAttribute(attrBackOffContext, bctx)
	}
	return bctx
}

// closeEpisode retires the context. A stateful episode that has not
// succeeded stays open in the cache for the next delivery.
func (e *Executor) closeEpisode(rc Context, state *State, succeeded bool) {
	if state != nil {
		if !succeeded {
			return
		}
		if !HasAttributeTrue(rc, AttrGlobalState) {
			e.cache.Remove(state.Key())
		}
	}
	e.policy.Close(rc)
	rc.SetAttribute(AttrClosed, true)
}

func (e *Executor) notifyOpen(rc Context) bool {
	for _, l := range e.listeners {
		if !l.Open(rc, e.label) {
			return false
		}
	}
	return true
}

func (e *Executor) notifyError(rc Context, err error) {
	for i := len(e.listeners) - 1; i >= 0; i-- {
		e.listeners[i].OnError(rc, err)
	}
}

func (e *Executor) notifyClose(rc Context, err error) {
	for i := len(e.listeners) - 1; i >= 0; i-- {
		e.listeners[i].Close(rc, err)
	}
}
