// Package retry provides a complete retry orchestration engine: decision
// policies, backoff-paced execution, stateful episode correlation and
// non-blocking rescheduling for future-returning operations.
//
// Key Features:
//
// 1. Retry policies:
//   - MaxAttemptsPolicy: stop after a fixed number of attempts
//   - TimeoutPolicy: stop once the episode is older than a deadline
//   - AlwaysPolicy / NeverPolicy: unbounded retry, or none at all
//   - PredicatePolicy: retry decided by a predicate over the last failure
//   - ErrorClassifierPolicy: per-error-type child policies
//   - CompositePolicy: AND/OR combination of child policies
//   - CircuitBreakerPolicy: cooling-off circuit around a delegate policy
//
// 2. Backoff policies (pkg/backoff):
//   - NoBackOff, Fixed, UniformRandom, Exponential, ExponentialRandom
//
// 3. Stateful correlation:
//   - episodes persisted across external re-deliveries via a caller key
//   - pluggable caches: in-memory map, recency-ordered, serialized bytes
//
// 4. Asynchronous rescheduling:
//   - callbacks returning future handles retry without blocking the caller
//   - backoff pauses become scheduled continuations on a caller-supplied
//     executor (pkg/sched)
//
// Basic usage example:
//
//	exec := retry.NewExecutor(
//		retry.WithPolicy(retry.NewMaxAttempts(3)),
//		retry.WithBackOff(backoff.NewFixed(100*time.Millisecond)),
//	)
//
//	result, err := retry.Execute(exec, ctx, func(ctx context.Context, rc retry.Context) (string, error) {
//		return doSomething(ctx)
//	})
//
// Recovery on exhaustion:
//
//	result, err := retry.ExecuteWithRecovery(exec, ctx, work,
//		func(ctx context.Context, rc retry.Context) (string, error) {
//			return "fallback", nil
//		})
//
// Stateful retry for externally re-delivered work:
//
//	state := retry.NewState(messageID)
//	result, err := retry.ExecuteStateful(exec, ctx, work, state)
//
// Circuit breaker:
//
//	policy := retry.NewCircuitBreaker(retry.NewMaxAttempts(3),
//		retry.WithOpenTimeout(5*time.Second),
//		retry.WithResetTimeout(20*time.Second))
//	exec := retry.NewExecutor(retry.WithPolicy(policy))
//	// drive with ExecuteStateful so the circuit survives invocations
//
// Asynchronous execution:
//
//	exec := retry.NewExecutor(
//		retry.WithBackOff(fixed),
//		retry.WithScheduler(scheduler),
//	)
//	f := retry.ExecuteAsync(exec, ctx, asyncWork)
//	value, err := f.Get(ctx)
//
// Thread safety:
//
// Policy and backoff instances are stateless with respect to any single
// episode; all mutable state travels in the episode Context, so executors
// and policies are safe to share across concurrent episodes. The context
// cache is internally synchronized.
package retry
