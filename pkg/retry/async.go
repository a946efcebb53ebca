package retry

import (
	"context"
	"sync"

	"github.com/jzx17/retrykit/pkg/backoff"
	"github.com/jzx17/retrykit/pkg/future"
	"github.com/jzx17/retrykit/pkg/types"
)

// AsyncCallback is a unit of work returning a pending result handle
type AsyncCallback[T any] func(ctx context.Context, rc Context) *future.Future[T]

// ExecuteAsync runs cb under the retry contract without ever blocking the
// caller on backoff. The returned future resolves to the first successful
// attempt, or fails once the policy is exhausted. Instead of sleeping, the
// executor swaps the backoff policy's pause primitive for a recording one
// and schedules the next attempt after the recorded delay on the configured
// scheduler; without a scheduler the next attempt runs inline on whichever
// goroutine completed the previous one. Attempts are strictly serialized.
// Cancelling the returned future cancels the currently active attempt.
func ExecuteAsync[T any](e *Executor, ctx context.Context, cb AsyncCallback[T]) *future.Future[T] {
	return doExecuteAsync(e, ctx, cb, nil)
}

// ExecuteAsyncWithRecovery is ExecuteAsync with a recovery fallback
// absorbing exhaustion
func ExecuteAsyncWithRecovery[T any](e *Executor, ctx context.Context, cb AsyncCallback[T], recovery RecoveryCallback[T]) *future.Future[T] {
	return doExecuteAsync(e, ctx, cb, recovery)
}

func doExecuteAsync[T any](e *Executor, ctx context.Context, cb AsyncCallback[T], recovery RecoveryCallback[T]) *future.Future[T] {
	outer := future.New[T]()

	rc, err := e.open(ctx, nil)
	if err != nil {
		outer.Fail(err)
		return outer
	}

	episodeCtx := WithEpisode(ctx, rc)

	// identity-registry publication is only valid on the initiating
	// goroutine; continuations reach the episode through the context
	// carrier
	publishEpisode(rc)
	defer unpublishEpisode(rc)

	var closeOnce sync.Once
	finish := func(v T, ferr error) {
		closeOnce.Do(func() {
			e.closeEpisode(rc, nil, true)
			e.notifyClose(rc, ferr)
			if ferr != nil {
				outer.Fail(ferr)
			} else {
				outer.Complete(v)
			}
		})
	}

	if !e.notifyOpen(rc) {
		var zero T
		finish(zero, types.ErrTerminatedByListener)
		return outer
	}

	// non-pausing rendition of the backoff policy; the rescheduler reads
	// the recorded period, so one numeric model drives both paths
	recorder := backoff.NewRecordingSleeper()
	pol := e.backOff
	if sp, ok := pol.(backoff.SleepingPolicy); ok {
		pol = sp.WithSleeper(recorder)
	}
	bctx := pol.Start()

	exhaust := func() {
		var zero T
		rc.SetAttribute(AttrExhausted, true)
		if recovery != nil {
			recovered, rerr := recovery(episodeCtx, rc)
			if rerr != nil {
				finish(zero, rerr)
				return
			}
			rc.SetAttribute(AttrRecovered, true)
			finish(recovered, nil)
			return
		}
		last := rc.LastError()
		if last == nil {
			finish(zero, types.NewExhaustedError(rc.RetryCount(), nil))
			return
		}
		finish(zero, last)
	}

	var attempt func()
	attempt = func() {
		select {
		case <-outer.Done():
			// cancelled while a reschedule was pending; still retire the
			// episode exactly once
			var zero T
			finish(zero, &future.CancelError{})
			return
		default:
		}

		if !e.policy.CanRetry(rc) || rc.ExhaustedOnly() {
			exhaust()
			return
		}

		inner := cb(episodeCtx, rc)
		outer.ForwardCancelTo(func() { inner.Cancel() })

		inner.OnComplete(func(v T, ierr error) {
			if ierr == nil {
				finish(v, nil)
				return
			}

			// peel substrate wrapper layers before classification
			cause := future.UnwrapFailure(ierr)
			e.policy.RegisterError(rc, cause)
			e.notifyError(rc, cause)

			if e.policy.CanRetry(rc) && !rc.ExhaustedOnly() {
				_ = pol.BackOff(episodeCtx, bctx)
				delay := recorder.LastPeriod()
				if e.scheduler != nil {
					e.scheduler.Schedule(delay, attempt)
				} else {
					attempt()
				}
				return
			}
			exhaust()
		})
	}

	attempt()
	return outer
}
