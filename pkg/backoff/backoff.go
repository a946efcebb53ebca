// Package backoff provides pause policies applied between failed retry attempts
package backoff

import (
	"context"
	"time"
)

// BackOffContext carries per-episode backoff state. Implementations are
// opaque to callers; the executor obtains one from Start and passes it back
// on every BackOff call of the same episode.
type BackOffContext interface{}

// Policy computes and applies the pause between failed attempts. Policy
// instances hold configuration only; per-episode state lives in the
// BackOffContext, so one instance is safely shared across concurrent
// episodes.
type Policy interface {
	// Start begins a new backoff episode
	Start() BackOffContext

	// BackOff pauses for the period the policy computes for this episode.
	// Returns a BackOffInterruptedError when the pause is cancelled.
	BackOff(ctx context.Context, bc BackOffContext) error
}

// SleepingPolicy is a Policy whose pause primitive can be swapped. The async
// execution path replaces the sleeper with a recording variant so the same
// numeric model drives non-blocking rescheduling.
type SleepingPolicy interface {
	Policy

	// WithSleeper returns a copy of the policy using the given sleeper.
	// The receiver is not modified.
	WithSleeper(s Sleeper) Policy
}

// NoBackOff pauses for no time between attempts
type NoBackOff struct{}

// NewNoBackOff creates a policy that does not pause
func NewNoBackOff() *NoBackOff {
	return &NoBackOff{}
}

// Start begins a new backoff episode
func (p *NoBackOff) Start() BackOffContext {
	return nil
}

// BackOff returns immediately
func (p *NoBackOff) BackOff(ctx context.Context, bc BackOffContext) error {
	return nil
}

// Fixed pauses for the same period between every pair of attempts
type Fixed struct {
	period  time.Duration
	sleeper Sleeper
}

// NewFixed creates a fixed backoff policy
func NewFixed(period time.Duration, opts ...Option) *Fixed {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Fixed{
		period:  period,
		sleeper: o.sleeper,
	}
}

// Period returns the configured pause
func (p *Fixed) Period() time.Duration {
	return p.period
}

// Start begins a new backoff episode
func (p *Fixed) Start() BackOffContext {
	return nil
}

// BackOff pauses for the configured period
func (p *Fixed) BackOff(ctx context.Context, bc BackOffContext) error {
	return p.sleeper.Sleep(ctx, p.period)
}

// WithSleeper returns a copy of the policy using the given sleeper
func (p *Fixed) WithSleeper(s Sleeper) Policy {
	clone := *p
	clone.sleeper = s
	return &clone
}
