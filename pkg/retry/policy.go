package retry

import (
	"time"

	"github.com/jzx17/retrykit/pkg/types"
)

// Policy decides whether an episode may attempt again. Instances hold
// configuration only; all episode state lives on the Context, so one policy
// is safely shared across concurrent episodes.
type Policy interface {
	// Open begins a new episode, optionally nested under parent
	Open(parent Context) Context

	// CanRetry reports whether another attempt is allowed
	CanRetry(rc Context) bool

	// RegisterError records a failed attempt on the context
	RegisterError(rc Context, err error)

	// Close retires the episode's context
	Close(rc Context)
}

// errorRegisterer is satisfied by contexts that record failures themselves
type errorRegisterer interface {
	RegisterError(err error)
}

func registerOn(rc Context, err error) {
	if r, ok := rc.(errorRegisterer); ok {
		r.RegisterError(err)
	}
}

// DefaultMaxAttempts is the attempt limit used when none is configured
const DefaultMaxAttempts = 3

// MaxAttemptsPolicy allows a fixed number of attempts
type MaxAttemptsPolicy struct {
	maxAttempts int
}

// NewMaxAttempts creates a policy allowing n attempts in total
func NewMaxAttempts(n int) *MaxAttemptsPolicy {
	if n < 1 {
		n = DefaultMaxAttempts
	}
	return &MaxAttemptsPolicy{maxAttempts: n}
}

// MaxAttempts returns the configured attempt limit
func (p *MaxAttemptsPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// Open begins a new episode
func (p *MaxAttemptsPolicy) Open(parent Context) Context {
	return NewBaseContext(parent)
}

// CanRetry reports whether another attempt is allowed
func (p *MaxAttemptsPolicy) CanRetry(rc Context) bool {
	return rc.RetryCount() < p.maxAttempts
}

// RegisterError records a failed attempt
func (p *MaxAttemptsPolicy) RegisterError(rc Context, err error) {
	registerOn(rc, err)
}

// Close retires the episode's context
func (p *MaxAttemptsPolicy) Close(rc Context) {
}

// AlwaysPolicy allows attempts without limit
type AlwaysPolicy struct{}

// NewAlways creates a policy that never gives up
func NewAlways() *AlwaysPolicy {
	return &AlwaysPolicy{}
}

// Open begins a new episode
func (p *AlwaysPolicy) Open(parent Context) Context {
	return NewBaseContext(parent)
}

// CanRetry always allows another attempt
func (p *AlwaysPolicy) CanRetry(rc Context) bool {
	return true
}

// RegisterError records a failed attempt
func (p *AlwaysPolicy) RegisterError(rc Context, err error) {
	registerOn(rc, err)
}

// Close retires the episode's context
func (p *AlwaysPolicy) Close(rc Context) {
}

// NeverPolicy allows the first attempt and forbids any retry
type NeverPolicy struct{}

// NewNever creates a policy that forbids retries
func NewNever() *NeverPolicy {
	return &NeverPolicy{}
}

// Open begins a new episode
func (p *NeverPolicy) Open(parent Context) Context {
	return NewBaseContext(parent)
}

// CanRetry allows only the attempt before the first registered failure
func (p *NeverPolicy) CanRetry(rc Context) bool {
	return rc.RetryCount() == 0
}

// RegisterError records a failed attempt
func (p *NeverPolicy) RegisterError(rc Context, err error) {
	registerOn(rc, err)
}

// Close retires the episode's context
func (p *NeverPolicy) Close(rc Context) {
}

// PredicatePolicy retries while a user predicate accepts the last failure
type PredicatePolicy struct {
	predicate func(error) bool
}

// NewPredicate creates a policy driven by a predicate over the last failure
func NewPredicate(predicate func(error) bool) *PredicatePolicy {
	return &PredicatePolicy{predicate: predicate}
}

// Open begins a new episode
func (p *PredicatePolicy) Open(parent Context) Context {
	return NewBaseContext(parent)
}

// CanRetry consults the predicate once a failure has been registered
func (p *PredicatePolicy) CanRetry(rc Context) bool {
	last := rc.LastError()
	if last == nil {
		return true
	}
	return p.predicate(last)
}

// RegisterError records a failed attempt
func (p *PredicatePolicy) RegisterError(rc Context, err error) {
	registerOn(rc, err)
}

// Close retires the episode's context
func (p *PredicatePolicy) Close(rc Context) {
}

// attrTimeoutStart records when a timeout episode opened
const attrTimeoutStart = "timeout.start"

// DefaultTimeout is the episode duration used when none is configured
const DefaultTimeout = time.Second

// TimeoutPolicy retries while the episode is younger than a deadline,
// measured from open rather than from the last attempt
type TimeoutPolicy struct {
	timeout time.Duration
	clock   types.Clock
}

// NewTimeout creates a timeout policy
func NewTimeout(timeout time.Duration) *TimeoutPolicy {
	return NewTimeoutWithClock(timeout, types.NewRealClock())
}

// NewTimeoutWithClock creates a timeout policy on an injectable clock
func NewTimeoutWithClock(timeout time.Duration, clock types.Clock) *TimeoutPolicy {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if clock == nil {
		clock = types.NewRealClock()
	}
	return &TimeoutPolicy{timeout: timeout, clock: clock}
}

// Timeout returns the configured episode deadline
func (p *TimeoutPolicy) Timeout() time.Duration {
	return p.timeout
}

// Open begins a new episode, stamping the open time. The stamp lives in the
// attribute bag so episodes survive cache serialization.
func (p *TimeoutPolicy) Open(parent Context) Context {
	rc := NewBaseContext(parent)
	rc.SetAttribute(attrTimeoutStart, p.clock.Now())
	return rc
}

// CanRetry reports whether the episode deadline has not yet passed
func (p *TimeoutPolicy) CanRetry(rc Context) bool {
	v, ok := rc.Attribute(attrTimeoutStart)
	if !ok {
		return false
	}
	start, ok := v.(time.Time)
	if !ok {
		return false
	}
	return p.clock.Since(start) < p.timeout
}

// RegisterError records a failed attempt
func (p *TimeoutPolicy) RegisterError(rc Context, err error) {
	registerOn(rc, err)
}

// Close retires the episode's context
func (p *TimeoutPolicy) Close(rc Context) {
}
