package retry

import (
	"sync"
	"time"

	"github.com/jzx17/retrykit/pkg/types"
)

// BreakerState is the circuit breaker state
type BreakerState int

const (
	// BreakerClosed lets attempts through to the delegate policy
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects attempts without consulting the delegate
	BreakerOpen
)

// String returns the string representation of BreakerState
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "Closed"
	case BreakerOpen:
		return "Open"
	default:
		return "Unknown"
	}
}

// Default circuit breaker windows
const (
	DefaultOpenTimeout  = 5 * time.Second
	DefaultResetTimeout = 20 * time.Second
)

// CircuitBreakerPolicy wraps a delegate policy with a cooling-off circuit.
// The circuit opens when the delegate becomes exhausted within resetTimeout
// of the last failure and closes again, lazily, once resetTimeout has
// elapsed; there is no timer goroutine, every transition is a function of
// the clock evaluated inside CanRetry. A rolling window discards the
// delegate's accumulated failures once openTimeout has elapsed since the
// window started, whatever the circuit state.
//
// Contexts opened by this policy carry the global-state attribute: the
// executor runs a single attempt per invocation and keeps the context cached
// across invocations, so the policy is meant for stateful execution.
type CircuitBreakerPolicy struct {
	delegate     Policy
	openTimeout  time.Duration
	resetTimeout time.Duration
	clock        types.Clock
}

// BreakerOption configures a circuit breaker policy
type BreakerOption func(*CircuitBreakerPolicy)

// WithOpenTimeout sets the rolling window after which the delegate's
// accumulated failures are discarded
func WithOpenTimeout(d time.Duration) BreakerOption {
	return func(p *CircuitBreakerPolicy) {
		p.openTimeout = d
	}
}

// WithResetTimeout sets the cooling-off period an open circuit waits before
// closing again
func WithResetTimeout(d time.Duration) BreakerOption {
	return func(p *CircuitBreakerPolicy) {
		p.resetTimeout = d
	}
}

// WithBreakerClock sets the clock driving the lazy transitions
func WithBreakerClock(clock types.Clock) BreakerOption {
	return func(p *CircuitBreakerPolicy) {
		p.clock = clock
	}
}

// NewCircuitBreaker creates a circuit breaker around delegate
func NewCircuitBreaker(delegate Policy, opts ...BreakerOption) *CircuitBreakerPolicy {
	if delegate == nil {
		delegate = NewMaxAttempts(DefaultMaxAttempts)
	}
	p := &CircuitBreakerPolicy{
		delegate:     delegate,
		openTimeout:  DefaultOpenTimeout,
		resetTimeout: DefaultResetTimeout,
		clock:        types.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// breakerContext extends the base context with circuit state
type breakerContext struct {
	*BaseContext

	mu          sync.Mutex
	delegateCtx Context
	state       BreakerState
	lastFailure time.Time
	windowStart time.Time
	shortCount  int
}

// Open begins a circuit breaker episode
func (p *CircuitBreakerPolicy) Open(parent Context) Context {
	bc := &breakerContext{
		BaseContext: NewBaseContext(parent),
		delegateCtx: p.delegate.Open(parent),
		state:       BreakerClosed,
		windowStart: p.clock.Now(),
	}
	bc.SetAttribute(AttrGlobalState, true)
	bc.SetAttribute(AttrCircuitOpen, false)
	return bc
}

// CanRetry evaluates the circuit lazily against the clock. While the circuit
// is open the delegate is not consulted.
func (p *CircuitBreakerPolicy) CanRetry(rc Context) bool {
	bc, ok := rc.(*breakerContext)
	if !ok {
		return false
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()

	now := p.clock.Now()

	// rolling window: discard the delegate's accumulated failures,
	// independent of open/closed state
	if now.Sub(bc.windowStart) > p.openTimeout {
		bc.delegateCtx = p.delegate.Open(bc.Parent())
		bc.windowStart = now
	}

	if bc.state == BreakerOpen {
		if now.Sub(bc.lastFailure) > p.resetTimeout {
			bc.state = BreakerClosed
			bc.delegateCtx = p.delegate.Open(bc.Parent())
			bc.windowStart = now
			bc.SetAttribute(AttrCircuitOpen, false)
		} else {
			bc.shortCount++
			bc.SetAttribute(AttrCircuitShortCount, bc.shortCount)
			return false
		}
	}

	retryable := p.delegate.CanRetry(bc.delegateCtx)
	if !retryable {
		if now.Sub(bc.lastFailure) > p.resetTimeout {
			// exhaustion is stale, start a fresh delegate episode
			bc.delegateCtx = p.delegate.Open(bc.Parent())
			bc.windowStart = now
			retryable = p.delegate.CanRetry(bc.delegateCtx)
		} else {
			bc.state = BreakerOpen
			bc.SetAttribute(AttrCircuitOpen, true)
		}
	}
	return retryable
}

// RegisterError records the failure on the breaker and the delegate and
// stamps the failure time the lazy transitions measure from
func (p *CircuitBreakerPolicy) RegisterError(rc Context, err error) {
	bc, ok := rc.(*breakerContext)
	if !ok {
		return
	}

	bc.RegisterError(err)

	bc.mu.Lock()
	bc.lastFailure = p.clock.Now()
	delegateCtx := bc.delegateCtx
	bc.mu.Unlock()

	p.delegate.RegisterError(delegateCtx, err)
}

// Close retires the delegate episode
func (p *CircuitBreakerPolicy) Close(rc Context) {
	if bc, ok := rc.(*breakerContext); ok {
		bc.mu.Lock()
		delegateCtx := bc.delegateCtx
		bc.mu.Unlock()
		p.delegate.Close(delegateCtx)
	}
}

// IsOpen reports whether the context's circuit is currently open, applying
// the same lazy transition rules as CanRetry
func (p *CircuitBreakerPolicy) IsOpen(rc Context) bool {
	bc, ok := rc.(*breakerContext)
	if !ok {
		return false
	}

	bc.mu.Lock()
	state := bc.state
	lastFailure := bc.lastFailure
	bc.mu.Unlock()

	if state == BreakerOpen && p.clock.Since(lastFailure) > p.resetTimeout {
		return false
	}
	return state == BreakerOpen
}
