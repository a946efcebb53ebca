package backoff

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/jzx17/retrykit/pkg/types"
)

// Sleeper is the pause primitive used by sleeping backoff policies
type Sleeper interface {
	// Sleep blocks for d or until ctx is cancelled. Cancellation surfaces
	// as a BackOffInterruptedError carrying the context error.
	Sleep(ctx context.Context, d time.Duration) error
}

// clockSleeper blocks on an injectable clock
type clockSleeper struct {
	clock types.Clock
}

// NewClockSleeper creates a sleeper that blocks on the given clock
func NewClockSleeper(clock types.Clock) Sleeper {
	return &clockSleeper{clock: clock}
}

// Sleep blocks for d or until ctx is cancelled
func (s *clockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := s.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return &types.BackOffInterruptedError{Cause: ctx.Err()}
	case <-timer.C():
		return nil
	}
}

// RecordingSleeper records the requested period instead of pausing. The
// async result processor reads the last recorded period to schedule the next
// attempt, turning a blocking pause into a delay value.
type RecordingSleeper struct {
	mu   sync.Mutex
	last time.Duration
}

// NewRecordingSleeper creates a sleeper that only records periods
func NewRecordingSleeper() *RecordingSleeper {
	return &RecordingSleeper{}
}

// Sleep records d and returns immediately
func (s *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.last = d
	s.mu.Unlock()
	return nil
}

// LastPeriod returns the most recently recorded period
func (s *RecordingSleeper) LastPeriod() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// lockedRand serializes draws from a shared random source
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand(r *rand.Rand) *lockedRand {
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &lockedRand{r: r}
}

// Int63n draws a uniform value in [0, n)
func (l *lockedRand) Int63n(n int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Int63n(n)
}

// options are shared configuration knobs for backoff policies
type options struct {
	sleeper    Sleeper
	multiplier float64
	max        time.Duration
	rand       *rand.Rand
}

func defaultOptions() options {
	return options{
		sleeper:    NewClockSleeper(types.NewRealClock()),
		multiplier: 2.0,
		max:        30 * time.Second,
	}
}

// Option configures a backoff policy
type Option func(*options)

// WithSleeper sets the pause primitive
func WithSleeper(s Sleeper) Option {
	return func(o *options) {
		o.sleeper = s
	}
}

// WithClock sets the clock the default sleeper blocks on
func WithClock(clock types.Clock) Option {
	return func(o *options) {
		o.sleeper = NewClockSleeper(clock)
	}
}

// WithMultiplier sets the growth factor for exponential backoff
func WithMultiplier(multiplier float64) Option {
	return func(o *options) {
		o.multiplier = multiplier
	}
}

// WithMaxInterval sets the largest period a policy will ever compute
func WithMaxInterval(max time.Duration) Option {
	return func(o *options) {
		o.max = max
	}
}

// withRand overrides the random source for deterministic tests
func withRand(r *rand.Rand) Option {
	return func(o *options) {
		o.rand = r
	}
}
