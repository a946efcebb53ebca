package backoff

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/multierr"
)

// Exponential grows the pause geometrically per failed attempt. The period
// for attempt n (0-indexed) is initial*multiplier^n clamped at max. With
// randomization enabled each pause is drawn uniformly from
// [period, 2*period-initial).
type Exponential struct {
	initial    time.Duration
	multiplier float64
	max        time.Duration
	random     bool
	sleeper    Sleeper
	rand       *lockedRand
}

// exponentialContext tracks the current period for one episode
type exponentialContext struct {
	mu     sync.Mutex
	period time.Duration
}

// next returns the current period and advances the sequence
func (c *exponentialContext) next(multiplier float64, max time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	period := c.period
	if period > max {
		period = max
	}

	grown := time.Duration(float64(c.period) * multiplier)
	if grown > max {
		grown = max
	}
	c.period = grown

	return period
}

func validateExponential(initial time.Duration, multiplier float64, max time.Duration) (err error) {
	if initial <= 0 {
		err = multierr.Append(err, errors.New("invalid initial interval for exponential backoff, need greater than zero"))
	}
	if multiplier < 1.0 {
		err = multierr.Append(err, errors.New("invalid multiplier for exponential backoff, need greater than or equal to one"))
	}
	if max < initial {
		err = multierr.Append(err, errors.New("exponential max interval must be greater than or equal to initial interval"))
	}
	return err
}

// NewExponential creates an exponential backoff policy
func NewExponential(initial time.Duration, opts ...Option) (*Exponential, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := validateExponential(initial, o.multiplier, o.max); err != nil {
		return nil, err
	}

	return &Exponential{
		initial:    initial,
		multiplier: o.multiplier,
		max:        o.max,
		sleeper:    o.sleeper,
		rand:       newLockedRand(o.rand),
	}, nil
}

// NewExponentialRandom creates an exponential backoff policy with jittered
// pauses drawn from [period, 2*period-initial)
func NewExponentialRandom(initial time.Duration, opts ...Option) (*Exponential, error) {
	p, err := NewExponential(initial, opts...)
	if err != nil {
		return nil, err
	}
	p.random = true
	return p, nil
}

// InitialInterval returns the first period of the sequence
func (p *Exponential) InitialInterval() time.Duration {
	return p.initial
}

// MaxInterval returns the clamp applied to computed periods
func (p *Exponential) MaxInterval() time.Duration {
	return p.max
}

// Start begins a new backoff episode
func (p *Exponential) Start() BackOffContext {
	return &exponentialContext{period: p.initial}
}

// BackOff pauses for the episode's next period
func (p *Exponential) BackOff(ctx context.Context, bc BackOffContext) error {
	ec, ok := bc.(*exponentialContext)
	if !ok {
		ec = p.Start().(*exponentialContext)
	}

	period := ec.next(p.multiplier, p.max)

	sleep := period
	if p.random {
		// width is zero on the first attempt, so the first pause is
		// exactly the initial interval
		if width := int64(period - p.initial); width > 0 {
			sleep = period + time.Duration(p.rand.Int63n(width))
		}
	}

	return p.sleeper.Sleep(ctx, sleep)
}

// WithSleeper returns a copy of the policy using the given sleeper
func (p *Exponential) WithSleeper(s Sleeper) Policy {
	clone := &Exponential{
		initial:    p.initial,
		multiplier: p.multiplier,
		max:        p.max,
		random:     p.random,
		sleeper:    s,
		rand:       p.rand,
	}
	return clone
}
