package backoff

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"
)

// UniformRandom pauses for a value drawn uniformly from the closed interval
// [min, max], independently per attempt
type UniformRandom struct {
	min     time.Duration
	max     time.Duration
	sleeper Sleeper
	rand    *lockedRand
}

func validateUniform(min, max time.Duration) (err error) {
	if min < 0 {
		err = multierr.Append(err, errors.New("invalid min for uniform random backoff, need greater than or equal to zero"))
	}
	if max < min {
		err = multierr.Append(err, errors.New("uniform random max value must be greater than or equal to min value"))
	}
	return err
}

// NewUniformRandom creates a uniform random backoff policy
func NewUniformRandom(min, max time.Duration, opts ...Option) (*UniformRandom, error) {
	if err := validateUniform(min, max); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &UniformRandom{
		min:     min,
		max:     max,
		sleeper: o.sleeper,
		rand:    newLockedRand(o.rand),
	}, nil
}

// Start begins a new backoff episode
func (p *UniformRandom) Start() BackOffContext {
	return nil
}

// BackOff pauses for an independent uniform draw from [min, max]
func (p *UniformRandom) BackOff(ctx context.Context, bc BackOffContext) error {
	sleep := p.min
	if width := int64(p.max - p.min); width > 0 {
		sleep = p.min + time.Duration(p.rand.Int63n(width+1))
	}
	return p.sleeper.Sleep(ctx, sleep)
}

// WithSleeper returns a copy of the policy using the given sleeper
func (p *UniformRandom) WithSleeper(s Sleeper) Policy {
	clone := &UniformRandom{
		min:     p.min,
		max:     p.max,
		sleeper: s,
		rand:    p.rand,
	}
	return clone
}
