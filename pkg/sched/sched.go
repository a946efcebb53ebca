// Package sched provides scheduling executors for delayed retry attempts.
// The retry engine owns no pool of its own; callers pick or supply a
// Scheduler when they want rescheduled attempts off the calling goroutine.
package sched

import (
	"time"

	"github.com/jzx17/retrykit/pkg/types"
)

// Scheduler runs a function after a delay
type Scheduler interface {
	// Schedule arranges for fn to run once delay has elapsed. A zero or
	// negative delay may run fn without waiting.
	Schedule(delay time.Duration, fn func())
}

// Immediate runs scheduled functions inline on the calling goroutine,
// ignoring the delay. Intended for tests and for callers that manage their
// own pacing.
type Immediate struct{}

// NewImmediate creates an inline scheduler
func NewImmediate() *Immediate {
	return &Immediate{}
}

// Schedule runs fn inline
func (s *Immediate) Schedule(delay time.Duration, fn func()) {
	fn()
}

// TimerScheduler runs each scheduled function on its own goroutine after the
// delay elapses on an injectable clock
type TimerScheduler struct {
	clock types.Clock
}

// NewTimerScheduler creates a clock-driven scheduler
func NewTimerScheduler(clock types.Clock) *TimerScheduler {
	if clock == nil {
		clock = types.NewRealClock()
	}
	return &TimerScheduler{clock: clock}
}

// Schedule runs fn on a new goroutine once delay has elapsed
func (s *TimerScheduler) Schedule(delay time.Duration, fn func()) {
	if delay <= 0 {
		go fn()
		return
	}
	go func() {
		timer := s.clock.NewTimer(delay)
		defer timer.Stop()
		<-timer.C()
		fn()
	}()
}
