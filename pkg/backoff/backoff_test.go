package backoff

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/jzx17/retrykit/pkg/types"
)

func recorded(t *testing.T, p SleepingPolicy, n int) []time.Duration {
	t.Helper()

	recorder := NewRecordingSleeper()
	policy := p.WithSleeper(recorder)
	bctx := policy.Start()

	periods := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		if err := policy.BackOff(context.Background(), bctx); err != nil {
			t.Fatalf("BackOff failed: %v", err)
		}
		periods = append(periods, recorder.LastPeriod())
	}
	return periods
}

func TestNoBackOff(t *testing.T) {
	p := NewNoBackOff()
	bctx := p.Start()

	start := time.Now()
	if err := p.BackOff(context.Background(), bctx); err != nil {
		t.Fatalf("BackOff failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Errorf("NoBackOff paused for %v", elapsed)
	}
}

func TestFixedBackOff_PausesAtLeastPeriod(t *testing.T) {
	period := 30 * time.Millisecond
	p := NewFixed(period)
	bctx := p.Start()

	for i := 0; i < 3; i++ {
		start := time.Now()
		if err := p.BackOff(context.Background(), bctx); err != nil {
			t.Fatalf("BackOff failed: %v", err)
		}
		if elapsed := time.Since(start); elapsed < period {
			t.Errorf("pause %d was %v, want at least %v", i, elapsed, period)
		}
	}
}

func TestFixedBackOff_Recorded(t *testing.T) {
	period := 100 * time.Millisecond
	periods := recorded(t, NewFixed(period), 4)

	for i, got := range periods {
		if got != period {
			t.Errorf("period %d = %v, want %v", i, got, period)
		}
	}
}

func TestExponentialBackOff_DeterministicSequence(t *testing.T) {
	p, err := NewExponential(100*time.Millisecond,
		WithMultiplier(2.0),
		WithMaxInterval(30*time.Second))
	if err != nil {
		t.Fatalf("NewExponential failed: %v", err)
	}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1600 * time.Millisecond,
		3200 * time.Millisecond,
		6400 * time.Millisecond,
		12800 * time.Millisecond,
		25600 * time.Millisecond,
		30 * time.Second,
		30 * time.Second,
	}

	// repeated episodes must produce the identical sequence
	for run := 0; run < 3; run++ {
		got := recorded(t, p, len(want))
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("run %d period %d = %v, want %v", run, i, got[i], want[i])
			}
		}
	}
}

func TestExponentialBackOff_EpisodesIndependent(t *testing.T) {
	p, err := NewExponential(100 * time.Millisecond)
	if err != nil {
		t.Fatalf("NewExponential failed: %v", err)
	}

	recorder := NewRecordingSleeper()
	policy := p.WithSleeper(recorder)

	first := policy.Start()
	second := policy.Start()

	_ = policy.BackOff(context.Background(), first)
	_ = policy.BackOff(context.Background(), first)
	if got := recorder.LastPeriod(); got != 200*time.Millisecond {
		t.Fatalf("second period of first episode = %v, want 200ms", got)
	}

	_ = policy.BackOff(context.Background(), second)
	if got := recorder.LastPeriod(); got != 100*time.Millisecond {
		t.Errorf("first period of second episode = %v, want 100ms", got)
	}
}

func TestExponentialRandom_Bounds(t *testing.T) {
	initial := 100 * time.Millisecond
	p, err := NewExponentialRandom(initial,
		WithMultiplier(2.0),
		WithMaxInterval(30*time.Second),
		withRand(rand.New(rand.NewSource(1))))
	if err != nil {
		t.Fatalf("NewExponentialRandom failed: %v", err)
	}

	for run := 0; run < 50; run++ {
		recorder := NewRecordingSleeper()
		policy := p.WithSleeper(recorder)
		bctx := policy.Start()

		period := initial
		for i := 0; i < 6; i++ {
			if err := policy.BackOff(context.Background(), bctx); err != nil {
				t.Fatalf("BackOff failed: %v", err)
			}
			got := recorder.LastPeriod()

			if i == 0 {
				// first draw has an empty jitter window
				if got != initial {
					t.Fatalf("first period = %v, want exactly %v", got, initial)
				}
			} else {
				lo := period
				hi := 2*period - initial
				if got < lo || got >= hi {
					t.Fatalf("attempt %d period = %v, want in [%v, %v)", i, got, lo, hi)
				}
			}
			period *= 2
		}
	}
}

func TestUniformRandom_Bounds(t *testing.T) {
	min := 50 * time.Millisecond
	max := 150 * time.Millisecond
	p, err := NewUniformRandom(min, max, withRand(rand.New(rand.NewSource(7))))
	if err != nil {
		t.Fatalf("NewUniformRandom failed: %v", err)
	}

	recorder := NewRecordingSleeper()
	policy := p.WithSleeper(recorder)
	bctx := policy.Start()

	for i := 0; i < 200; i++ {
		if err := policy.BackOff(context.Background(), bctx); err != nil {
			t.Fatalf("BackOff failed: %v", err)
		}
		got := recorder.LastPeriod()
		if got < min || got > max {
			t.Fatalf("draw %d = %v, want in [%v, %v]", i, got, min, max)
		}
	}
}

func TestValidation(t *testing.T) {
	if _, err := NewExponential(0); err == nil {
		t.Error("expected error for zero initial interval")
	}
	if _, err := NewExponential(100*time.Millisecond, WithMultiplier(0.5)); err == nil {
		t.Error("expected error for multiplier below one")
	}
	if _, err := NewExponential(time.Second, WithMaxInterval(time.Millisecond)); err == nil {
		t.Error("expected error for max below initial")
	}
	if _, err := NewUniformRandom(time.Second, time.Millisecond); err == nil {
		t.Error("expected error for max below min")
	}
	if _, err := NewUniformRandom(-time.Second, time.Second); err == nil {
		t.Error("expected error for negative min")
	}
}

func TestBackOffInterrupted(t *testing.T) {
	p := NewFixed(10 * time.Second)
	bctx := p.Start()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.BackOff(ctx, bctx)
	if err == nil {
		t.Fatal("expected error from cancelled backoff")
	}
	if !types.IsBackOffInterrupted(err) {
		t.Errorf("expected backoff-interrupted error, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation cause to be preserved, got %v", err)
	}
}

func TestRecordingSleeperNeverPauses(t *testing.T) {
	recorder := NewRecordingSleeper()

	start := time.Now()
	if err := recorder.Sleep(context.Background(), 10*time.Second); err != nil {
		t.Fatalf("Sleep failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Errorf("recording sleeper paused for %v", elapsed)
	}
	if got := recorder.LastPeriod(); got != 10*time.Second {
		t.Errorf("LastPeriod = %v, want 10s", got)
	}
}
