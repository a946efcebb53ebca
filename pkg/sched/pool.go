package sched

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jzx17/retrykit/pkg/types"
)

// PoolConfig defines configuration for the pool scheduler
type PoolConfig struct {
	// PoolSize is the number of worker goroutines
	PoolSize int

	// QueueSize is the pending task queue size
	QueueSize int

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock
}

// DefaultPoolConfig returns default configuration
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		PoolSize:  4,
		QueueSize: 64,
		Clock:     types.NewRealClock(),
	}
}

// PoolScheduler runs delayed functions on a fixed set of worker goroutines.
// Delays elapse on a timer goroutine; only the function body occupies a
// worker, so a long backoff never ties up the pool.
type PoolScheduler struct {
	config   *PoolConfig
	taskChan chan func()

	// state: 0 stopped, 1 running, 2 closed
	state     int32
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewPoolScheduler creates a pool scheduler
func NewPoolScheduler(config *PoolConfig) (*PoolScheduler, error) {
	if config == nil {
		config = DefaultPoolConfig()
	}
	if config.PoolSize <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", config.PoolSize)
	}
	if config.QueueSize <= 0 {
		return nil, fmt.Errorf("queue size must be positive, got %d", config.QueueSize)
	}
	if config.Clock == nil {
		config.Clock = types.NewRealClock()
	}

	return &PoolScheduler{
		config:   config,
		taskChan: make(chan func(), config.QueueSize),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the worker goroutines
func (p *PoolScheduler) Start() error {
	if !atomic.CompareAndSwapInt32(&p.state, 0, 1) {
		if atomic.LoadInt32(&p.state) == 1 {
			return fmt.Errorf("pool scheduler is already running")
		}
		return fmt.Errorf("pool scheduler is closed")
	}

	for i := 0; i < p.config.PoolSize; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return nil
}

func (p *PoolScheduler) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case fn := <-p.taskChan:
			fn()
		}
	}
}

// Schedule enqueues fn to run on a worker once delay has elapsed. Functions
// scheduled after Close are dropped.
func (p *PoolScheduler) Schedule(delay time.Duration, fn func()) {
	if atomic.LoadInt32(&p.state) != 1 {
		return
	}

	if delay <= 0 {
		p.enqueue(fn)
		return
	}

	go func() {
		timer := p.config.Clock.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-p.done:
		case <-timer.C():
			p.enqueue(fn)
		}
	}()
}

func (p *PoolScheduler) enqueue(fn func()) {
	select {
	case <-p.done:
	case p.taskChan <- fn:
	}
}

// Close stops the workers. Pending queued functions are dropped.
func (p *PoolScheduler) Close() error {
	p.closeOnce.Do(func() {
		atomic.StoreInt32(&p.state, 2)
		close(p.done)
		p.wg.Wait()
	})
	return nil
}
