// Package pool provides bounded goroutine pools backed by ants.
//
// The repository layer runs its asynchronous variants on a pool so that a
// burst of callers cannot spawn an unbounded number of goroutines.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Type identifies what a pool is used for.
type Type string

const (
	// DefaultPool is the general purpose pool.
	DefaultPool Type = "default"
	// AsyncPool runs asynchronous repository calls.
	AsyncPool Type = "async"
	// HealthCheckPool runs client health checks.
	HealthCheckPool Type = "health-check"
)

// Config defines the configuration for the worker pool.
type Config struct {
	// Capacity is the maximum number of concurrently running workers.
	Capacity int
	// ExpiryDuration is how long an idle worker is kept.
	ExpiryDuration time.Duration
	// PreAlloc preallocates the worker queue.
	PreAlloc bool
	// Nonblocking makes Submit fail with ErrPoolOverload when full.
	Nonblocking bool
	// MaxBlockingTasks bounds waiting submitters when Nonblocking is false. 0 means unbounded.
	MaxBlockingTasks int
	// PanicHandler receives recovered task panics.
	PanicHandler func(interface{})
}

// DefaultPoolConfig returns the configuration of the general purpose pool.
func DefaultPoolConfig() *Config {
	return &Config{
		Capacity:       1000,
		ExpiryDuration: 10 * time.Second,
	}
}

// AsyncPoolConfig returns the configuration used for asynchronous repository calls.
// Submitters block rather than fail when every worker is busy.
func AsyncPoolConfig() *Config {
	return &Config{
		Capacity:         256,
		ExpiryDuration:   30 * time.Second,
		MaxBlockingTasks: 4096,
	}
}

// HealthCheckPoolConfig returns the health check pool configuration.
func HealthCheckPoolConfig() *Config {
	return &Config{
		Capacity:         100,
		ExpiryDuration:   30 * time.Second,
		PreAlloc:         true,
		Nonblocking:      true,
		MaxBlockingTasks: 10,
	}
}

// ConfigFor returns the default configuration for a pool type.
func ConfigFor(typ Type) *Config {
	switch typ {
	case AsyncPool:
		return AsyncPoolConfig()
	case HealthCheckPool:
		return HealthCheckPoolConfig()
	default:
		return DefaultPoolConfig()
	}
}

// Pool represents a worker pool.
type Pool struct {
	name     string
	typ      Type
	pool     *ants.Pool
	config   *Config
	stats    counters
	closed   atomic.Bool
	closedMu sync.Mutex
}

type counters struct {
	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64
	waitNs    atomic.Int64
}

// Stats contains statistics about the worker pool.
type Stats struct {
	SubmittedTasks  int64
	CompletedTasks  int64
	RejectedTasks   int64
	PanicRecovered  int64
	TotalWaitTimeNs int64
}

// NewPool creates a new worker pool. A nil config uses ConfigFor(typ).
func NewPool(name string, typ Type, config *Config) (*Pool, error) {
	if config == nil {
		config = ConfigFor(typ)
	}
	if config.Capacity < 0 || config.MaxBlockingTasks < 0 {
		return nil, ErrInvalidPoolConfig
	}

	p := &Pool{
		name:   name,
		typ:    typ,
		config: config,
	}

	ap, err := ants.NewPool(config.Capacity, p.antsOptions()...)
	if err != nil {
		return nil, fmt.Errorf("create ants pool %q: %w", name, err)
	}
	p.pool = ap

	logger.Debugw("Worker pool created",
		"name", name,
		"type", string(typ),
		"capacity", config.Capacity,
	)

	return p, nil
}

func (p *Pool) antsOptions() []ants.Option {
	handler := p.config.PanicHandler
	if handler == nil {
		name := p.name
		handler = func(v interface{}) {
			logger.Errorw("Worker panic recovered", "pool", name, "panic", v)
		}
	}

	return []ants.Option{
		ants.WithExpiryDuration(p.config.ExpiryDuration),
		ants.WithPreAlloc(p.config.PreAlloc),
		ants.WithNonblocking(p.config.Nonblocking),
		ants.WithMaxBlockingTasks(p.config.MaxBlockingTasks),
		ants.WithPanicHandler(func(v interface{}) {
			p.stats.panics.Add(1)
			handler(v)
		}),
	}
}

// Name returns the pool name.
func (p *Pool) Name() string { return p.name }

// Type returns the pool type.
func (p *Pool) Type() Type { return p.typ }

// Cap returns the pool capacity.
func (p *Pool) Cap() int { return p.pool.Cap() }

// Running returns the number of running workers.
func (p *Pool) Running() int { return p.pool.Running() }

// Submit schedules task on the pool.
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	queued := time.Now()
	err := p.pool.Submit(func() {
		p.stats.waitNs.Add(int64(time.Since(queued)))
		task()
		p.stats.completed.Add(1)
	})
	if err != nil {
		p.stats.rejected.Add(1)
		switch {
		case errors.Is(err, ants.ErrPoolOverload):
			return ErrPoolOverload
		case errors.Is(err, ants.ErrPoolClosed):
			return ErrPoolClosed
		}
		return err
	}

	p.stats.submitted.Add(1)
	return nil
}

// SubmitWithContext schedules task unless ctx is already done.
// A task whose context is cancelled while queued is skipped.
func (p *Pool) SubmitWithContext(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return p.Submit(func() {
		if ctx.Err() != nil {
			return
		}
		task()
	})
}

// Release closes the pool. It is safe to call more than once.
func (p *Pool) Release() {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Swap(true) {
		return
	}
	p.pool.Release()
	logger.Debugw("Worker pool released", "name", p.name)
}

// ReleaseTimeout closes the pool and waits up to timeout for running tasks.
func (p *Pool) ReleaseTimeout(timeout time.Duration) error {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Swap(true) {
		return nil
	}
	return p.pool.ReleaseTimeout(timeout)
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		SubmittedTasks:  p.stats.submitted.Load(),
		CompletedTasks:  p.stats.completed.Load(),
		RejectedTasks:   p.stats.rejected.Load(),
		PanicRecovered:  p.stats.panics.Load(),
		TotalWaitTimeNs: p.stats.waitNs.Load(),
	}
}
