package worker

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned when a task cannot be queued without blocking.
	ErrQueueFull = errors.New("worker queue full")
	// ErrStopped is returned after Shutdown.
	ErrStopped = errors.New("worker pool stopped")
)

type job struct {
	name string
	fn   func(ctx context.Context)
}

// Pool runs tasks on a fixed number of goroutines so that inbound chat
// events can be acknowledged before their work starts. A panicking task is
// logged and does not take down the worker.
type Pool struct {
	logger *zap.Logger
	jobs   chan job
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewPool starts concurrency workers with a queue of queueSize pending tasks.
func NewPool(concurrency, queueSize int, logger *zap.Logger) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	if queueSize < concurrency {
		queueSize = concurrency
	}
	p := &Pool{logger: logger, jobs: make(chan job, queueSize)}
	for i := 0; i < concurrency; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

// Submit queues fn without blocking.
func (p *Pool) Submit(name string, fn func(ctx context.Context)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.jobs <- job{name: name, fn: fn}:
		return nil
	default:
		p.logger.Warn("dropping background task", zap.String("task", name))
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks and waits for queued ones until ctx ends.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) work() {
	defer p.wg.Done()
	for j := range p.jobs {
		p.run(j)
	}
}

func (p *Pool) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("background task panicked",
				zap.String("task", j.name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	j.fn(context.Background())
}
