package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type task struct {
	name string
	ctx  context.Context
	fn   func(ctx context.Context) error
}

// Pool runs background tasks on a fixed set of workers. Each task gets a
// context detached from the request that queued it, bounded by the task
// timeout.
type Pool struct {
	tasks   chan task
	g       errgroup.Group
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// NewPool starts workers goroutines reading from a queue of the given size.
func NewPool(workers, queue int, timeout time.Duration) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue < workers {
		queue = workers * 4
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	p := &Pool{tasks: make(chan task, queue), timeout: timeout}
	for range workers {
		p.g.Go(func() error {
			for t := range p.tasks {
				p.run(t)
			}
			return nil
		})
	}
	return p
}

func (p *Pool) run(t task) {
	ctx, cancel := context.WithTimeout(t.ctx, p.timeout)
	defer cancel()

	start := time.Now()
	if err := t.fn(ctx); err != nil {
		zap.L().Warn("ingest: background task failed",
			zap.String("task", t.name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	zap.L().Debug("ingest: background task done",
		zap.String("task", t.name),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// Submit queues fn without blocking. It returns false when the queue is full
// or the pool is shutting down.
func (p *Pool) Submit(ctx context.Context, name string, fn func(ctx context.Context) error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.tasks <- task{name: name, ctx: context.WithoutCancel(ctx), fn: fn}:
		return true
	default:
		return false
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish or for
// ctx to expire.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = p.g.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "ingest: drain background tasks")
	}
}
