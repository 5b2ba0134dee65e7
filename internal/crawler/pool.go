package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Job is a unit of work executed by a WorkerPool.
// The context is cancelled only when the pool is aborted.
type Job func(ctx context.Context)

// WorkerPool runs jobs on a fixed number of goroutines.
//
// Design decision: The queue is unbounded rather than a buffered channel
// because fetch workers submit extraction jobs and extraction workers
// submit fetch jobs. With bounded queues both pools could block on each
// other's full queue and deadlock the crawl.
type WorkerPool struct {
	name   string
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Job
	closed bool

	wg sync.WaitGroup
}

// NewWorkerPool starts size workers. The name is used in log output.
func NewWorkerPool(name string, size int, logger *slog.Logger) (*WorkerPool, error) {
	if size < 1 {
		return nil, fmt.Errorf("worker pool %q requires at least one worker, got %d", name, size)
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		name:   name,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(size)
	for range size {
		go p.work()
	}
	return p, nil
}

// Submit queues job for execution. It never blocks.
// It returns ErrPoolClosed once Shutdown has been called.
func (p *WorkerPool) Submit(job Job) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.queue = append(p.queue, job)
	p.mu.Unlock()
	p.cond.Signal()
	return nil
}

// Queued returns the number of jobs waiting for a worker.
func (p *WorkerPool) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Shutdown stops accepting jobs. Workers finish the jobs already queued
// and then exit.
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Abort cancels the context passed to running and remaining jobs.
func (p *WorkerPool) Abort() {
	p.cancel()
}

// Wait blocks until every worker has exited or ctx is done.
func (p *WorkerPool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s pool: %w", p.name, ctx.Err())
	}
}

func (p *WorkerPool) work() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		job := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.run(job)
	}
}

// run executes a single job, keeping the worker alive if it panics.
func (p *WorkerPool) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked", "pool", p.name, "panic", r)
		}
	}()
	job(p.ctx)
}
