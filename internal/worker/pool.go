package worker

import (
	"context"
	"sync"
)

// Job is a unit of work executed by the pool
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is the outcome of one job
type Result interface {
	GetError() error
}

// Pool bounds global concurrency with a fixed set of workers. The crawl
// stage runs one job per source through it; the extract stage reuses it
// for per-source analysis.
type Pool struct {
	size      int
	jobs      chan Job
	results   chan Result
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewPool creates a pool of the given size. The pool stops issuing work
// as soon as ctx is cancelled; in-flight jobs see the cancellation
// through their own ctx.
func NewPool(ctx context.Context, size int) *Pool {
	if size <= 0 {
		size = 1
	}

	poolCtx, cancel := context.WithCancel(ctx)

	return &Pool{
		size:    size,
		jobs:    make(chan Job, size*2),
		results: make(chan Result, size*2),
		ctx:     poolCtx,
		cancel:  cancel,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	p.wg.Add(p.size)
	for i := 0; i < p.size; i++ {
		go p.run()
	}
}

func (p *Pool) run() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.deliver(job.Execute(p.ctx))
		}
	}
}

func (p *Pool) deliver(res Result) {
	select {
	case p.results <- res:
	case <-p.ctx.Done():
	}
}

// Submit queues a job. Submitting after cancellation is a no-op.
func (p *Pool) Submit(job Job) {
	select {
	case <-p.ctx.Done():
	case p.jobs <- job:
	}
}

// Wait closes the queue, waits for the workers to drain it and returns
// every collected result. Jobs never executed due to cancellation
// produce no result; callers that need one-result-per-input synthesize
// the missing entries.
func (p *Pool) Wait() []Result {
	close(p.jobs)

	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	collected := make([]Result, 0, p.size)
	for res := range p.results {
		collected = append(collected, res)
	}
	return collected
}

// Shutdown cancels all workers immediately
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
