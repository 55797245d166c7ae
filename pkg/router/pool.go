package router

import (
	"context"
	"sync"
)

// Future resolves to the outcome of one routed notification: exactly one of
// Response or error, never both, never neither.
type Future struct {
	done chan struct{}
	resp *Response
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(resp *Response, err error) {
	f.resp = resp
	f.err = err
	close(f.done)
}

// Wait blocks until the dispatch completes or ctx is done. Cancelling the
// context abandons the wait, not the dispatch; once work is handed to the
// pool there is no cancellation path.
func (f *Future) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-f.done:
		return f.resp, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel that is closed when the outcome is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Resolved builds an already-completed Future. Used when a dispatch fails
// before any blocking work is needed.
func Resolved(resp *Response, err error) *Future {
	f := newFuture()
	f.resolve(resp, err)
	return f
}

type job struct {
	run func() (*Response, error)
	fut *Future
}

// Pool runs blocking gateway calls on a fixed set of workers so the
// event-driven caller never blocks its own goroutine. It mirrors the
// worker model used by the pipeline side of the service.
type Pool struct {
	jobs chan job
	wg   sync.WaitGroup
}

// DefaultWorkers is used when a pool is created with a non-positive size.
const DefaultWorkers = 4

// NewPool starts a pool with the given number of workers.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	p := &Pool{jobs: make(chan job, workers)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		j.fut.resolve(j.run())
	}
}

// Submit schedules fn on a pool worker and returns its Future. Submit
// blocks when every worker is busy and the queue is full, which bounds the
// number of in-flight gateway calls.
func (p *Pool) Submit(fn func() (*Response, error)) *Future {
	f := newFuture()
	p.jobs <- job{run: fn, fut: f}
	return f
}

// Close stops accepting work and waits for in-flight dispatches to finish.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}
