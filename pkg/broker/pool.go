package broker

import (
	"context"
	"log"
	"sync"
	"time"
)

// Pool runs brokerage calls on a fixed set of workers so that every call
// carries a hard timeout. The caller always waits synchronously for the
// result or the deadline; this is cancellation for liveness, not parallelism.
type Pool struct {
	jobs    chan poolJob
	quit    chan struct{}
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type poolJob struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// NewPool starts workers goroutines sharing one job queue.
func NewPool(workers int, timeout time.Duration) *Pool {
	if workers <= 0 {
		workers = 3
	}
	p := &Pool{
		jobs:    make(chan poolJob),
		quit:    make(chan struct{}),
		timeout: timeout,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case j := <-p.jobs:
			j.done <- j.fn(j.ctx)
		case <-p.quit:
			return
		}
	}
}

// Do submits fn and waits for its result or the pool timeout. A timed-out
// call returns ErrTimeout; the worker finishes the call in the background
// with a cancelled context.
func (p *Pool) Do(parent context.Context, name string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, p.timeout)
	defer cancel()

	j := poolJob{ctx: ctx, fn: fn, done: make(chan error, 1)}

	// Submission races Close safely: the jobs channel is never closed, and a
	// pool that shut down mid-send is observed through quit.
	select {
	case p.jobs <- j:
	case <-p.quit:
		return ErrUnavailable
	case <-ctx.Done():
		log.Printf("broker: %s timed out waiting for a pool worker", name)
		return ErrTimeout
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		log.Printf("broker: %s exceeded %s, treating as unavailable", name, p.timeout)
		return ErrTimeout
	}
}

// Close stops accepting new calls and waits for outstanding ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.quit)
	p.mu.Unlock()
	p.wg.Wait()
}
