// Package worker provides the bounded worker pool shared by remote enumeration
// and task execution.
package worker

import (
	"context"
	"sync"
)

// Func processes one job and returns its result.
type Func[T, R any] func(ctx context.Context, job T) R

// Pool runs a fixed number of goroutines that consume jobs from one channel and
// produce results on another. Workers never touch each other's state.
type Pool[T, R any] struct {
	size int
	fn   Func[T, R]

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a pool of size workers. A size below one is treated as one.
func New[T, R any](size int, fn Func[T, R]) *Pool[T, R] {
	if size < 1 {
		size = 1
	}
	return &Pool[T, R]{
		size: size,
		fn:   fn,
		stop: make(chan struct{}),
	}
}

// Size returns the number of workers.
func (p *Pool[T, R]) Size() int {
	return p.size
}

// Start launches the workers. Every job taken from jobs yields exactly one
// send on results, so callers can count outstanding work.
func (p *Pool[T, R]) Start(ctx context.Context, jobs <-chan T, results chan<- R) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(ctx, jobs, results)
	}
}

func (p *Pool[T, R]) run(ctx context.Context, jobs <-chan T, results chan<- R) {
	defer p.wg.Done()

	for {
		// stop wins over a ready job
		select {
		case <-p.stop:
			return
		default:
		}

		select {
		case <-p.stop:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			results <- p.fn(ctx, job)
		}
	}
}

// Stop tells workers not to take further jobs. Jobs already taken still
// produce their result. Safe to call more than once.
func (p *Pool[T, R]) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// Wait blocks until every worker has exited.
func (p *Pool[T, R]) Wait() {
	p.wg.Wait()
}
