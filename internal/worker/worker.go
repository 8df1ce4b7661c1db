// Package worker runs detached background jobs on a fixed set of goroutines.
// Submissions never block the caller: a full queue rejects the job.
package worker

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrClosed    = errors.New("worker: pool closed")
	ErrQueueFull = errors.New("worker: queue full")
)

// PanicHandler is called with the recovered value when a job panics.
type PanicHandler func(recovered any)

type Pool struct {
	size    int
	ch      chan job
	once    sync.Once
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	onPanic PanicHandler
}

type job struct {
	ctx context.Context
	fn  func(context.Context)
}

func New(size int, queue int, onPanic PanicHandler) *Pool {
	if size <= 0 {
		size = 1
	}
	if queue <= 0 {
		queue = size
	}
	p := &Pool{
		size:    size,
		ch:      make(chan job, queue),
		onPanic: onPanic,
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.ch {
				p.run(j)
			}
		}()
	}
	return p
}

func (p *Pool) run(j job) {
	defer func() {
		if r := recover(); r != nil && p.onPanic != nil {
			p.onPanic(r)
		}
	}()
	j.fn(j.ctx)
}

// TrySubmit enqueues fn without waiting for room in the queue.
func (p *Pool) TrySubmit(ctx context.Context, fn func(context.Context)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.ch <- job{ctx: ctx, fn: fn}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.ch)
		p.mu.Unlock()
	})
}

func (p *Pool) Wait() {
	p.wg.Wait()
}

// WaitContext waits for queued jobs to finish or for ctx to be done.
func (p *Pool) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
