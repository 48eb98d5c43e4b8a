// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package parallel runs batches of independent tasks on a fixed set of
// goroutines.
package parallel

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("parallel: pool closed")

// Task is one unit of work.
type Task func(ctx context.Context) error

// Pool is a set of worker goroutines with per-worker queues. An idle worker
// steals from the other queues before blocking on its own.
//
// Thread safety: Pool is safe for concurrent use.
type Pool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewPool starts a pool with the given number of workers. If workers is 0 or
// negative, GOMAXPROCS is used.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := max(workers*4, 8)

	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]

	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case work := <-own:
			work()
			continue
		default:
		}

		if stolen := p.steal(id); stolen != nil {
			stolen()
			continue
		}

		select {
		case <-p.done:
			p.drain(own)
			return
		case work := <-own:
			work()
		}
	}
}

func (p *Pool) drain(queue chan func()) {
	for {
		select {
		case work := <-queue:
			work()
		default:
			return
		}
	}
}

func (p *Pool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case work := <-p.queues[i]:
			return work
		default:
		}
	}
	return nil
}

// Run distributes tasks round-robin and waits for all of them. Tasks that
// start after ctx is done are not called; each reports ctx.Err() instead.
// The returned error joins every task error.
func (p *Pool) Run(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}
	if !p.running.Load() {
		return ErrClosed
	}

	errs := make([]error, len(tasks))
	var pending sync.WaitGroup
	pending.Add(len(tasks))

	for i, task := range tasks {
		work := func() {
			defer pending.Done()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			errs[i] = task(ctx)
		}
		select {
		case p.queues[i%p.workers] <- work:
		case <-p.done:
			errs[i] = ErrClosed
			pending.Done()
		}
	}

	pending.Wait()
	return errors.Join(errs...)
}

// Close stops the workers after they finish queued work. Close is safe to
// call multiple times.
func (p *Pool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers.
func (p *Pool) Workers() int {
	return p.workers
}
