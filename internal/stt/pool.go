// Package stt implements the transcription core: a streaming transcriber
// that emits deduplicated partial hypotheses while the user is speaking, and
// a batch racer that runs a fast and a slow engine concurrently over the
// same utterance and picks the better transcript by a deterministic policy.
package stt

import (
	"errors"
	"sync"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("stt: worker pool is closed")

// Pool is a fixed-size worker pool for transcription tasks. It is owned by
// whoever constructs it and passed by handle into the components that need
// it; pools persist across sessions and are shut down only at process
// teardown.
type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool starts a pool with the given number of workers. workers < 1 is
// clamped to 1.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		// Buffer one pending task per worker so short bursts do not block
		// the submitting goroutine.
		tasks: make(chan func(), workers),
	}
	p.wg.Add(workers)
	for range workers {
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

// Submit queues a task for execution. Blocks while all workers are busy and
// the backlog is full.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	// Holding the lock while sending keeps Close from racing the channel
	// close. Tasks are short to enqueue; execution happens on the workers.
	p.tasks <- task
	p.mu.Unlock()
	return nil
}

// Close stops accepting tasks. When wait is true it blocks until all queued
// and running tasks have finished; running tasks are never aborted, since
// inference calls cannot be safely preempted mid-computation.
func (p *Pool) Close(wait bool) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		if wait {
			p.wg.Wait()
		}
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	if wait {
		p.wg.Wait()
	}
}
