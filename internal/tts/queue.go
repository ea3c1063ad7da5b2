// Package tts implements the pipelined synthesis and playback queue: while
// sentence N plays, sentences N+1 and beyond synthesize in the background,
// minimizing both the inter-sentence gap and the latency from "sentence
// available" to "audio starts".
package tts

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vesta-home/vesta/pkg/audio/player"
	"github.com/vesta-home/vesta/pkg/provider/tts"
)

// Queue capacity. Sentences beyond this backlog are refused; a spoken
// response long enough to hit it indicates a runaway generation upstream.
const queueCapacity = 64

// ErrQueueFull is returned by Enqueue when the sentence backlog is at
// capacity.
var ErrQueueFull = errors.New("tts: queue is full")

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("tts: queue is closed")

// synthResult is the outcome of one background synthesis task.
type synthResult struct {
	wav []byte
	err error
}

// entry is one queued sentence. The 1-buffered result channel acts as the
// sentence's synthesis future: the worker sends exactly once and never
// blocks, so an abandoned entry leaks nothing.
type entry struct {
	text     string
	language string
	result   chan synthResult

	// cancelled marks the entry as not worth synthesizing. Workers check it
	// cooperatively; a synthesis already executing cannot be cancelled and
	// is simply abandoned.
	cancelled atomic.Bool
}

// Queue is the parallel TTS pipeline. Enqueue and the introspection methods
// may be called from the streaming goroutine while PlayNext blocks on the
// playback goroutine; Interrupt is safe to call concurrently with both.
type Queue struct {
	synth   tts.Synthesizer
	player  player.Player
	log     *slog.Logger
	workers int

	ctx    context.Context
	cancel context.CancelFunc

	// pending is the FIFO. Enqueue order is playback order; PlayNext only
	// ever dequeues the head, regardless of which synthesis finished first.
	pending chan *entry

	tasks chan *entry
	wg    sync.WaitGroup

	interrupted atomic.Bool

	mu      sync.Mutex
	current player.Playback
	closed  bool
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithWorkers sets the synthesis worker count, clamped to [1, 2]. Two
// workers hide more synthesis latency; one guarantees the backend sees no
// concurrent requests.
func WithWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n >= 1 && n <= 2 {
			q.workers = n
		}
	}
}

// WithQueueLogger overrides the default logger.
func WithQueueLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) {
		if l != nil {
			q.log = l
		}
	}
}

// NewQueue creates the queue and starts its synthesis workers.
func NewQueue(synth tts.Synthesizer, p player.Player, opts ...QueueOption) *Queue {
	q := &Queue{
		synth:   synth,
		player:  p,
		log:     slog.Default(),
		workers: 2,
		pending: make(chan *entry, queueCapacity),
		tasks:   make(chan *entry, queueCapacity),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.ctx, q.cancel = context.WithCancel(context.Background())

	q.wg.Add(q.workers)
	for range q.workers {
		go q.worker()
	}
	return q
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for e := range q.tasks {
		if e.cancelled.Load() {
			e.result <- synthResult{err: context.Canceled}
			continue
		}
		wav, err := q.synth.Synthesize(q.ctx, e.text, e.language)
		e.result <- synthResult{wav: wav, err: err}
	}
}

// Enqueue clears any prior interruption (new content supersedes it), submits
// synthesis to the worker pool without blocking, and appends the sentence to
// the FIFO. Call order determines playback order.
func (q *Queue) Enqueue(text, language string) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.interrupted.Store(false)

	e := &entry{
		text:     text,
		language: language,
		result:   make(chan synthResult, 1),
	}
	select {
	case q.tasks <- e:
	default:
		q.mu.Unlock()
		return ErrQueueFull
	}
	select {
	case q.pending <- e:
	default:
		// tasks and pending share a capacity, so this cannot trip unless
		// the backlog invariant is broken.
		e.cancelled.Store(true)
		q.mu.Unlock()
		return ErrQueueFull
	}
	q.mu.Unlock()
	return nil
}

// PlayNext dequeues the oldest sentence, waits for its synthesis, plays it,
// and blocks until playback finishes. The total wait for dequeue plus
// synthesis is bounded by timeout. Returns false when the queue stays empty
// past the timeout, synthesis fails or times out, or an interrupt arrived
// before playback began; callers treat false as "stop draining".
//
// PlayNext never waits on or plays any entry other than the head, even if a
// later sentence's synthesis finished first.
func (q *Queue) PlayNext(timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var e *entry
	select {
	case e = <-q.pending:
	case <-deadline.C:
		return false
	}

	if q.interrupted.Load() || e.cancelled.Load() {
		return false
	}

	var res synthResult
	select {
	case res = <-e.result:
	case <-deadline.C:
		// Abandon this entry; the worker's buffered send cannot block.
		e.cancelled.Store(true)
		q.log.Warn("synthesis timed out", "timeout", timeout)
		return false
	}
	if res.err != nil {
		if !errors.Is(res.err, context.Canceled) {
			q.log.Warn("synthesis failed", "error", res.err)
		}
		return false
	}

	// Interrupt may have arrived while synthesis was completing; never play
	// stale audio after it.
	if q.interrupted.Load() {
		return false
	}

	pb, err := q.player.Play(q.ctx, res.wav)
	if err != nil {
		q.log.Warn("start playback", "error", err)
		return false
	}

	q.mu.Lock()
	q.current = pb
	q.mu.Unlock()

	// Close the race between the interrupt check above and current being
	// set: an Interrupt in that window found no handle to kill.
	if q.interrupted.Load() {
		_ = pb.Kill()
	}

	err = pb.Wait(q.ctx)

	q.mu.Lock()
	q.current = nil
	q.mu.Unlock()

	if err != nil {
		q.log.Warn("playback", "error", err)
		return false
	}
	return !q.interrupted.Load()
}

// Interrupt sets the interrupted flag, kills the in-flight playback (kill,
// not graceful stop, with a bounded wait inside the player), and drains the
// FIFO, cancelling pending synthesis best-effort. Idempotent and safe to
// call concurrently with PlayNext.
func (q *Queue) Interrupt() {
	q.interrupted.Store(true)

	q.mu.Lock()
	pb := q.current
	q.current = nil
	q.mu.Unlock()

	if pb != nil {
		if err := pb.Kill(); err != nil {
			q.log.Warn("kill playback", "error", err)
		}
	}

	drained := 0
	for {
		select {
		case e := <-q.pending:
			e.cancelled.Store(true)
			drained++
		default:
			if drained > 0 {
				q.log.Debug("interrupt drained pending sentences", "count", drained)
			}
			return
		}
	}
}

// HasPending reports whether sentences are queued. Introspection only.
func (q *Queue) HasPending() bool { return len(q.pending) > 0 }

// Depth returns the number of queued sentences. Introspection only.
func (q *Queue) Depth() int { return len(q.pending) }

// Shutdown interrupts playback and tears down the worker pool. With wait
// set, it blocks until in-flight (uncancellable) synthesis calls finish;
// otherwise their contexts are cancelled and the workers are left to drain
// on their own.
func (q *Queue) Shutdown(wait bool) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		if wait {
			q.wg.Wait()
		}
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.Interrupt()

	q.mu.Lock()
	close(q.tasks)
	q.mu.Unlock()

	if wait {
		q.wg.Wait()
	}
	q.cancel()
}
