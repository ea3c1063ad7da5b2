package stt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vesta-home/vesta/pkg/provider/stt"
)

// DefaultSlowTimeout bounds how long the racer waits for the slow engine
// after submission before falling back to the fast result alone.
const DefaultSlowTimeout = 6 * time.Second

// ParallelResult bundles both engines' outputs with the selection decision.
// SelectionReason records which policy rule fired; it exists for
// debuggability and is asserted on in tests.
type ParallelResult struct {
	Vosk            stt.Result
	Whisper         stt.Result
	Selected        stt.Result
	SelectionReason string
}

// ParallelSTT races a fast engine (vosk) against a slow accurate one
// (whisper) over the same fully-recorded utterance. Both tasks run on a
// shared worker pool; the caller is never blocked past the slow timeout.
type ParallelSTT struct {
	fast        stt.Engine
	slow        stt.Engine // nil when administratively disabled
	pool        *Pool
	slowTimeout time.Duration
	log         *slog.Logger
}

// ParallelOption configures a ParallelSTT.
type ParallelOption func(*ParallelSTT)

// WithSlowTimeout overrides the slow-engine wait bound.
func WithSlowTimeout(d time.Duration) ParallelOption {
	return func(p *ParallelSTT) {
		if d > 0 {
			p.slowTimeout = d
		}
	}
}

// WithParallelLogger overrides the default logger.
func WithParallelLogger(l *slog.Logger) ParallelOption {
	return func(p *ParallelSTT) {
		if l != nil {
			p.log = l
		}
	}
}

// NewParallelSTT creates the racer. slow may be nil, which selects the
// administratively-disabled mode: every utterance goes to the fast engine
// only. pool is shared and stays owned by the caller.
func NewParallelSTT(fast stt.Engine, slow stt.Engine, pool *Pool, opts ...ParallelOption) *ParallelSTT {
	p := &ParallelSTT{
		fast:        fast,
		slow:        slow,
		pool:        pool,
		slowTimeout: DefaultSlowTimeout,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TranscribeParallel submits both engines to the pool and selects the better
// transcript. The fast engine is always awaited fully (it is assumed cheap).
// The slow engine is awaited up to the configured timeout; past it, the
// in-flight task keeps running on its worker to completion and its eventual
// result is discarded — workers cannot be preempted mid-inference, so
// abandonment is cooperative. Engine errors degrade to empty results rather
// than failing the turn.
func (p *ParallelSTT) TranscribeParallel(ctx context.Context, pcm []byte, sampleRate int) ParallelResult {
	fastCh := p.submit(ctx, p.fast, pcm, sampleRate)

	if p.slow == nil {
		fast := <-fastCh
		return ParallelResult{
			Vosk:            fast,
			Selected:        fast,
			SelectionReason: "whisper disabled",
		}
	}

	slowCh := p.submit(ctx, p.slow, pcm, sampleRate)

	fast := <-fastCh

	var slow stt.Result
	select {
	case slow = <-slowCh:
	case <-time.After(p.slowTimeout):
		p.log.Warn("slow engine timed out, abandoning task",
			"engine", p.slow.Name(),
			"timeout", p.slowTimeout)
		slow = stt.Result{Engine: p.slow.Name(), Duration: p.slowTimeout}
	}

	selected, reason := selectBest(fast, slow)
	return ParallelResult{
		Vosk:            fast,
		Whisper:         slow,
		Selected:        selected,
		SelectionReason: reason,
	}
}

// submit queues one transcription on the pool and returns a 1-buffered
// result channel, so an abandoned task's send never blocks its worker.
func (p *ParallelSTT) submit(ctx context.Context, engine stt.Engine, pcm []byte, sampleRate int) <-chan stt.Result {
	ch := make(chan stt.Result, 1)
	err := p.pool.Submit(func() {
		start := time.Now()
		res, err := engine.Transcribe(ctx, pcm, sampleRate)
		if err != nil {
			p.log.Warn("engine transcription failed",
				"engine", engine.Name(),
				"error", err)
			res = stt.Result{Engine: engine.Name(), Duration: time.Since(start)}
		}
		ch <- res
	})
	if err != nil {
		p.log.Warn("submit transcription", "engine", engine.Name(), "error", err)
		ch <- stt.Result{Engine: engine.Name()}
	}
	return ch
}

// selectBest picks between the fast and slow results by ordered rules; the
// first matching rule wins. Speed protection deliberately precedes the
// accuracy preference: a pathologically slow engine must never win purely
// because it sounds more accurate.
func selectBest(fast, slow stt.Result) (stt.Result, string) {
	// Rule 1: nothing heard anywhere.
	if fast.Text == "" && slow.Text == "" {
		return fast, "both empty"
	}

	// Rule 2: exactly one engine heard something.
	if slow.Text == "" {
		return fast, fmt.Sprintf("%s empty", slow.Engine)
	}
	if fast.Text == "" {
		return slow, fmt.Sprintf("%s empty", fast.Engine)
	}

	// Rule 3: speed protection.
	speedRatio := 1.0
	if fast.Duration > 0 {
		speedRatio = slow.Duration.Seconds() / fast.Duration.Seconds()
	}
	if speedRatio > 3.0 {
		return fast, fmt.Sprintf("%s too slow (%.1fs vs %.1fs)",
			slow.Engine, slow.Duration.Seconds(), fast.Duration.Seconds())
	}
	if speedRatio < 0.33 {
		return slow, fmt.Sprintf("%s too slow (%.1fs vs %.1fs)",
			fast.Engine, fast.Duration.Seconds(), slow.Duration.Seconds())
	}

	// Rule 4: broadly similar transcripts favor the accurate engine.
	lenFast, lenSlow := len(fast.Text), len(slow.Text)
	minLen, maxLen := lenFast, lenSlow
	if minLen > maxLen {
		minLen, maxLen = maxLen, minLen
	}
	if float64(minLen)/float64(maxLen) > 0.7 {
		return slow, "similar length, prefer accuracy"
	}

	// Rule 5: otherwise assume the longer transcript captured more content.
	if lenFast > lenSlow {
		return fast, fmt.Sprintf("%s longer (%d vs %d chars)", fast.Engine, lenFast, lenSlow)
	}
	return slow, fmt.Sprintf("%s longer (%d vs %d chars)", slow.Engine, lenSlow, lenFast)
}
