// Package mock provides test doubles for the stt package interfaces.
//
// Engine returns a scripted Result after an optional artificial delay, which
// lets racing-transcriber tests shape the fast/slow timing precisely.
// Recognizer replays a script of partial and committed hypotheses keyed to
// AcceptWaveform call counts.
//
// Example:
//
//	fast := &mock.Engine{EngineName: stt.EngineVosk, Result: stt.Result{Text: "hi"}}
//	slow := &mock.Engine{EngineName: stt.EngineWhisper, Delay: 50 * time.Millisecond}
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/vesta-home/vesta/pkg/provider/stt"
)

// Engine is a mock implementation of stt.Engine.
type Engine struct {
	mu sync.Mutex

	// EngineName is returned by Name. Defaults to "mock".
	EngineName string

	// Result is returned by Transcribe after Delay. Its Engine and Duration
	// fields are filled in by Transcribe when zero.
	Result stt.Result

	// Err, if non-nil, is returned by Transcribe instead of Result.
	Err error

	// Delay is an artificial processing time. Transcribe waits for it
	// (honoring context cancellation) before returning.
	Delay time.Duration

	// CallCountTranscribe records how many times Transcribe was called.
	CallCountTranscribe int
}

var _ stt.Engine = (*Engine)(nil)

// Name returns EngineName, defaulting to "mock".
func (e *Engine) Name() string {
	if e.EngineName == "" {
		return "mock"
	}
	return e.EngineName
}

// Transcribe waits for Delay, then returns the scripted Result or Err.
func (e *Engine) Transcribe(ctx context.Context, _ []byte, _ int) (stt.Result, error) {
	e.mu.Lock()
	e.CallCountTranscribe++
	res, err, delay := e.Result, e.Err, e.Delay
	e.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return stt.Result{}, ctx.Err()
		}
	}
	if err != nil {
		return stt.Result{}, err
	}
	if res.Engine == "" {
		res.Engine = e.Name()
	}
	if res.Duration == 0 {
		res.Duration = delay
	}
	return res, nil
}

// Calls returns the recorded Transcribe call count. Thread-safe.
func (e *Engine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.CallCountTranscribe
}

// Step scripts the recognizer's reaction to one AcceptWaveform call.
type Step struct {
	// Partial is the hypothesis PartialResult reports after this chunk.
	Partial string

	// UtteranceEnd makes AcceptWaveform report an utterance boundary; the
	// Committed result becomes available via Result.
	UtteranceEnd bool

	// Committed is the result returned by Result after an utterance end.
	Committed stt.RecognizerResult

	// Err, if non-nil, is returned by AcceptWaveform.
	Err error
}

// Recognizer is a mock implementation of stt.Recognizer driven by a Script.
// AcceptWaveform calls beyond the script's end repeat the last step's
// partial without an utterance end.
type Recognizer struct {
	mu sync.Mutex

	// Script defines the reaction to successive AcceptWaveform calls.
	Script []Step

	// Final is returned by FinalResult.
	Final stt.RecognizerResult

	// CallCountAccept records how many times AcceptWaveform was called.
	CallCountAccept int

	// CallCountClose records how many times Close was called.
	CallCountClose int

	lastPartial string
	committed   stt.RecognizerResult
}

var _ stt.Recognizer = (*Recognizer)(nil)

// AcceptWaveform advances the script by one step.
func (r *Recognizer) AcceptWaveform(_ []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.CallCountAccept
	r.CallCountAccept++
	if idx >= len(r.Script) {
		return false, nil
	}
	step := r.Script[idx]
	if step.Err != nil {
		return false, step.Err
	}
	r.lastPartial = step.Partial
	if step.UtteranceEnd {
		r.committed = step.Committed
	}
	return step.UtteranceEnd, nil
}

// PartialResult returns the partial from the most recent script step.
func (r *Recognizer) PartialResult() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPartial, nil
}

// Result returns the committed hypothesis from the last utterance end.
func (r *Recognizer) Result() (stt.RecognizerResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.committed, nil
}

// FinalResult returns the scripted Final.
func (r *Recognizer) FinalResult() (stt.RecognizerResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Final, nil
}

// Close records the call.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CallCountClose++
	return nil
}

// Factory is a mock implementation of stt.RecognizerFactory.
type Factory struct {
	mu sync.Mutex

	// Recognizers are handed out in order by NewRecognizer. When exhausted,
	// NewRecognizer returns a fresh empty Recognizer.
	Recognizers []*Recognizer

	// Err, if non-nil, is returned by NewRecognizer.
	Err error

	// CallCountNew records how many times NewRecognizer was called.
	CallCountNew int
}

var _ stt.RecognizerFactory = (*Factory)(nil)

// NewRecognizer returns the next scripted recognizer.
func (f *Factory) NewRecognizer(_ int) (stt.Recognizer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	idx := f.CallCountNew
	f.CallCountNew++
	if idx < len(f.Recognizers) {
		return f.Recognizers[idx], nil
	}
	return &Recognizer{}, nil
}
