// Package mock provides a test double for the tts.Synthesizer interface.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vesta-home/vesta/pkg/provider/tts"
)

// Synthesizer is a mock implementation of tts.Synthesizer. By default each
// call returns a unique placeholder clip derived from the input text, so
// tests can assert playback order without scripting every result.
type Synthesizer struct {
	mu sync.Mutex

	// WAV, if non-nil, is returned by every Synthesize call.
	WAV []byte

	// Err, if non-nil, is returned by every Synthesize call.
	Err error

	// ErrFor makes Synthesize fail only for specific input texts.
	ErrFor map[string]error

	// Delay is an artificial synthesis time per call, honoring context
	// cancellation.
	Delay time.Duration

	// DelayFor overrides Delay for specific input texts.
	DelayFor map[string]time.Duration

	// Calls records the text of every Synthesize call in order of arrival.
	Calls []string
}

var _ tts.Synthesizer = (*Synthesizer)(nil)

// Synthesize records the call, waits the configured delay, and returns the
// scripted clip or error.
func (s *Synthesizer) Synthesize(ctx context.Context, text, _ string) ([]byte, error) {
	s.mu.Lock()
	s.Calls = append(s.Calls, text)
	wav, err := s.WAV, s.Err
	if e, ok := s.ErrFor[text]; ok {
		err = e
	}
	delay := s.Delay
	if d, ok := s.DelayFor[text]; ok {
		delay = d
	}
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if wav != nil {
		return wav, nil
	}
	return []byte("wav:" + text), nil
}

// CallCount returns how many times Synthesize was called. Thread-safe.
func (s *Synthesizer) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

// String aids debugging in test failures.
func (s *Synthesizer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("mock.Synthesizer{calls: %d}", len(s.Calls))
}
