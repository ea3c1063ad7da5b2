// Package mock provides an in-memory [audio.Source] for unit tests.
//
// The Source replays a fixed sequence of PCM chunks and returns io.EOF once
// drained, which lets recording tests run without any capture hardware.
//
// Typical usage:
//
//	src := &mock.Source{
//	    Rate:   16000,
//	    Chunks: [][]byte{silence, speech, speech, silence},
//	}
//	pcm, err := audio.Record(ctx, src, audio.RecordOptions{})
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/vesta-home/vesta/pkg/audio"
)

// Source is a mock implementation of [audio.Source].
// Set the exported fields before use; inspect the Call* fields after.
type Source struct {
	mu sync.Mutex

	// Chunks is the sequence returned by successive ReadChunk calls.
	Chunks [][]byte

	// Rate is returned by SampleRate. Defaults to 16000 if zero.
	Rate int

	// ReadErr, if non-nil, is returned by every ReadChunk call.
	ReadErr error

	// CloseErr is returned by Close.
	CloseErr error

	// CallCountRead records how many times ReadChunk was called.
	CallCountRead int

	// CallCountClose records how many times Close was called.
	CallCountClose int

	next int
}

var _ audio.Source = (*Source)(nil)

// ReadChunk returns the next configured chunk, or io.EOF once all chunks have
// been consumed. Honors context cancellation.
func (s *Source) ReadChunk(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountRead++
	if s.ReadErr != nil {
		return nil, s.ReadErr
	}
	if s.next >= len(s.Chunks) {
		return nil, io.EOF
	}
	chunk := s.Chunks[s.next]
	s.next++
	return chunk, nil
}

// SampleRate returns Rate, defaulting to 16000.
func (s *Source) SampleRate() int {
	if s.Rate == 0 {
		return 16000
	}
	return s.Rate
}

// Close records the call and returns CloseErr.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return s.CloseErr
}

// Reset rewinds the chunk sequence and clears recorded calls.
func (s *Source) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = 0
	s.CallCountRead = 0
	s.CallCountClose = 0
}
