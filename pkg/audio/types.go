// Package audio holds the PCM plumbing shared by every stage of the voice
// pipeline: the capture Source abstraction, energy-based recording helpers,
// and WAV container encode/parse utilities.
//
// All audio flowing through the pipeline is mono 16-bit signed little-endian
// PCM. Sample rates are agreed at construction time (16 kHz for STT input,
// device-native for playback).
package audio

import (
	"context"
	"time"
)

// bitsPerSample is fixed at 16 for the signed little-endian PCM used
// throughout the pipeline.
const bitsPerSample = 16

// Source supplies fixed-size mono PCM16 chunks from a capture device.
//
// ReadChunk blocks until one chunk is available. Implementations decide the
// chunk size at construction time; callers must treat it as opaque and rely
// on ChunkDuration for timing math.
type Source interface {
	// ReadChunk returns the next PCM chunk, blocking until one is available.
	// A drained finite source (such as a test fixture) returns io.EOF.
	ReadChunk(ctx context.Context) ([]byte, error)

	// SampleRate reports the capture sample rate in Hz.
	SampleRate() int

	// Close releases the underlying device.
	Close() error
}

// ChunkDuration returns the duration of a mono PCM16 chunk at the given
// sample rate. Returns 0 for invalid inputs.
func ChunkDuration(chunk []byte, sampleRate int) time.Duration {
	if sampleRate <= 0 || len(chunk) == 0 {
		return 0
	}
	bytesPerSec := sampleRate * (bitsPerSample / 8)
	return time.Duration(len(chunk)) * time.Second / time.Duration(bytesPerSec)
}
