// Package portaudio provides an [audio.Source] backed by the default system
// capture device via the PortAudio bindings.
package portaudio

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/vesta-home/vesta/pkg/audio"
)

// DefaultChunkFrames is the per-read frame count: 1600 frames at 16 kHz is
// 100 ms, matching the energy-gate tuning in pkg/audio.
const DefaultChunkFrames = 1600

var initOnce sync.Once

// Capture reads mono PCM16 chunks from the default input device.
type Capture struct {
	stream     *portaudio.Stream
	buf        []int16
	sampleRate int

	mu     sync.Mutex
	closed bool
}

var _ audio.Source = (*Capture)(nil)

// Option configures a Capture.
type Option func(*options)

type options struct {
	chunkFrames int
}

// WithChunkFrames sets the number of frames delivered per ReadChunk call.
func WithChunkFrames(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkFrames = n
		}
	}
}

// Open initialises PortAudio (once per process) and opens the default input
// stream at the given sample rate.
func Open(sampleRate int, opts ...Option) (*Capture, error) {
	o := options{chunkFrames: DefaultChunkFrames}
	for _, opt := range opts {
		opt(&o)
	}

	var initErr error
	initOnce.Do(func() { initErr = portaudio.Initialize() })
	if initErr != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", initErr)
	}

	buf := make([]int16, o.chunkFrames)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open default stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("portaudio: start stream: %w", err)
	}

	return &Capture{stream: stream, buf: buf, sampleRate: sampleRate}, nil
}

// ReadChunk blocks until one chunk of frames has been captured and returns it
// as little-endian PCM16 bytes. The context is checked before the blocking
// device read; PortAudio reads themselves are short (one chunk duration) and
// are not interruptible mid-read.
func (c *Capture) ReadChunk(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.stream.Read(); err != nil {
		return nil, fmt.Errorf("portaudio: read: %w", err)
	}
	out := make([]byte, len(c.buf)*2)
	for i, s := range c.buf {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(s))
	}
	return out, nil
}

// SampleRate reports the capture sample rate in Hz.
func (c *Capture) SampleRate() int { return c.sampleRate }

// Close stops and closes the stream. Safe to call more than once.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.stream.Stop(); err != nil {
		c.stream.Close()
		return fmt.Errorf("portaudio: stop stream: %w", err)
	}
	if err := c.stream.Close(); err != nil {
		return fmt.Errorf("portaudio: close stream: %w", err)
	}
	return nil
}
