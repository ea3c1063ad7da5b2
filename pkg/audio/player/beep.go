package player

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	beepwav "github.com/faiface/beep/wav"
)

// BeepPlayer plays WAV clips in-process through the beep speaker. It exists
// for environments without an external player binary. Unlike ExecPlayer there
// is no process to kill; Kill clears the speaker, which stops output at the
// next mixer tick.
type BeepPlayer struct {
	mu       sync.Mutex
	initRate beep.SampleRate
}

var _ Player = (*BeepPlayer)(nil)

// NewBeepPlayer returns an in-process player. The speaker device is opened
// lazily on first Play and re-opened when the clip sample rate changes.
func NewBeepPlayer() *BeepPlayer { return &BeepPlayer{} }

type nopReadCloser struct{ io.Reader }

func (nopReadCloser) Close() error { return nil }

// Play decodes the WAV clip and starts it on the shared speaker.
func (p *BeepPlayer) Play(ctx context.Context, wav []byte) (Playback, error) {
	streamer, format, err := beepwav.Decode(nopReadCloser{bytes.NewReader(wav)})
	if err != nil {
		return nil, fmt.Errorf("player: decode wav: %w", err)
	}

	p.mu.Lock()
	if p.initRate != format.SampleRate {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(100*time.Millisecond)); err != nil {
			p.mu.Unlock()
			return nil, fmt.Errorf("player: init speaker: %w", err)
		}
		p.initRate = format.SampleRate
	}
	p.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		once.Do(func() { close(done) })
	})))

	return &beepPlayback{done: done, once: &once}, nil
}

type beepPlayback struct {
	done chan struct{}
	once *sync.Once
}

func (pb *beepPlayback) Wait(ctx context.Context) error {
	select {
	case <-pb.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Kill clears the speaker mixer. The clip's completion callback never fires
// after Clear, so the done channel is closed here instead.
func (pb *beepPlayback) Kill() error {
	speaker.Clear()
	pb.once.Do(func() { close(pb.done) })
	return nil
}
