package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Default energy-gate tuning. These values assume 16 kHz mono capture with
// ~100 ms chunks and were calibrated against typical far-field microphone
// noise floors.
const (
	// DefaultSilenceRMS is the RMS energy below which a chunk counts as
	// silence.
	DefaultSilenceRMS = 300.0

	// DefaultSilenceChunksToStop is how many consecutive silent chunks end
	// the utterance once speech has started.
	DefaultSilenceChunksToStop = 8

	// DefaultMinSpeechChunks is the minimum number of voiced chunks required
	// before trailing silence may end the recording. Guards against cutting
	// off on a single transient.
	DefaultMinSpeechChunks = 3

	// DefaultMaxDuration caps a single recording regardless of voice
	// activity.
	DefaultMaxDuration = 30 * time.Second
)

// RecordOptions tunes the energy-gated recording loop. The zero value is
// usable; unset fields fall back to the package defaults above.
type RecordOptions struct {
	// SilenceRMS is the RMS threshold below which a chunk is silence.
	SilenceRMS float64

	// SilenceChunksToStop is the number of consecutive silent chunks that
	// terminates the recording after speech was heard.
	SilenceChunksToStop int

	// MinSpeechChunks gates the trailing-silence stop on a minimum amount of
	// detected speech.
	MinSpeechChunks int

	// MaxDuration bounds the total recording length.
	MaxDuration time.Duration

	// OnChunk, when non-nil, receives every captured chunk as it arrives,
	// before any trimming. Used to feed a streaming recognizer while the
	// recording is still in progress.
	OnChunk func(chunk []byte)
}

func (o RecordOptions) withDefaults() RecordOptions {
	if o.SilenceRMS <= 0 {
		o.SilenceRMS = DefaultSilenceRMS
	}
	if o.SilenceChunksToStop <= 0 {
		o.SilenceChunksToStop = DefaultSilenceChunksToStop
	}
	if o.MinSpeechChunks <= 0 {
		o.MinSpeechChunks = DefaultMinSpeechChunks
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = DefaultMaxDuration
	}
	return o
}

// ErrNoSpeech is returned by Record when the loop ends without ever crossing
// the speech threshold.
var ErrNoSpeech = errors.New("audio: no speech detected")

// Record captures one utterance from src using an RMS energy gate: leading
// silence is discarded, then chunks accumulate until SilenceChunksToStop
// consecutive silent chunks arrive (after at least MinSpeechChunks of
// speech), MaxDuration elapses, or the source drains.
//
// The returned buffer is mono PCM16 at src.SampleRate() including the
// trailing silence that ended the utterance, which downstream recognizers use
// to flush their final hypothesis.
func Record(ctx context.Context, src Source, opts RecordOptions) ([]byte, error) {
	opts = opts.withDefaults()

	var (
		buf           []byte
		elapsed       time.Duration
		speechChunks  int
		silentStreak  int
		speechStarted bool
	)

	for elapsed < opts.MaxDuration {
		chunk, err := src.ReadChunk(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("audio: read chunk: %w", err)
		}
		elapsed += ChunkDuration(chunk, src.SampleRate())

		if opts.OnChunk != nil {
			opts.OnChunk(chunk)
		}

		rms := ComputeRMS(chunk)
		voiced := rms >= opts.SilenceRMS

		if !speechStarted {
			if !voiced {
				continue // discard leading silence
			}
			speechStarted = true
			slog.Debug("speech onset", "rms", rms, "elapsed", elapsed)
		}

		buf = append(buf, chunk...)
		if voiced {
			speechChunks++
			silentStreak = 0
		} else {
			silentStreak++
			if speechChunks >= opts.MinSpeechChunks && silentStreak >= opts.SilenceChunksToStop {
				break
			}
		}
	}

	if !speechStarted {
		return nil, ErrNoSpeech
	}
	return buf, nil
}
