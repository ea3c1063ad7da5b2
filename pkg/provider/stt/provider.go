// Package stt defines the provider contracts for Speech-to-Text backends.
//
// Two shapes of recognition are supported. A batch [Engine] transcribes one
// complete utterance at a time; the pipeline races two of these (a fast local
// engine against a slower accurate one) and picks the better transcript. A
// streaming [Recognizer] accepts incremental PCM chunks and emits partial
// hypotheses while the user is still speaking, with word-level confidence
// scores on the final result.
//
// Engine implementations must be safe for concurrent use; a Recognizer
// instance is owned by a single session and is not.
package stt

import (
	"context"
	"time"
)

// Engine name tags carried in results and in interaction records. These are
// part of the wire vocabulary consumed by dashboards; do not rename.
const (
	EngineVosk    = "vosk"
	EngineWhisper = "whisper"
	EngineBrowser = "browser"
)

// Result is the outcome of one batch transcription.
type Result struct {
	// Text is the recognized transcript, whitespace-trimmed. Empty means the
	// engine heard nothing intelligible.
	Text string

	// Engine tags which backend produced the result (EngineVosk,
	// EngineWhisper, EngineBrowser).
	Engine string

	// Duration is the wall-clock time the engine spent on the utterance.
	Duration time.Duration

	// Confidence is the engine's self-reported confidence in [0, 1], or 0
	// when the backend does not report one.
	Confidence float64
}

// Engine transcribes complete utterances of mono PCM16 audio.
type Engine interface {
	// Transcribe recognizes one utterance. pcm is raw mono 16-bit
	// little-endian samples at sampleRate Hz. A successful call with no
	// recognizable speech returns an empty-text Result, not an error.
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (Result, error)

	// Name returns the engine tag (EngineVosk, EngineWhisper, ...).
	Name() string
}

// WordConfidence is one recognized word with its confidence score and time
// offsets within the utterance.
type WordConfidence struct {
	Word       string
	Confidence float64
	Start      time.Duration
	End        time.Duration
}

// RecognizerResult is a committed (end-of-utterance) streaming hypothesis.
type RecognizerResult struct {
	// Text is the committed transcript for the utterance.
	Text string

	// Words carries per-word confidences when the backend reports them.
	// May be empty.
	Words []WordConfidence
}

// Recognizer is an incremental speech recognizer in the Vosk mold. Feed it
// chunks with AcceptWaveform; between chunks, PartialResult exposes the
// current unstable hypothesis. When AcceptWaveform reports an utterance
// boundary, Result returns the committed text for that utterance.
//
// A Recognizer belongs to one session and must be used from one goroutine.
type Recognizer interface {
	// AcceptWaveform processes one chunk of mono PCM16 audio. The returned
	// flag is true when the chunk completed an utterance, in which case
	// Result holds the committed hypothesis.
	AcceptWaveform(chunk []byte) (utteranceEnd bool, err error)

	// PartialResult returns the current in-progress hypothesis. It may
	// repeat the previous value when the new chunk added no words.
	PartialResult() (string, error)

	// Result returns the hypothesis committed by the last utterance
	// boundary.
	Result() (RecognizerResult, error)

	// FinalResult flushes buffered audio and returns the last hypothesis.
	// The recognizer must not be fed further audio afterwards.
	FinalResult() (RecognizerResult, error)

	// Close releases the recognizer's native resources.
	Close() error
}

// RecognizerFactory creates streaming recognizers. Factories are safe for
// concurrent use; model weights are shared across the recognizers they
// create.
type RecognizerFactory interface {
	// NewRecognizer creates a recognizer for audio at sampleRate Hz.
	NewRecognizer(sampleRate int) (Recognizer, error)
}
