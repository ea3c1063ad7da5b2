package stt

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/vesta-home/vesta/pkg/provider/stt"
)

// DefaultConfidence is reported by Finalize when the engine produced no
// word-level scores: "probably fine, not measured."
const DefaultConfidence = 0.85

// PartialFunc receives each new partial hypothesis together with a
// monotonically increasing sequence number. Panics are recovered and logged,
// never propagated.
type PartialFunc func(text string, seq int)

// StreamingTranscriber incrementally feeds audio chunks to a streaming
// recognizer, emits partial hypotheses as they stabilize, and produces a
// final transcript plus confidence once the caller signals end of utterance.
//
// The recognizer is created lazily on the first chunk and dropped by Reset,
// so engine state never leaks across unrelated sessions. Not safe for
// concurrent use; one transcriber serves one recording loop.
type StreamingTranscriber struct {
	factory    stt.RecognizerFactory
	sampleRate int
	onPartial  PartialFunc
	log        *slog.Logger

	rec         stt.Recognizer
	fragments   []string
	lastPartial string
	seq         int
	words       []stt.WordConfidence
}

// StreamingOption configures a StreamingTranscriber.
type StreamingOption func(*StreamingTranscriber)

// WithPartialCallback registers the partial-hypothesis callback.
func WithPartialCallback(fn PartialFunc) StreamingOption {
	return func(s *StreamingTranscriber) { s.onPartial = fn }
}

// WithStreamingLogger overrides the default logger.
func WithStreamingLogger(l *slog.Logger) StreamingOption {
	return func(s *StreamingTranscriber) {
		if l != nil {
			s.log = l
		}
	}
}

// NewStreamingTranscriber creates a transcriber for audio at sampleRate Hz.
func NewStreamingTranscriber(factory stt.RecognizerFactory, sampleRate int, opts ...StreamingOption) *StreamingTranscriber {
	s := &StreamingTranscriber{
		factory:    factory,
		sampleRate: sampleRate,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *StreamingTranscriber) recognizer() (stt.Recognizer, error) {
	if s.rec == nil {
		rec, err := s.factory.NewRecognizer(s.sampleRate)
		if err != nil {
			return nil, fmt.Errorf("stt: create recognizer: %w", err)
		}
		s.rec = rec
	}
	return s.rec, nil
}

// ProcessChunk feeds one audio chunk to the recognizer.
//
// When the recognizer reports an utterance boundary, the committed text is
// appended to the accumulated fragments, the last-partial tracker resets,
// and (text, true) is returned. Otherwise the current partial hypothesis is
// compared to the previously emitted one; only a non-empty, changed partial
// advances the sequence counter and fires the callback. Unchanged or empty
// partials still return (partial, false) but fire nothing, bounding the
// update volume downstream consumers see.
func (s *StreamingTranscriber) ProcessChunk(chunk []byte) (string, bool, error) {
	rec, err := s.recognizer()
	if err != nil {
		return "", false, err
	}

	utteranceEnd, err := rec.AcceptWaveform(chunk)
	if err != nil {
		return "", false, fmt.Errorf("stt: accept waveform: %w", err)
	}

	if utteranceEnd {
		res, err := rec.Result()
		if err != nil {
			return "", false, fmt.Errorf("stt: read result: %w", err)
		}
		if res.Text != "" {
			s.fragments = append(s.fragments, res.Text)
			s.words = append(s.words, res.Words...)
		}
		s.lastPartial = ""
		return res.Text, true, nil
	}

	partial, err := rec.PartialResult()
	if err != nil {
		return "", false, fmt.Errorf("stt: read partial: %w", err)
	}
	if partial != "" && partial != s.lastPartial {
		s.lastPartial = partial
		s.seq++
		if s.onPartial != nil {
			s.emitPartial(partial, s.seq)
		}
	}
	return partial, false, nil
}

func (s *StreamingTranscriber) emitPartial(text string, seq int) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("partial callback panicked", "seq", seq, "panic", r)
		}
	}()
	s.onPartial(text, seq)
}

// Finalize flushes the recognizer, joins all accumulated utterance fragments
// with single spaces, and returns the authoritative transcript for the turn
// together with a confidence score: the arithmetic mean of per-word
// confidences when the engine reported them, DefaultConfidence otherwise.
// The result is always clamped to [0, 1].
func (s *StreamingTranscriber) Finalize() (string, float64, error) {
	if s.rec != nil {
		res, err := s.rec.FinalResult()
		if err != nil {
			return "", 0, fmt.Errorf("stt: final result: %w", err)
		}
		if res.Text != "" {
			s.fragments = append(s.fragments, res.Text)
			s.words = append(s.words, res.Words...)
		}
	}

	text := strings.Join(s.fragments, " ")
	confidence := DefaultConfidence
	if len(s.words) > 0 {
		var sum float64
		for _, w := range s.words {
			sum += w.Confidence
		}
		confidence = sum / float64(len(s.words))
	}
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}
	return text, confidence, nil
}

// Seq returns the current partial sequence number.
func (s *StreamingTranscriber) Seq() int { return s.seq }

// Reset drops the recognizer (forcing lazy re-creation on next use), zeroes
// the sequence counter, and clears the last-partial tracker and accumulated
// fragments. Call before starting a new utterance.
func (s *StreamingTranscriber) Reset() {
	if s.rec != nil {
		if err := s.rec.Close(); err != nil {
			s.log.Warn("close recognizer", "error", err)
		}
		s.rec = nil
	}
	s.fragments = nil
	s.words = nil
	s.lastPartial = ""
	s.seq = 0
}
