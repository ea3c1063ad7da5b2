package stt_test

import (
	"math"
	"testing"

	internalstt "github.com/vesta-home/vesta/internal/stt"
	"github.com/vesta-home/vesta/pkg/provider/stt"
	"github.com/vesta-home/vesta/pkg/provider/stt/mock"
)

// ─── helpers ─────────────────────────────────────────────────────────────────

type partialRecord struct {
	text string
	seq  int
}

func newStreaming(rec *mock.Recognizer, partials *[]partialRecord) *internalstt.StreamingTranscriber {
	factory := &mock.Factory{Recognizers: []*mock.Recognizer{rec}}
	return internalstt.NewStreamingTranscriber(factory, 16000,
		internalstt.WithPartialCallback(func(text string, seq int) {
			*partials = append(*partials, partialRecord{text, seq})
		}))
}

var chunk = []byte{0, 0, 0, 0}

// ─── TestProcessChunk_PartialDedup ───────────────────────────────────────────

// TestProcessChunk_PartialDedup verifies that a repeated identical partial
// fires the callback at most once and never advances the sequence counter.
func TestProcessChunk_PartialDedup(t *testing.T) {
	t.Parallel()

	rec := &mock.Recognizer{Script: []mock.Step{
		{Partial: "turn"},
		{Partial: "turn"}, // stabilized repeat, must not re-fire
		{Partial: "turn on"},
		{Partial: ""}, // empty partial, ignored
		{Partial: "turn on"},
	}}

	var partials []partialRecord
	s := newStreaming(rec, &partials)

	for range rec.Script {
		if _, end, err := s.ProcessChunk(chunk); err != nil || end {
			t.Fatalf("ProcessChunk: end=%v err=%v", end, err)
		}
	}

	want := []partialRecord{{"turn", 1}, {"turn on", 2}}
	if len(partials) != len(want) {
		t.Fatalf("partial callbacks: want %d, got %d (%v)", len(want), len(partials), partials)
	}
	for i, w := range want {
		if partials[i] != w {
			t.Errorf("partial %d: want %+v, got %+v", i, w, partials[i])
		}
	}
	if got := s.Seq(); got != 2 {
		t.Errorf("sequence counter: want 2, got %d", got)
	}
}

// ─── TestProcessChunk_UtteranceBoundary ──────────────────────────────────────

func TestProcessChunk_UtteranceBoundary(t *testing.T) {
	t.Parallel()

	rec := &mock.Recognizer{Script: []mock.Step{
		{Partial: "turn on"},
		{UtteranceEnd: true, Committed: stt.RecognizerResult{Text: "turn on the lights"}},
	}}

	var partials []partialRecord
	s := newStreaming(rec, &partials)

	if _, end, _ := s.ProcessChunk(chunk); end {
		t.Fatal("first chunk should not end the utterance")
	}
	text, end, err := s.ProcessChunk(chunk)
	if err != nil {
		t.Fatalf("ProcessChunk: %v", err)
	}
	if !end {
		t.Fatal("second chunk should report utterance end")
	}
	if text != "turn on the lights" {
		t.Errorf("utterance text: want %q, got %q", "turn on the lights", text)
	}
}

// ─── TestFinalize ────────────────────────────────────────────────────────────

// TestFinalize_JoinsFragmentsAndAveragesConfidence covers multi-utterance
// accumulation with word-level scores.
func TestFinalize_JoinsFragmentsAndAveragesConfidence(t *testing.T) {
	t.Parallel()

	rec := &mock.Recognizer{
		Script: []mock.Step{
			{UtteranceEnd: true, Committed: stt.RecognizerResult{
				Text: "turn on",
				Words: []stt.WordConfidence{
					{Word: "turn", Confidence: 0.9},
					{Word: "on", Confidence: 0.7},
				},
			}},
		},
		Final: stt.RecognizerResult{
			Text:  "the lights",
			Words: []stt.WordConfidence{{Word: "the", Confidence: 0.8}, {Word: "lights", Confidence: 1.0}},
		},
	}

	var partials []partialRecord
	s := newStreaming(rec, &partials)

	if _, end, _ := s.ProcessChunk(chunk); !end {
		t.Fatal("scripted chunk should end the utterance")
	}

	text, confidence, err := s.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if want := "turn on the lights"; text != want {
		t.Errorf("final text: want %q, got %q", want, text)
	}
	if want := 0.85; math.Abs(confidence-want) > 1e-9 {
		t.Errorf("confidence: want %v, got %v", want, confidence)
	}
}

// TestFinalize_DefaultConfidence verifies the 0.85 default when no word
// scores exist, and that the result stays within [0, 1].
func TestFinalize_DefaultConfidence(t *testing.T) {
	t.Parallel()

	rec := &mock.Recognizer{
		Final: stt.RecognizerResult{Text: "hello"},
	}
	var partials []partialRecord
	s := newStreaming(rec, &partials)

	if _, _, err := s.ProcessChunk(chunk); err != nil {
		t.Fatalf("ProcessChunk: %v", err)
	}
	_, confidence, err := s.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if confidence != internalstt.DefaultConfidence {
		t.Errorf("confidence: want default %v, got %v", internalstt.DefaultConfidence, confidence)
	}
	if confidence < 0 || confidence > 1 {
		t.Errorf("confidence %v outside [0, 1]", confidence)
	}
}

// TestFinalize_ConfidenceClamped guards against engines reporting scores
// outside [0, 1].
func TestFinalize_ConfidenceClamped(t *testing.T) {
	t.Parallel()

	rec := &mock.Recognizer{
		Final: stt.RecognizerResult{
			Text:  "loud",
			Words: []stt.WordConfidence{{Word: "loud", Confidence: 1.7}},
		},
	}
	var partials []partialRecord
	s := newStreaming(rec, &partials)

	if _, _, err := s.ProcessChunk(chunk); err != nil {
		t.Fatalf("ProcessChunk: %v", err)
	}
	_, confidence, err := s.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if confidence < 0 || confidence > 1 {
		t.Errorf("confidence %v outside [0, 1]", confidence)
	}
}

// ─── TestReset ───────────────────────────────────────────────────────────────

// TestReset_DropsRecognizerAndState verifies that fragments, the sequence
// counter, and the lazy recognizer are all discarded.
func TestReset_DropsRecognizerAndState(t *testing.T) {
	t.Parallel()

	first := &mock.Recognizer{Script: []mock.Step{
		{UtteranceEnd: true, Committed: stt.RecognizerResult{Text: "stale fragment"}},
	}}
	second := &mock.Recognizer{Final: stt.RecognizerResult{Text: "fresh"}}
	factory := &mock.Factory{Recognizers: []*mock.Recognizer{first, second}}

	s := internalstt.NewStreamingTranscriber(factory, 16000)

	if _, end, _ := s.ProcessChunk(chunk); !end {
		t.Fatal("scripted chunk should end the utterance")
	}
	s.Reset()

	if first.CallCountClose != 1 {
		t.Errorf("first recognizer Close calls: want 1, got %d", first.CallCountClose)
	}
	if got := s.Seq(); got != 0 {
		t.Errorf("sequence after Reset: want 0, got %d", got)
	}

	// Next chunk must lazily create a new recognizer, and Finalize must not
	// leak the previous turn's fragment.
	if _, _, err := s.ProcessChunk(chunk); err != nil {
		t.Fatalf("ProcessChunk after Reset: %v", err)
	}
	text, _, err := s.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if text != "fresh" {
		t.Errorf("final text after Reset: want %q, got %q", "fresh", text)
	}
	if factory.CallCountNew != 2 {
		t.Errorf("recognizer factory calls: want 2, got %d", factory.CallCountNew)
	}
}
