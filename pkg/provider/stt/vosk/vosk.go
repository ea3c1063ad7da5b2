// Package vosk implements the stt contracts on top of the Vosk offline
// recognizer. One loaded model serves both roles: a batch [stt.Engine] for
// the racing transcriber and an [stt.RecognizerFactory] for streaming
// recognition with word-level confidences.
package vosk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	voskapi "github.com/alphacep/vosk-api/go"

	"github.com/vesta-home/vesta/pkg/provider/stt"
)

// batchChunkBytes is the feed size for batch transcription: 4000 bytes is
// 125 ms of mono PCM16 at 16 kHz, matching the chunking the Vosk examples
// use.
const batchChunkBytes = 4000

func init() {
	// Vosk logs model loading details to stderr at level 0. Keep it quiet;
	// errors still surface through return values.
	voskapi.SetLogLevel(-1)
}

// Model wraps a loaded Vosk acoustic model. Creating recognizers from one
// shared model is cheap; loading the model itself is not, so callers load
// once at startup.
type Model struct {
	model *voskapi.VoskModel

	mu     sync.Mutex
	closed bool
}

var (
	_ stt.Engine            = (*Model)(nil)
	_ stt.RecognizerFactory = (*Model)(nil)
)

// Load reads the model directory at path.
func Load(path string) (*Model, error) {
	m, err := voskapi.NewModel(path)
	if err != nil {
		return nil, fmt.Errorf("vosk: load model %q: %w", path, err)
	}
	return &Model{model: m}, nil
}

// Name returns the engine tag.
func (m *Model) Name() string { return stt.EngineVosk }

// Close frees the native model. Recognizers created from the model must be
// closed first.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.model.Free()
	return nil
}

// Transcribe runs batch recognition over one complete utterance. The context
// is honored between chunks; Vosk itself has no cancellation hook, so a
// cancelled context abandons the remaining audio.
func (m *Model) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (stt.Result, error) {
	start := time.Now()

	rec, err := m.NewRecognizer(sampleRate)
	if err != nil {
		return stt.Result{}, err
	}
	defer rec.Close()

	for off := 0; off < len(pcm); off += batchChunkBytes {
		if err := ctx.Err(); err != nil {
			return stt.Result{}, err
		}
		end := off + batchChunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		if _, err := rec.AcceptWaveform(pcm[off:end]); err != nil {
			return stt.Result{}, err
		}
	}

	final, err := rec.FinalResult()
	if err != nil {
		return stt.Result{}, err
	}

	return stt.Result{
		Text:       final.Text,
		Engine:     stt.EngineVosk,
		Duration:   time.Since(start),
		Confidence: meanConfidence(final.Words),
	}, nil
}

// NewRecognizer creates a streaming recognizer with word-level confidence
// output enabled.
func (m *Model) NewRecognizer(sampleRate int) (stt.Recognizer, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("vosk: model is closed")
	}

	rec, err := voskapi.NewRecognizer(m.model, float64(sampleRate))
	if err != nil {
		return nil, fmt.Errorf("vosk: new recognizer: %w", err)
	}
	rec.SetWords(1)
	return &recognizer{rec: rec}, nil
}

type recognizer struct {
	rec    *voskapi.VoskRecognizer
	mu     sync.Mutex
	closed bool
}

var _ stt.Recognizer = (*recognizer)(nil)

func (r *recognizer) AcceptWaveform(chunk []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false, fmt.Errorf("vosk: recognizer is closed")
	}
	return r.rec.AcceptWaveform(chunk) != 0, nil
}

func (r *recognizer) PartialResult() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", fmt.Errorf("vosk: recognizer is closed")
	}
	var partial struct {
		Partial string `json:"partial"`
	}
	if err := json.Unmarshal([]byte(r.rec.PartialResult()), &partial); err != nil {
		return "", fmt.Errorf("vosk: parse partial result: %w", err)
	}
	return strings.TrimSpace(partial.Partial), nil
}

func (r *recognizer) Result() (stt.RecognizerResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return stt.RecognizerResult{}, fmt.Errorf("vosk: recognizer is closed")
	}
	return parseResult(r.rec.Result())
}

func (r *recognizer) FinalResult() (stt.RecognizerResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return stt.RecognizerResult{}, fmt.Errorf("vosk: recognizer is closed")
	}
	return parseResult(r.rec.FinalResult())
}

func (r *recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.rec.Free()
	return nil
}

// parseResult decodes Vosk's committed-result JSON:
//
//	{"text": "turn on the lights",
//	 "result": [{"word": "turn", "conf": 0.98, "start": 0.3, "end": 0.51}, ...]}
func parseResult(raw string) (stt.RecognizerResult, error) {
	var payload struct {
		Text   string `json:"text"`
		Result []struct {
			Word  string  `json:"word"`
			Conf  float64 `json:"conf"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return stt.RecognizerResult{}, fmt.Errorf("vosk: parse result: %w", err)
	}

	out := stt.RecognizerResult{Text: strings.TrimSpace(payload.Text)}
	for _, w := range payload.Result {
		out.Words = append(out.Words, stt.WordConfidence{
			Word:       w.Word,
			Confidence: w.Conf,
			Start:      time.Duration(w.Start * float64(time.Second)),
			End:        time.Duration(w.End * float64(time.Second)),
		})
	}
	return out, nil
}

func meanConfidence(words []stt.WordConfidence) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}
