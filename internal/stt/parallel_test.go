package stt_test

import (
	"context"
	"strings"
	"testing"
	"time"

	internalstt "github.com/vesta-home/vesta/internal/stt"
	"github.com/vesta-home/vesta/pkg/provider/stt"
	"github.com/vesta-home/vesta/pkg/provider/stt/mock"
)

// ─── helpers ─────────────────────────────────────────────────────────────────

func newPool(t *testing.T, workers int) *internalstt.Pool {
	t.Helper()
	p := internalstt.NewPool(workers)
	t.Cleanup(func() { p.Close(true) })
	return p
}

func result(text string, engine string, d time.Duration) stt.Result {
	return stt.Result{Text: text, Engine: engine, Duration: d}
}

// ─── TestTranscribeParallel_Selection ────────────────────────────────────────

// TestTranscribeParallel_Selection drives the full racer through the ordered
// selection rules with scripted engine results.
func TestTranscribeParallel_Selection(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		fast         stt.Result
		slow         stt.Result
		wantText     string
		wantEngine   string
		wantInReason string
	}{
		{
			name:         "both empty selects fast",
			fast:         result("", stt.EngineVosk, time.Second),
			slow:         result("", stt.EngineWhisper, 2*time.Second),
			wantText:     "",
			wantEngine:   stt.EngineVosk,
			wantInReason: "both empty",
		},
		{
			name:         "empty slow selects fast",
			fast:         result("turn on the lights", stt.EngineVosk, time.Second),
			slow:         result("", stt.EngineWhisper, 5*time.Second),
			wantText:     "turn on the lights",
			wantEngine:   stt.EngineVosk,
			wantInReason: "empty",
		},
		{
			name:         "empty fast selects slow",
			fast:         result("", stt.EngineVosk, time.Second),
			slow:         result("turn on the lights", stt.EngineWhisper, 2*time.Second),
			wantText:     "turn on the lights",
			wantEngine:   stt.EngineWhisper,
			wantInReason: "vosk empty",
		},
		{
			name:         "pathologically slow whisper loses despite longer text",
			fast:         result("turn on lights", stt.EngineVosk, 2*time.Second),
			slow:         result("turn on the lights in the kitchen", stt.EngineWhisper, 34*time.Second),
			wantText:     "turn on lights",
			wantEngine:   stt.EngineVosk,
			wantInReason: "34.0s vs 2.0s",
		},
		{
			name:         "similar length prefers accuracy",
			fast:         result("hello there", stt.EngineVosk, time.Second),
			slow:         result("hello there", stt.EngineWhisper, 1200*time.Millisecond),
			wantText:     "hello there",
			wantEngine:   stt.EngineWhisper,
			wantInReason: "similar length, prefer accuracy",
		},
		{
			name:         "dissimilar length prefers longer",
			fast:         result("lights", stt.EngineVosk, time.Second),
			slow:         result("turn on the kitchen lights", stt.EngineWhisper, 1500*time.Millisecond),
			wantText:     "turn on the kitchen lights",
			wantEngine:   stt.EngineWhisper,
			wantInReason: "longer",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fast := &mock.Engine{EngineName: stt.EngineVosk, Result: tc.fast}
			slow := &mock.Engine{EngineName: stt.EngineWhisper, Result: tc.slow}
			p := internalstt.NewParallelSTT(fast, slow, newPool(t, 2))

			got := p.TranscribeParallel(context.Background(), []byte{1, 2}, 16000)

			if got.Selected.Text != tc.wantText {
				t.Errorf("selected text: want %q, got %q", tc.wantText, got.Selected.Text)
			}
			if got.Selected.Engine != tc.wantEngine {
				t.Errorf("selected engine: want %q, got %q", tc.wantEngine, got.Selected.Engine)
			}
			if !strings.Contains(got.SelectionReason, tc.wantInReason) {
				t.Errorf("reason %q does not contain %q", got.SelectionReason, tc.wantInReason)
			}
		})
	}
}

// ─── TestTranscribeParallel_WhisperDisabled ──────────────────────────────────

func TestTranscribeParallel_WhisperDisabled(t *testing.T) {
	t.Parallel()

	fast := &mock.Engine{
		EngineName: stt.EngineVosk,
		Result:     result("open the blinds", stt.EngineVosk, time.Second),
	}
	p := internalstt.NewParallelSTT(fast, nil, newPool(t, 2))

	got := p.TranscribeParallel(context.Background(), []byte{1}, 16000)

	if got.SelectionReason != "whisper disabled" {
		t.Errorf("reason: want %q, got %q", "whisper disabled", got.SelectionReason)
	}
	if got.Selected.Engine != stt.EngineVosk {
		t.Errorf("selected engine: want vosk, got %q", got.Selected.Engine)
	}
	if got.Whisper.Text != "" || got.Whisper.Engine != "" {
		t.Errorf("whisper result should be zero, got %+v", got.Whisper)
	}
}

// ─── TestTranscribeParallel_SlowTimeout ──────────────────────────────────────

// TestTranscribeParallel_SlowTimeout verifies the caller is released at the
// timeout with an empty zero-confidence placeholder while the slow task is
// left to finish in the background.
func TestTranscribeParallel_SlowTimeout(t *testing.T) {
	t.Parallel()

	fast := &mock.Engine{
		EngineName: stt.EngineVosk,
		Result:     result("turn it off", stt.EngineVosk, 10*time.Millisecond),
	}
	slow := &mock.Engine{
		EngineName: stt.EngineWhisper,
		Result:     result("turn it off please", stt.EngineWhisper, time.Second),
		Delay:      2 * time.Second,
	}
	p := internalstt.NewParallelSTT(fast, slow, newPool(t, 2),
		internalstt.WithSlowTimeout(50*time.Millisecond))

	start := time.Now()
	got := p.TranscribeParallel(context.Background(), []byte{1}, 16000)
	elapsed := time.Since(start)

	if elapsed > time.Second {
		t.Errorf("caller blocked %v, should be released at the slow timeout", elapsed)
	}
	if got.Selected.Engine != stt.EngineVosk {
		t.Errorf("selected engine: want vosk, got %q", got.Selected.Engine)
	}
	if got.Whisper.Text != "" {
		t.Errorf("timed-out whisper text: want empty placeholder, got %q", got.Whisper.Text)
	}
	if got.Whisper.Confidence != 0 {
		t.Errorf("timed-out whisper confidence: want 0, got %v", got.Whisper.Confidence)
	}
}

// ─── TestTranscribeParallel_EngineError ──────────────────────────────────────

func TestTranscribeParallel_EngineError(t *testing.T) {
	t.Parallel()

	fast := &mock.Engine{
		EngineName: stt.EngineVosk,
		Result:     result("good morning", stt.EngineVosk, time.Second),
	}
	slow := &mock.Engine{
		EngineName: stt.EngineWhisper,
		Err:        context.DeadlineExceeded,
	}
	p := internalstt.NewParallelSTT(fast, slow, newPool(t, 2))

	got := p.TranscribeParallel(context.Background(), []byte{1}, 16000)

	if got.Selected.Engine != stt.EngineVosk {
		t.Errorf("selected engine after slow error: want vosk, got %q", got.Selected.Engine)
	}
	if !strings.Contains(got.SelectionReason, "empty") {
		t.Errorf("reason %q should treat the failed engine as empty", got.SelectionReason)
	}
}
