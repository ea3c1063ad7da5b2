package whisper_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vesta-home/vesta/pkg/audio"
	"github.com/vesta-home/vesta/pkg/provider/stt"
	"github.com/vesta-home/vesta/pkg/provider/stt/whisper"
)

// inferenceServer records the last multipart request it received and answers
// with the configured text.
type inferenceServer struct {
	t *testing.T

	text   string
	status int

	calls    int
	lastWAV  []byte
	lastForm map[string]string
}

func (s *inferenceServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.t.Helper()
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		s.calls++

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			s.t.Errorf("parse multipart form: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		s.lastForm = map[string]string{}
		for k, vs := range r.MultipartForm.Value {
			s.lastForm[k] = vs[0]
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			s.t.Errorf("form file: %v", err)
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		s.lastWAV, _ = io.ReadAll(file)

		if s.status != 0 && s.status != http.StatusOK {
			http.Error(w, "inference failed", s.status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": s.text})
	}
}

func pcm16(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}

// ─── TestServer ──────────────────────────────────────────────────────────────

func TestServer_Transcribe(t *testing.T) {
	t.Parallel()

	mock := &inferenceServer{t: t, text: "  turn on the kitchen light\n"}
	srv := httptest.NewServer(mock.handler())
	defer srv.Close()

	eng := whisper.NewServer(srv.URL)
	pcm := pcm16(100, -200, 300, -400)
	res, err := eng.Transcribe(context.Background(), pcm, 16000)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}

	if want := "turn on the kitchen light"; res.Text != want {
		t.Errorf("text: want %q, got %q", want, res.Text)
	}
	if res.Engine != stt.EngineWhisper {
		t.Errorf("engine: want %q, got %q", stt.EngineWhisper, res.Engine)
	}
	if res.Duration <= 0 {
		t.Error("duration should be positive")
	}

	// The upload must be a valid WAV container wrapping the original PCM.
	info, err := audio.ParseWAV(mock.lastWAV)
	if err != nil {
		t.Fatalf("uploaded file is not a WAV container: %v", err)
	}
	if info.SampleRate != 16000 {
		t.Errorf("uploaded sample rate: want 16000, got %d", info.SampleRate)
	}
	if got := mock.lastWAV[info.DataOffset:]; string(got) != string(pcm) {
		t.Error("uploaded WAV payload does not match the source PCM")
	}
	if got := mock.lastForm["language"]; got != "en" {
		t.Errorf("language field: want %q, got %q", "en", got)
	}
}

func TestServer_ForwardsModelAndLanguage(t *testing.T) {
	t.Parallel()

	mock := &inferenceServer{t: t, text: "hallo"}
	srv := httptest.NewServer(mock.handler())
	defer srv.Close()

	eng := whisper.NewServer(srv.URL,
		whisper.WithModel("small"),
		whisper.WithLanguage("de"),
	)
	if _, err := eng.Transcribe(context.Background(), pcm16(1, 2), 16000); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if got := mock.lastForm["model"]; got != "small" {
		t.Errorf("model field: want %q, got %q", "small", got)
	}
	if got := mock.lastForm["language"]; got != "de" {
		t.Errorf("language field: want %q, got %q", "de", got)
	}
}

func TestServer_TrailingSlashInURL(t *testing.T) {
	t.Parallel()

	mock := &inferenceServer{t: t, text: "ok"}
	srv := httptest.NewServer(mock.handler())
	defer srv.Close()

	eng := whisper.NewServer(srv.URL + "/")
	if _, err := eng.Transcribe(context.Background(), pcm16(1), 16000); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if mock.calls != 1 {
		t.Errorf("server calls: want 1, got %d", mock.calls)
	}
}

func TestServer_HTTPError(t *testing.T) {
	t.Parallel()

	mock := &inferenceServer{t: t, status: http.StatusInternalServerError}
	srv := httptest.NewServer(mock.handler())
	defer srv.Close()

	eng := whisper.NewServer(srv.URL)
	_, err := eng.Transcribe(context.Background(), pcm16(1, 2), 16000)
	if err == nil {
		t.Fatal("expected error for HTTP 500, got nil")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error should mention the status code, got: %v", err)
	}
}

func TestServer_MalformedResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}))
	defer srv.Close()

	eng := whisper.NewServer(srv.URL)
	_, err := eng.Transcribe(context.Background(), pcm16(1, 2), 16000)
	if err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

func TestServer_CancelledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := whisper.NewServer(srv.URL)
	if _, err := eng.Transcribe(ctx, pcm16(1, 2), 16000); err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
}

func TestServer_Name(t *testing.T) {
	t.Parallel()

	if got := whisper.NewServer("http://localhost:8090").Name(); got != stt.EngineWhisper {
		t.Errorf("name: want %q, got %q", stt.EngineWhisper, got)
	}
}
