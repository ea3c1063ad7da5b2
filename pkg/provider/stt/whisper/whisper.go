// Package whisper provides whisper.cpp-backed batch STT engines.
//
// Two variants share the package: [Server] talks to a running whisper-server
// binary over its REST API (POST /inference), and [Native] (see native.go)
// runs inference in-process through the whisper.cpp Go bindings. Both
// implement [stt.Engine] and slot into the racing transcriber as the slow,
// accurate leg.
//
// Usage:
//
//	eng, err := whisper.NewServer("http://localhost:8080",
//	    whisper.WithLanguage("en"),
//	)
//	res, err := eng.Transcribe(ctx, pcm, 16000)
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/vesta-home/vesta/pkg/audio"
	"github.com/vesta-home/vesta/pkg/provider/stt"
)

const (
	defaultLanguage = "en"

	// defaultHTTPTimeout bounds one inference round-trip. Large utterances on
	// small hardware can take several seconds; the racing transcriber applies
	// its own, tighter deadline on top.
	defaultHTTPTimeout = 30 * time.Second
)

var _ stt.Engine = (*Server)(nil)

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g. "base.en", "small"). When empty the server uses whichever model it
// was started with, which is the default.
func WithModel(model string) Option {
	return func(s *Server) {
		s.model = model
	}
}

// WithLanguage sets the language code sent to the whisper.cpp server (e.g.
// "en", "de"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(s *Server) {
		s.language = lang
	}
}

// WithHTTPClient replaces the HTTP client, e.g. for tests against an
// httptest server.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Server) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// Server implements stt.Engine against a local whisper.cpp HTTP server.
type Server struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// NewServer creates an engine talking to the whisper-server at serverURL.
func NewServer(serverURL string, opts ...Option) *Server {
	s := &Server{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the engine tag.
func (s *Server) Name() string { return stt.EngineWhisper }

// Transcribe encodes pcm as a WAV file and POSTs it to the /inference
// endpoint as multipart/form-data.
func (s *Server) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (stt.Result, error) {
	start := time.Now()

	wav := audio.EncodeWAV(pcm, sampleRate, 1)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: write wav data: %w", err)
	}
	if s.language != "" {
		if err := mw.WriteField("language", s.language); err != nil {
			return stt.Result{}, fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if s.model != "" {
		if err := mw.WriteField("model", s.model); err != nil {
			return stt.Result{}, fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	endpoint := s.serverURL + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stt.Result{}, fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	return stt.Result{
		Text:     strings.TrimSpace(result.Text),
		Engine:   stt.EngineWhisper,
		Duration: time.Since(start),
	}, nil
}
