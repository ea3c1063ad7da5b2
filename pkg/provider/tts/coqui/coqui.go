// Package coqui implements the tts.Synthesizer contract backed by a
// locally-running Coqui TTS server.
//
// Two server APIs are supported. APIModeStandard targets the classic Coqui
// TTS server (GET /api/tts) and is the fast tier. APIModeXTTS targets an
// XTTS v2 API server (POST /tts_to_audio/), which is slower but handles
// multilingual synthesis and custom speaker WAVs; it also exposes voice
// listing via /studio_speakers.
//
// Usage:
//
//	syn, err := coqui.New("http://localhost:5002",
//	    coqui.WithLanguage("en"),
//	    coqui.WithVoice("p226"),
//	)
//	wav, err := syn.Synthesize(ctx, "The lights are on.", "")
package coqui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/vesta-home/vesta/pkg/audio"
	"github.com/vesta-home/vesta/pkg/provider/tts"
)

var (
	_ tts.Synthesizer = (*Provider)(nil)
	_ tts.VoiceLister = (*Provider)(nil)
)

const (
	defaultLanguage        = "en"
	defaultTimeout         = 30 * time.Second
	ttsEndpoint            = "/tts_to_audio/"
	studioSpeakersEndpoint = "/studio_speakers"
	apiTTSEndpoint         = "/api/tts"
	detailsEndpoint        = "/details"
)

// APIMode selects which Coqui server API the provider will target.
type APIMode string

const (
	// APIModeXTTS targets the Coqui XTTS v2 API server (/tts_to_audio/).
	APIModeXTTS APIMode = "xtts"

	// APIModeStandard targets the standard Coqui TTS server (/api/tts).
	// This is the default mode. Voice listing is performed via /details.
	APIModeStandard APIMode = "standard"
)

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithLanguage sets the default language code sent to the TTS server (e.g.
// "en", "de"). Used when Synthesize is called with an empty language.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		if lang != "" {
			p.language = lang
		}
	}
}

// WithVoice sets the speaker: a speaker_id in standard mode, a speaker WAV
// reference in XTTS mode.
func WithVoice(voice string) Option {
	return func(p *Provider) {
		p.voice = voice
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.httpClient.Timeout = d
		}
	}
}

// WithAPIMode selects the server API. Defaults to APIModeStandard.
func WithAPIMode(mode APIMode) Option {
	return func(p *Provider) {
		p.apiMode = mode
	}
}

// WithOutputSampleRate resamples mono synthesis output to the given rate so
// the playback device always sees one format. 0 disables resampling.
func WithOutputSampleRate(rate int) Option {
	return func(p *Provider) {
		p.outputRate = rate
	}
}

// WithHTTPClient replaces the HTTP client, e.g. for tests against an
// httptest server.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// Provider implements tts.Synthesizer backed by a Coqui TTS server. It is
// safe for concurrent use; multiple Synthesize calls may run in parallel.
type Provider struct {
	serverURL  string
	language   string
	voice      string
	httpClient *http.Client
	apiMode    APIMode
	outputRate int // target sample rate; 0 = no resampling
}

// New creates a Provider targeting the TTS server at serverURL (e.g.
// "http://localhost:5002"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL: strings.TrimRight(serverURL, "/"),
		language:  defaultLanguage,
		apiMode:   APIModeStandard,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ttsRequest is the JSON body sent to POST /tts_to_audio/ (XTTS mode).
type ttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

// Synthesize renders one sentence and returns the WAV clip. Empty input
// yields an error; callers filter blank sentences before enqueueing.
func (p *Provider) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("coqui: text must not be empty")
	}
	if language == "" {
		language = p.language
	}

	var (
		wav []byte
		err error
	)
	switch p.apiMode {
	case APIModeXTTS:
		wav, err = p.synthesizeXTTS(ctx, text, language)
	default:
		wav, err = p.synthesizeStandard(ctx, text, language)
	}
	if err != nil {
		return nil, err
	}
	return p.normalize(wav)
}

func (p *Provider) synthesizeStandard(ctx context.Context, sentence, language string) ([]byte, error) {
	params := url.Values{}
	params.Set("text", sentence)
	if p.voice != "" {
		params.Set("speaker_id", p.voice)
	}
	if language != "" {
		params.Set("language_id", language)
	}

	reqURL := p.serverURL + apiTTSEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: GET %s: %w", apiTTSEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: GET %s returned status %d", apiTTSEndpoint, resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read WAV response: %w", err)
	}
	return wav, nil
}

func (p *Provider) synthesizeXTTS(ctx context.Context, sentence, language string) ([]byte, error) {
	body := ttsRequest{
		Text:       sentence,
		SpeakerWav: p.voice,
		Language:   language,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("coqui: marshal tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+ttsEndpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: POST %s: %w", ttsEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: POST %s returned status %d", ttsEndpoint, resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read WAV response: %w", err)
	}
	return wav, nil
}

// normalize validates the server's WAV response and resamples mono clips to
// the configured output rate, re-wrapping the PCM in a fresh container.
func (p *Provider) normalize(wav []byte) ([]byte, error) {
	info, err := audio.ParseWAV(wav)
	if err != nil {
		return nil, err
	}
	if p.outputRate <= 0 || info.SampleRate == p.outputRate || info.Channels != 1 {
		return wav, nil
	}
	pcm := audio.ResampleMono16(wav[info.DataOffset:], info.SampleRate, p.outputRate)
	return audio.EncodeWAV(pcm, p.outputRate, 1), nil
}

// studioSpeakersResponse represents the raw map[name]any returned by GET
// /studio_speakers. Only the keys (voice names) matter, so the values are
// left as json.RawMessage.
type studioSpeakersResponse map[string]json.RawMessage

// detailsResponse is the JSON body returned by GET /details (standard mode).
// Speakers is nil for single-speaker models and non-nil for multi-speaker
// models.
type detailsResponse struct {
	ModelName string   `json:"model_name"`
	Language  string   `json:"language"`
	Speakers  []string `json:"speakers"`
}

// ListVoices enumerates the voices available on the server for the active
// API mode.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	switch p.apiMode {
	case APIModeXTTS:
		return p.listVoicesXTTS(ctx)
	default:
		return p.listVoicesStandard(ctx)
	}
}

func (p *Provider) listVoicesXTTS(ctx context.Context) ([]tts.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+studioSpeakersEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create voices request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: GET %s: %w", studioSpeakersEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: GET %s returned status %d", studioSpeakersEndpoint, resp.StatusCode)
	}

	var speakers studioSpeakersResponse
	if err := json.NewDecoder(resp.Body).Decode(&speakers); err != nil {
		return nil, fmt.Errorf("coqui: parse speakers response: %w", err)
	}

	voices := make([]tts.Voice, 0, len(speakers))
	for name := range speakers {
		voices = append(voices, tts.Voice{ID: name, Name: name, Provider: "coqui"})
	}
	sort.Slice(voices, func(i, j int) bool { return voices[i].ID < voices[j].ID })
	return voices, nil
}

func (p *Provider) listVoicesStandard(ctx context.Context) ([]tts.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+detailsEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create details request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: GET %s: %w", detailsEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: GET %s returned status %d", detailsEndpoint, resp.StatusCode)
	}

	var details detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("coqui: parse details response: %w", err)
	}

	if len(details.Speakers) == 0 {
		// Single-speaker model: one implicit default voice.
		return []tts.Voice{{ID: "", Name: details.ModelName, Provider: "coqui"}}, nil
	}
	voices := make([]tts.Voice, 0, len(details.Speakers))
	for _, name := range details.Speakers {
		voices = append(voices, tts.Voice{ID: name, Name: name, Provider: "coqui"})
	}
	return voices, nil
}
