// Package config provides the configuration schema and loader for the Vesta
// voice assistant daemon.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as strings like
// "8s" or "250ms", which yaml.v3 does not decode into time.Duration natively.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// LogLevel controls log verbosity for the daemon.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to the corresponding slog level. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WhisperMode selects how the accurate transcription engine runs.
type WhisperMode string

const (
	// WhisperServer talks to a whisper.cpp server over HTTP.
	WhisperServer WhisperMode = "server"

	// WhisperNative loads the model in-process through the whisper.cpp
	// bindings.
	WhisperNative WhisperMode = "native"
)

// IsValid reports whether m is a recognised whisper mode.
func (m WhisperMode) IsValid() bool {
	return m == WhisperServer || m == WhisperNative
}

// TTSMode selects the synthesis server's API flavor.
type TTSMode string

const (
	TTSStandard TTSMode = "standard"
	TTSXTTS     TTSMode = "xtts"
)

// IsValid reports whether m is a recognised TTS mode.
func (m TTSMode) IsValid() bool {
	return m == TTSStandard || m == TTSXTTS
}

// Config is the root configuration structure for Vesta.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Room    RoomConfig    `yaml:"room"`
	Session SessionConfig `yaml:"session"`
	Wake    WakeConfig    `yaml:"wake"`
	Audio   AudioConfig   `yaml:"audio"`
	STT     STTConfig     `yaml:"stt"`
	TTS     TTSConfig     `yaml:"tts"`
	LLM     LLMConfig     `yaml:"llm"`
}

// ServerConfig holds network and logging settings for the daemon's HTTP
// surface (metrics, health, status websocket).
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// RoomConfig identifies the device's placement.
type RoomConfig struct {
	// ID names the room this device serves (e.g., "kitchen"). Required; it
	// appears in session contexts and status payloads.
	ID string `yaml:"id"`

	// Language is the BCP-47-ish language tag passed to synthesis ("en",
	// "de"). Defaults to "en".
	Language string `yaml:"language"`
}

// SessionConfig tunes the conversation loop.
type SessionConfig struct {
	// ConversationMode starts sessions in multi-turn mode instead of
	// single-command mode.
	ConversationMode bool `yaml:"conversation_mode"`

	// SystemPrompt steers the gateway model.
	SystemPrompt string `yaml:"system_prompt"`

	// FollowUpWindow is how long the assistant listens for a follow-up
	// utterance between turns.
	FollowUpWindow Duration `yaml:"follow_up_window"`

	// PlayTimeout bounds each spoken sentence's dequeue-plus-synthesis wait.
	PlayTimeout Duration `yaml:"play_timeout"`

	// MaxHistory caps the conversation history sent to the gateway, in
	// messages.
	MaxHistory int `yaml:"max_history"`

	// EndPhrases overrides the built-in end-of-conversation phrase list.
	EndPhrases []string `yaml:"end_phrases"`

	// EndThreshold is the fuzzy-match similarity cutoff for end phrases,
	// in (0, 1].
	EndThreshold float64 `yaml:"end_threshold"`
}

// WakeConfig tunes wake-word gating.
type WakeConfig struct {
	// Threshold is the detector score at or above which the gate may fire,
	// in (0, 1].
	Threshold float64 `yaml:"threshold"`

	// Cooldown is the minimum interval between wake triggers.
	Cooldown Duration `yaml:"cooldown"`
}

// AudioConfig tunes capture, the utterance recorder, and playback.
type AudioConfig struct {
	// SampleRate is the capture rate in Hz. Defaults to 16000, which is what
	// the recognizers expect.
	SampleRate int `yaml:"sample_rate"`

	// ChunkFrames is the number of samples per capture chunk.
	ChunkFrames int `yaml:"chunk_frames"`

	// SilenceRMS is the energy threshold below which a chunk counts as
	// silence.
	SilenceRMS float64 `yaml:"silence_rms"`

	// SilenceChunksToStop is how many consecutive silent chunks end an
	// utterance.
	SilenceChunksToStop int `yaml:"silence_chunks_to_stop"`

	// MinSpeechChunks is the minimum voiced chunks before trailing silence
	// may end a recording.
	MinSpeechChunks int `yaml:"min_speech_chunks"`

	// MaxRecordDuration caps a single recording.
	MaxRecordDuration Duration `yaml:"max_record_duration"`

	// PlaybackCommand is the external player invoked with WAV data on stdin
	// (e.g., "aplay -q -"). Empty selects the in-process player.
	PlaybackCommand string `yaml:"playback_command"`
}

// STTConfig configures the transcription engines.
type STTConfig struct {
	Vosk    VoskConfig    `yaml:"vosk"`
	Whisper WhisperConfig `yaml:"whisper"`

	// Workers sizes the shared transcription worker pool.
	Workers int `yaml:"workers"`

	// Streaming enables partial hypotheses while the user is still speaking.
	Streaming bool `yaml:"streaming"`
}

// VoskConfig configures the fast on-device recognizer.
type VoskConfig struct {
	// ModelPath is the directory holding the vosk model. Required.
	ModelPath string `yaml:"model_path"`
}

// WhisperConfig configures the slow accurate recognizer.
type WhisperConfig struct {
	// Enabled turns the parallel whisper pass on. When false, every
	// utterance is transcribed by vosk alone.
	Enabled bool `yaml:"enabled"`

	// Mode selects the server or native engine.
	Mode WhisperMode `yaml:"mode"`

	// URL is the whisper.cpp server endpoint, required in server mode.
	URL string `yaml:"url"`

	// ModelPath is the ggml model file, required in native mode.
	ModelPath string `yaml:"model_path"`

	// Language hints the recognizer's language.
	Language string `yaml:"language"`

	// SlowTimeout bounds how long a turn waits for whisper before falling
	// back to the vosk transcript.
	SlowTimeout Duration `yaml:"slow_timeout"`
}

// TTSConfig configures the synthesis server and queue.
type TTSConfig struct {
	// URL is the Coqui server endpoint. Required.
	URL string `yaml:"url"`

	// Mode selects the server's API flavor.
	Mode TTSMode `yaml:"mode"`

	// Voice is the speaker identifier.
	Voice string `yaml:"voice"`

	// Workers sizes the synthesis pipeline (1 or 2).
	Workers int `yaml:"workers"`

	// OutputSampleRate resamples synthesized audio when non-zero.
	OutputSampleRate int `yaml:"output_sample_rate"`
}

// LLMConfig configures the conversation gateway.
type LLMConfig struct {
	// Provider selects the backend (e.g., "ollama", "openai").
	Provider string `yaml:"provider"`

	// Model is the model identifier within the provider.
	Model string `yaml:"model"`

	// APIKey authenticates against hosted providers.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Temperature, when non-zero, overrides the provider default.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens, when non-zero, caps the response length.
	MaxTokens int `yaml:"max_tokens"`
}
