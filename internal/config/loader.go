package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidLLMProviders lists the gateway backends the llm provider layer knows
// how to construct. Used by [Validate] to warn about unrecognised names.
var ValidLLMProviders = []string{
	"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Room
	if cfg.Room.ID == "" {
		errs = append(errs, errors.New("room.id is required"))
	}

	// Session
	if t := cfg.Session.EndThreshold; t != 0 && (t <= 0 || t > 1) {
		errs = append(errs, fmt.Errorf("session.end_threshold %.2f is out of range (0, 1]", t))
	}
	if cfg.Session.FollowUpWindow < 0 {
		errs = append(errs, fmt.Errorf("session.follow_up_window %s is negative", cfg.Session.FollowUpWindow))
	}
	if cfg.Session.PlayTimeout < 0 {
		errs = append(errs, fmt.Errorf("session.play_timeout %s is negative", cfg.Session.PlayTimeout))
	}

	// Wake
	if t := cfg.Wake.Threshold; t != 0 && (t <= 0 || t > 1) {
		errs = append(errs, fmt.Errorf("wake.threshold %.2f is out of range (0, 1]", t))
	}
	if cfg.Wake.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("wake.cooldown %s is negative", cfg.Wake.Cooldown))
	}

	// Audio
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is negative", cfg.Audio.SampleRate))
	}
	if cfg.Audio.SilenceRMS < 0 {
		errs = append(errs, fmt.Errorf("audio.silence_rms %.1f is negative", cfg.Audio.SilenceRMS))
	}

	// STT
	if cfg.STT.Vosk.ModelPath == "" {
		errs = append(errs, errors.New("stt.vosk.model_path is required"))
	}
	if cfg.STT.Whisper.Enabled {
		if cfg.STT.Whisper.Mode != "" && !cfg.STT.Whisper.Mode.IsValid() {
			errs = append(errs, fmt.Errorf("stt.whisper.mode %q is invalid; valid values: server, native", cfg.STT.Whisper.Mode))
		}
		switch cfg.STT.Whisper.Mode {
		case WhisperServer, "":
			if cfg.STT.Whisper.URL == "" {
				errs = append(errs, errors.New("stt.whisper.url is required when mode is server"))
			}
		case WhisperNative:
			if cfg.STT.Whisper.ModelPath == "" {
				errs = append(errs, errors.New("stt.whisper.model_path is required when mode is native"))
			}
		}
		if cfg.STT.Whisper.SlowTimeout < 0 {
			errs = append(errs, fmt.Errorf("stt.whisper.slow_timeout %s is negative", cfg.STT.Whisper.SlowTimeout))
		}
	}
	if cfg.STT.Workers < 0 {
		errs = append(errs, fmt.Errorf("stt.workers %d is negative", cfg.STT.Workers))
	}

	// TTS
	if cfg.TTS.URL == "" {
		errs = append(errs, errors.New("tts.url is required"))
	}
	if cfg.TTS.Mode != "" && !cfg.TTS.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("tts.mode %q is invalid; valid values: standard, xtts", cfg.TTS.Mode))
	}
	if cfg.TTS.Workers < 0 || cfg.TTS.Workers > 2 {
		errs = append(errs, fmt.Errorf("tts.workers %d is out of range [0, 2]", cfg.TTS.Workers))
	}

	// LLM
	if cfg.LLM.Provider == "" {
		errs = append(errs, errors.New("llm.provider is required"))
	} else if !slices.Contains(ValidLLMProviders, cfg.LLM.Provider) {
		slog.Warn("unknown llm provider name — may be a typo or third-party provider",
			"name", cfg.LLM.Provider,
			"known", ValidLLMProviders,
		)
	}
	if cfg.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}

	return errors.Join(errs...)
}
