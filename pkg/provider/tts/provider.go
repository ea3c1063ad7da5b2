// Package tts defines the Synthesizer contract for Text-to-Speech backends.
//
// The pipeline synthesizes per sentence: the response queue submits each
// sentence as its own Synthesize call, possibly several in flight at once,
// so implementations must be safe for concurrent use.
package tts

import "context"

// Synthesizer renders text into a complete WAV clip.
type Synthesizer interface {
	// Synthesize renders one sentence in the given language (e.g. "en",
	// "de"; empty uses the backend default) and returns the full WAV file
	// bytes, ready for playback.
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
}

// Voice describes one voice available on a synthesis backend.
type Voice struct {
	// ID is the backend-specific voice identifier passed at synthesis time.
	ID string

	// Name is a human-readable label.
	Name string

	// Provider tags which backend the voice belongs to.
	Provider string
}

// VoiceLister is implemented by synthesizers that can enumerate their
// available voices.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]Voice, error)
}
