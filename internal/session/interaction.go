package session

import "time"

// Interaction captures the outputs of one completed turn. It is a pure value
// object: created fresh per turn, read by the orchestrator, discarded after
// use.
type Interaction struct {
	// Transcript is the recognized user utterance. May be empty when
	// nothing intelligible was heard.
	Transcript string

	// Response is the assistant's reply text. May be empty on error turns.
	Response string

	// STTEngine tags which engine's transcript was used ("vosk",
	// "whisper", "browser").
	STTEngine string

	// STTDuration, LLMDuration, and TTSDuration are the per-stage wall
	// clock times for the turn.
	STTDuration time.Duration
	LLMDuration time.Duration
	TTSDuration time.Duration

	// IsEndCommand is set when the utterance matched an end-of-conversation
	// command.
	IsEndCommand bool

	// Err carries a human-readable description of what failed, empty on
	// success.
	Err string

	// ShouldContinue tells the orchestrator whether the session may take
	// another turn. Defaults to true via NewInteraction.
	ShouldContinue bool
}

// NewInteraction returns an empty interaction record with ShouldContinue
// set.
func NewInteraction() *Interaction {
	return &Interaction{ShouldContinue: true}
}
