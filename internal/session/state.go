// Package session implements the voice session core: the state machine that
// governs one conversational turn cycle, the per-session context it owns,
// and the per-turn interaction record handed back to the orchestrator.
package session

// State is one phase of the voice turn cycle. Exactly one state is active at
// a time, held by the Machine. The initial state is Idle and every session
// ends by returning to Idle, directly or via a forced reset.
type State int

const (
	// Idle means no session is in progress; the wake-word detector has the
	// microphone.
	Idle State = iota

	// WakeDetected is the brief acknowledgement phase between a wake-word
	// trigger and the start of recording.
	WakeDetected

	// Listening means the utterance recorder is consuming microphone audio.
	Listening

	// Transcribing means recorded audio is being turned into text.
	Transcribing

	// Processing means the transcript is with the language-model gateway.
	Processing

	// Speaking means the synthesized response is playing back.
	Speaking

	// Waiting is the multi-turn hold state: the session stays open for a
	// follow-up utterance without requiring the wake word again.
	Waiting
)

// transitions is the directed edge set of allowed state changes. Any
// transition not listed here is rejected unless forced.
var transitions = map[State][]State{
	Idle:         {WakeDetected},
	WakeDetected: {Listening, Idle},
	Listening:    {Transcribing, Idle},
	Transcribing: {Processing, Idle, Waiting},
	Processing:   {Speaking, Idle},
	Speaking:     {Idle, Waiting},
	Waiting:      {Listening, Idle},
}

// statusStrings maps each state to its wire-format tag. This vocabulary is a
// stable contract consumed by external dashboards; do not change it.
var statusStrings = map[State]string{
	Idle:         "idle",
	WakeDetected: "wake_detected",
	Listening:    "listening",
	Transcribing: "transcribing",
	Processing:   "processing",
	Speaking:     "speaking",
	Waiting:      "waiting",
}

// String returns the wire-format tag for the state. Unknown values render as
// "unknown".
func (s State) String() string {
	if tag, ok := statusStrings[s]; ok {
		return tag
	}
	return "unknown"
}

// States enumerates every defined state, in declaration order. Useful for
// exhaustive table checks.
func States() []State {
	return []State{Idle, WakeDetected, Listening, Transcribing, Processing, Speaking, Waiting}
}
