package session

import (
	"log/slog"
	"sync"
	"time"
)

// Observer is notified after every successful state change. sess is the
// active session context, or nil outside a session. Observers run on the
// transitioning goroutine; panics are recovered and logged and never undo
// the transition.
type Observer func(old, new State, sess *Context)

// Machine enforces the voice turn cycle's transition table and owns the
// active session. All methods are safe for concurrent use, though the
// orchestrator drives transitions from a single run loop in practice.
type Machine struct {
	mu        sync.Mutex
	state     State
	enteredAt time.Time
	session   *Context
	observer  Observer
	log       *slog.Logger
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithObserver registers the state-change observer.
func WithObserver(o Observer) MachineOption {
	return func(m *Machine) { m.observer = o }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) MachineOption {
	return func(m *Machine) {
		if l != nil {
			m.log = l
		}
	}
}

// NewMachine creates a machine in the Idle state with no active session.
func NewMachine(opts ...MachineOption) *Machine {
	m := &Machine{
		state:     Idle,
		enteredAt: time.Now(),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// TimeInState returns how long the machine has been in its current state.
func (m *Machine) TimeInState() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.enteredAt)
}

// CanTransition reports whether moving to next is allowed by the transition
// table. Pure predicate, no side effects.
func (m *Machine) CanTransition(next State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return allowed(m.state, next)
}

func allowed(from, to State) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Transition attempts to move to next. Disallowed transitions are refused
// (logged at warning level, state unchanged, false returned) unless force is
// set. On success the observer fires with the old state, the new state, and
// the active session or nil; observer panics are recovered and logged and do
// not undo the transition.
func (m *Machine) Transition(next State, force bool) bool {
	m.mu.Lock()
	if !force && !allowed(m.state, next) {
		from := m.state
		m.mu.Unlock()
		m.log.Warn("state transition refused",
			"from", from.String(),
			"to", next.String())
		return false
	}
	old := m.state
	m.state = next
	m.enteredAt = time.Now()
	sess := m.session
	observer := m.observer
	m.mu.Unlock()

	m.log.Debug("state transition",
		"from", old.String(),
		"to", next.String(),
		"forced", force)

	if observer != nil {
		m.notify(observer, old, next, sess)
	}
	return true
}

func (m *Machine) notify(observer Observer, old, next State, sess *Context) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Warn("state observer panicked",
				"from", old.String(),
				"to", next.String(),
				"panic", r)
		}
	}()
	observer(old, next, sess)
}

// StartSession constructs and stores a new session context. It does not
// change the current state; callers transition explicitly.
//
// Calling this while a session is already active silently replaces the old
// context. The single-threaded run loop guarantees EndSession precedes
// StartSession in practice, so the replace path only fires on orchestrator
// bugs; it is logged but accepted.
func (m *Machine) StartSession(id, roomID string, conversationMode bool) *Context {
	sess := NewContext(id, roomID, conversationMode)
	m.mu.Lock()
	replaced := m.session
	m.session = sess
	m.mu.Unlock()

	if replaced != nil {
		m.log.Warn("session replaced without end",
			"old_session_id", replaced.ID,
			"new_session_id", id)
	}
	m.log.Info("session started",
		"session_id", id,
		"room_id", roomID,
		"conversation_mode", conversationMode)
	return sess
}

// Session returns the active session context, or nil.
func (m *Machine) Session() *Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// EndSession clears the active session and returns it so the caller can log
// duration and turn count. Returns nil if no session was active.
func (m *Machine) EndSession() *Context {
	m.mu.Lock()
	sess := m.session
	m.session = nil
	m.mu.Unlock()

	if sess != nil {
		m.log.Info("session ended",
			"session_id", sess.ID,
			"turns", sess.TurnCount(),
			"duration", sess.Age())
	}
	return sess
}

// Reset ends any active session and forces the state to Idle, bypassing the
// transition table. This is the designated escape hatch for error recovery
// and shutdown.
func (m *Machine) Reset() {
	m.EndSession()
	m.Transition(Idle, true)
}

// IsActive reports whether a turn cycle is in progress (state != Idle).
func (m *Machine) IsActive() bool { return m.State() != Idle }

// IsListening reports whether the machine is accepting user speech
// (Listening or Waiting).
func (m *Machine) IsListening() bool {
	s := m.State()
	return s == Listening || s == Waiting
}

// IsBusy reports whether the machine is mid-pipeline (Transcribing,
// Processing, or Speaking).
func (m *Machine) IsBusy() bool {
	s := m.State()
	return s == Transcribing || s == Processing || s == Speaking
}

// StatusString returns the wire-format tag for the current state.
func (m *Machine) StatusString() string { return m.State().String() }
