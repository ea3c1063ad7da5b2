package session_test

import (
	"testing"

	"github.com/vesta-home/vesta/internal/session"
)

// ─── helpers ─────────────────────────────────────────────────────────────────

// allowedTargets mirrors the documented turn-cycle edges; the tests verify
// the machine against this table exhaustively.
var allowedTargets = map[session.State][]session.State{
	session.Idle:         {session.WakeDetected},
	session.WakeDetected: {session.Listening, session.Idle},
	session.Listening:    {session.Transcribing, session.Idle},
	session.Transcribing: {session.Processing, session.Idle, session.Waiting},
	session.Processing:   {session.Speaking, session.Idle},
	session.Speaking:     {session.Idle, session.Waiting},
	session.Waiting:      {session.Listening, session.Idle},
}

func contains(states []session.State, s session.State) bool {
	for _, t := range states {
		if t == s {
			return true
		}
	}
	return false
}

// driveTo forces the machine into the given state.
func driveTo(t *testing.T, m *session.Machine, s session.State) {
	t.Helper()
	if !m.Transition(s, true) {
		t.Fatalf("forced transition to %v failed", s)
	}
}

// ─── TestCanTransition_MatchesTable ──────────────────────────────────────────

// TestCanTransition_MatchesTable checks every (from, to) pair against the
// documented edge set.
func TestCanTransition_MatchesTable(t *testing.T) {
	t.Parallel()

	for _, from := range session.States() {
		for _, to := range session.States() {
			m := session.NewMachine()
			driveTo(t, m, from)

			want := contains(allowedTargets[from], to)
			if got := m.CanTransition(to); got != want {
				t.Errorf("CanTransition(%v -> %v): want %v, got %v", from, to, want, got)
			}
			if got := m.Transition(to, false); got != want {
				t.Errorf("Transition(%v -> %v): want %v, got %v", from, to, want, got)
			}

			// A refused transition must leave the state unchanged.
			if !want && m.State() != from {
				t.Errorf("refused transition %v -> %v changed state to %v", from, to, m.State())
			}
		}
	}
}

// ─── TestTransition_Force ────────────────────────────────────────────────────

func TestTransition_Force(t *testing.T) {
	t.Parallel()

	m := session.NewMachine()
	if m.Transition(session.Speaking, false) {
		t.Fatal("Idle -> Speaking should be refused without force")
	}
	if !m.Transition(session.Speaking, true) {
		t.Fatal("forced Idle -> Speaking should succeed")
	}
	if got := m.State(); got != session.Speaking {
		t.Errorf("state after forced transition: want Speaking, got %v", got)
	}
}

// ─── TestReset_AlwaysIdle ────────────────────────────────────────────────────

// TestReset_AlwaysIdle verifies the escape hatch from every state, with and
// without an active session.
func TestReset_AlwaysIdle(t *testing.T) {
	t.Parallel()

	for _, from := range session.States() {
		for _, withSession := range []bool{false, true} {
			m := session.NewMachine()
			driveTo(t, m, from)
			if withSession {
				m.StartSession("s-1", "kitchen", false)
			}

			m.Reset()

			if got := m.State(); got != session.Idle {
				t.Errorf("state after Reset from %v: want Idle, got %v", from, got)
			}
			if sess := m.Session(); sess != nil {
				t.Errorf("session after Reset from %v: want nil, got %q", from, sess.ID)
			}
		}
	}
}

// ─── TestStartSession_Replace ────────────────────────────────────────────────

// TestStartSession_Replace verifies session exclusivity: starting a second
// session without ending the first silently replaces it.
func TestStartSession_Replace(t *testing.T) {
	t.Parallel()

	m := session.NewMachine()
	m.StartSession("a", "kitchen", false)
	b := m.StartSession("b", "livingroom", true)

	got := m.Session()
	if got != b {
		t.Fatalf("active session: want b, got %+v", got)
	}
	if got.ID != "b" || got.RoomID != "livingroom" || !got.ConversationMode() {
		t.Errorf("session b context corrupted: %+v", got)
	}

	ended := m.EndSession()
	if ended != b {
		t.Errorf("EndSession: want b, got %+v", ended)
	}
	if m.EndSession() != nil {
		t.Error("second EndSession should return nil")
	}
}

// ─── TestObserver ────────────────────────────────────────────────────────────

func TestObserver_FiresOnTransition(t *testing.T) {
	t.Parallel()

	type change struct {
		old, new session.State
		sessID   string
	}
	var changes []change

	m := session.NewMachine(session.WithObserver(func(old, new session.State, sess *session.Context) {
		c := change{old: old, new: new}
		if sess != nil {
			c.sessID = sess.ID
		}
		changes = append(changes, c)
	}))

	m.StartSession("s-1", "kitchen", true)
	m.Transition(session.WakeDetected, false)
	m.Transition(session.Listening, false)

	want := []change{
		{session.Idle, session.WakeDetected, "s-1"},
		{session.WakeDetected, session.Listening, "s-1"},
	}
	if len(changes) != len(want) {
		t.Fatalf("observer calls: want %d, got %d", len(want), len(changes))
	}
	for i, w := range want {
		if changes[i] != w {
			t.Errorf("change %d: want %+v, got %+v", i, w, changes[i])
		}
	}
}

func TestObserver_RefusedTransitionDoesNotFire(t *testing.T) {
	t.Parallel()

	calls := 0
	m := session.NewMachine(session.WithObserver(func(_, _ session.State, _ *session.Context) {
		calls++
	}))

	m.Transition(session.Speaking, false) // refused
	if calls != 0 {
		t.Errorf("observer calls after refused transition: want 0, got %d", calls)
	}
}

func TestObserver_PanicDoesNotUndoTransition(t *testing.T) {
	t.Parallel()

	m := session.NewMachine(session.WithObserver(func(_, _ session.State, _ *session.Context) {
		panic("observer bug")
	}))

	if !m.Transition(session.WakeDetected, false) {
		t.Fatal("transition should succeed despite panicking observer")
	}
	if got := m.State(); got != session.WakeDetected {
		t.Errorf("state: want WakeDetected, got %v", got)
	}
}

// ─── TestStatusString ────────────────────────────────────────────────────────

// TestStatusString pins the wire vocabulary consumed by dashboards.
func TestStatusString(t *testing.T) {
	t.Parallel()

	want := map[session.State]string{
		session.Idle:         "idle",
		session.WakeDetected: "wake_detected",
		session.Listening:    "listening",
		session.Transcribing: "transcribing",
		session.Processing:   "processing",
		session.Speaking:     "speaking",
		session.Waiting:      "waiting",
	}
	for state, tag := range want {
		m := session.NewMachine()
		driveTo(t, m, state)
		if got := m.StatusString(); got != tag {
			t.Errorf("StatusString(%v): want %q, got %q", state, tag, got)
		}
	}
}

// ─── TestQueryHelpers ────────────────────────────────────────────────────────

func TestQueryHelpers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		state     session.State
		active    bool
		listening bool
		busy      bool
	}{
		{session.Idle, false, false, false},
		{session.WakeDetected, true, false, false},
		{session.Listening, true, true, false},
		{session.Transcribing, true, false, true},
		{session.Processing, true, false, true},
		{session.Speaking, true, false, true},
		{session.Waiting, true, true, false},
	}
	for _, tc := range cases {
		m := session.NewMachine()
		driveTo(t, m, tc.state)
		if got := m.IsActive(); got != tc.active {
			t.Errorf("IsActive in %v: want %v, got %v", tc.state, tc.active, got)
		}
		if got := m.IsListening(); got != tc.listening {
			t.Errorf("IsListening in %v: want %v, got %v", tc.state, tc.listening, got)
		}
		if got := m.IsBusy(); got != tc.busy {
			t.Errorf("IsBusy in %v: want %v, got %v", tc.state, tc.busy, got)
		}
	}
}

// ─── TestContext ─────────────────────────────────────────────────────────────

func TestContext_TouchAndTurns(t *testing.T) {
	t.Parallel()

	c := session.NewContext("s-1", "kitchen", false)
	before := c.LastActivity()
	c.Touch()
	if c.LastActivity().Before(before) {
		t.Error("Touch moved LastActivity backwards")
	}

	if got := c.IncrementTurn(); got != 1 {
		t.Errorf("IncrementTurn: want 1, got %d", got)
	}
	if got := c.TurnCount(); got != 1 {
		t.Errorf("TurnCount: want 1, got %d", got)
	}

	c.SetConversationMode(true)
	if !c.ConversationMode() {
		t.Error("ConversationMode should reflect SetConversationMode(true)")
	}
}
