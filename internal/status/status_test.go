package status_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vesta-home/vesta/internal/session"
	"github.com/vesta-home/vesta/internal/status"
)

// capture is a Publisher that records every payload.
type capture struct {
	mu       sync.Mutex
	payloads []status.Payload
}

func (c *capture) Publish(p status.Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, p)
}

func (c *capture) all() []status.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]status.Payload(nil), c.payloads...)
}

// ─── TestMachineObserver ─────────────────────────────────────────────────────

func TestMachineObserver_PublishesTransitions(t *testing.T) {
	t.Parallel()

	sink := &capture{}
	m := session.NewMachine(session.WithObserver(status.MachineObserver("kitchen", sink)))

	sess := m.StartSession("sess-1", "kitchen", false)
	sess.IncrementTurn()
	m.Transition(session.WakeDetected, false)
	m.Transition(session.Listening, false)

	got := sink.all()
	if len(got) != 2 {
		t.Fatalf("payloads: want 2, got %d", len(got))
	}
	first := got[0]
	if first.RoomID != "kitchen" {
		t.Errorf("room_id: got %q", first.RoomID)
	}
	if first.State != "wake_detected" {
		t.Errorf("state: got %q", first.State)
	}
	if first.SessionID != "sess-1" {
		t.Errorf("session_id: got %q", first.SessionID)
	}
	if first.Turn != 1 {
		t.Errorf("turn: got %d", first.Turn)
	}
	if first.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
	if got[1].State != "listening" {
		t.Errorf("second state: got %q", got[1].State)
	}
}

func TestMachineObserver_NoSessionOmitsSessionFields(t *testing.T) {
	t.Parallel()

	sink := &capture{}
	m := session.NewMachine(session.WithObserver(status.MachineObserver("hall", sink)))
	m.Transition(session.WakeDetected, false)

	got := sink.all()
	if len(got) != 1 {
		t.Fatalf("payloads: want 1, got %d", len(got))
	}
	if got[0].SessionID != "" || got[0].Turn != 0 {
		t.Errorf("session fields should be empty without a session: %+v", got[0])
	}
}

// ─── TestHub ─────────────────────────────────────────────────────────────────

func dialHub(t *testing.T, h *status.Hub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial hub: %v", err)
	}
	t.Cleanup(func() { c.CloseNow() })
	return c
}

func TestHub_BroadcastsPayloads(t *testing.T) {
	t.Parallel()

	h := status.NewHub()
	defer h.Close()
	c := dialHub(t, h)

	// Wait for the subscriber to register before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for h.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	want := status.Payload{RoomID: "kitchen", State: "speaking", SessionID: "s1", Turn: 2, Timestamp: time.Now().UTC()}
	h.Publish(want)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got status.Payload
	if err := wsjson.Read(ctx, c, &got); err != nil {
		t.Fatalf("read payload: %v", err)
	}
	if got.RoomID != want.RoomID || got.State != want.State || got.SessionID != want.SessionID || got.Turn != want.Turn {
		t.Errorf("payload: want %+v, got %+v", want, got)
	}
}

func TestHub_ReplaysLastPayloadToNewSubscribers(t *testing.T) {
	t.Parallel()

	h := status.NewHub()
	defer h.Close()

	h.Publish(status.Payload{RoomID: "hall", State: "idle", Timestamp: time.Now().UTC()})

	c := dialHub(t, h)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got status.Payload
	if err := wsjson.Read(ctx, c, &got); err != nil {
		t.Fatalf("read replayed payload: %v", err)
	}
	if got.State != "idle" || got.RoomID != "hall" {
		t.Errorf("replayed payload: got %+v", got)
	}
}
