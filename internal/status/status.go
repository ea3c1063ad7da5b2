// Package status publishes voice-pipeline state changes to interested
// consumers: wall panels, dashboards, and debugging tools. Publishers receive
// a compact JSON-ready payload on every state transition.
package status

import (
	"log/slog"
	"time"

	"github.com/vesta-home/vesta/internal/session"
)

// Payload is one state-change event as seen on the wire.
type Payload struct {
	RoomID    string    `json:"room_id"`
	State     string    `json:"state"`
	SessionID string    `json:"session_id,omitempty"`
	Turn      int       `json:"turn,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// Publisher consumes state-change payloads. Publish must not block; slow
// consumers are expected to buffer or drop internally.
type Publisher interface {
	Publish(p Payload)
}

// LogPublisher writes every state change to a structured log. Useful as a
// baseline consumer and in deployments without a dashboard.
type LogPublisher struct {
	Log *slog.Logger
}

var _ Publisher = (*LogPublisher)(nil)

// Publish logs the payload at info level.
func (l *LogPublisher) Publish(p Payload) {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("state changed",
		"room_id", p.RoomID,
		"state", p.State,
		"session_id", p.SessionID,
		"turn", p.Turn)
}

// MachineObserver adapts a set of publishers into a [session.Observer] so the
// state machine can fan out every transition. roomID identifies this device
// in the payloads; the session context supplies the rest when present.
func MachineObserver(roomID string, pubs ...Publisher) session.Observer {
	return func(_, next session.State, sess *session.Context) {
		p := Payload{
			RoomID:    roomID,
			State:     next.String(),
			Timestamp: time.Now().UTC(),
		}
		if sess != nil {
			p.SessionID = sess.ID
			p.Turn = sess.TurnCount()
		}
		for _, pub := range pubs {
			pub.Publish(p)
		}
	}
}
