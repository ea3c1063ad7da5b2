package session

import (
	"sync/atomic"
	"time"
)

// Context carries the identity and bookkeeping of one active voice session.
// The Machine owns exactly one Context at a time; the orchestrator mutates
// ConversationMode and calls Touch between turns.
type Context struct {
	// ID is an opaque unique identifier for the session.
	ID string

	// RoomID identifies the physical device or location the session belongs
	// to.
	RoomID string

	// CreatedAt is when the session started. Monotonic (taken from
	// time.Now, which carries a monotonic clock reading).
	CreatedAt time.Time

	// conversationMode selects multi-turn (true) or single-command (false)
	// behavior. It may be toggled externally mid-session and is re-read at
	// each turn boundary, so access goes through atomics rather than a
	// cached copy.
	conversationMode atomic.Bool

	// lastActivity is the time.Time of the most recent Touch, stored
	// atomically so idle-eviction can read it from another goroutine.
	lastActivity atomic.Value

	// turnCount counts completed interactions.
	turnCount atomic.Int64
}

// NewContext creates a session context with CreatedAt and LastActivity set
// to now.
func NewContext(id, roomID string, conversationMode bool) *Context {
	c := &Context{
		ID:        id,
		RoomID:    roomID,
		CreatedAt: time.Now(),
	}
	c.conversationMode.Store(conversationMode)
	c.lastActivity.Store(c.CreatedAt)
	return c
}

// ConversationMode reports whether the session is multi-turn. Re-read this
// at every turn boundary; it may change at any time.
func (c *Context) ConversationMode() bool { return c.conversationMode.Load() }

// SetConversationMode toggles multi-turn behavior mid-session.
func (c *Context) SetConversationMode(on bool) { c.conversationMode.Store(on) }

// LastActivity returns the time of the most recent Touch.
func (c *Context) LastActivity() time.Time { return c.lastActivity.Load().(time.Time) }

// Touch updates LastActivity to now. Idle-timeout eviction keys off this.
func (c *Context) Touch() { c.lastActivity.Store(time.Now()) }

// TurnCount returns the number of completed interactions.
func (c *Context) TurnCount() int { return int(c.turnCount.Load()) }

// IncrementTurn records one completed interaction and returns the new count.
func (c *Context) IncrementTurn() int { return int(c.turnCount.Add(1)) }

// Age returns how long the session has existed.
func (c *Context) Age() time.Duration { return time.Since(c.CreatedAt) }
