// Package wake defines the wake-word detector contract and the gate that
// turns raw detector scores into debounced trigger events.
package wake

import (
	"sync"
	"time"
)

// Detector scores audio frames for wake-word presence. Implementations wrap
// a model runtime (ONNX, TFLite) or a remote scorer; the pipeline treats the
// model as a black box.
type Detector interface {
	// Predict scores one mono PCM16 frame. The returned score is in [0, 1],
	// higher meaning more likely the wake word was spoken.
	Predict(frame []byte) (float64, error)

	// Reset clears the detector's internal audio context, e.g. after a
	// session ends, so stale frames cannot re-trigger.
	Reset()
}

// Default gate tuning.
const (
	DefaultThreshold = 0.5
	DefaultCooldown  = 2 * time.Second
)

// Gate debounces detector scores into discrete trigger decisions: a score at
// or above the threshold fires at most once per cooldown window. Safe for
// use from a single scoring goroutine; Observe and Reset may race with reads
// from other goroutines.
type Gate struct {
	threshold float64
	cooldown  time.Duration
	now       func() time.Time

	mu        sync.Mutex
	lastFired time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithThreshold sets the score threshold. Values outside (0, 1] are ignored.
func WithThreshold(t float64) GateOption {
	return func(g *Gate) {
		if t > 0 && t <= 1 {
			g.threshold = t
		}
	}
}

// WithCooldown sets the minimum interval between triggers.
func WithCooldown(d time.Duration) GateOption {
	return func(g *Gate) {
		if d > 0 {
			g.cooldown = d
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGate returns a gate with the default threshold and cooldown.
func NewGate(opts ...GateOption) *Gate {
	g := &Gate{
		threshold: DefaultThreshold,
		cooldown:  DefaultCooldown,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Observe feeds one score into the gate and reports whether it triggers.
// Scores below the threshold never trigger; scores at or above it trigger
// only when the cooldown since the previous trigger has elapsed.
func (g *Gate) Observe(score float64) bool {
	if score < g.threshold {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if !g.lastFired.IsZero() && now.Sub(g.lastFired) < g.cooldown {
		return false
	}
	g.lastFired = now
	return true
}

// Reset clears the cooldown so the next qualifying score triggers
// immediately.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastFired = time.Time{}
}
