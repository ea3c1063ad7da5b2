package wake_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/vesta-home/vesta/pkg/wake"
)

// ─── TestGate ────────────────────────────────────────────────────────────────

func TestGate_ThresholdFiltersScores(t *testing.T) {
	t.Parallel()

	g := wake.NewGate(wake.WithThreshold(0.7))

	if g.Observe(0.69) {
		t.Error("score below threshold must not trigger")
	}
	if !g.Observe(0.7) {
		t.Error("score at threshold should trigger")
	}
}

func TestGate_CooldownSuppressesRetriggers(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	g := wake.NewGate(
		wake.WithCooldown(2*time.Second),
		wake.WithClock(func() time.Time { return now }),
	)

	if !g.Observe(0.9) {
		t.Fatal("first qualifying score should trigger")
	}
	if g.Observe(0.9) {
		t.Error("second score inside cooldown must not trigger")
	}

	now = now.Add(1999 * time.Millisecond)
	if g.Observe(0.9) {
		t.Error("score just before cooldown expiry must not trigger")
	}

	now = now.Add(time.Millisecond)
	if !g.Observe(0.9) {
		t.Error("score after cooldown expiry should trigger")
	}
}

func TestGate_ResetClearsCooldown(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	g := wake.NewGate(wake.WithClock(func() time.Time { return now }))

	if !g.Observe(0.9) {
		t.Fatal("first score should trigger")
	}
	g.Reset()
	if !g.Observe(0.9) {
		t.Error("score after Reset should trigger despite cooldown")
	}
}

// ─── TestEnergyDetector ──────────────────────────────────────────────────────

func frameOf(value int16, samples int) []byte {
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(value))
	}
	return buf
}

func TestEnergyDetector_ScoresByEnergy(t *testing.T) {
	t.Parallel()

	d := wake.NewEnergyDetector(2000)

	quiet, err := d.Predict(frameOf(0, 160))
	if err != nil {
		t.Fatalf("predict silence: %v", err)
	}
	if quiet != 0 {
		t.Errorf("silent frame score: want 0, got %v", quiet)
	}

	half, err := d.Predict(frameOf(1000, 160))
	if err != nil {
		t.Fatalf("predict mid frame: %v", err)
	}
	if half < 0.45 || half > 0.55 {
		t.Errorf("mid frame score: want ~0.5, got %v", half)
	}

	loud, err := d.Predict(frameOf(30000, 160))
	if err != nil {
		t.Fatalf("predict loud frame: %v", err)
	}
	if loud != 1.0 {
		t.Errorf("loud frame score must saturate at 1.0, got %v", loud)
	}
}
