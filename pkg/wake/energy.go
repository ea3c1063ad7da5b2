package wake

import (
	"math"

	"github.com/vesta-home/vesta/pkg/audio"
)

// DefaultEnergyReference is the RMS level an [EnergyDetector] maps to a score
// of 1.0. Calibrated for near-field speech on a 16-bit capture path.
const DefaultEnergyReference = 2000.0

// EnergyDetector is a model-free [Detector] that scores frames by RMS energy
// relative to a reference level. It serves devices without a wake-word model:
// any sufficiently loud frame becomes a trigger candidate and the [Gate]'s
// threshold and cooldown do the debouncing. It is stateless, so Reset is a
// no-op.
type EnergyDetector struct {
	reference float64
}

var _ Detector = (*EnergyDetector)(nil)

// NewEnergyDetector creates a detector with the given reference RMS level.
// Non-positive values select [DefaultEnergyReference].
func NewEnergyDetector(reference float64) *EnergyDetector {
	if reference <= 0 {
		reference = DefaultEnergyReference
	}
	return &EnergyDetector{reference: reference}
}

// Predict maps the frame's RMS energy onto [0, 1], saturating at the
// reference level.
func (d *EnergyDetector) Predict(frame []byte) (float64, error) {
	score := audio.ComputeRMS(frame) / d.reference
	return math.Min(score, 1.0), nil
}

// Reset is a no-op; the detector keeps no audio context.
func (d *EnergyDetector) Reset() {}
