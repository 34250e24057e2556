package trajectory

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-spatial/sphere"
)

// OrbitConfig describes a periodic circular path around the listener.
// Motion is purely angular; distance is not modeled.
type OrbitConfig struct {
	// Period is one full revolution in seconds. Must be positive.
	Period float64
	// PhaseDeg is the azimuth at t=0.
	PhaseDeg float64
	// Reverse orbits counterclockwise (right to left across the front).
	Reverse bool
	// TiltDeg is the peak elevation excursion; the elevation follows a
	// sine at the orbit period. Zero keeps the path on the horizon.
	TiltDeg float64
	// ElevationOffsetDeg shifts the whole path up or down.
	ElevationOffsetDeg float64
}

type orbit struct {
	cfg OrbitConfig
}

// NewOrbit returns an unbounded periodic orbit trajectory.
func NewOrbit(cfg OrbitConfig) (Trajectory, error) {
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("trajectory: orbit period must be positive, got %g", cfg.Period)
	}
	return orbit{cfg: cfg}, nil
}

func (o orbit) Bounds() (float64, float64, bool) { return 0, 0, false }

func (o orbit) SampleAt(t float64) (sphere.Direction, error) {
	turns := t / o.cfg.Period
	az := o.cfg.PhaseDeg + 360*turns
	if o.cfg.Reverse {
		az = o.cfg.PhaseDeg - 360*turns
	}
	el := o.cfg.ElevationOffsetDeg + o.cfg.TiltDeg*math.Sin(2*math.Pi*turns)
	return sphere.NewDirection(az, el), nil
}

// SweepConfig describes a one-shot move between two directions.
type SweepConfig struct {
	From     sphere.Direction
	To       sphere.Direction
	Duration float64
	Curve    Curve
	Policy   Policy
}

// NewSweep returns a bounded two-point trajectory, implemented as a
// keyframe pair.
func NewSweep(cfg SweepConfig) (Trajectory, error) {
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("trajectory: sweep duration must be positive, got %g", cfg.Duration)
	}
	return NewKeyframes([]Keyframe{
		{Time: 0, Direction: cfg.From, Curve: cfg.Curve},
		{Time: cfg.Duration, Direction: cfg.To},
	}, WithPolicy(cfg.Policy))
}
