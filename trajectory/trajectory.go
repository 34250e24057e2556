// Package trajectory turns static positions, keyframe sequences, and
// procedural motion specs into time-ordered direction samples for the
// rendering engine.
package trajectory

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-spatial/sphere"
)

// ErrRange reports a sample timestamp outside a bounded trajectory when
// the error policy is in effect.
var ErrRange = errors.New("trajectory: timestamp out of range")

// Curve selects how a keyframe segment is interpolated.
type Curve int

const (
	// CurveLinear interpolates azimuth along the shortest wrap and
	// elevation linearly.
	CurveLinear Curve = iota
	// CurveEase applies a smoothstep time warp before linear
	// interpolation.
	CurveEase
	// CurveSlerp interpolates along the great-circle arc between the
	// keyframe directions.
	CurveSlerp
)

// Policy controls sampling outside a bounded trajectory's time range.
type Policy int

const (
	// PolicyClamp returns the nearest endpoint direction (default).
	PolicyClamp Policy = iota
	// PolicyError surfaces ErrRange instead.
	PolicyError
)

// Trajectory yields the virtual source direction at any timestamp.
// Implementations are immutable and safe for concurrent use.
type Trajectory interface {
	// SampleAt returns the direction at time t (seconds).
	SampleAt(t float64) (sphere.Direction, error)
	// Bounds returns the valid time range and whether the trajectory
	// is bounded at all. Procedural trajectories are unbounded.
	Bounds() (start, end float64, bounded bool)
}

// static is a fixed position for the whole render.
type static struct {
	dir sphere.Direction
}

// Static returns a trajectory that holds one direction forever.
func Static(d sphere.Direction) Trajectory {
	return static{dir: d}
}

func (s static) SampleAt(float64) (sphere.Direction, error) { return s.dir, nil }

func (s static) Bounds() (float64, float64, bool) { return 0, 0, false }

// Keyframe anchors a direction at a timestamp. Curve describes the
// interpolation towards the NEXT keyframe.
type Keyframe struct {
	Time      float64
	Direction sphere.Direction
	Curve     Curve
}

type keyframes struct {
	frames []Keyframe
	policy Policy
}

// Option configures keyframe trajectories.
type Option func(*keyframes)

// WithPolicy sets the out-of-range sampling policy.
func WithPolicy(p Policy) Option {
	return func(k *keyframes) { k.policy = p }
}

// NewKeyframes builds a keyframe trajectory. Timestamps must be
// non-negative and strictly increasing.
func NewKeyframes(frames []Keyframe, opts ...Option) (Trajectory, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("trajectory: no keyframes")
	}
	if frames[0].Time < 0 {
		return nil, fmt.Errorf("trajectory: negative timestamp %g", frames[0].Time)
	}
	for i := 1; i < len(frames); i++ {
		if frames[i].Time <= frames[i-1].Time {
			return nil, fmt.Errorf("trajectory: timestamps must be strictly increasing (frame %d: %g after %g)",
				i, frames[i].Time, frames[i-1].Time)
		}
	}
	k := &keyframes{frames: append([]Keyframe(nil), frames...)}
	for _, o := range opts {
		o(k)
	}
	return k, nil
}

func (k *keyframes) Bounds() (float64, float64, bool) {
	return k.frames[0].Time, k.frames[len(k.frames)-1].Time, true
}

func (k *keyframes) SampleAt(t float64) (sphere.Direction, error) {
	first := k.frames[0]
	last := k.frames[len(k.frames)-1]

	if t < first.Time || t > last.Time {
		if k.policy == PolicyError {
			return sphere.Direction{}, fmt.Errorf("%w: t=%g outside [%g, %g]",
				ErrRange, t, first.Time, last.Time)
		}
		if t < first.Time {
			return first.Direction, nil
		}
		return last.Direction, nil
	}

	// Locate the bracketing segment by binary search.
	lo, hi := 0, len(k.frames)-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if k.frames[mid].Time <= t {
			lo = mid
		} else {
			hi = mid
		}
	}
	a, b := k.frames[lo], k.frames[hi]
	if b.Time == a.Time {
		// Single keyframe: lo == hi and the segment has no width.
		return a.Direction, nil
	}
	u := (t - a.Time) / (b.Time - a.Time)

	switch a.Curve {
	case CurveEase:
		u = u * u * (3 - 2*u)
		return sphere.LerpAngles(a.Direction, b.Direction, u), nil
	case CurveSlerp:
		return sphere.Lerp(a.Direction, b.Direction, u), nil
	default:
		return sphere.LerpAngles(a.Direction, b.Direction, u), nil
	}
}

// Sampler walks a trajectory at a fixed block rate. It is restartable:
// Reset rewinds to the first block.
type Sampler struct {
	tr    Trajectory
	dt    float64
	block int
}

// NewSampler returns a sampler stepping dt seconds per block.
func NewSampler(tr Trajectory, dt float64) *Sampler {
	return &Sampler{tr: tr, dt: dt}
}

// Next returns the direction at the start of the next block.
func (s *Sampler) Next() (sphere.Direction, error) {
	d, err := s.tr.SampleAt(float64(s.block) * s.dt)
	if err != nil {
		return sphere.Direction{}, err
	}
	s.block++
	return d, nil
}

// Reset rewinds the sampler to time zero.
func (s *Sampler) Reset() { s.block = 0 }
