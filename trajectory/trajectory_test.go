package trajectory

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-spatial/sphere"
)

func mustKeyframes(t *testing.T, frames []Keyframe, opts ...Option) Trajectory {
	t.Helper()
	tr, err := NewKeyframes(frames, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestStaticAlwaysReturnsPosition(t *testing.T) {
	d := sphere.NewDirection(45, -10)
	tr := Static(d)
	for _, ts := range []float64{-5, 0, 1e6} {
		got, err := tr.SampleAt(ts)
		if err != nil {
			t.Fatalf("SampleAt(%g): %v", ts, err)
		}
		if sphere.Angle(got, d) > 1e-9 {
			t.Fatalf("SampleAt(%g) = %v, want %v", ts, got, d)
		}
	}
}

func TestNewKeyframesValidation(t *testing.T) {
	cases := []struct {
		name   string
		frames []Keyframe
	}{
		{"empty", nil},
		{"negative time", []Keyframe{{Time: -1}}},
		{"non increasing", []Keyframe{{Time: 0}, {Time: 0}}},
		{"decreasing", []Keyframe{{Time: 1}, {Time: 0.5}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := NewKeyframes(c.frames); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestKeyframesLinearInterpolation(t *testing.T) {
	tr := mustKeyframes(t, []Keyframe{
		{Time: 0, Direction: sphere.NewDirection(0, 0)},
		{Time: 2, Direction: sphere.NewDirection(90, 40)},
	})
	got, err := tr.SampleAt(1)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got.Azimuth-45) > 1e-9 || math.Abs(got.Elevation-20) > 1e-9 {
		t.Fatalf("midpoint = %v, want (45, 20)", got)
	}
}

func TestKeyframesShortestAngularPath(t *testing.T) {
	tr := mustKeyframes(t, []Keyframe{
		{Time: 0, Direction: sphere.NewDirection(350, 0)},
		{Time: 1, Direction: sphere.NewDirection(10, 0)},
	})
	got, _ := tr.SampleAt(0.5)
	// Must pass through the front, never the 180-degree detour.
	if sphere.Angle(got, sphere.NewDirection(0, 0)) > 1e-6 {
		t.Fatalf("midpoint = %v, want front", got)
	}
}

func TestKeyframesEaseCurve(t *testing.T) {
	tr := mustKeyframes(t, []Keyframe{
		{Time: 0, Direction: sphere.NewDirection(0, 0), Curve: CurveEase},
		{Time: 1, Direction: sphere.NewDirection(80, 0)},
	})
	quarter, _ := tr.SampleAt(0.25)
	mid, _ := tr.SampleAt(0.5)
	// smoothstep(0.25) ~ 0.156: slower start than linear.
	if quarter.Azimuth >= 20 {
		t.Fatalf("ease quarter point azimuth = %g, want < 20", quarter.Azimuth)
	}
	if math.Abs(mid.Azimuth-40) > 1e-9 {
		t.Fatalf("ease midpoint azimuth = %g, want 40", mid.Azimuth)
	}
}

func TestKeyframesSlerpCurve(t *testing.T) {
	tr := mustKeyframes(t, []Keyframe{
		{Time: 0, Direction: sphere.NewDirection(0, 0), Curve: CurveSlerp},
		{Time: 1, Direction: sphere.NewDirection(0, 90)},
	})
	got, _ := tr.SampleAt(0.5)
	if math.Abs(got.Elevation-45) > 1e-6 {
		t.Fatalf("slerp midpoint elevation = %g, want 45", got.Elevation)
	}
}

func TestKeyframesClampPolicyDefault(t *testing.T) {
	first := sphere.NewDirection(30, 0)
	last := sphere.NewDirection(120, 10)
	tr := mustKeyframes(t, []Keyframe{
		{Time: 1, Direction: first},
		{Time: 2, Direction: last},
	})
	before, err := tr.SampleAt(0)
	if err != nil {
		t.Fatalf("before range: %v", err)
	}
	if sphere.Angle(before, first) > 1e-9 {
		t.Fatalf("before range = %v, want first endpoint", before)
	}
	after, err := tr.SampleAt(10)
	if err != nil {
		t.Fatalf("after range: %v", err)
	}
	if sphere.Angle(after, last) > 1e-9 {
		t.Fatalf("after range = %v, want last endpoint", after)
	}
}

func TestKeyframesErrorPolicy(t *testing.T) {
	tr := mustKeyframes(t, []Keyframe{
		{Time: 1, Direction: sphere.NewDirection(0, 0)},
		{Time: 2, Direction: sphere.NewDirection(90, 0)},
	}, WithPolicy(PolicyError))
	if _, err := tr.SampleAt(0.5); !errors.Is(err, ErrRange) {
		t.Fatalf("before range: err = %v, want ErrRange", err)
	}
	if _, err := tr.SampleAt(2.5); !errors.Is(err, ErrRange) {
		t.Fatalf("after range: err = %v, want ErrRange", err)
	}
	if _, err := tr.SampleAt(1.5); err != nil {
		t.Fatalf("in range: %v", err)
	}
}

func TestSingleKeyframeSamplesCleanly(t *testing.T) {
	d := sphere.NewDirection(60, -20)
	tr := mustKeyframes(t, []Keyframe{{Time: 1, Direction: d}})
	// Exactly on the keyframe is in range but brackets a zero-width
	// segment; the direction must stay finite.
	for _, ts := range []float64{0, 1, 5} {
		got, err := tr.SampleAt(ts)
		if err != nil {
			t.Fatalf("SampleAt(%g): %v", ts, err)
		}
		if math.IsNaN(got.Azimuth) || math.IsNaN(got.Elevation) {
			t.Fatalf("SampleAt(%g) = %v, want finite direction", ts, got)
		}
		if sphere.Angle(got, d) > 1e-9 {
			t.Fatalf("SampleAt(%g) = %v, want %v", ts, got, d)
		}
	}

	tr = mustKeyframes(t, []Keyframe{{Time: 1, Direction: d}}, WithPolicy(PolicyError))
	got, err := tr.SampleAt(1)
	if err != nil {
		t.Fatalf("on the keyframe: %v", err)
	}
	if sphere.Angle(got, d) > 1e-9 {
		t.Fatalf("on the keyframe = %v, want %v", got, d)
	}
	if _, err := tr.SampleAt(0.5); !errors.Is(err, ErrRange) {
		t.Fatalf("before range: err = %v, want ErrRange", err)
	}
}

func TestOrbitPeriodicity(t *testing.T) {
	tr, err := NewOrbit(OrbitConfig{Period: 4, PhaseDeg: 30, TiltDeg: 15})
	if err != nil {
		t.Fatal(err)
	}
	at0, _ := tr.SampleAt(0)
	at4, _ := tr.SampleAt(4)
	if sphere.Angle(at0, at4) > 1e-6 {
		t.Fatalf("orbit not periodic: %v vs %v", at0, at4)
	}
	if math.Abs(at0.Azimuth-30) > 1e-9 {
		t.Fatalf("phase not honored: azimuth %g, want 30", at0.Azimuth)
	}
	quarter, _ := tr.SampleAt(1)
	if math.Abs(quarter.Azimuth-120) > 1e-9 {
		t.Fatalf("quarter turn azimuth = %g, want 120", quarter.Azimuth)
	}
	if math.Abs(quarter.Elevation-15) > 1e-9 {
		t.Fatalf("quarter turn elevation = %g, want 15 (peak tilt)", quarter.Elevation)
	}
}

func TestOrbitReverse(t *testing.T) {
	tr, err := NewOrbit(OrbitConfig{Period: 4, Reverse: true})
	if err != nil {
		t.Fatal(err)
	}
	quarter, _ := tr.SampleAt(1)
	if math.Abs(quarter.Azimuth-270) > 1e-9 {
		t.Fatalf("reverse quarter turn azimuth = %g, want 270", quarter.Azimuth)
	}
}

func TestOrbitRejectsBadPeriod(t *testing.T) {
	if _, err := NewOrbit(OrbitConfig{Period: 0}); err == nil {
		t.Fatal("expected error for zero period")
	}
}

func TestSweepEndpoints(t *testing.T) {
	tr, err := NewSweep(SweepConfig{
		From:     sphere.NewDirection(270, 0),
		To:       sphere.NewDirection(90, 0),
		Duration: 2,
		Curve:    CurveSlerp,
	})
	if err != nil {
		t.Fatal(err)
	}
	start, _ := tr.SampleAt(0)
	end, _ := tr.SampleAt(2)
	if sphere.Angle(start, sphere.NewDirection(270, 0)) > 1e-6 {
		t.Fatalf("sweep start = %v", start)
	}
	if sphere.Angle(end, sphere.NewDirection(90, 0)) > 1e-6 {
		t.Fatalf("sweep end = %v", end)
	}
}

func TestSamplerIsRestartable(t *testing.T) {
	tr := mustKeyframes(t, []Keyframe{
		{Time: 0, Direction: sphere.NewDirection(0, 0)},
		{Time: 1, Direction: sphere.NewDirection(90, 0)},
	})
	s := NewSampler(tr, 0.25)

	var first []sphere.Direction
	for i := 0; i < 5; i++ {
		d, err := s.Next()
		if err != nil {
			t.Fatal(err)
		}
		first = append(first, d)
	}
	s.Reset()
	for i := 0; i < 5; i++ {
		d, err := s.Next()
		if err != nil {
			t.Fatal(err)
		}
		if sphere.Angle(d, first[i]) > 1e-12 {
			t.Fatalf("block %d differs after reset: %v vs %v", i, d, first[i])
		}
	}
}
