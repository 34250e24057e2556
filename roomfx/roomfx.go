// Package roomfx synthesizes the short stereo room-reflection impulse
// response used by the cinema-binaural topology: a sparse early
// reflection cluster followed by a diffuse, low-pass filtered tail.
package roomfx

import (
	"fmt"
	"math"
	"math/rand"
)

// Config controls room IR synthesis. The defaults model a small
// listening room rather than a concert hall.
type Config struct {
	SampleRate int
	DurationS  float64
	Seed       int64

	EarlyCount  int     // number of discrete early reflections
	EarlySpanS  float64 // reflections land in (1ms, EarlySpanS)
	LateLevel   float64 // diffuse tail level, 0 disables the tail
	StereoWidth float64 // 0 = dual mono, 1 = fully decorrelated panning
	DecayS      float64 // tail decay time constant

	NormalizePeak float64
}

// DefaultConfig returns the parameters used by the cinema renderer.
func DefaultConfig() Config {
	return Config{
		SampleRate:    48000,
		DurationS:     0.25,
		Seed:          1,
		EarlyCount:    18,
		EarlySpanS:    0.045,
		LateLevel:     0.05,
		StereoWidth:   0.5,
		DecayS:        0.12,
		NormalizePeak: 0.5,
	}
}

func (c *Config) Validate() error {
	if c.SampleRate < 8000 {
		return fmt.Errorf("roomfx: sample rate too low: %d", c.SampleRate)
	}
	if c.DurationS <= 0 {
		return fmt.Errorf("roomfx: duration must be > 0")
	}
	if c.EarlyCount < 0 {
		return fmt.Errorf("roomfx: early count must be >= 0")
	}
	if c.EarlySpanS <= 0 {
		return fmt.Errorf("roomfx: early span must be > 0")
	}
	if c.LateLevel < 0 {
		return fmt.Errorf("roomfx: late level must be >= 0")
	}
	if c.StereoWidth < 0 {
		return fmt.Errorf("roomfx: stereo width must be >= 0")
	}
	if c.DecayS <= 0 {
		return fmt.Errorf("roomfx: decay must be > 0")
	}
	if c.NormalizePeak <= 0 {
		return fmt.Errorf("roomfx: normalize peak must be > 0")
	}
	return nil
}

// Generate synthesizes the stereo room IR. Output is deterministic for
// a given config.
func Generate(cfg Config) ([]float32, []float32, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	n := int(math.Round(cfg.DurationS * float64(cfg.SampleRate)))
	if n < 1 {
		n = 1
	}
	left := make([]float64, n)
	right := make([]float64, n)
	rng := rand.New(rand.NewSource(cfg.Seed))

	for i := 0; i < cfg.EarlyCount; i++ {
		t := 0.001 + (cfg.EarlySpanS-0.001)*rng.Float64()
		idx := int(t * float64(cfg.SampleRate))
		if idx <= 0 || idx >= n {
			continue
		}
		amp := (0.1 + 0.35*rng.Float64()) * math.Exp(-t*25)
		pan := (rng.Float64()*2 - 1) * cfg.StereoWidth
		left[idx] += amp * (1 - 0.5*pan)
		right[idx] += amp * (1 + 0.5*pan)
	}

	if cfg.LateLevel > 0 {
		// One-pole low-passed noise under an exponential envelope.
		lpL, lpR := 0.0, 0.0
		for i := 0; i < n; i++ {
			t := float64(i) / float64(cfg.SampleRate)
			env := math.Exp(-t / cfg.DecayS)
			lpL = 0.985*lpL + 0.015*rng.NormFloat64()
			lpR = 0.985*lpR + 0.015*rng.NormFloat64()
			left[i] += cfg.LateLevel * env * lpL
			right[i] += cfg.LateLevel * env * lpR
		}
	}

	removeDC(left)
	removeDC(right)

	peak := 0.0
	for i := 0; i < n; i++ {
		if a := math.Abs(left[i]); a > peak {
			peak = a
		}
		if a := math.Abs(right[i]); a > peak {
			peak = a
		}
	}
	if peak < 1e-12 {
		peak = 1e-12
	}
	s := cfg.NormalizePeak / peak
	outL := make([]float32, n)
	outR := make([]float32, n)
	for i := 0; i < n; i++ {
		outL[i] = float32(left[i] * s)
		outR[i] = float32(right[i] * s)
	}
	return outL, outR, nil
}

func removeDC(x []float64) {
	const r = 0.995
	prevIn, prevOut := 0.0, 0.0
	for i := range x {
		y := x[i] - prevIn + r*prevOut
		prevIn = x[i]
		prevOut = y
		x[i] = y
	}
}
