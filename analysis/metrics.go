// Package analysis computes level and separation metrics on rendered
// output. It is used by the command-line tools to report on a render
// and by the crosstalk tuner as its objective.
package analysis

import (
	"fmt"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
	stats "github.com/cwbudde/algo-dsp/stats/time"
)

// ChannelStats holds per-channel level measurements of an interleaved
// buffer.
type ChannelStats struct {
	RMS    []float64
	RMSdB  []float64
	Peak   []float64
	PeakdB []float64
}

// Measure deinterleaves the buffer and computes RMS and peak per
// channel.
func Measure(data []float32, channels int) (ChannelStats, error) {
	if channels < 1 {
		return ChannelStats{}, fmt.Errorf("analysis: invalid channel count %d", channels)
	}
	if len(data)%channels != 0 {
		return ChannelStats{}, fmt.Errorf("analysis: %d samples not divisible by %d channels", len(data), channels)
	}
	frames := len(data) / channels
	cs := ChannelStats{
		RMS:    make([]float64, channels),
		RMSdB:  make([]float64, channels),
		Peak:   make([]float64, channels),
		PeakdB: make([]float64, channels),
	}
	ch := make([]float64, frames)
	for c := 0; c < channels; c++ {
		for i := 0; i < frames; i++ {
			ch[i] = float64(data[i*channels+c])
		}
		cs.RMS[c] = stats.RMS(ch)
		cs.Peak[c] = stats.Peak(ch)
		cs.RMSdB[c] = dspcore.LinearToDB(cs.RMS[c])
		cs.PeakdB[c] = dspcore.LinearToDB(cs.Peak[c])
	}
	return cs, nil
}

// ILD returns the interaural level difference of a stereo buffer in
// dB, positive when the right channel is louder.
func ILD(data []float32) (float64, error) {
	cs, err := Measure(data, 2)
	if err != nil {
		return 0, err
	}
	return cs.RMSdB[1] - cs.RMSdB[0], nil
}

// Separation measures crosstalk suppression in dB: the level of the
// intended signal over the level of the leaked one. Larger is better.
func Separation(intended, leaked []float64) float64 {
	want := stats.RMS(intended)
	leak := stats.RMS(leaked)
	if leak <= 0 {
		leak = 1e-12
	}
	if want <= 0 {
		want = 1e-12
	}
	return dspcore.LinearToDB(want) - dspcore.LinearToDB(leak)
}
