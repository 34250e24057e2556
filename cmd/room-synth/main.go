package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cwbudde/algo-spatial/internal/audiofile"
	"github.com/cwbudde/algo-spatial/roomfx"
)

func main() {
	cfg := roomfx.DefaultConfig()
	sampleRate := flag.Int("sample-rate", cfg.SampleRate, "Sample rate in Hz")
	duration := flag.Float64("duration", cfg.DurationS, "IR duration in seconds")
	seed := flag.Int64("seed", cfg.Seed, "Random seed")
	earlyCount := flag.Int("early-count", cfg.EarlyCount, "Number of early reflections")
	lateLevel := flag.Float64("late-level", cfg.LateLevel, "Diffuse tail level (0 disables)")
	decay := flag.Float64("decay", cfg.DecayS, "Tail decay time constant in seconds")
	width := flag.Float64("width", cfg.StereoWidth, "Stereo width of early reflections")
	peak := flag.Float64("peak", cfg.NormalizePeak, "Peak normalization target")
	output := flag.String("output", "room.wav", "Output WAV file path")
	flag.Parse()

	cfg.SampleRate = *sampleRate
	cfg.DurationS = *duration
	cfg.Seed = *seed
	cfg.EarlyCount = *earlyCount
	cfg.LateLevel = *lateLevel
	cfg.DecayS = *decay
	cfg.StereoWidth = *width
	cfg.NormalizePeak = *peak

	left, right, err := roomfx.Generate(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error synthesizing room IR: %v\n", err)
		os.Exit(1)
	}

	interleaved := make([]float32, 2*len(left))
	for i := range left {
		interleaved[i*2] = left[i]
		interleaved[i*2+1] = right[i]
	}
	if err := audiofile.WriteWAV(*output, interleaved, 2, cfg.SampleRate); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %q: %v\n", *output, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s: %d samples stereo at %d Hz (seed %d)\n",
		*output, len(left), cfg.SampleRate, cfg.Seed)
}
