package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/cwbudde/mayfly"

	"github.com/cwbudde/algo-spatial/analysis"
	"github.com/cwbudde/algo-spatial/hrtf"
	"github.com/cwbudde/algo-spatial/render"
	"github.com/cwbudde/algo-spatial/sphere"
)

// Regularization search range, log-uniform.
const (
	lambdaMin = 1e-5
	lambdaMax = 0.5
)

func main() {
	dir := flag.String("hrtf", "", "HRTF dataset directory")
	speakersFlag := flag.String("speakers", "", "Comma-separated speaker azimuths in degrees (default: surround layout)")
	filterLength := flag.Int("filter-length", 1024, "Inverse filter length in samples")
	blockSize := flag.Int("block-size", 1024, "Processing block size")
	testLen := flag.Int("test-length", 9600, "Test signal length in samples")
	pop := flag.Int("pop", 8, "Mayfly population size")
	iters := flag.Int("iterations", 12, "Mayfly iterations")
	variant := flag.String("variant", "desma", "Mayfly variant (ma, desma, olce, eobbma, gsasma, mpma, aoblmoa)")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "Error: -hrtf is required")
		os.Exit(1)
	}
	index, err := hrtf.Load(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading dataset %q: %v\n", *dir, err)
		os.Exit(1)
	}

	layout, err := parseLayout(*speakersFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing -speakers: %v\n", err)
		os.Exit(1)
	}
	if err := layout.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error in layout: %v\n", err)
		os.Exit(1)
	}

	// Uncorrelated noise at each ear exercises both the
	// reconstruction and the cancellation path.
	rng := rand.New(rand.NewSource(*seed))
	earL := noise(rng, *testLen)
	earR := noise(rng, *testLen)

	evaluate := func(lambda float64) (residual float64, err error) {
		filters, err := render.DesignXTC(index, layout, render.XTCConfig{
			Regularization: lambda,
			FilterLength:   *filterLength,
		})
		if err != nil {
			return 0, err
		}
		feeds, err := filters.Apply(earL, earR, *blockSize)
		if err != nil {
			return 0, err
		}
		gotL, gotR, err := render.SimulateEars(index, layout, feeds)
		if err != nil {
			return 0, err
		}
		// Skip the taper-shaped edges.
		lo, hi := *filterLength, *testLen-*filterLength
		if hi <= lo {
			lo, hi = 0, *testLen
		}
		var num, den float64
		for i := lo; i < hi; i++ {
			dl := gotL[i] - float64(earL[i])
			dr := gotR[i] - float64(earR[i])
			num += dl*dl + dr*dr
			den += float64(earL[i])*float64(earL[i]) + float64(earR[i])*float64(earR[i])
		}
		return math.Sqrt(num / den), nil
	}

	bestLambda := math.NaN()
	bestScore := math.Inf(1)
	evals := 0

	cfg, err := newMayflyConfig(*variant, *pop, *iters)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg.Rand = rand.New(rand.NewSource(*seed + 7919))
	cfg.ObjectiveFunc = func(pos []float64) float64 {
		lambda := lambdaFromNormalized(pos[0])
		score, err := evaluate(lambda)
		evals++
		if err != nil {
			return bestScore + 1
		}
		if score < bestScore {
			bestScore = score
			bestLambda = lambda
			fmt.Printf("Improved: lambda=%.6g residual=%.4f (eval %d)\n", lambda, score, evals)
		}
		return score
	}

	fmt.Printf("Tuning regularization for %d speakers, filter length %d...\n",
		len(layout.Speakers), *filterLength)
	if _, err := mayfly.Optimize(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Optimization failed: %v\n", err)
		os.Exit(1)
	}
	if math.IsNaN(bestLambda) {
		fmt.Fprintln(os.Stderr, "No feasible regularization found")
		os.Exit(1)
	}

	fmt.Printf("\nBest regularization: %.6g (reconstruction residual %.2f%%, %d evals)\n",
		bestLambda, 100*bestScore, evals)
	reportSeparation(index, layout, bestLambda, *filterLength, *blockSize, earL)
}

// reportSeparation drives only the left ear signal and measures how
// much of it leaks into the right ear after cancellation.
func reportSeparation(index *hrtf.Index, layout render.SpeakerLayout, lambda float64, filterLength, blockSize int, earL []float32) {
	filters, err := render.DesignXTC(index, layout, render.XTCConfig{
		Regularization: lambda,
		FilterLength:   filterLength,
	})
	if err != nil {
		return
	}
	silent := make([]float32, len(earL))
	feeds, err := filters.Apply(earL, silent, blockSize)
	if err != nil {
		return
	}
	gotL, gotR, err := render.SimulateEars(index, layout, feeds)
	if err != nil {
		return
	}
	lo, hi := filterLength, len(earL)-filterLength
	if hi <= lo {
		lo, hi = 0, len(earL)
	}
	fmt.Printf("Channel separation: %.1f dB\n", analysis.Separation(gotL[lo:hi], gotR[lo:hi]))
}

func parseLayout(s string) (render.SpeakerLayout, error) {
	if s == "" {
		return render.SurroundLayout(), nil
	}
	parts := strings.Split(s, ",")
	speakers := make([]render.Speaker, 0, len(parts))
	for _, p := range parts {
		az, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return render.SpeakerLayout{}, fmt.Errorf("bad azimuth %q", p)
		}
		speakers = append(speakers, render.Speaker{Direction: sphere.NewDirection(az, 0), Gain: 1})
	}
	return render.SpeakerLayout{Speakers: speakers}, nil
}

func newMayflyConfig(variant string, pop, iters int) (*mayfly.Config, error) {
	var cfg *mayfly.Config
	switch strings.ToLower(variant) {
	case "ma":
		cfg = mayfly.NewDefaultConfig()
	case "desma":
		cfg = mayfly.NewDESMAConfig()
	case "olce":
		cfg = mayfly.NewOLCEConfig()
	case "eobbma":
		cfg = mayfly.NewEOBBMAConfig()
	case "gsasma":
		cfg = mayfly.NewGSASMAConfig()
	case "mpma":
		cfg = mayfly.NewMPMAConfig()
	case "aoblmoa":
		cfg = mayfly.NewAOBLMOAConfig()
	default:
		return nil, fmt.Errorf("unsupported variant %q", variant)
	}
	cfg.ProblemSize = 1
	cfg.LowerBound = 0.0
	cfg.UpperBound = 1.0
	cfg.MaxIterations = iters
	cfg.NPop = pop
	cfg.NPopF = pop
	cfg.NC = 2 * pop
	cfg.NM = 1
	return cfg, nil
}

func lambdaFromNormalized(x float64) float64 {
	if x < 0 {
		x = 0
	}
	if x > 1 {
		x = 1
	}
	logMin := math.Log(lambdaMin)
	logMax := math.Log(lambdaMax)
	return math.Exp(logMin + x*(logMax-logMin))
}

func noise(rng *rand.Rand, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(rng.Float64()*2 - 1)
	}
	return out
}
