package render

import (
	"fmt"

	dspconv "github.com/cwbudde/algo-dsp/dsp/conv"
	dspwindow "github.com/cwbudde/algo-dsp/dsp/window"
	algofft "github.com/cwbudde/algo-fft"

	"github.com/cwbudde/algo-spatial/hrtf"
	"github.com/cwbudde/algo-spatial/internal/linsolve"
	"github.com/cwbudde/algo-spatial/sphere"
)

// duplicateSpeakerDegrees is the angular separation below which two
// speakers make the cancellation system rank deficient.
const duplicateSpeakerDegrees = 0.1

// Speaker is one loudspeaker of a playback layout. A zero Gain means
// unity.
type Speaker struct {
	Direction sphere.Direction
	Gain      float64
}

// SpeakerLayout describes the playback speakers for the multi-speaker
// topology.
type SpeakerLayout struct {
	Speakers []Speaker
}

// SurroundLayout returns a standard 7-speaker surround arrangement on
// the horizontal plane.
func SurroundLayout() SpeakerLayout {
	az := []float64{0, 330, 30, 250, 110, 210, 150}
	speakers := make([]Speaker, len(az))
	for i, a := range az {
		speakers[i] = Speaker{Direction: sphere.NewDirection(a, 0), Gain: 1}
	}
	return SpeakerLayout{Speakers: speakers}
}

// Validate rejects layouts whose cancellation system cannot be
// inverted regardless of regularization.
func (l SpeakerLayout) Validate() error {
	if len(l.Speakers) < 2 {
		return fmt.Errorf("%w: need at least 2 speakers, have %d", ErrUnsolvableLayout, len(l.Speakers))
	}
	for i := range l.Speakers {
		if l.Speakers[i].Gain < 0 {
			return fmt.Errorf("%w: speaker %d has negative gain", ErrUnsolvableLayout, i)
		}
		for j := i + 1; j < len(l.Speakers); j++ {
			if sphere.Angle(l.Speakers[i].Direction, l.Speakers[j].Direction) < duplicateSpeakerDegrees {
				return fmt.Errorf("%w: speakers %d and %d share a direction", ErrUnsolvableLayout, i, j)
			}
		}
	}
	return nil
}

// XTCConfig controls crosstalk cancellation filter design. Zero values
// select the defaults.
type XTCConfig struct {
	// Regularization is the Tikhonov weight relative to the mean
	// transfer energy per bin. Higher values trade separation for
	// robustness against ill-conditioned bins. Negative requests an
	// unregularized inverse; well-conditioned layouts only.
	Regularization float64 // default 0.005

	// FilterLength is the inverse filter length in samples, rounded
	// up to a power of two.
	FilterLength int // default 1024
}

func (c XTCConfig) withDefaults() XTCConfig {
	if c.Regularization == 0 {
		c.Regularization = 0.005
	}
	if c.Regularization < 0 {
		c.Regularization = 0
	}
	if c.FilterLength == 0 {
		c.FilterLength = 1024
	}
	c.FilterLength = nextPow2(c.FilterLength)
	return c
}

// XTCFilters holds designed per-speaker inverse filters. Filter
// [s][0] maps the left ear signal to speaker s, [s][1] the right.
type XTCFilters struct {
	filters [][2][]float32
	length  int
}

// NumSpeakers returns the layout size the filters were designed for.
func (x *XTCFilters) NumSpeakers() int { return len(x.filters) }

// Latency returns the group delay in samples introduced by the
// filters. Apply compensates for it.
func (x *XTCFilters) Latency() int { return x.length / 2 }

// DesignXTC builds crosstalk cancellation filters for the layout by
// frequency sampling: at each bin the 2 x S ear transfer matrix H is
// inverted as G = H* (H H* + lambda I)^-1, so playing the speaker
// feeds G x ears through the room recovers the binaural signal at the
// ears. The resulting spectra are transformed to linear-phase FIR
// filters with half their length of delay.
func DesignXTC(index *hrtf.Index, layout SpeakerLayout, cfg XTCConfig) (*XTCFilters, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	n := cfg.FilterLength
	specLen := n/2 + 1
	numSpk := len(layout.Speakers)

	plan, err := algofft.NewPlanReal32(n)
	if err != nil {
		return nil, err
	}

	// Ear transfer spectra per speaker.
	spkL := make([][]complex64, numSpk)
	spkR := make([][]complex64, numSpk)
	timeBuf := make([]float32, n)
	for s, sp := range layout.Speakers {
		gain := float32(sp.Gain)
		if gain == 0 {
			gain = 1
		}
		pair := index.Lookup(sp.Direction)
		spkL[s] = make([]complex64, specLen)
		spkR[s] = make([]complex64, specLen)
		if err := scaledSpectrum(plan, spkL[s], timeBuf, pair.Left, gain); err != nil {
			return nil, err
		}
		if err := scaledSpectrum(plan, spkR[s], timeBuf, pair.Right, gain); err != nil {
			return nil, err
		}
	}

	gSpec := make([][2][]complex64, numSpk)
	for s := range gSpec {
		gSpec[s][0] = make([]complex64, specLen)
		gSpec[s][1] = make([]complex64, specLen)
	}
	for k := 0; k < specLen; k++ {
		h := linsolve.New(2, numSpk)
		for s := 0; s < numSpk; s++ {
			h.Set(0, s, complex128(spkL[s][k]))
			h.Set(1, s, complex128(spkR[s][k]))
		}
		hh := h.ConjTranspose()
		m := linsolve.Mul(h, hh)

		lambda := cfg.Regularization * (real(m.At(0, 0)) + real(m.At(1, 1))) / 2
		if lambda < 1e-12 {
			lambda = 1e-12
		}
		inv, err := linsolve.RegularizedInverse(m, lambda, 1e-12)
		if err != nil {
			return nil, fmt.Errorf("%w: bin %d: %v", ErrUnsolvableLayout, k, err)
		}
		g := linsolve.Mul(hh, inv)
		for s := 0; s < numSpk; s++ {
			gSpec[s][0][k] = complex64(g.At(s, 0))
			gSpec[s][1][k] = complex64(g.At(s, 1))
		}
	}

	// Back to time domain: center the response for causality and
	// taper the edges.
	taper, err := dspwindow.Hann(n)
	if err != nil {
		return nil, err
	}
	half := n / 2
	out := &XTCFilters{filters: make([][2][]float32, numSpk), length: n}
	for s := 0; s < numSpk; s++ {
		for ear := 0; ear < 2; ear++ {
			if err := plan.Inverse(timeBuf, gSpec[s][ear]); err != nil {
				return nil, err
			}
			f := make([]float32, n)
			for i := 0; i < n; i++ {
				f[i] = timeBuf[(i+half)%n] * float32(taper[i])
			}
			out.filters[s][ear] = f
		}
	}
	return out, nil
}

func scaledSpectrum(plan *algofft.PlanRealT[float32, complex64], dst []complex64, timeBuf, kernel []float32, gain float32) error {
	n := 0
	for ; n < len(kernel) && n < len(timeBuf); n++ {
		timeBuf[n] = gain * kernel[n]
	}
	for ; n < len(timeBuf); n++ {
		timeBuf[n] = 0
	}
	return plan.Forward(dst, timeBuf)
}

// Apply converts a binaural pair into latency-compensated speaker
// feeds, each the same length as the inputs.
func (x *XTCFilters) Apply(earL, earR []float32, blockSize int) ([][]float32, error) {
	if len(earL) != len(earR) {
		return nil, fmt.Errorf("render: ear buffers differ in length: %d vs %d", len(earL), len(earR))
	}
	frames := len(earL)
	latency := x.Latency()
	padded := frames + latency

	feeds := make([][]float32, len(x.filters))
	inL := make([]float32, blockSize)
	inR := make([]float32, blockSize)
	outL := make([]float32, blockSize)
	outR := make([]float32, blockSize)
	for s := range x.filters {
		convL, err := dspconv.NewStreamingOverlapAdd32(x.filters[s][0], blockSize)
		if err != nil {
			return nil, err
		}
		convR, err := dspconv.NewStreamingOverlapAdd32(x.filters[s][1], blockSize)
		if err != nil {
			return nil, err
		}

		feed := make([]float32, frames)
		for start := 0; start < padded; start += blockSize {
			for i := 0; i < blockSize; i++ {
				if j := start + i; j < frames {
					inL[i] = earL[j]
					inR[i] = earR[j]
				} else {
					inL[i] = 0
					inR[i] = 0
				}
			}
			if err := convL.ProcessBlockTo(outL, inL); err != nil {
				return nil, err
			}
			if err := convR.ProcessBlockTo(outR, inR); err != nil {
				return nil, err
			}
			for i := 0; i < blockSize; i++ {
				j := start + i - latency
				if j >= 0 && j < frames {
					feed[j] = outL[i] + outR[i]
				}
			}
		}
		feeds[s] = feed
	}
	return feeds, nil
}

// SimulateEars plays speaker feeds through the layout's measured ear
// transfers and returns the signals arriving at each ear. It is used
// to evaluate cancellation quality.
func SimulateEars(index *hrtf.Index, layout SpeakerLayout, feeds [][]float32) ([]float64, []float64, error) {
	if len(feeds) != len(layout.Speakers) {
		return nil, nil, fmt.Errorf("render: %d feeds for %d speakers", len(feeds), len(layout.Speakers))
	}
	frames := 0
	for _, f := range feeds {
		if len(f) > frames {
			frames = len(f)
		}
	}
	total := frames + index.MaxIRLen() - 1
	earL := make([]float64, total)
	earR := make([]float64, total)
	for s, sp := range layout.Speakers {
		gain := sp.Gain
		if gain == 0 {
			gain = 1
		}
		pair := index.Lookup(sp.Direction)
		for i, v := range feeds[s] {
			x := gain * float64(v)
			for k, h := range pair.Left {
				earL[i+k] += x * float64(h)
			}
			for k, h := range pair.Right {
				earR[i+k] += x * float64(h)
			}
		}
	}
	return earL, earR, nil
}
