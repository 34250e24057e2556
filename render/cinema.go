package render

import (
	"math"

	dspconv "github.com/cwbudde/algo-dsp/dsp/conv"
	"github.com/cwbudde/algo-dsp/dsp/delay"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design/pass"

	"github.com/cwbudde/algo-spatial/roomfx"
)

// CinemaOptions controls the room treatment applied on top of the
// binaural mix by the cinema topology: a delayed, low-passed
// cross-channel reflection plus an optional synthesized room wet path.
// Zero values select the defaults.
type CinemaOptions struct {
	ReflectionDelayMS   float64 // default 22
	ReflectionGain      float64 // default 0.25
	ReflectionLowpassHz float64 // default 4000

	Room    *roomfx.Config // nil disables the wet path
	RoomWet float64        // default 0.3
}

func (o CinemaOptions) withDefaults() CinemaOptions {
	if o.ReflectionDelayMS == 0 {
		o.ReflectionDelayMS = 22
	}
	if o.ReflectionGain == 0 {
		o.ReflectionGain = 0.25
	}
	if o.ReflectionLowpassHz == 0 {
		o.ReflectionLowpassHz = 4000
	}
	if o.RoomWet == 0 {
		o.RoomWet = 0.3
	}
	return o
}

// applyCinema adds the cross-channel early reflection and the optional
// room wet path to an interleaved stereo buffer in place.
func applyCinema(data []float32, sampleRate, blockSize int, opts CinemaOptions) error {
	opts = opts.withDefaults()
	frames := len(data) / 2

	delaySamples := int(math.Round(opts.ReflectionDelayMS / 1000 * float64(sampleRate)))
	lineL, err := delay.New(delaySamples + 1)
	if err != nil {
		return err
	}
	lineR, err := delay.New(delaySamples + 1)
	if err != nil {
		return err
	}
	coeffs := pass.ButterworthLP(opts.ReflectionLowpassHz, 2, float64(sampleRate))
	lpL := biquad.NewChain(coeffs)
	lpR := biquad.NewChain(coeffs)

	g := float32(opts.ReflectionGain)
	for i := 0; i < frames; i++ {
		dryL := data[i*2]
		dryR := data[i*2+1]
		lineL.Write(float64(dryL))
		lineR.Write(float64(dryR))

		// Each ear hears a softened, delayed copy of the opposite
		// channel, standing in for the first lateral wall bounce.
		// Read(d+1) is the sample written d steps ago.
		refL := lpL.ProcessSample(lineR.Read(delaySamples + 1))
		refR := lpR.ProcessSample(lineL.Read(delaySamples + 1))
		data[i*2] = dryL + g*float32(refL)
		data[i*2+1] = dryR + g*float32(refR)
	}

	if opts.Room == nil {
		return nil
	}
	return addRoomWet(data, sampleRate, blockSize, opts)
}

// addRoomWet convolves the treated mix with a synthesized room impulse
// response and blends it in. The wet tail past the buffer end is
// dropped.
func addRoomWet(data []float32, sampleRate, blockSize int, opts CinemaOptions) error {
	cfg := *opts.Room
	cfg.SampleRate = sampleRate
	irL, irR, err := roomfx.Generate(cfg)
	if err != nil {
		return err
	}
	convL, err := dspconv.NewStreamingOverlapAdd32(irL, blockSize)
	if err != nil {
		return err
	}
	convR, err := dspconv.NewStreamingOverlapAdd32(irR, blockSize)
	if err != nil {
		return err
	}

	frames := len(data) / 2
	wet := float32(opts.RoomWet)
	inL := make([]float32, blockSize)
	inR := make([]float32, blockSize)
	outL := make([]float32, blockSize)
	outR := make([]float32, blockSize)
	for start := 0; start < frames; start += blockSize {
		n := blockSize
		if start+n > frames {
			n = frames - start
		}
		for i := 0; i < blockSize; i++ {
			if i < n {
				inL[i] = data[(start+i)*2]
				inR[i] = data[(start+i)*2+1]
			} else {
				inL[i] = 0
				inR[i] = 0
			}
		}
		if err := convL.ProcessBlockTo(outL, inL); err != nil {
			return err
		}
		if err := convR.ProcessBlockTo(outR, inR); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			data[(start+i)*2] += wet * outL[i]
			data[(start+i)*2+1] += wet * outR[i]
		}
	}
	return nil
}
