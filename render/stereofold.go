package render

import (
	"github.com/cwbudde/algo-spatial/sphere"
	"github.com/cwbudde/algo-spatial/trajectory"
)

// foldToPannedStereo collapses an interleaved binaural buffer to mono
// and re-spatializes it with a constant-power pan that follows the
// stem's azimuth. The sampler must be rewound to the start of the
// render; gains move linearly across each block to avoid zipper noise.
func foldToPannedStereo(data []float32, blockSize int, sampler *trajectory.Sampler) error {
	frames := len(data) / 2

	prevL, prevR := -1.0, -1.0
	for start := 0; start < frames; start += blockSize {
		dir, err := sampler.Next()
		if err != nil {
			return err
		}
		gl, gr := sphere.StereoGains(dir.Azimuth)
		if prevL < 0 {
			prevL, prevR = gl, gr
		}

		n := blockSize
		if start+n > frames {
			n = frames - start
		}
		for i := 0; i < n; i++ {
			t := float64(i+1) / float64(blockSize)
			wl := prevL + (gl-prevL)*t
			wr := prevR + (gr-prevR)*t
			mono := 0.5 * (data[(start+i)*2] + data[(start+i)*2+1])
			data[(start+i)*2] = float32(wl) * mono
			data[(start+i)*2+1] = float32(wr) * mono
		}
		prevL, prevR = gl, gr
	}
	return nil
}
