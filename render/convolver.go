package render

import (
	"math"

	dspwindow "github.com/cwbudde/algo-dsp/dsp/window"
	algofft "github.com/cwbudde/algo-fft"

	"github.com/cwbudde/algo-spatial/hrtf"
	"github.com/cwbudde/algo-spatial/sphere"
)

// kernelSpectra holds the frequency-domain filter pair for one
// quantized direction.
type kernelSpectra struct {
	left, right []complex64
}

// movingConvolver streams a mono signal through a direction-dependent
// stereo filter using overlap-save convolution. The filter may change
// at every block; changes are equal-power crossfaded over one block so
// moving sources stay free of clicks.
//
// The input window keeps irLen-1 samples of history ahead of each new
// block, so the last blockSize samples of the circular convolution are
// exactly the linear streaming convolution. A held direction therefore
// produces output bit-identical to a fixed-filter render.
type movingConvolver struct {
	index     *hrtf.Index
	blockSize int
	irLen     int
	histLen   int
	fftSize   int
	pad       int

	plan *algofft.PlanRealT[float32, complex64]

	inBuf   []float32
	inSpec  []complex64
	work    []complex64
	timeBuf []float32
	history []float32

	kernelTime []float32
	cache      map[uint64]*kernelSpectra
	cur        *kernelSpectra
	curKey     uint64

	fadeIn, fadeOut []float32
	oldL, oldR      []float32
}

func newMovingConvolver(index *hrtf.Index, blockSize int) (*movingConvolver, error) {
	irLen := index.MaxIRLen()
	histLen := irLen - 1
	fftSize := nextPow2(blockSize + histLen)

	plan, err := algofft.NewPlanReal32(fftSize)
	if err != nil {
		return nil, err
	}

	// Equal-power ramps from the rising half of a Hann window. The
	// window has an odd length so the ramp ends exactly at unity.
	w, err := dspwindow.Hann(2*blockSize + 1)
	if err != nil {
		return nil, err
	}
	fadeIn := make([]float32, blockSize)
	fadeOut := make([]float32, blockSize)
	for i := 0; i < blockSize; i++ {
		h := w[i+1]
		fadeIn[i] = float32(math.Sqrt(h))
		fadeOut[i] = float32(math.Sqrt(1 - h))
	}

	specLen := fftSize/2 + 1
	return &movingConvolver{
		index:      index,
		blockSize:  blockSize,
		irLen:      irLen,
		histLen:    histLen,
		fftSize:    fftSize,
		pad:        fftSize - histLen - blockSize,
		plan:       plan,
		inBuf:      make([]float32, fftSize),
		inSpec:     make([]complex64, specLen),
		work:       make([]complex64, specLen),
		timeBuf:    make([]float32, fftSize),
		history:    make([]float32, histLen),
		kernelTime: make([]float32, fftSize),
		cache:      make(map[uint64]*kernelSpectra),
		fadeIn:     fadeIn,
		fadeOut:    fadeOut,
		oldL:       make([]float32, blockSize),
		oldR:       make([]float32, blockSize),
	}, nil
}

// processBlock convolves one blockSize input block with the filter for
// dir and writes blockSize samples to outL and outR.
func (c *movingConvolver) processBlock(outL, outR, in []float32, dir sphere.Direction) error {
	next, err := c.spectraFor(dir)
	if err != nil {
		return err
	}

	copy(c.inBuf[c.pad:], c.history)
	copy(c.inBuf[c.pad+c.histLen:], in)
	if err := c.plan.Forward(c.inSpec, c.inBuf); err != nil {
		return err
	}

	if err := c.convolve(outL, next.left); err != nil {
		return err
	}
	if err := c.convolve(outR, next.right); err != nil {
		return err
	}

	if c.cur != nil && c.cur != next {
		if err := c.convolve(c.oldL, c.cur.left); err != nil {
			return err
		}
		if err := c.convolve(c.oldR, c.cur.right); err != nil {
			return err
		}
		for i := 0; i < c.blockSize; i++ {
			outL[i] = outL[i]*c.fadeIn[i] + c.oldL[i]*c.fadeOut[i]
			outR[i] = outR[i]*c.fadeIn[i] + c.oldR[i]*c.fadeOut[i]
		}
	}
	c.cur = next

	copy(c.history, c.inBuf[c.fftSize-c.histLen:])
	return nil
}

// convolve multiplies the cached input spectrum by one kernel spectrum
// and writes the valid blockSize samples of the inverse transform.
func (c *movingConvolver) convolve(dst []float32, kspec []complex64) error {
	for i := range c.work {
		c.work[i] = c.inSpec[i] * kspec[i]
	}
	if err := c.plan.Inverse(c.timeBuf, c.work); err != nil {
		return err
	}
	copy(dst, c.timeBuf[c.fftSize-c.blockSize:])
	return nil
}

// spectraCacheCap bounds the per-direction spectra cache so long
// moving renders keep a flat memory profile. At 0.01 degree
// quantization a continuously moving source inserts an entry almost
// every block; on overflow the cache is dropped wholesale, keeping
// only the active entry so a held direction never crossfades against
// a recomputed copy of itself.
const spectraCacheCap = 256

// spectraFor resolves the filter pair for dir, caching spectra per
// quantized direction so repeated and nearby lookups reuse transforms.
func (c *movingConvolver) spectraFor(dir sphere.Direction) (*kernelSpectra, error) {
	key := quantizeDirection(dir)
	if ks, ok := c.cache[key]; ok {
		c.curKey = key
		return ks, nil
	}

	pair := c.index.Lookup(dir)
	ks := &kernelSpectra{
		left:  make([]complex64, c.fftSize/2+1),
		right: make([]complex64, c.fftSize/2+1),
	}
	if err := c.kernelSpectrum(ks.left, pair.Left); err != nil {
		return nil, err
	}
	if err := c.kernelSpectrum(ks.right, pair.Right); err != nil {
		return nil, err
	}
	if len(c.cache) >= spectraCacheCap {
		c.cache = make(map[uint64]*kernelSpectra, spectraCacheCap)
		if c.cur != nil {
			c.cache[c.curKey] = c.cur
		}
	}
	c.cache[key] = ks
	c.curKey = key
	return ks, nil
}

func (c *movingConvolver) kernelSpectrum(dst []complex64, kernel []float32) error {
	n := copy(c.kernelTime, kernel)
	for i := n; i < c.fftSize; i++ {
		c.kernelTime[i] = 0
	}
	return c.plan.Forward(dst, c.kernelTime)
}

func (c *movingConvolver) reset() {
	for i := range c.history {
		c.history[i] = 0
	}
	c.cur = nil
}

// quantizeDirection keys the spectra cache at 0.01 degree resolution.
func quantizeDirection(d sphere.Direction) uint64 {
	az := uint32(int32(math.Round(d.Azimuth * 100)))
	el := uint32(int32(math.Round(d.Elevation * 100)))
	return uint64(az)<<32 | uint64(el)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
