// Package hrtf loads directional impulse-response datasets and answers
// nearest/interpolated filter lookups for arbitrary directions.
//
// A dataset is a set of HRIR pairs, each measured at one direction, all
// at one sample rate. Once built, an Index is immutable and safe for
// concurrent readers.
package hrtf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cwbudde/wav"

	"github.com/cwbudde/algo-spatial/sphere"
)

// ErrDatasetLoad reports an unloadable or inconsistent HRTF dataset.
var ErrDatasetLoad = errors.New("hrtf: dataset load failed")

// Pair holds the left/right-ear impulse responses measured at one
// direction. Kernels are immutable once the Index owns them.
type Pair struct {
	Direction sphere.Direction
	Left      []float32
	Right     []float32
}

// Index answers direction-to-filter queries over a loaded dataset.
type Index struct {
	pairs      []Pair
	sampleRate int
	maxIRLen   int
	tree       *kdTree
	energies   []float64 // per-pair L+R kernel energy
}

// NewIndex builds an index over in-memory pairs. The pair slice is
// retained; callers must not mutate it afterwards.
func NewIndex(pairs []Pair, sampleRate int) (*Index, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: empty dataset", ErrDatasetLoad)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rate %d", ErrDatasetLoad, sampleRate)
	}

	ix := &Index{
		pairs:      pairs,
		sampleRate: sampleRate,
		energies:   make([]float64, len(pairs)),
	}
	points := make([][3]float64, len(pairs))
	for i, p := range pairs {
		if len(p.Left) == 0 || len(p.Right) == 0 {
			return nil, fmt.Errorf("%w: pair %d has an empty kernel", ErrDatasetLoad, i)
		}
		if n := len(p.Left); n > ix.maxIRLen {
			ix.maxIRLen = n
		}
		if n := len(p.Right); n > ix.maxIRLen {
			ix.maxIRLen = n
		}
		points[i] = p.Direction.Vector()
		ix.energies[i] = kernelEnergy(p.Left) + kernelEnergy(p.Right)
	}
	ix.tree = buildKDTree(points)
	return ix, nil
}

// Load reads a directory of per-direction HRIR WAV files. File names
// must carry the measurement direction as "azi_<a>" and "ele_<e>"
// segments; decimal commas (as shipped in the SADIE II sets) and
// decimal points are both accepted. All files must share one sample
// rate.
func Load(dir string) (*Index, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatasetLoad, err)
	}

	var pairs []Pair
	sampleRate := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			continue
		}
		dir2, ok := directionFromName(e.Name())
		if !ok {
			continue
		}
		left, right, rate, err := readIRPair(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDatasetLoad, e.Name(), err)
		}
		if sampleRate == 0 {
			sampleRate = rate
		} else if rate != sampleRate {
			return nil, fmt.Errorf("%w: %s has sample rate %d, dataset uses %d",
				ErrDatasetLoad, e.Name(), rate, sampleRate)
		}
		pairs = append(pairs, Pair{Direction: dir2, Left: left, Right: right})
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: no HRIR files found in %s", ErrDatasetLoad, dir)
	}
	return NewIndex(pairs, sampleRate)
}

// directionFromName extracts the measurement direction from names like
// "azi_30,0_ele_-15,0.wav".
func directionFromName(name string) (sphere.Direction, bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	az, ok := floatSegment(base, "azi_")
	if !ok {
		return sphere.Direction{}, false
	}
	el, ok := floatSegment(base, "ele_")
	if !ok {
		return sphere.Direction{}, false
	}
	return sphere.NewDirection(az, el), true
}

func floatSegment(base, tag string) (float64, bool) {
	pos := strings.Index(base, tag)
	if pos < 0 {
		return 0, false
	}
	rest := base[pos+len(tag):]
	if end := strings.IndexByte(rest, '_'); end >= 0 {
		rest = rest[:end]
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(rest, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func readIRPair(path string) ([]float32, []float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, nil, 0, fmt.Errorf("invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, nil, 0, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate <= 0 {
		return nil, nil, 0, fmt.Errorf("invalid wav buffer")
	}

	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	if frames == 0 {
		return nil, nil, 0, fmt.Errorf("empty wav data")
	}
	left := make([]float32, frames)
	right := make([]float32, frames)
	if ch == 1 {
		copy(left, buf.Data)
		copy(right, buf.Data)
	} else {
		for i := 0; i < frames; i++ {
			left[i] = buf.Data[i*ch]
			right[i] = buf.Data[i*ch+1]
		}
	}
	return left, right, buf.Format.SampleRate, nil
}

// SampleRate returns the dataset sample rate in Hz.
func (ix *Index) SampleRate() int { return ix.sampleRate }

// Len returns the number of measured directions.
func (ix *Index) Len() int { return len(ix.pairs) }

// MaxIRLen returns the longest kernel length in the dataset.
func (ix *Index) MaxIRLen() int { return ix.maxIRLen }

func kernelEnergy(k []float32) float64 {
	var sum float64
	for _, v := range k {
		sum += float64(v) * float64(v)
	}
	return sum
}
