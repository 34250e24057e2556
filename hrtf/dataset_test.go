package hrtf

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"

	"github.com/cwbudde/algo-spatial/sphere"
)

// ringPairs builds a horizontal ring dataset with a crude level-difference
// model: the right-ear gain grows towards 90 degrees azimuth.
func ringPairs(stepDeg float64, irLen int) []Pair {
	var pairs []Pair
	for az := 0.0; az < 360; az += stepDeg {
		pan := math.Sin(az * math.Pi / 180)
		l := make([]float32, irLen)
		r := make([]float32, irLen)
		l[0] = float32(0.5 * (1 - 0.8*pan))
		r[0] = float32(0.5 * (1 + 0.8*pan))
		pairs = append(pairs, Pair{
			Direction: sphere.NewDirection(az, 0),
			Left:      l,
			Right:     r,
		})
	}
	return pairs
}

func TestNewIndexRejectsBadInput(t *testing.T) {
	if _, err := NewIndex(nil, 48000); !errors.Is(err, ErrDatasetLoad) {
		t.Fatalf("empty dataset: err = %v, want ErrDatasetLoad", err)
	}
	if _, err := NewIndex(ringPairs(30, 8), 0); !errors.Is(err, ErrDatasetLoad) {
		t.Fatalf("bad rate: err = %v, want ErrDatasetLoad", err)
	}
	bad := []Pair{{Direction: sphere.NewDirection(0, 0), Left: nil, Right: []float32{1}}}
	if _, err := NewIndex(bad, 48000); !errors.Is(err, ErrDatasetLoad) {
		t.Fatalf("empty kernel: err = %v, want ErrDatasetLoad", err)
	}
}

func TestNearestExactHit(t *testing.T) {
	ix, err := NewIndex(ringPairs(30, 8), 48000)
	if err != nil {
		t.Fatal(err)
	}
	p := ix.Nearest(sphere.NewDirection(90, 0))
	if p.Direction.Azimuth != 90 {
		t.Fatalf("nearest azimuth = %g, want 90", p.Direction.Azimuth)
	}
	if p.Right[0] <= p.Left[0] {
		t.Fatalf("expected right-dominant kernel at 90 deg: L=%g R=%g", p.Left[0], p.Right[0])
	}
}

func TestLookupExactMatchPassesThrough(t *testing.T) {
	pairs := ringPairs(30, 8)
	ix, err := NewIndex(pairs, 48000)
	if err != nil {
		t.Fatal(err)
	}
	p := ix.Lookup(sphere.NewDirection(60, 0))
	for i := range p.Left {
		if p.Left[i] != pairs[2].Left[i] || p.Right[i] != pairs[2].Right[i] {
			t.Fatalf("exact lookup modified the kernel at sample %d", i)
		}
	}
}

func TestLookupEnergyWithinToleranceOfNearest(t *testing.T) {
	ix, err := NewIndex(ringPairs(15, 16), 48000)
	if err != nil {
		t.Fatal(err)
	}
	const maxDeviationDB = 1.0
	for az := 0.0; az < 360; az += 3.7 {
		for _, el := range []float64{-20, 0, 35} {
			d := sphere.NewDirection(az, el)
			p := ix.Lookup(d)
			nearest, _ := ix.NearestDistance(d)

			got := kernelEnergy(p.Left) + kernelEnergy(p.Right)
			ref := kernelEnergy(nearest.Left) + kernelEnergy(nearest.Right)
			devDB := math.Abs(10 * math.Log10(got/ref))
			if devDB > maxDeviationDB {
				t.Fatalf("lookup(%v): energy deviates %.2f dB from nearest", d, devDB)
			}
		}
	}
}

func TestLookupBlendsNeighborsSmoothly(t *testing.T) {
	ix, err := NewIndex(ringPairs(30, 8), 48000)
	if err != nil {
		t.Fatal(err)
	}
	// Halfway between the 60 and 90 degree entries the right-ear gain
	// must sit strictly between both measured values.
	p := ix.Lookup(sphere.NewDirection(75, 0))
	lo := ix.Nearest(sphere.NewDirection(60, 0)).Right[0]
	hi := ix.Nearest(sphere.NewDirection(90, 0)).Right[0]
	if lo > hi {
		lo, hi = hi, lo
	}
	if p.Right[0] <= lo || p.Right[0] >= hi {
		t.Fatalf("interpolated right gain %g outside (%g, %g)", p.Right[0], lo, hi)
	}
}

func writeIRWav(t *testing.T, path string, left, right []float32, rate int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, 2, 1)
	defer enc.Close()

	data := make([]float32, len(left)*2)
	for i := range left {
		data[i*2] = left[i]
		data[i*2+1] = right[i]
	}
	buf := &audio.Float32Buffer{
		Format:         &audio.Format{SampleRate: rate, NumChannels: 2},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
}

func TestLoadParsesDirectionsFromFilenames(t *testing.T) {
	dir := t.TempDir()
	writeIRWav(t, filepath.Join(dir, "H3_azi_30,0_ele_0,0.wav"),
		[]float32{0.9, 0.1}, []float32{0.4, 0.1}, 48000)
	writeIRWav(t, filepath.Join(dir, "H3_azi_330.0_ele_-15.0.wav"),
		[]float32{0.4, 0.1}, []float32{0.9, 0.1}, 48000)
	// Files without direction tags are skipped, not fatal.
	if err := os.WriteFile(filepath.Join(dir, "README.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ix, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ix.Len() != 2 {
		t.Fatalf("loaded %d pairs, want 2", ix.Len())
	}
	if ix.SampleRate() != 48000 {
		t.Fatalf("sample rate = %d, want 48000", ix.SampleRate())
	}
	p := ix.Nearest(sphere.NewDirection(30, 0))
	if sphere.Angle(p.Direction, sphere.NewDirection(30, 0)) > 1e-6 {
		t.Fatalf("nearest direction = %v, want azi 30", p.Direction)
	}
	p = ix.Nearest(sphere.NewDirection(330, -15))
	if sphere.Angle(p.Direction, sphere.NewDirection(330, -15)) > 1e-6 {
		t.Fatalf("nearest direction = %v, want azi 330 ele -15", p.Direction)
	}
}

func TestLoadRejectsMixedSampleRates(t *testing.T) {
	dir := t.TempDir()
	writeIRWav(t, filepath.Join(dir, "azi_0,0_ele_0,0.wav"),
		[]float32{1, 0}, []float32{1, 0}, 48000)
	writeIRWav(t, filepath.Join(dir, "azi_90,0_ele_0,0.wav"),
		[]float32{1, 0}, []float32{1, 0}, 44100)

	if _, err := Load(dir); !errors.Is(err, ErrDatasetLoad) {
		t.Fatalf("mixed rates: err = %v, want ErrDatasetLoad", err)
	}
}

func TestLoadRejectsEmptyDirectory(t *testing.T) {
	if _, err := Load(t.TempDir()); !errors.Is(err, ErrDatasetLoad) {
		t.Fatalf("empty dir: err = %v, want ErrDatasetLoad", err)
	}
}
