package render

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-spatial/hrtf"
	"github.com/cwbudde/algo-spatial/sphere"
)

// identityIndex models two speakers whose paths to the ears do not
// cross: the left speaker reaches only the left ear and vice versa.
// The cancellation matrix is then the identity at every bin.
func identityIndex(t *testing.T) (*hrtf.Index, SpeakerLayout) {
	t.Helper()
	pairs := []hrtf.Pair{
		{
			Direction: sphere.NewDirection(270, 0),
			Left:      []float32{1, 0, 0, 0},
			Right:     []float32{0, 0, 0, 0},
		},
		{
			Direction: sphere.NewDirection(90, 0),
			Left:      []float32{0, 0, 0, 0},
			Right:     []float32{1, 0, 0, 0},
		},
	}
	ix, err := hrtf.NewIndex(pairs, testRate)
	if err != nil {
		t.Fatal(err)
	}
	layout := SpeakerLayout{Speakers: []Speaker{
		{Direction: sphere.NewDirection(270, 0)},
		{Direction: sphere.NewDirection(90, 0)},
	}}
	return ix, layout
}

func TestXTCIdentityLayoutRoundTrip(t *testing.T) {
	ix, layout := identityIndex(t)
	filters, err := DesignXTC(ix, layout, XTCConfig{Regularization: 1e-6, FilterLength: 256})
	if err != nil {
		t.Fatal(err)
	}
	if filters.NumSpeakers() != 2 {
		t.Fatalf("speakers = %d, want 2", filters.NumSpeakers())
	}
	if filters.Latency() != 128 {
		t.Fatalf("latency = %d, want 128", filters.Latency())
	}

	earL := noiseSource(2000, 31)
	earR := noiseSource(2000, 37)
	feeds, err := filters.Apply(earL, earR, 256)
	if err != nil {
		t.Fatal(err)
	}
	gotL, gotR, err := SimulateEars(ix, layout, feeds)
	if err != nil {
		t.Fatal(err)
	}

	// Identity transfers mean the feeds reproduce the binaural
	// signal directly; edge samples are shaped by the filter taper.
	for i := 100; i < 1900; i++ {
		if math.Abs(gotL[i]-float64(earL[i])) > 1e-2 {
			t.Fatalf("left ear sample %d = %g, want %g", i, gotL[i], earL[i])
		}
		if math.Abs(gotR[i]-float64(earR[i])) > 1e-2 {
			t.Fatalf("right ear sample %d = %g, want %g", i, gotR[i], earR[i])
		}
	}
}

func TestDuplicateSpeakersRejected(t *testing.T) {
	layout := SpeakerLayout{Speakers: []Speaker{
		{Direction: sphere.NewDirection(30, 0)},
		{Direction: sphere.NewDirection(30.01, 0)},
	}}
	if err := layout.Validate(); !errors.Is(err, ErrUnsolvableLayout) {
		t.Fatalf("err = %v, want ErrUnsolvableLayout", err)
	}

	ix := gridIndex(t)
	if _, err := NewRenderer(ix, Options{Topology: TopologyMultiSpeaker, Layout: layout}); !errors.Is(err, ErrUnsolvableLayout) {
		t.Fatalf("NewRenderer err = %v, want ErrUnsolvableLayout", err)
	}
}

func TestTooFewSpeakersRejected(t *testing.T) {
	layout := SpeakerLayout{Speakers: []Speaker{{Direction: sphere.NewDirection(0, 0)}}}
	if err := layout.Validate(); !errors.Is(err, ErrUnsolvableLayout) {
		t.Fatalf("err = %v, want ErrUnsolvableLayout", err)
	}
}

func TestSurroundLayoutValid(t *testing.T) {
	layout := SurroundLayout()
	if len(layout.Speakers) != 7 {
		t.Fatalf("speakers = %d, want 7", len(layout.Speakers))
	}
	if err := layout.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestMultiSpeakerRenderShape(t *testing.T) {
	ix := gridIndex(t)
	layout := SurroundLayout()
	r, err := NewRenderer(ix, Options{
		Topology:  TopologyMultiSpeaker,
		Layout:    layout,
		BlockSize: 256,
		XTC:       XTCConfig{FilterLength: 256},
	})
	if err != nil {
		t.Fatal(err)
	}
	src := noiseSource(3000, 41)
	res, err := r.Render(context.Background(), Job{Name: "m", Source: src, SampleRate: testRate})
	if err != nil {
		t.Fatal(err)
	}
	if res.Channels != len(layout.Speakers) {
		t.Fatalf("channels = %d, want %d", res.Channels, len(layout.Speakers))
	}
	if want := len(src) + ix.MaxIRLen() - 1; res.Frames != want {
		t.Fatalf("frames = %d, want %d", res.Frames, want)
	}
	if len(res.Data) != res.Frames*res.Channels {
		t.Fatalf("data length %d does not match %d frames x %d channels", len(res.Data), res.Frames, res.Channels)
	}
	var energy float64
	for _, v := range res.Data {
		energy += float64(v) * float64(v)
	}
	if energy == 0 {
		t.Fatal("speaker feeds are silent")
	}
}
