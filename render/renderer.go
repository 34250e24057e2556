// Package render turns mono stems with trajectories into spatial
// audio. Each stem is streamed block by block through direction
// dependent filters; the mixed result is then shaped by the selected
// output topology.
package render

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design/pass"

	"github.com/cwbudde/algo-spatial/hrtf"
	"github.com/cwbudde/algo-spatial/sphere"
	"github.com/cwbudde/algo-spatial/trajectory"
)

// Topology selects the output format of a render.
type Topology int

const (
	// TopologyBinaural produces a plain headphone mix.
	TopologyBinaural Topology = iota
	// TopologyCinema adds room treatment on top of the binaural mix.
	TopologyCinema
	// TopologyStereoFold folds each stem to mono and pans it for
	// plain stereo playback.
	TopologyStereoFold
	// TopologyMultiSpeaker renders crosstalk-cancelled speaker feeds
	// for a physical layout.
	TopologyMultiSpeaker
)

// Role applies stock conditioning to a stem.
type Role int

const (
	RoleNone Role = iota
	// RoleAnchor pins the stem straight ahead regardless of its
	// trajectory.
	RoleAnchor
	// RoleLFE pins the stem ahead and slightly below.
	RoleLFE
	// RoleEthereal high-passes the stem at 3 kHz before
	// spatialization.
	RoleEthereal
)

const etherealHighpassHz = 3000

// Job is one mono stem to spatialize.
type Job struct {
	Name       string
	Source     []float32
	SampleRate int
	Trajectory trajectory.Trajectory // nil means straight ahead
	Role       Role
	Gain       float64 // linear, 0 means unity
}

// Progress reports per-stem block completion. It may be called
// concurrently from multiple stems.
type Progress func(stem string, block, total int)

// Options configures a Renderer. Zero values select the defaults.
type Options struct {
	Topology  Topology
	BlockSize int // default 1024, rounded up to a power of two

	// TrimToSource cuts the filter tail so output length equals the
	// longest source.
	TrimToSource bool

	// NormalizePeak rescales the final mix to this peak when > 0.
	NormalizePeak float64

	Layout SpeakerLayout // required for TopologyMultiSpeaker
	XTC    XTCConfig
	Cinema CinemaOptions

	Progress Progress
}

// Result is a finished render.
type Result struct {
	Data       []float32 // interleaved
	Channels   int
	SampleRate int
	Frames     int
}

// Renderer renders stems against one filter dataset. It is safe for
// concurrent use; all state lives per render call.
type Renderer struct {
	index *hrtf.Index
	opts  Options
}

// NewRenderer validates the options against the dataset.
func NewRenderer(index *hrtf.Index, opts Options) (*Renderer, error) {
	if index == nil || index.Len() == 0 {
		return nil, errors.New("render: empty filter index")
	}
	if opts.BlockSize == 0 {
		opts.BlockSize = 1024
	}
	if opts.BlockSize < 0 {
		return nil, fmt.Errorf("render: invalid block size %d", opts.BlockSize)
	}
	opts.BlockSize = nextPow2(opts.BlockSize)
	if opts.Topology == TopologyMultiSpeaker {
		if err := opts.Layout.Validate(); err != nil {
			return nil, err
		}
	}
	return &Renderer{index: index, opts: opts}, nil
}

// Render spatializes a single stem.
func (r *Renderer) Render(ctx context.Context, job Job) (*Result, error) {
	return r.RenderMulti(ctx, []Job{job})
}

// RenderMulti spatializes all stems concurrently and mixes them. When
// some stems fail the remaining ones are still rendered and mixed; the
// partial result is returned together with the joined per-stem errors.
func (r *Renderer) RenderMulti(ctx context.Context, jobs []Job) (*Result, error) {
	if len(jobs) == 0 {
		return nil, errors.New("render: no stems")
	}

	srcFrames := 0
	for _, j := range jobs {
		if len(j.Source) > srcFrames {
			srcFrames = len(j.Source)
		}
	}
	tail := r.index.MaxIRLen() - 1
	total := srcFrames + tail

	mix := make([]float32, 2*total)
	stemErrs := make([]error, len(jobs))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := range jobs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stem, err := r.renderStem(ctx, jobs[i], total)
			if err != nil {
				stemErrs[i] = &StemError{Stem: jobs[i].Name, Err: err}
				return
			}
			mu.Lock()
			for j, v := range stem {
				mix[j] += v
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	err := errors.Join(stemErrs...)

	res, postErr := r.finish(mix, total, srcFrames)
	if postErr != nil {
		return nil, errors.Join(err, postErr)
	}
	return res, err
}

// renderStem produces the interleaved binaural buffer for one stem,
// already folded for the stereo topology.
func (r *Renderer) renderStem(ctx context.Context, job Job, total int) ([]float32, error) {
	if job.SampleRate != r.index.SampleRate() {
		return nil, fmt.Errorf("%w: stem at %d Hz, dataset at %d Hz",
			ErrSampleRateMismatch, job.SampleRate, r.index.SampleRate())
	}

	traj := job.Trajectory
	switch job.Role {
	case RoleAnchor:
		traj = trajectory.Static(sphere.NewDirection(0, 0))
	case RoleLFE:
		traj = trajectory.Static(sphere.NewDirection(0, -10))
	}
	if traj == nil {
		traj = trajectory.Static(sphere.NewDirection(0, 0))
	}

	src := job.Source
	if job.Role == RoleEthereal {
		src = highpassCopy(src, etherealHighpassHz, r.index.SampleRate())
	}
	gain := float32(job.Gain)
	if gain == 0 {
		gain = 1
	}

	conv, err := newMovingConvolver(r.index, r.opts.BlockSize)
	if err != nil {
		return nil, err
	}

	blockSize := r.opts.BlockSize
	numBlocks := (total + blockSize - 1) / blockSize
	dt := float64(blockSize) / float64(job.SampleRate)
	sampler := trajectory.NewSampler(traj, dt)

	out := make([]float32, 2*total)
	in := make([]float32, blockSize)
	outL := make([]float32, blockSize)
	outR := make([]float32, blockSize)
	for b := 0; b < numBlocks; b++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		dir, err := sampler.Next()
		if err != nil {
			return nil, err
		}

		start := b * blockSize
		for i := 0; i < blockSize; i++ {
			if j := start + i; j < len(src) {
				in[i] = gain * src[j]
			} else {
				in[i] = 0
			}
		}
		if err := conv.processBlock(outL, outR, in, dir); err != nil {
			return nil, err
		}
		for i := 0; i < blockSize; i++ {
			if j := start + i; j < total {
				out[j*2] = outL[i]
				out[j*2+1] = outR[i]
			}
		}
		if r.opts.Progress != nil {
			r.opts.Progress(job.Name, b+1, numBlocks)
		}
	}

	if r.opts.Topology == TopologyStereoFold {
		sampler.Reset()
		if err := foldToPannedStereo(out, blockSize, sampler); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// finish runs the master stage for the selected topology and shapes
// the final result.
func (r *Renderer) finish(mix []float32, total, srcFrames int) (*Result, error) {
	channels := 2
	data := mix

	switch r.opts.Topology {
	case TopologyCinema:
		if err := applyCinema(data, r.index.SampleRate(), r.opts.BlockSize, r.opts.Cinema); err != nil {
			return nil, err
		}
	case TopologyMultiSpeaker:
		filters, err := DesignXTC(r.index, r.opts.Layout, r.opts.XTC)
		if err != nil {
			return nil, err
		}
		earL := make([]float32, total)
		earR := make([]float32, total)
		for i := 0; i < total; i++ {
			earL[i] = data[i*2]
			earR[i] = data[i*2+1]
		}
		feeds, err := filters.Apply(earL, earR, r.opts.BlockSize)
		if err != nil {
			return nil, err
		}
		channels = len(feeds)
		data = make([]float32, channels*total)
		for s, feed := range feeds {
			for i, v := range feed {
				data[i*channels+s] = v
			}
		}
	}

	frames := total
	if r.opts.TrimToSource {
		frames = srcFrames
		data = data[:frames*channels]
	}

	if r.opts.NormalizePeak > 0 {
		peak := float32(0)
		for _, v := range data {
			if a := float32(math.Abs(float64(v))); a > peak {
				peak = a
			}
		}
		if peak > 0 {
			s := float32(r.opts.NormalizePeak) / peak
			for i := range data {
				data[i] *= s
			}
		}
	}

	return &Result{
		Data:       data,
		Channels:   channels,
		SampleRate: r.index.SampleRate(),
		Frames:     frames,
	}, nil
}

func highpassCopy(src []float32, freq float64, sampleRate int) []float32 {
	chain := biquad.NewChain(pass.ButterworthHP(freq, 2, float64(sampleRate)))
	out := make([]float32, len(src))
	for i, v := range src {
		out[i] = float32(chain.ProcessSample(float64(v)))
	}
	return out
}
