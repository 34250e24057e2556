package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cwbudde/algo-spatial/analysis"
	"github.com/cwbudde/algo-spatial/hrtf"
	"github.com/cwbudde/algo-spatial/internal/audiofile"
	"github.com/cwbudde/algo-spatial/project"
	"github.com/cwbudde/algo-spatial/render"
)

func main() {
	scenePath := flag.String("project", "", "Scene JSON file path")
	stemPath := flag.String("stem", "", "Render a single stem WAV instead of a scene")
	azimuth := flag.Float64("azimuth", 0, "Stem azimuth in degrees (with -stem)")
	elevation := flag.Float64("elevation", 0, "Stem elevation in degrees (with -stem)")
	gainDB := flag.Float64("gain-db", 0, "Stem gain in dB (with -stem)")
	format := flag.String("format", "binaural", "Output format for -stem (binaural, cinema, stereo, speakers)")
	hrtfDir := flag.String("hrtf", "", "HRTF dataset directory (overrides the scene's hrtf_dir)")
	output := flag.String("output", "output.wav", "Output WAV file path")
	quiet := flag.Bool("quiet", false, "Suppress per-stem progress output")
	flag.Parse()

	if (*scenePath == "") == (*stemPath == "") {
		fmt.Fprintln(os.Stderr, "Error: pass exactly one of -project or -stem")
		os.Exit(1)
	}

	var scene *project.File
	if *scenePath != "" {
		var err error
		scene, err = project.Load(*scenePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading scene %q: %v\n", *scenePath, err)
			os.Exit(1)
		}
	} else {
		scene = singleStemScene(*stemPath, *azimuth, *elevation, *gainDB, *format)
	}

	dir := scene.HRTFDir
	if *hrtfDir != "" {
		dir = *hrtfDir
	}
	if dir == "" {
		fmt.Fprintln(os.Stderr, "Error: no HRTF dataset directory (set hrtf_dir in the scene or pass -hrtf)")
		os.Exit(1)
	}
	index, err := hrtf.Load(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading HRTF dataset %q: %v\n", dir, err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d filter pairs at %d Hz (max IR %d samples) from %s\n",
		index.Len(), index.SampleRate(), index.MaxIRLen(), dir)
	if scene.SampleRate != nil && *scene.SampleRate != index.SampleRate() {
		fmt.Fprintf(os.Stderr, "Error: scene wants %d Hz but the dataset is %d Hz\n",
			*scene.SampleRate, index.SampleRate())
		os.Exit(1)
	}

	opts, err := scene.RenderOptions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error in scene settings: %v\n", err)
		os.Exit(1)
	}
	if !*quiet {
		var mu sync.Mutex
		last := map[string]int{}
		opts.Progress = func(stem string, block, total int) {
			mu.Lock()
			defer mu.Unlock()
			pct := block * 100 / total
			if pct >= last[stem]+10 || block == total {
				last[stem] = pct
				fmt.Printf("  %-16s %3d%%\n", stem, pct)
			}
		}
	}

	jobs := make([]render.Job, 0, len(scene.Objects))
	for i := range scene.Objects {
		obj := &scene.Objects[i]
		data, rate, err := audiofile.ReadMono(obj.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading stem %q: %v\n", obj.Path, err)
			os.Exit(1)
		}
		if rate != index.SampleRate() {
			data, err = audiofile.Resample(data, rate, index.SampleRate())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error resampling stem %q: %v\n", obj.Path, err)
				os.Exit(1)
			}
			fmt.Printf("Resampled %s from %d Hz to %d Hz\n", obj.Name, rate, index.SampleRate())
		}
		traj, err := obj.Trajectory()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error in trajectory for %q: %v\n", obj.Name, err)
			os.Exit(1)
		}
		role, err := obj.RenderRole()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error in role for %q: %v\n", obj.Name, err)
			os.Exit(1)
		}
		jobs = append(jobs, render.Job{
			Name:       obj.Name,
			Source:     data,
			SampleRate: index.SampleRate(),
			Trajectory: traj,
			Role:       role,
			Gain:       obj.Gain(),
		})
	}

	renderer, err := render.NewRenderer(index, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring renderer: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Rendering %d stems...\n", len(jobs))
	start := time.Now()
	res, err := renderer.RenderMulti(context.Background(), jobs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Render finished with errors: %v\n", err)
		if res == nil {
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "Writing the partial mix of the surviving stems.")
	}
	elapsed := time.Since(start)

	if scene.Duration != nil {
		wantFrames := int(*scene.Duration * float64(res.SampleRate))
		data := make([]float32, wantFrames*res.Channels)
		copy(data, res.Data)
		res.Data = data
		res.Frames = wantFrames
	}

	if err := audiofile.WriteWAV(*output, res.Data, res.Channels, res.SampleRate); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %q: %v\n", *output, err)
		os.Exit(1)
	}

	seconds := float64(res.Frames) / float64(res.SampleRate)
	fmt.Printf("Wrote %s: %.2f s, %d channels at %d Hz (rendered in %.2f s)\n",
		*output, seconds, res.Channels, res.SampleRate, elapsed.Seconds())

	if stats, err := analysis.Measure(res.Data, res.Channels); err == nil {
		for c := 0; c < res.Channels; c++ {
			fmt.Printf("  ch %d: RMS %6.2f dBFS, peak %6.2f dBFS\n", c, stats.RMSdB[c], stats.PeakdB[c])
		}
	}
}

// singleStemScene wraps the -stem flags in an in-memory scene so both
// entry points share one code path.
func singleStemScene(path string, azimuth, elevation, gainDB float64, format string) *project.File {
	obj := project.Object{
		Name: "stem",
		Path: path,
		Position: &project.PositionEntry{
			Azimuth:   azimuth,
			Elevation: elevation,
		},
	}
	if gainDB != 0 {
		obj.GainDB = &gainDB
	}
	return &project.File{
		Format:  format,
		Objects: []project.Object{obj},
	}
}
