// Package project loads render scenes from JSON: the stems, their
// trajectories and roles, the output topology, and the playback
// layout.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwbudde/algo-approx"

	"github.com/cwbudde/algo-spatial/render"
	"github.com/cwbudde/algo-spatial/sphere"
	"github.com/cwbudde/algo-spatial/trajectory"
)

// File is the JSON schema for a render scene.
type File struct {
	Version    *int     `json:"version"`
	SampleRate *int     `json:"sample_rate"`
	Duration   *float64 `json:"duration"`
	Format     string   `json:"format"`
	HRTFDir    string   `json:"hrtf_dir"`
	BlockSize  *int     `json:"block_size"`
	Normalize  *float64 `json:"normalize_peak"`
	TrimTail   *bool    `json:"trim_tail"`

	Objects  []Object        `json:"objects"`
	Speakers []SpeakerEntry  `json:"speakers"`
	XTC      *XTCSettings    `json:"xtc"`
	Cinema   *CinemaSettings `json:"cinema"`
}

// Object is one stem entry.
type Object struct {
	Name   string   `json:"name"`
	Path   string   `json:"file"`
	Role   string   `json:"role"`
	GainDB *float64 `json:"gain_db"`

	Position  *PositionEntry  `json:"position"`
	Keyframes []KeyframeEntry `json:"keyframes"`
	Orbit     *OrbitEntry     `json:"orbit"`
	Policy    string          `json:"policy"`
}

// PositionEntry is a fixed direction.
type PositionEntry struct {
	Azimuth   float64 `json:"azimuth"`
	Elevation float64 `json:"elevation"`
}

// KeyframeEntry is one trajectory keyframe.
type KeyframeEntry struct {
	Time      float64 `json:"time"`
	Azimuth   float64 `json:"azimuth"`
	Elevation float64 `json:"elevation"`
	Curve     string  `json:"curve"`
}

// OrbitEntry configures a procedural orbit.
type OrbitEntry struct {
	Period    float64  `json:"period"`
	PhaseDeg  *float64 `json:"phase"`
	Reverse   *bool    `json:"reverse"`
	TiltDeg   *float64 `json:"tilt"`
	Elevation *float64 `json:"elevation"`
}

// SpeakerEntry is one playback speaker.
type SpeakerEntry struct {
	Azimuth   float64  `json:"azimuth"`
	Elevation float64  `json:"elevation"`
	Gain      *float64 `json:"gain"`
}

// XTCSettings overrides crosstalk cancellation defaults.
type XTCSettings struct {
	Regularization *float64 `json:"regularization"`
	FilterLength   *int     `json:"filter_length"`
}

// CinemaSettings overrides the cinema room treatment defaults.
type CinemaSettings struct {
	ReflectionDelayMS   *float64 `json:"reflection_delay_ms"`
	ReflectionGain      *float64 `json:"reflection_gain"`
	ReflectionLowpassHz *float64 `json:"reflection_lowpass_hz"`
	RoomWet             *float64 `json:"room_wet"`
}

// Load reads and validates a scene file. Relative stem and dataset
// paths are resolved against the file's directory.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	base := filepath.Dir(path)
	if f.HRTFDir != "" && !filepath.IsAbs(f.HRTFDir) {
		f.HRTFDir = filepath.Clean(filepath.Join(base, f.HRTFDir))
	}
	for i := range f.Objects {
		if p := f.Objects[i].Path; p != "" && !filepath.IsAbs(p) {
			f.Objects[i].Path = filepath.Clean(filepath.Join(base, p))
		}
	}
	return f, nil
}

// Parse decodes and validates a scene document.
func Parse(b []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	if f.Version != nil && *f.Version != 1 {
		return nil, fmt.Errorf("unsupported version %d", *f.Version)
	}
	if f.SampleRate != nil && *f.SampleRate <= 0 {
		return nil, fmt.Errorf("sample_rate must be > 0")
	}
	if f.Duration != nil && *f.Duration <= 0 {
		return nil, fmt.Errorf("duration must be > 0")
	}
	if len(f.Objects) == 0 {
		return nil, fmt.Errorf("scene has no objects")
	}
	for i := range f.Objects {
		o := &f.Objects[i]
		if o.Name == "" {
			o.Name = fmt.Sprintf("object-%d", i)
		}
		if o.Path == "" {
			return nil, fmt.Errorf("object %q has no file", o.Name)
		}
		if _, err := parseRole(o.Role); err != nil {
			return nil, fmt.Errorf("object %q: %w", o.Name, err)
		}
		if _, err := o.Trajectory(); err != nil {
			return nil, fmt.Errorf("object %q: %w", o.Name, err)
		}
	}
	if _, err := f.RenderOptions(); err != nil {
		return nil, err
	}
	return &f, nil
}

// RenderOptions maps the scene settings onto renderer options.
func (f *File) RenderOptions() (render.Options, error) {
	var opts render.Options

	switch strings.ToLower(f.Format) {
	case "", "binaural":
		opts.Topology = render.TopologyBinaural
	case "cinema":
		opts.Topology = render.TopologyCinema
	case "stereo":
		opts.Topology = render.TopologyStereoFold
	case "speakers":
		opts.Topology = render.TopologyMultiSpeaker
	default:
		return opts, fmt.Errorf("unknown format %q", f.Format)
	}

	if f.BlockSize != nil {
		if *f.BlockSize <= 0 {
			return opts, fmt.Errorf("block_size must be > 0")
		}
		opts.BlockSize = *f.BlockSize
	}
	if f.Normalize != nil {
		if *f.Normalize <= 0 || *f.Normalize > 1 {
			return opts, fmt.Errorf("normalize_peak must be in (0, 1]")
		}
		opts.NormalizePeak = *f.Normalize
	}
	if f.TrimTail != nil {
		opts.TrimToSource = *f.TrimTail
	}

	if opts.Topology == render.TopologyMultiSpeaker {
		if len(f.Speakers) == 0 {
			opts.Layout = render.SurroundLayout()
		} else {
			speakers := make([]render.Speaker, len(f.Speakers))
			for i, s := range f.Speakers {
				gain := 1.0
				if s.Gain != nil {
					gain = *s.Gain
				}
				speakers[i] = render.Speaker{
					Direction: sphere.NewDirection(s.Azimuth, s.Elevation),
					Gain:      gain,
				}
			}
			opts.Layout = render.SpeakerLayout{Speakers: speakers}
		}
		if err := opts.Layout.Validate(); err != nil {
			return opts, err
		}
	}
	if f.XTC != nil {
		if f.XTC.Regularization != nil {
			if *f.XTC.Regularization <= 0 {
				return opts, fmt.Errorf("xtc.regularization must be > 0")
			}
			opts.XTC.Regularization = *f.XTC.Regularization
		}
		if f.XTC.FilterLength != nil {
			if *f.XTC.FilterLength <= 0 {
				return opts, fmt.Errorf("xtc.filter_length must be > 0")
			}
			opts.XTC.FilterLength = *f.XTC.FilterLength
		}
	}
	if f.Cinema != nil {
		if f.Cinema.ReflectionDelayMS != nil {
			opts.Cinema.ReflectionDelayMS = *f.Cinema.ReflectionDelayMS
		}
		if f.Cinema.ReflectionGain != nil {
			opts.Cinema.ReflectionGain = *f.Cinema.ReflectionGain
		}
		if f.Cinema.ReflectionLowpassHz != nil {
			opts.Cinema.ReflectionLowpassHz = *f.Cinema.ReflectionLowpassHz
		}
		if f.Cinema.RoomWet != nil {
			opts.Cinema.RoomWet = *f.Cinema.RoomWet
		}
	}
	return opts, nil
}

// Role maps the object's role string onto the renderer role.
func (o *Object) RenderRole() (render.Role, error) {
	return parseRole(o.Role)
}

func parseRole(s string) (render.Role, error) {
	switch strings.ToLower(s) {
	case "", "spatial":
		return render.RoleNone, nil
	case "anchor":
		return render.RoleAnchor, nil
	case "lfe_focused":
		return render.RoleLFE, nil
	case "ethereal":
		return render.RoleEthereal, nil
	default:
		return render.RoleNone, fmt.Errorf("unknown role %q", s)
	}
}

// Gain returns the object's linear gain.
func (o *Object) Gain() float64 {
	if o.GainDB == nil {
		return 1
	}
	// 10^(dB/20) = e^(dB * ln10/20)
	const lnTenOver20 = 0.11512925464970229
	return float64(approx.FastExp(float32(*o.GainDB * lnTenOver20)))
}

// Trajectory builds the object's trajectory. Exactly one of position,
// keyframes, or orbit may be set; none means straight ahead.
func (o *Object) Trajectory() (trajectory.Trajectory, error) {
	set := 0
	if o.Position != nil {
		set++
	}
	if len(o.Keyframes) > 0 {
		set++
	}
	if o.Orbit != nil {
		set++
	}
	if set > 1 {
		return nil, fmt.Errorf("position, keyframes and orbit are mutually exclusive")
	}

	switch {
	case o.Position != nil:
		return trajectory.Static(sphere.NewDirection(o.Position.Azimuth, o.Position.Elevation)), nil

	case len(o.Keyframes) > 0:
		frames := make([]trajectory.Keyframe, len(o.Keyframes))
		for i, k := range o.Keyframes {
			curve, err := parseCurve(k.Curve)
			if err != nil {
				return nil, err
			}
			frames[i] = trajectory.Keyframe{
				Time:      k.Time,
				Direction: sphere.NewDirection(k.Azimuth, k.Elevation),
				Curve:     curve,
			}
		}
		policy, err := parsePolicy(o.Policy)
		if err != nil {
			return nil, err
		}
		return trajectory.NewKeyframes(frames, trajectory.WithPolicy(policy))

	case o.Orbit != nil:
		cfg := trajectory.OrbitConfig{Period: o.Orbit.Period}
		if o.Orbit.PhaseDeg != nil {
			cfg.PhaseDeg = *o.Orbit.PhaseDeg
		}
		if o.Orbit.Reverse != nil {
			cfg.Reverse = *o.Orbit.Reverse
		}
		if o.Orbit.TiltDeg != nil {
			cfg.TiltDeg = *o.Orbit.TiltDeg
		}
		if o.Orbit.Elevation != nil {
			cfg.ElevationOffsetDeg = *o.Orbit.Elevation
		}
		return trajectory.NewOrbit(cfg)

	default:
		return trajectory.Static(sphere.NewDirection(0, 0)), nil
	}
}

func parseCurve(s string) (trajectory.Curve, error) {
	switch strings.ToLower(s) {
	case "", "linear":
		return trajectory.CurveLinear, nil
	case "ease":
		return trajectory.CurveEase, nil
	case "slerp":
		return trajectory.CurveSlerp, nil
	default:
		return trajectory.CurveLinear, fmt.Errorf("unknown curve %q", s)
	}
}

func parsePolicy(s string) (trajectory.Policy, error) {
	switch strings.ToLower(s) {
	case "", "clamp":
		return trajectory.PolicyClamp, nil
	case "error":
		return trajectory.PolicyError, nil
	default:
		return trajectory.PolicyClamp, fmt.Errorf("unknown policy %q", s)
	}
}
