// Package sphere provides directions on the listener-centered unit sphere
// and the angular math used throughout the renderer.
//
// Azimuth is measured in degrees clockwise from listener-forward
// (0 = front, 90 = right, 180 = back, 270 = left) and canonicalized to
// [0, 360). Elevation is measured in degrees from the horizontal plane
// and clamped to [-90, 90].
package sphere

import (
	"math"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
)

// Direction is a canonicalized direction on the unit sphere.
type Direction struct {
	Azimuth   float64
	Elevation float64
}

// NewDirection canonicalizes azimuth/elevation in degrees.
func NewDirection(azimuth, elevation float64) Direction {
	return Direction{
		Azimuth:   normalizeAzimuth(azimuth),
		Elevation: dspcore.Clamp(elevation, -90, 90),
	}
}

func normalizeAzimuth(az float64) float64 {
	az = math.Mod(az, 360)
	if az < 0 {
		az += 360
	}
	// Mod can return 360 for tiny negative inputs after the wrap.
	if az >= 360 {
		az -= 360
	}
	return az
}

// Vector returns the unit vector for d: x forward, y right, z up.
func (d Direction) Vector() [3]float64 {
	azRad := d.Azimuth * math.Pi / 180
	elRad := d.Elevation * math.Pi / 180
	cosEl := math.Cos(elRad)
	return [3]float64{
		cosEl * math.Cos(azRad),
		cosEl * math.Sin(azRad),
		math.Sin(elRad),
	}
}

// FromVector converts a (not necessarily normalized) vector back to a
// Direction. The zero vector maps to listener-forward.
func FromVector(v [3]float64) Direction {
	dist := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if dist == 0 {
		return Direction{}
	}
	az := math.Atan2(v[1], v[0]) * 180 / math.Pi
	el := math.Asin(dspcore.Clamp(v[2]/dist, -1, 1)) * 180 / math.Pi
	return NewDirection(az, el)
}

// Angle returns the great-circle distance between a and b in degrees.
func Angle(a, b Direction) float64 {
	va := a.Vector()
	vb := b.Vector()
	dot := va[0]*vb[0] + va[1]*vb[1] + va[2]*vb[2]
	return math.Acos(dspcore.Clamp(dot, -1, 1)) * 180 / math.Pi
}

// Lerp interpolates from a to b along the shortest great-circle arc.
// t is clamped to [0, 1]. Antipodal endpoints fall back to the arc
// through the pole, which is one of the (equally short) valid paths.
func Lerp(a, b Direction, t float64) Direction {
	t = dspcore.Clamp(t, 0, 1)
	va := a.Vector()
	vb := b.Vector()
	dot := dspcore.Clamp(va[0]*vb[0]+va[1]*vb[1]+va[2]*vb[2], -1, 1)
	omega := math.Acos(dot)

	if omega < 1e-9 {
		return a
	}
	if math.Pi-omega < 1e-9 {
		// Antipodal: route through an orthogonal waypoint.
		mid := orthogonal(va)
		if t < 0.5 {
			return Lerp(a, FromVector(mid), t*2)
		}
		return Lerp(FromVector(mid), b, t*2-1)
	}

	sinOmega := math.Sin(omega)
	wa := math.Sin((1-t)*omega) / sinOmega
	wb := math.Sin(t*omega) / sinOmega
	return FromVector([3]float64{
		wa*va[0] + wb*vb[0],
		wa*va[1] + wb*vb[1],
		wa*va[2] + wb*vb[2],
	})
}

// LerpAngles interpolates azimuth along the shortest wrap and elevation
// linearly. Cheaper than Lerp and matches per-component keyframe curves.
func LerpAngles(a, b Direction, t float64) Direction {
	t = dspcore.Clamp(t, 0, 1)
	delta := math.Mod(b.Azimuth-a.Azimuth+540, 360) - 180
	return NewDirection(a.Azimuth+delta*t, a.Elevation+(b.Elevation-a.Elevation)*t)
}

func orthogonal(v [3]float64) [3]float64 {
	// Cross with the axis least aligned to v.
	axis := [3]float64{0, 0, 1}
	if math.Abs(v[2]) > 0.9 {
		axis = [3]float64{1, 0, 0}
	}
	return [3]float64{
		v[1]*axis[2] - v[2]*axis[1],
		v[2]*axis[0] - v[0]*axis[2],
		v[0]*axis[1] - v[1]*axis[0],
	}
}
