package sphere

import "math"

// StereoGains returns constant-power left/right pan gains for an azimuth
// in degrees. Front and back map to center; 90 degrees is hard right,
// 270 degrees hard left.
func StereoGains(azimuth float64) (left, right float64) {
	pan := math.Sin(normalizeAzimuth(azimuth) * math.Pi / 180) // -1..1
	norm := (pan + 1) / 2
	return math.Cos(norm * math.Pi / 2), math.Sin(norm * math.Pi / 2)
}
