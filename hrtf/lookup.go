package hrtf

import (
	"math"

	"github.com/cwbudde/algo-spatial/sphere"
)

// exactMatchDegrees is the angular threshold below which a lookup
// returns the measured kernel unchanged instead of an interpolation.
const exactMatchDegrees = 0.05

// interpNeighbors is the number of nearest pairs blended by Lookup.
const interpNeighbors = 3

// Nearest returns the dataset pair closest to d by great-circle angle.
func (ix *Index) Nearest(d sphere.Direction) Pair {
	nb := ix.tree.nearest(d.Vector(), 1)
	return ix.pairs[nb[0].index]
}

// NearestDistance returns the nearest pair and its angular distance in
// degrees.
func (ix *Index) NearestDistance(d sphere.Direction) (Pair, float64) {
	nb := ix.tree.nearest(d.Vector(), 1)
	return ix.pairs[nb[0].index], chordToDegrees(math.Sqrt(nb[0].dist2))
}

// Lookup resolves a filter pair for any direction. An exact (or near
// exact) dataset hit is returned unchanged; otherwise the nearest
// pairs are blended with inverse-angular-distance weights and the
// blend is rescaled so its total energy matches the nearest measured
// kernel, keeping interpolated levels free of audible jumps.
func (ix *Index) Lookup(d sphere.Direction) Pair {
	k := interpNeighbors
	if k > len(ix.pairs) {
		k = len(ix.pairs)
	}
	nb := ix.tree.nearest(d.Vector(), k)

	nearestAngle := chordToDegrees(math.Sqrt(nb[0].dist2))
	if nearestAngle < exactMatchDegrees || k == 1 {
		return ix.pairs[nb[0].index]
	}

	weights := make([]float64, len(nb))
	var wsum float64
	for i, n := range nb {
		weights[i] = 1 / (chordToDegrees(math.Sqrt(n.dist2)) + 1e-6)
		wsum += weights[i]
	}

	left := make([]float32, ix.maxIRLen)
	right := make([]float32, ix.maxIRLen)
	for i, n := range nb {
		w := float32(weights[i] / wsum)
		p := ix.pairs[n.index]
		for j, v := range p.Left {
			left[j] += w * v
		}
		for j, v := range p.Right {
			right[j] += w * v
		}
	}

	// Energy-match the blend against the nearest single kernel.
	blendEnergy := kernelEnergy(left) + kernelEnergy(right)
	if blendEnergy > 0 {
		scale := float32(math.Sqrt(ix.energies[nb[0].index] / blendEnergy))
		for j := range left {
			left[j] *= scale
		}
		for j := range right {
			right[j] *= scale
		}
	}

	return Pair{Direction: d, Left: left, Right: right}
}
