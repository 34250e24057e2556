package hrtf

import (
	"math"
	"sort"
)

// kdTree is a static 3-d tree over unit-sphere points. Euclidean chord
// distance is monotonic in great-circle angle, so nearest-by-chord is
// nearest-by-angle.
type kdTree struct {
	nodes []kdNode
	root  int
}

type kdNode struct {
	point       [3]float64
	index       int // position in the dataset's pair slice
	axis        int
	left, right int // -1 when absent
}

func buildKDTree(points [][3]float64) *kdTree {
	t := &kdTree{nodes: make([]kdNode, 0, len(points)), root: -1}
	idx := make([]int, len(points))
	for i := range idx {
		idx[i] = i
	}
	t.root = t.build(points, idx, 0)
	return t
}

func (t *kdTree) build(points [][3]float64, idx []int, depth int) int {
	if len(idx) == 0 {
		return -1
	}
	axis := depth % 3
	sort.Slice(idx, func(a, b int) bool {
		return points[idx[a]][axis] < points[idx[b]][axis]
	})
	mid := len(idx) / 2

	node := kdNode{
		point: points[idx[mid]],
		index: idx[mid],
		axis:  axis,
	}
	pos := len(t.nodes)
	t.nodes = append(t.nodes, node)

	// Children are built after the parent is appended so child slice
	// growth cannot invalidate the parent reference.
	left := t.build(points, idx[:mid], depth+1)
	right := t.build(points, idx[mid+1:], depth+1)
	t.nodes[pos].left = left
	t.nodes[pos].right = right
	return pos
}

type neighbor struct {
	index int
	dist2 float64
}

// nearest returns the k closest dataset indices to the query point,
// ordered nearest first.
func (t *kdTree) nearest(query [3]float64, k int) []neighbor {
	if k < 1 || t.root < 0 {
		return nil
	}
	best := make([]neighbor, 0, k)
	t.search(t.root, query, k, &best)
	return best
}

func (t *kdTree) search(pos int, query [3]float64, k int, best *[]neighbor) {
	if pos < 0 {
		return
	}
	node := &t.nodes[pos]

	d2 := chord2(node.point, query)
	insertNeighbor(best, k, neighbor{index: node.index, dist2: d2})

	diff := query[node.axis] - node.point[node.axis]
	near, far := node.left, node.right
	if diff > 0 {
		near, far = far, near
	}
	t.search(near, query, k, best)
	if len(*best) < k || diff*diff < (*best)[len(*best)-1].dist2 {
		t.search(far, query, k, best)
	}
}

func insertNeighbor(best *[]neighbor, k int, n neighbor) {
	b := *best
	pos := sort.Search(len(b), func(i int) bool { return b[i].dist2 > n.dist2 })
	if pos >= k {
		return
	}
	if len(b) < k {
		b = append(b, neighbor{})
	}
	copy(b[pos+1:], b[pos:])
	b[pos] = n
	*best = b
}

func chord2(a, b [3]float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return dx*dx + dy*dy + dz*dz
}

// chordToDegrees converts a chord length on the unit sphere to the
// subtended great-circle angle in degrees.
func chordToDegrees(chord float64) float64 {
	half := chord / 2
	if half > 1 {
		half = 1
	}
	return 2 * math.Asin(half) * 180 / math.Pi
}
