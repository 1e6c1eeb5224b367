package space

import "sort"

// Kind distinguishes the three selection shapes spec.md §3 allows: a union
// of hyperslabs, an explicit point set, or "all".
type Kind uint8

const (
	// KindAll selects every element of the dataspace's current extent.
	KindAll Kind = iota
	// KindNone selects nothing (the empty selection, e.g. a failed projection).
	KindNone
	// KindHyperslab selects a disjoint union of axis-aligned boxes.
	KindHyperslab
	// KindPoints selects an explicit, ordered set of points.
	KindPoints
)

// Selection is the region-selection half of a Dataspace. Hyperslab unions
// are maintained as a disjoint set of Boxes at all times: UnionBox always
// subtracts existing coverage from the incoming box before appending,
// so Size and Iterate never double-count overlapping area.
type Selection struct {
	Kind   Kind
	Blocks []Box
	Points [][]int64
}

// AllSelection returns the "select everything" selection.
func AllSelection() Selection { return Selection{Kind: KindAll} }

// NoneSelection returns the empty selection.
func NoneSelection() Selection { return Selection{Kind: KindNone} }

// NewHyperslab returns a hyperslab selection covering the union of boxes.
func NewHyperslab(boxes ...Box) Selection {
	s := Selection{Kind: KindHyperslab}
	for _, b := range boxes {
		s.UnionBox(b)
	}
	return s
}

// NewPoints returns a point selection. Point order is preserved: it is
// significant for selections produced by ProjectIntersection, which must
// iterate in lock-step with a sibling projection (see dataspace.go).
func NewPoints(points ...[]int64) Selection {
	pts := make([][]int64, len(points))
	for i, p := range points {
		pts[i] = append([]int64(nil), p...)
	}
	return Selection{Kind: KindPoints, Points: pts}
}

// UnionBox adds a box to a hyperslab selection, splitting it against any
// already-recorded block so the stored blocks remain pairwise disjoint.
func (s *Selection) UnionBox(b Box) {
	s.Kind = KindHyperslab
	pieces := []Box{b}
	for _, existing := range s.Blocks {
		var next []Box
		for _, p := range pieces {
			next = append(next, subtract(p, existing)...)
		}
		pieces = next
		if len(pieces) == 0 {
			break
		}
	}
	s.Blocks = append(s.Blocks, pieces...)
}

// effectiveBoxes resolves a selection to a disjoint box list against a
// concrete extent; KindAll needs the extent to produce its single box,
// KindPoints degenerates each point to a unit box.
func (s Selection) effectiveBoxes(dims []int64) []Box {
	switch s.Kind {
	case KindAll:
		start := make([]int64, len(dims))
		return []Box{NewBox(start, dims)}
	case KindHyperslab:
		return s.Blocks
	case KindPoints:
		boxes := make([]Box, len(s.Points))
		for i, p := range s.Points {
			ones := make([]int64, len(p))
			for j := range ones {
				ones[j] = 1
			}
			boxes[i] = NewBox(p, ones)
		}
		return boxes
	default:
		return nil
	}
}

// Size returns the number of elements the selection covers against dims.
func (s Selection) Size(dims []int64) int64 {
	if s.Kind == KindPoints {
		return int64(len(s.Points))
	}
	var total int64
	for _, b := range s.effectiveBoxes(dims) {
		total += b.Size()
	}
	return total
}

// PointAt returns the k-th selected point in the selection's iteration
// order: Points kind walks its stored list (preserving construction
// order), Hyperslab/All kind walks Blocks/extent in ascending order and
// each block in row-major order.
func (s Selection) PointAt(dims []int64, k int64) ([]int64, bool) {
	if s.Kind == KindPoints {
		if k < 0 || k >= int64(len(s.Points)) {
			return nil, false
		}
		return s.Points[k], true
	}
	for _, b := range s.effectiveBoxes(dims) {
		sz := b.Size()
		if k < sz {
			return rowMajorPoint(b, k)
		}
		k -= sz
	}
	return nil, false
}

// IndexOf is the inverse of PointAt: the rank of point p in the
// selection's iteration order.
func (s Selection) IndexOf(dims []int64, p []int64) (int64, bool) {
	if s.Kind == KindPoints {
		for i, q := range s.Points {
			if equalPoint(p, q) {
				return int64(i), true
			}
		}
		return 0, false
	}
	var base int64
	for _, b := range s.effectiveBoxes(dims) {
		if idx, ok := rowMajorIndex(b, p); ok {
			return base + idx, true
		}
		base += b.Size()
	}
	return 0, false
}

func equalPoint(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// intersectionBoxes returns the disjoint list of boxes common to both
// selections. Because each selection's own boxes are already pairwise
// disjoint, the cross-product of nonempty pairwise intersections is
// automatically pairwise disjoint too -- no renormalization needed.
//
// The result is sorted by Start in row-major (lexicographic) order before
// it is returned. Two callers that intersect the same pair of selections
// but swap which one is a and which is b (ProjectIntersection(x, _, y) vs
// ProjectIntersection(y, _, x)) enumerate the identical set of geometric
// boxes via a transposed outer/inner loop, which without this sort would
// hand the two calls' point enumerations different orders whenever some
// a-b pairs are empty -- and callers that pair up two such projections'
// point selections element-by-element (internal/dataset.Store.Read,
// internal/rankserver.handleData) need the same box, hence the same
// point, at the same position in both.
func intersectionBoxes(aSel Selection, aDims []int64, bSel Selection, bDims []int64) []Box {
	var out []Box
	for _, ab := range aSel.effectiveBoxes(aDims) {
		for _, bb := range bSel.effectiveBoxes(bDims) {
			if ov, ok := ab.Intersect(bb); ok {
				out = append(out, ov)
			}
		}
	}
	sortBoxesByStart(out)
	return out
}

// sortBoxesByStart sorts boxes in place by lexicographic comparison of
// Start, giving a canonical order independent of the order their inputs
// were enumerated in.
func sortBoxesByStart(boxes []Box) {
	sort.Slice(boxes, func(i, j int) bool {
		a, b := boxes[i].Start, boxes[j].Start
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return len(a) < len(b)
	})
}
