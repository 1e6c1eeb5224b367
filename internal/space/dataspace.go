package space

import "fmt"

// Unbounded marks a dimension whose maximum size is not fixed (spec.md §3,
// "per-dimension maximum size (possibly unbounded)").
const Unbounded int64 = -1

// MaxDims is the limit spec.md §3 puts on dataspace rank.
const MaxDims = 32

// Dataspace is a bounded selection over an N-dimensional integer grid
// (spec.md §3). It is the unit of both the wire protocol's `dimension`
// payload and the core's read/write replay algebra.
type Dataspace struct {
	Dims    []int64
	MaxDims []int64
	Sel     Selection
}

// NewSimple returns a dataspace of the given current extent, selected in
// full (MaxDims equal to Dims: not resizable).
func NewSimple(dims []int64) (*Dataspace, error) {
	return NewSimpleWithMax(dims, dims)
}

// NewSimpleWithMax returns a dataspace with distinct current/maximum
// extents; pass space.Unbounded for a dimension with no maximum.
func NewSimpleWithMax(dims, maxdims []int64) (*Dataspace, error) {
	if len(dims) == 0 || len(dims) > MaxDims {
		return nil, fmt.Errorf("space: rank %d out of range [1,%d]", len(dims), MaxDims)
	}
	if len(maxdims) != len(dims) {
		return nil, fmt.Errorf("space: maxdims rank %d != dims rank %d", len(maxdims), len(dims))
	}
	d := &Dataspace{
		Dims:    append([]int64(nil), dims...),
		MaxDims: append([]int64(nil), maxdims...),
		Sel:     AllSelection(),
	}
	return d, nil
}

// Rank returns the dataspace's dimensionality.
func (d *Dataspace) Rank() int { return len(d.Dims) }

// SelectAll resets the selection to cover the whole current extent.
func (d *Dataspace) SelectAll() { d.Sel = AllSelection() }

// SelectNone empties the selection.
func (d *Dataspace) SelectNone() { d.Sel = NoneSelection() }

// SelectHyperslab replaces the selection with a single box.
func (d *Dataspace) SelectHyperslab(start, count []int64) error {
	if err := d.validateBox(start, count); err != nil {
		return err
	}
	d.Sel = NewHyperslab(NewBox(start, count))
	return nil
}

// SelectHyperslabOr unions another box into the current hyperslab
// selection (HDF5's H5S_SELECT_OR).
func (d *Dataspace) SelectHyperslabOr(start, count []int64) error {
	if err := d.validateBox(start, count); err != nil {
		return err
	}
	if d.Sel.Kind != KindHyperslab {
		d.Sel = Selection{Kind: KindHyperslab}
	}
	d.Sel.UnionBox(NewBox(start, count))
	return nil
}

// SelectPoints replaces the selection with an explicit point set.
func (d *Dataspace) SelectPoints(points [][]int64) error {
	for _, p := range points {
		if len(p) != d.Rank() {
			return fmt.Errorf("space: point rank %d != dataspace rank %d", len(p), d.Rank())
		}
	}
	d.Sel = NewPoints(points...)
	return nil
}

func (d *Dataspace) validateBox(start, count []int64) error {
	if len(start) != d.Rank() || len(count) != d.Rank() {
		return fmt.Errorf("space: selection rank mismatch (have %d, want %d)", len(start), d.Rank())
	}
	for i := range start {
		if start[i] < 0 || count[i] < 0 || start[i]+count[i] > d.Dims[i] {
			return fmt.Errorf("space: selection [%d,%d) out of bounds in dim %d (extent %d)",
				start[i], start[i]+count[i], i, d.Dims[i])
		}
	}
	return nil
}

// Size returns the selected element count (spec.md §4.B `size()`).
func (d *Dataspace) Size() int64 { return d.Sel.Size(d.Dims) }

// Intersects reports whether the two dataspaces' selections overlap when
// read against the same coordinate domain (spec.md §4.B `intersects`).
func (d *Dataspace) Intersects(o *Dataspace) bool {
	if d.Rank() != o.Rank() {
		return false
	}
	return len(intersectionBoxes(d.Sel, d.Dims, o.Sel, o.Dims)) > 0
}

// BoundingBox returns the smallest box containing the whole selection,
// used by the spatial index to find which tiles a query touches.
func (d *Dataspace) BoundingBox() (Box, bool) {
	boxes := d.Sel.effectiveBoxes(d.Dims)
	if len(boxes) == 0 {
		return Box{}, false
	}
	bb := boxes[0].Clone()
	for _, b := range boxes[1:] {
		end := bb.End()
		bend := b.End()
		for i := range bb.Start {
			if b.Start[i] < bb.Start[i] {
				bb.Start[i] = b.Start[i]
			}
			if bend[i] > end[i] {
				end[i] = bend[i]
			}
		}
		for i := range bb.Count {
			bb.Count[i] = end[i] - bb.Start[i]
		}
	}
	return bb, true
}

// SetExtent updates the current extent in place (spec.md §4.C
// `set_extent`); callers must check new sizes against MaxDims and against
// any recorded triple before calling this (the store does, per the §9
// Open Question resolution: reject rather than guess).
func (d *Dataspace) SetExtent(sizes []int64) error {
	if len(sizes) != d.Rank() {
		return fmt.Errorf("space: set_extent rank %d != dataspace rank %d", len(sizes), d.Rank())
	}
	for i, sz := range sizes {
		if d.MaxDims[i] != Unbounded && sz > d.MaxDims[i] {
			return fmt.Errorf("space: set_extent dim %d size %d exceeds max %d", i, sz, d.MaxDims[i])
		}
	}
	d.Dims = append([]int64(nil), sizes...)
	if d.Sel.Kind == KindAll {
		// nothing to do: All tracks the extent implicitly.
		return nil
	}
	return nil
}

// Clone returns a deep copy.
func (d *Dataspace) Clone() *Dataspace {
	c := &Dataspace{
		Dims:    append([]int64(nil), d.Dims...),
		MaxDims: append([]int64(nil), d.MaxDims...),
		Sel:     d.Sel,
	}
	c.Sel.Blocks = append([]Box(nil), d.Sel.Blocks...)
	c.Sel.Points = append([][]int64(nil), d.Sel.Points...)
	return c
}

// ProjectIntersection returns a dataspace shaped like dst's selection,
// restricted to the part of dst whose corresponding src element lies in
// region ∩ src (spec.md §4.B). src and region must share a coordinate
// domain (both describe the same dataset's file-space); dst may have an
// unrelated shape as long as its element count matches src's -- exactly
// HDF5's requirement that a hyperslab read/write pairs two equally-sized
// selections element-for-element.
//
// The projection is computed one element at a time: for every point in
// region ∩ src, find its rank k in src's iteration order, then take the
// k-th point of dst. This is the direct, literal reading of the spec and
// is cheap enough for the selection sizes this module targets; a
// production deployment would delegate to the real HDF5 library's
// optimized H5S algebra (spec.md §1 calls this an external oracle).
func ProjectIntersection(src, dst, region *Dataspace) (*Dataspace, error) {
	if src.Rank() != region.Rank() {
		return nil, fmt.Errorf("space: project_intersection src/region rank mismatch (%d vs %d)", src.Rank(), region.Rank())
	}
	if src.Size() != dst.Size() {
		return nil, fmt.Errorf("space: project_intersection src/dst size mismatch (%d vs %d)", src.Size(), dst.Size())
	}

	inter := intersectionBoxes(src.Sel, src.Dims, region.Sel, region.Dims)
	result := &Dataspace{
		Dims:    append([]int64(nil), dst.Dims...),
		MaxDims: append([]int64(nil), dst.MaxDims...),
	}
	if len(inter) == 0 {
		result.Sel = NoneSelection()
		return result, nil
	}

	var pts [][]int64
	for _, box := range inter {
		for k := int64(0); k < box.Size(); k++ {
			p, _ := rowMajorPoint(box, k)
			srcIdx, ok := src.Sel.IndexOf(src.Dims, p)
			if !ok {
				continue
			}
			dstPt, ok := dst.Sel.PointAt(dst.Dims, srcIdx)
			if !ok {
				continue
			}
			pts = append(pts, dstPt)
		}
	}
	result.Sel = NewPoints(pts...)
	return result, nil
}
