// Package dataset is the triple store of spec.md §4.C: a dataset's data is
// never a single contiguous buffer, it is a log of write triples, each a
// (memspace, filespace, buffer) region, replayed against a read's filespace
// in insertion order so later overlapping writes win (spec.md §3
// "last-write-wins for overlapping regions").
package dataset

import (
	"fmt"

	"github.com/diatomic/lowfive/internal/errs"
	"github.com/diatomic/lowfive/internal/space"
)

// Ownership selects whether a Write's buffer is copied into the triple or
// only referenced (spec.md §4.C).
type Ownership int

const (
	// Borrowed triples hold buf unchanged; the caller must keep it live
	// until the dataset closes or serving ends. Used by the zerocopy
	// policy (spec.md §4.H).
	Borrowed Ownership = iota
	// Owned triples deep-copy buf at write time.
	Owned
)

func (o Ownership) String() string {
	if o == Owned {
		return "owned"
	}
	return "borrowed"
}

// Triple is one recorded write: the memory-space and file-space selections
// active at write time, and the buffer holding the element data (spec.md §3
// "Data triple").
type Triple struct {
	Memory Elementwise
	File   Elementwise
	Buf    []byte
	Own    Ownership
}

// Elementwise pairs a dataspace with the element datatype it was written
// with, so later reads can check type-class/element-size compatibility
// (spec.md §4.C "Errors").
type Elementwise struct {
	Space *space.Dataspace
	Type  space.Datatype
}

// Store is the per-dataset state: its declared logical space, its element
// type, its ownership policy, the ordered triple log, and (for
// variable-length strings) the intern table (spec.md §4.C).
type Store struct {
	declared *space.Dataspace
	typ      space.Datatype
	policy   Ownership
	triples  []Triple
	strings  *stringTable
}

// NewStore creates a dataset store declared over space with element type
// typ, using the given default ownership policy for subsequent writes.
func NewStore(declared *space.Dataspace, typ space.Datatype, policy Ownership) *Store {
	s := &Store{declared: declared, typ: typ, policy: policy}
	if typ.VarLen {
		s.strings = newStringTable()
	}
	return s
}

// Declared returns the dataset's logical dataspace (current+max extent).
func (s *Store) Declared() *space.Dataspace { return s.declared }

// Type returns the dataset's element datatype.
func (s *Store) Type() space.Datatype { return s.typ }

// Policy returns the dataset's default write ownership (spec.md §4.C).
func (s *Store) Policy() Ownership { return s.policy }

// Write appends a triple covering memspace/filespace with data from buf,
// validating type and dimensionality against the declared space (spec.md
// §4.C "Write"). For variable-length strings, buf must already hold
// intern indices (callers use InternStrings first).
func (s *Store) Write(typ space.Datatype, memspace, filespace *space.Dataspace, buf []byte, own Ownership) error {
	if err := s.validateWrite(typ, filespace, buf); err != nil {
		return err
	}
	stored := buf
	if own == Owned {
		stored = make([]byte, len(buf))
		copy(stored, buf)
	}
	s.triples = append(s.triples, Triple{
		Memory: Elementwise{Space: memspace.Clone(), Type: typ},
		File:   Elementwise{Space: filespace.Clone(), Type: typ},
		Buf:    stored,
		Own:    own,
	})
	return nil
}

func (s *Store) validateWrite(typ space.Datatype, filespace *space.Dataspace, buf []byte) error {
	if typ.Class != s.typ.Class {
		return errs.NewMetadata(fmt.Sprintf("write: type class mismatch: dataset is %v, write is %v", s.typ.Class, typ.Class))
	}
	if typ.Size != s.typ.Size {
		return errs.NewMetadata(fmt.Sprintf("write: element-size mismatch: dataset element is %d bytes, write is %d", s.typ.Size, typ.Size))
	}
	if filespace.Rank() != s.declared.Rank() {
		return errs.NewMetadata(fmt.Sprintf("write: filespace rank %d does not match dataset rank %d", filespace.Rank(), s.declared.Rank()))
	}
	want := filespace.Size() * int64(typ.Size)
	if int64(len(buf)) < want {
		return errs.NewMetadata(fmt.Sprintf("write: buffer too short: need %d bytes for %d elements, got %d", want, filespace.Size(), len(buf)))
	}
	return nil
}

// Read replays the triple log against filespace into out, in insertion
// order so later overlapping writes win (spec.md §4.C "Read").
func (s *Store) Read(typ space.Datatype, memspace, filespace *space.Dataspace, out []byte) error {
	if typ.Class != s.typ.Class || typ.Size != s.typ.Size {
		return errs.NewMetadata("read: type mismatch against dataset element type")
	}
	if filespace.Rank() != s.declared.Rank() {
		return errs.NewMetadata(fmt.Sprintf("read: filespace rank %d does not match dataset rank %d", filespace.Rank(), s.declared.Rank()))
	}
	for _, t := range s.triples {
		dst, err := space.ProjectIntersection(filespace, memspace, t.File.Space)
		if err != nil {
			return errs.WrapMetadata("read: project_intersection(filespace, memspace, triple.file)", err)
		}
		if dst.Size() == 0 {
			continue
		}
		src, err := space.ProjectIntersection(t.File.Space, t.Memory.Space, filespace)
		if err != nil {
			return errs.WrapMetadata("read: project_intersection(triple.file, triple.memory, filespace)", err)
		}
		elemSize := int64(typ.Size)
		for _, pr := range space.IteratePaired(src, dst, elemSize) {
			if pr.Src.Offset+pr.Src.Length > int64(len(t.Buf)) {
				continue
			}
			if pr.Dst.Offset+pr.Dst.Length > int64(len(out)) {
				continue
			}
			copy(out[pr.Dst.Offset:pr.Dst.Offset+pr.Dst.Length], t.Buf[pr.Src.Offset:pr.Src.Offset+pr.Src.Length])
		}
	}
	return nil
}

// SetExtent updates the declared space's current extent (spec.md §4.C
// `set_extent`). Per SPEC_FULL.md Open Question 2, shrinking any dimension
// below an extent some recorded triple's file-space already reaches is
// rejected: existing triples are never touched or truncated, so a shrink
// that orphaned them would silently make reads lie about the dataset's
// bounds.
func (s *Store) SetExtent(sizes []int64) error {
	if len(sizes) != s.declared.Rank() {
		return errs.NewMetadata(fmt.Sprintf("set_extent: rank %d does not match dataset rank %d", len(sizes), s.declared.Rank()))
	}
	for i, sz := range sizes {
		if sz < s.declared.Dims[i] {
			if err := s.checkNoTripleBeyond(i, sz); err != nil {
				return err
			}
		}
	}
	return s.declared.SetExtent(sizes)
}

func (s *Store) checkNoTripleBeyond(dim int, newSize int64) error {
	for _, t := range s.triples {
		bb, ok := t.File.Space.BoundingBox()
		if !ok {
			continue
		}
		if dim < len(bb.Start) && bb.Start[dim]+bb.Count[dim] > newSize {
			return errs.NewMetadata(fmt.Sprintf("set_extent: dimension %d shrink to %d would orphan an existing triple reaching %d", dim, newSize, bb.Start[dim]+bb.Count[dim]))
		}
	}
	return nil
}

// NumTriples returns the number of recorded write triples, mainly for
// tests and the introspect CLI.
func (s *Store) NumTriples() int { return len(s.triples) }

// Triples returns the recorded write log, in insertion order, for callers
// outside the package that need to adapt it to another representation
// (internal/rankserver's LocalTriple, for the spatial index and the
// `data` message handler).
func (s *Store) Triples() []Triple { return s.triples }
