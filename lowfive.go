// Package lowfive is an in-situ, distributed, HDF5-compatible data-coupling
// layer: producer ranks write datasets into an in-memory object tree instead
// of (or in addition to) a file, consumer ranks open the same logical file
// and read from the producer directly over a message-passing communicator,
// and a glob-based policy decides, per path, whether a given object is
// served from memory, forwarded to a real HDF5 file, or both (spec.md §1-2).
package lowfive

import (
	"github.com/diatomic/lowfive/internal/errs"
	"github.com/diatomic/lowfive/internal/space"
)

// MetadataError, ProtocolError and ResourceError are spec.md §7's three
// error categories. They are defined in internal/errs (not here) because
// internal/tree, internal/space, internal/dataset, internal/rankserver and
// internal/rankclient all need to construct them and cannot import this
// package without creating an import cycle; aliasing them here keeps the
// public API exactly what spec.md §7 names while letting internal code
// build them directly (see DESIGN.md "internal/errs").
type (
	MetadataError = errs.MetadataError
	ProtocolError = errs.ProtocolError
	ResourceError = errs.ResourceError
)

// Dataspace, Datatype, Box and Class are the dataspace/datatype primitives
// of spec.md §4.B, re-exported so callers outside this module can describe
// a dataset's shape and element type without reaching into internal/space.
type (
	Dataspace = space.Dataspace
	Datatype  = space.Datatype
	Box       = space.Box
	Class     = space.Class
)

// Datatype class constants, re-exported from internal/space.
const (
	ClassInteger   = space.ClassInteger
	ClassFloat     = space.ClassFloat
	ClassString    = space.ClassString
	ClassCompound  = space.ClassCompound
	ClassOpaque    = space.ClassOpaque
	ClassReference = space.ClassReference
)

// Common element datatypes, re-exported from internal/space.
var (
	Int32    = space.Int32
	Int64    = space.Int64
	Float32  = space.Float32
	Float64  = space.Float64
	VLString = space.VLString
)

// NewSimple, NewBox and Unbounded are re-exported dataspace/box
// constructors so callers can build queries without an internal import.
var (
	NewSimple = space.NewSimple
	NewBox    = space.NewBox
)

// Unbounded marks a dimension with no maximum extent (spec.md §3 "maxdims").
const Unbounded = space.Unbounded
