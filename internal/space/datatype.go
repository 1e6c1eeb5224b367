package space

// Class is the datatype class tag (spec.md §3 "Datatype").
type Class uint8

const (
	ClassInteger Class = iota
	ClassFloat
	ClassString
	ClassCompound
	ClassOpaque
	ClassReference
)

// Datatype is an element type: a class tag, its byte size, and whether it
// is a variable-length string (which the triple store handles by
// interning into a per-dataset string table rather than storing bytes
// inline -- spec.md §3 "Data triple").
type Datatype struct {
	Class  Class
	Size   int
	VarLen bool
}

// Equal compares class, size and variable-length-ness; spec.md §3 says
// datatype equality is exactly this (no value-level comparison).
func (t Datatype) Equal(o Datatype) bool {
	return t.Class == o.Class && t.Size == o.Size && t.VarLen == o.VarLen
}

// Common element types used across the test scenarios and examples.
var (
	Int32    = Datatype{Class: ClassInteger, Size: 4}
	Int64    = Datatype{Class: ClassInteger, Size: 8}
	Float32  = Datatype{Class: ClassFloat, Size: 4}
	Float64  = Datatype{Class: ClassFloat, Size: 8}
	VLString = Datatype{Class: ClassString, Size: 8, VarLen: true} // size = intern-index width
)
