package lowfive

import (
	"github.com/diatomic/lowfive/internal/dataset"
	"github.com/diatomic/lowfive/internal/errs"
	"github.com/diatomic/lowfive/internal/policy"
	"github.com/diatomic/lowfive/internal/space"
	"github.com/diatomic/lowfive/internal/tree"
)

// Attribute is a handle onto a named, single-triple node attached to a
// File, Group or Dataset (spec.md §3 "Attribute"). objPath is the absolute
// path of the object the attribute is attached to, used to route passthru
// forwarding to the right diskhdf5 handle on Write.
type Attribute struct {
	file    *File
	obj     tree.Object
	node    *tree.Attribute
	store   *dataset.Store
	objPath string
}

// CreateAttribute creates name as a single-element dataset attached to
// obj, or returns the existing attribute if one by that name is already
// present (spec.md §4.D "Attribute create against an already-existing
// attribute returns the existing node").
func CreateAttribute(file *File, obj tree.Object, name string, typ space.Datatype, dims []int64) (*Attribute, error) {
	_, objPath := tree.Fullname(obj)
	if existing, ok := findAttribute(obj, name); ok {
		store, _ := existing.Store.(*dataset.Store)
		return &Attribute{file: file, obj: obj, node: existing, store: store, objPath: objPath}, nil
	}

	declared, err := space.NewSimple(dims)
	if err != nil {
		return nil, errs.WrapMetadata("lowfive: create_attribute: build dataspace", err)
	}
	node := tree.NewAttribute(name)
	store := dataset.NewStore(declared, typ, dataset.Owned)
	node.Store = store
	if err := tree.AddChild(obj, node); err != nil {
		return nil, errs.WrapMetadata("lowfive: create_attribute", err)
	}
	file.node.Intern(node)
	return &Attribute{file: file, obj: obj, node: node, store: store, objPath: objPath}, nil
}

func findAttribute(obj tree.Object, name string) (*tree.Attribute, bool) {
	for _, c := range obj.Children() {
		if a, ok := c.(*tree.Attribute); ok && a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

// Exists reports whether obj has an attribute named name (spec.md §4.D
// "attribute... exists").
func Exists(obj tree.Object, name string) bool {
	_, ok := findAttribute(obj, name)
	return ok
}

// Write records the attribute's one data triple, always deep-copied
// (attributes have no zerocopy/borrowed distinction in spec.md §3), and
// forwards it to the passthru backend when this attribute's owning object
// routes there (spec.md §4.D "forwards to the passthru backend"): this is
// diskhdf5's only entry point for dense attribute storage (fractal heap +
// B-tree v2), reached automatically once an object accumulates
// diskhdf5.MaxCompactAttributes attributes.
func (a *Attribute) Write(typ space.Datatype, buf []byte) error {
	full := a.store.Declared()
	if err := a.store.Write(typ, full, full, buf, dataset.Owned); err != nil {
		return err
	}

	childPath := joinPath(a.objPath, a.node.Name())
	if a.file.core.matchKind(a.file.Filename(), childPath, policy.Passthru, false) && a.file.passthru != nil {
		dims := full.Dims
		if err := a.file.passthru.WriteAttribute(a.objPath, a.node.Name(), typ, dims, buf); err != nil {
			return errs.WrapResource("lowfive: passthru write_attribute", err)
		}
	}
	return nil
}

// Read fills out with the attribute's current value.
func (a *Attribute) Read(typ space.Datatype, out []byte) error {
	full := a.store.Declared()
	return a.store.Read(typ, full, full, out)
}

// WriteStrings interns vals into the attribute's string table and records
// the resulting intern-index buffer as the attribute's one data triple
// (spec.md §4.C "For variable-length strings, intern each string... and
// store intern indices in the buffer", exercised end-to-end by spec.md §8
// S5). typ must be space.VLString.
func (a *Attribute) WriteStrings(typ space.Datatype, vals []string) error {
	if !typ.VarLen {
		return errs.NewMetadata("lowfive: write_strings: type is not variable-length")
	}
	return a.Write(typ, a.store.InternStrings(vals))
}

// ReadStrings reads the attribute's current intern-index buffer and
// resolves it back into strings via the attribute's string table.
func (a *Attribute) ReadStrings(typ space.Datatype) ([]string, error) {
	if !typ.VarLen {
		return nil, errs.NewMetadata("lowfive: read_strings: type is not variable-length")
	}
	full := a.store.Declared()
	raw := make([]byte, full.Size()*int64(typ.Size))
	if err := a.store.Read(typ, full, full, raw); err != nil {
		return nil, err
	}
	vals, err := a.store.ResolveStrings(raw)
	if err != nil {
		return nil, errs.WrapMetadata("lowfive: read_strings: resolve intern indices", err)
	}
	return vals, nil
}

// Iterate calls fn once for every attribute attached to obj, in tree
// order, passing each one's name (spec.md §4.D "attr_iterate").
//
// Unlike the real VOL callback (which must hand the user a live HDF5
// object handle wrapping a temporary external reference -- spec.md §4.D
// "the dispatcher wraps the metadata handle in a temporary external
// handle... increments its reference... then releases"), no such external
// handle exists here: there is no bound VOL C table in this module to
// register a reference against (see DESIGN.md), so fn receives the
// *Attribute handle directly. The temporary/refcount dance this replaces
// is therefore a no-op, not a dropped feature.
func Iterate(obj tree.Object, file *File, fn func(*Attribute) error) error {
	_, objPath := tree.Fullname(obj)
	for _, c := range obj.Children() {
		node, ok := c.(*tree.Attribute)
		if !ok {
			continue
		}
		store, _ := node.Store.(*dataset.Store)
		if err := fn(&Attribute{file: file, obj: obj, node: node, store: store, objPath: objPath}); err != nil {
			return err
		}
	}
	return nil
}
