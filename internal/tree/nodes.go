package tree

import "sync"

// File is the root Object of a tree (spec.md §3 "File"). It owns the
// per-file token table used to resolve cross-file references (spec.md §9
// "Cross-file object references") without creating new ownership.
type File struct {
	Base
	mu     sync.RWMutex
	tokens map[Token]Object
	Keep   bool // spec.md §4.I: tree survives file_close when true
}

func (f *File) base() *Base { return &f.Base }

// NewFile creates a root object. name is the filename.
func NewFile(name string) *File {
	f := &File{Base: newBase(name, KindFile, false), tokens: make(map[Token]Object)}
	return f
}

// Intern registers o in this file's token table (minting happens once, at
// construction, via Base.token; Intern just makes the token look-up-able).
func (f *File) Intern(o Object) Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[o.Token()] = o
	return o.Token()
}

// Resolve looks up a token previously interned in this file. It never
// creates ownership: the returned Object is still owned by its parent.
func (f *File) Resolve(t Token) (Object, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	o, ok := f.tokens[t]
	return o, ok
}

// Group is an interior container node (spec.md §3).
type Group struct{ Base }

func (g *Group) base() *Base { return &g.Base }

// NewGroup creates a group node. dummy marks a placeholder created by an
// open of an as-yet-unresolved path (spec.md §4.D "Edge cases").
func NewGroup(name string, dummy bool) *Group {
	return &Group{Base: newBase(name, KindGroup, dummy)}
}

// Dataset is a leaf node carrying a dataset.Store; the store itself lives
// in package dataset to avoid an import cycle (tree -> dataset would be
// natural, but dataset needs nothing from tree, so the dependency points
// the other way: lowfive wires a *dataset.Store into this field).
type Dataset struct {
	Base
	Store interface{} // *dataset.Store, set by package lowfive
}

func (d *Dataset) base() *Base { return &d.Base }

// NewDataset creates a dataset node.
func NewDataset(name string, dummy bool) *Dataset {
	return &Dataset{Base: newBase(name, KindDataset, dummy)}
}

// Attribute is a named, typed, single-triple node attached to a File,
// Group or Dataset.
type Attribute struct {
	Base
	Store interface{} // *dataset.Store holding the attribute's one triple
}

func (a *Attribute) base() *Base { return &a.Base }

// NewAttribute creates an attribute node.
func NewAttribute(name string) *Attribute {
	return &Attribute{Base: newBase(name, KindAttribute, false)}
}

// NamedType is a committed datatype object.
type NamedType struct {
	Base
	Datatype interface{} // *space.Datatype
}

func (n *NamedType) base() *Base { return &n.Base }

// NewNamedType creates a committed-type node.
func NewNamedType(name string) *NamedType {
	return &NamedType{Base: newBase(name, KindNamedType, false)}
}

// HardLink aliases another Object already owned elsewhere in the tree.
type HardLink struct {
	Base
	Target Object
}

func (l *HardLink) base() *Base { return &l.Base }

// NewHardLink creates a hard link node pointing at target.
func NewHardLink(name string, target Object) *HardLink {
	return &HardLink{Base: newBase(name, KindHardLink, false), Target: target}
}

// SoftLink stores a path to resolve lazily (it may dangle).
type SoftLink struct {
	Base
	TargetPath string
}

func (l *SoftLink) base() *Base { return &l.Base }

// NewSoftLink creates a soft link node pointing at targetPath.
func NewSoftLink(name, targetPath string) *SoftLink {
	return &SoftLink{Base: newBase(name, KindSoftLink, false), TargetPath: targetPath}
}
