// Package tree is the in-memory object hierarchy: files, groups, datasets,
// attributes, named types and links, with path resolution and token-based
// identity (spec.md §3 "Object", §4.A, §9 "Parent pointers").
package tree

import (
	"strings"

	"github.com/google/uuid"
)

// Kind tags the variant of an Object, matching spec.md §3's Object
// variants. Dummy placeholders are not separate Kinds: they are ordinary
// Group/Dataset nodes with Dummy set, which is the idiomatic Go way to
// express "same shape, different provenance" instead of doubling the type
// count (see DESIGN.md).
type Kind uint8

const (
	KindFile Kind = iota
	KindGroup
	KindDataset
	KindAttribute
	KindNamedType
	KindHardLink
	KindSoftLink
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindGroup:
		return "group"
	case KindDataset:
		return "dataset"
	case KindAttribute:
		return "attribute"
	case KindNamedType:
		return "named_type"
	case KindHardLink:
		return "hard_link"
	case KindSoftLink:
		return "soft_link"
	default:
		return "unknown"
	}
}

// Token is the stable 128-bit identity spec.md §3/§9 requires: it is
// minted once per object (a uuid.UUID, the collision-resistant analogue
// of "derived from process-local pointer identity") and never recomputed,
// so equality of tokens means object identity even across the file's
// token table.
type Token uuid.UUID

// NilToken is the zero value, used for tokens that have not been minted.
var NilToken Token

func newToken() Token { return Token(uuid.New()) }

// Object is a node of the tree. Parent is always a weak (non-owning)
// reference: children are owned by their parent's Children list, parents
// are never owned by children (spec.md §9).
type Object interface {
	Name() string
	Kind() Kind
	Parent() Object
	Children() []Object
	Token() Token
	IsDummy() bool
	IsContainer() bool

	setParent(Object)
	addChild(Object)
}

// Base implements the common fields every Object variant shares.
type Base struct {
	name     string
	kind     Kind
	parent   Object
	children []Object
	byName   map[string]Object
	token    Token
	dummy    bool
}

func newBase(name string, kind Kind, dummy bool) Base {
	return Base{
		name:  name,
		kind:  kind,
		token: newToken(),
		dummy: dummy,
	}
}

func (b *Base) Name() string    { return b.name }
func (b *Base) Kind() Kind      { return b.kind }
func (b *Base) Parent() Object  { return b.parent }
func (b *Base) Token() Token    { return b.token }
func (b *Base) IsDummy() bool   { return b.dummy }
func (b *Base) Children() []Object {
	return b.children
}

// IsContainer reports whether children may be added (File/Group only).
func (b *Base) IsContainer() bool {
	return b.kind == KindFile || b.kind == KindGroup
}

func (b *Base) setParent(p Object) {
	if b.parent != nil {
		panic("tree: object already has a parent; never reseat a parented node")
	}
	b.parent = p
}

func (b *Base) addChild(c Object) {
	if b.byName == nil {
		b.byName = make(map[string]Object)
	}
	b.children = append(b.children, c)
	b.byName[c.Name()] = c
}

func (b *Base) child(name string) (Object, bool) {
	c, ok := b.byName[name]
	return c, ok
}

// AddChild appends node as a child of parent (spec.md §4.A `add_child`).
// It fails if parent cannot hold children.
func AddChild(parent, node Object) error {
	if !parent.IsContainer() {
		return &ErrNotContainer{Parent: parent}
	}
	node.setParent(parent)
	parent.addChild(node)
	return nil
}

// ErrNotContainer reports an add_child call against a non-container node.
type ErrNotContainer struct{ Parent Object }

func (e *ErrNotContainer) Error() string {
	return "tree: " + e.Parent.Name() + " (" + e.Parent.Kind().String() + ") cannot hold children"
}

// Search resolves path against root (spec.md §4.A `search`): it returns
// the deepest object it could reach and the unresolved path remainder.
// exact is true only if the whole path resolved.
func Search(root Object, path string) (node Object, remainder string, exact bool) {
	segments := splitPath(path)
	cur := root
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		base, ok := asBase(cur)
		if !ok {
			return cur, strings.Join(segments[i:], "/"), false
		}
		next, ok := base.child(seg)
		if !ok {
			return cur, strings.Join(segments[i:], "/"), false
		}
		cur = next
	}
	return cur, "", true
}

// asBase extracts the *Base embedded in any Object, needed because Search
// walks children via the concrete node's map, which only Base exposes.
func asBase(o Object) (*Base, bool) {
	type baser interface{ base() *Base }
	if b, ok := o.(baser); ok {
		return b.base(), true
	}
	return nil, false
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Fullname walks parent pointers to compute the object's filename and
// absolute path (spec.md §4.A `fullname`).
func Fullname(o Object) (filename string, abspath string) {
	var segs []string
	cur := o
	var file Object
	for cur != nil {
		if cur.Kind() == KindFile {
			file = cur
			break
		}
		segs = append([]string{cur.Name()}, segs...)
		cur = cur.Parent()
	}
	if file != nil {
		filename = file.Name()
	}
	abspath = "/" + strings.Join(segs, "/")
	return filename, abspath
}
