package lowfive

import (
	"github.com/diatomic/lowfive/internal/errs"
	"github.com/diatomic/lowfive/internal/policy"
	"github.com/diatomic/lowfive/internal/space"
	"github.com/diatomic/lowfive/internal/tree"
)

// Group is a handle onto a container node: either the file's root or an
// interior group (spec.md §3 "Group"). obj is the concrete *tree.File or
// *tree.Group backing it.
type Group struct {
	file *File
	obj  tree.Object
}

// path returns this group's (filename, absolute-path) pair (spec.md §4.A
// `fullname`).
func (g *Group) path() (string, string) { return tree.Fullname(g.obj) }

// CreateGroup creates (or returns, per §4.D "Edge cases" for the common
// dummy/resolved ambiguity) a child group named name (spec.md §4.D group
// create).
func (g *Group) CreateGroup(name string) (*Group, error) {
	_, parentPath := g.path()
	childPath := joinPath(parentPath, name)

	child := tree.NewGroup(name, false)
	if err := tree.AddChild(g.obj, child); err != nil {
		return nil, errs.WrapMetadata("lowfive: create_group", err)
	}
	g.file.node.Intern(child)

	if g.file.core.matchKind(g.file.Filename(), childPath, policy.Passthru, false) && g.file.passthru != nil {
		if err := g.file.passthru.CreateGroup(childPath); err != nil {
			return nil, errs.WrapResource("lowfive: passthru create_group", err)
		}
	}
	return &Group{file: g.file, obj: child}, nil
}

// OpenGroup resolves a child group by name, creating a dummy placeholder
// if it is not yet present in the tree (spec.md §4.D "Open of a path not
// resolvable in memory yields a dummy node").
func (g *Group) OpenGroup(name string) (*Group, error) {
	node, remainder, exact := tree.Search(g.obj, name)
	if exact {
		grp, ok := node.(*tree.Group)
		if !ok {
			return nil, errs.NewMetadata("lowfive: open_group: " + name + " is not a group")
		}
		return &Group{file: g.file, obj: grp}, nil
	}
	dummy := tree.NewGroup(remainder, true)
	if err := tree.AddChild(node, dummy); err != nil {
		return nil, errs.WrapMetadata("lowfive: open_group (dummy)", err)
	}
	g.file.node.Intern(dummy)
	return &Group{file: g.file, obj: dummy}, nil
}

// linkTarget is implemented by Group and Dataset, the two façade handles
// CreateHardLink can alias.
type linkTarget interface {
	treeObj() tree.Object
}

func (g *Group) treeObj() tree.Object { return g.obj }

// CreateHardLink aliases target under this group as name (spec.md §4.D
// object tree, `tree.HardLink`): both names resolve to the same token and
// the same underlying data, matching HDF5's own hard-link semantics.
// target must already be resolved (not a dummy) since a hard link needs an
// address to alias; forwarded to the passthru backend
// (diskhdf5.FileWriter.CreateHardLink) when this group's file routes path
// there.
func (g *Group) CreateHardLink(name string, target linkTarget) (*tree.HardLink, error) {
	_, parentPath := g.path()
	childPath := joinPath(parentPath, name)
	_, targetPath := tree.Fullname(target.treeObj())

	link := tree.NewHardLink(name, target.treeObj())
	if err := tree.AddChild(g.obj, link); err != nil {
		return nil, errs.WrapMetadata("lowfive: create_hard_link", err)
	}
	g.file.node.Intern(link)

	if g.file.core.matchKind(g.file.Filename(), childPath, policy.Passthru, false) && g.file.passthru != nil {
		if err := g.file.passthru.CreateHardLink(childPath, targetPath); err != nil {
			return nil, errs.WrapResource("lowfive: passthru create_hard_link", err)
		}
	}
	return link, nil
}

// CreateSoftLink stores targetPath under this group as name, resolved
// lazily and possibly dangling (spec.md §4.D object tree, `tree.SoftLink`).
// Forwarded to the passthru backend (diskhdf5.FileWriter.CreateSoftLink)
// when this group's file routes path there.
func (g *Group) CreateSoftLink(name, targetPath string) (*tree.SoftLink, error) {
	_, parentPath := g.path()
	childPath := joinPath(parentPath, name)

	link := tree.NewSoftLink(name, targetPath)
	if err := tree.AddChild(g.obj, link); err != nil {
		return nil, errs.WrapMetadata("lowfive: create_soft_link", err)
	}
	g.file.node.Intern(link)

	if g.file.core.matchKind(g.file.Filename(), childPath, policy.Passthru, false) && g.file.passthru != nil {
		if err := g.file.passthru.CreateSoftLink(childPath, targetPath); err != nil {
			return nil, errs.WrapResource("lowfive: passthru create_soft_link", err)
		}
	}
	return link, nil
}

// CreateAttribute attaches an attribute directly to this group (spec.md
// §4.D attribute create; the package-level CreateAttribute also accepts a
// Dataset's node, see Dataset.CreateAttribute).
func (g *Group) CreateAttribute(name string, typ space.Datatype, dims []int64) (*Attribute, error) {
	return CreateAttribute(g.file, g.obj, name, typ, dims)
}

// joinPath appends name to an absolute parent path.
func joinPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}
