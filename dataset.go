package lowfive

import (
	"context"

	"github.com/diatomic/lowfive/internal/dataset"
	"github.com/diatomic/lowfive/internal/errs"
	"github.com/diatomic/lowfive/internal/policy"
	"github.com/diatomic/lowfive/internal/rankclient"
	"github.com/diatomic/lowfive/internal/space"
	"github.com/diatomic/lowfive/internal/tree"
	"github.com/diatomic/lowfive/internal/wire"
)

// Dataset is a handle onto a dataset node: a tree.Dataset plus (when the
// node is resolved, not a dummy) the dataset.Store backing its triple log
// (spec.md §3 "Dataset", §4.C).
type Dataset struct {
	group *Group
	node  *tree.Dataset
	store *dataset.Store

	// remote is set for a dummy dataset opened on the consumer side: reads
	// go through rankclient instead of a local store (spec.md §4.D "read
	// from a dummy dataset uses the query client").
	remote *remoteDataset
}

type remoteDataset struct {
	client *rankclient.Client
	id     wire.DatasetID
	typ    space.Datatype
}

// CreateDataset declares a new dataset of the given type and shape under
// group (spec.md §4.C, §4.D dataset create). ownership selects the default
// policy for subsequent Write calls; the zerocopy glob policy overrides it
// to Borrowed regardless of what the caller passes (spec.md §4.H).
func (g *Group) CreateDataset(name string, typ space.Datatype, dims, maxdims []int64, ownership dataset.Ownership) (*Dataset, error) {
	_, parentPath := g.path()
	childPath := joinPath(parentPath, name)

	declared, err := space.NewSimpleWithMax(dims, maxdimsOrDims(dims, maxdims))
	if err != nil {
		return nil, errs.WrapMetadata("lowfive: create_dataset: build dataspace", err)
	}

	if g.file.core.matchKind(g.file.Filename(), childPath, policy.Zerocopy, false) {
		ownership = dataset.Borrowed
	}

	node := tree.NewDataset(name, false)
	store := dataset.NewStore(declared, typ, ownership)
	node.Store = store
	if err := tree.AddChild(g.obj, node); err != nil {
		return nil, errs.WrapMetadata("lowfive: create_dataset", err)
	}
	g.file.node.Intern(node)

	if g.file.core.matchKind(g.file.Filename(), childPath, policy.Passthru, false) && g.file.passthru != nil {
		if err := g.file.passthru.CreateDataset(childPath, typ, dims); err != nil {
			return nil, errs.WrapResource("lowfive: passthru create_dataset", err)
		}
	}
	return &Dataset{group: g, node: node, store: store}, nil
}

func (d *Dataset) treeObj() tree.Object { return d.node }

// CreateAttribute attaches an attribute directly to this dataset (spec.md
// §4.D attribute create).
func (d *Dataset) CreateAttribute(name string, typ space.Datatype, dims []int64) (*Attribute, error) {
	return CreateAttribute(d.group.file, d.node, name, typ, dims)
}

func maxdimsOrDims(dims, maxdims []int64) []int64 {
	if maxdims != nil {
		return maxdims
	}
	return dims
}

// OpenDataset resolves a dataset by name under group. If it cannot be
// resolved in memory, it returns a dummy dataset whose reads are served by
// the query client over client (spec.md §4.D "Edge cases"); pass a nil
// client for a memory-only/passthru-only open.
func (g *Group) OpenDataset(name string, client *rankclient.Client) (*Dataset, error) {
	node, remainder, exact := tree.Search(g.obj, name)
	if exact {
		ds, ok := node.(*tree.Dataset)
		if !ok {
			return nil, errs.NewMetadata("lowfive: open_dataset: " + name + " is not a dataset")
		}
		store, _ := ds.Store.(*dataset.Store)
		return &Dataset{group: g, node: ds, store: store}, nil
	}

	dummy := tree.NewDataset(remainder, true)
	if err := tree.AddChild(node, dummy); err != nil {
		return nil, errs.WrapMetadata("lowfive: open_dataset (dummy)", err)
	}
	g.file.node.Intern(dummy)
	d := &Dataset{group: g, node: dummy}
	if client != nil {
		ctx := context.Background()
		id, err := client.ResolveID(ctx, name)
		if err != nil {
			return nil, err
		}
		typ, _, err := client.Dimension(ctx, id)
		if err != nil {
			return nil, err
		}
		d.remote = &remoteDataset{client: client, id: id, typ: typ}
	}
	return d, nil
}

// Write records a write triple (spec.md §4.C "Write"); only valid for a
// resolved (non-dummy, non-remote) dataset.
func (d *Dataset) Write(typ space.Datatype, memspace, filespace *space.Dataspace, buf []byte) error {
	if d.store == nil {
		return errs.NewMetadata("lowfive: write: dataset is not resolved in memory")
	}
	return d.store.Write(typ, memspace, filespace, buf, d.store.Policy())
}

// Read fills out by replaying the local triple log (resolved dataset) or
// by querying the producer over the query client (dummy dataset opened
// for remote reads) — spec.md §4.C "Read" / §4.G.
func (d *Dataset) Read(typ space.Datatype, memspace, filespace *space.Dataspace, out []byte) error {
	if d.store != nil {
		return d.store.Read(typ, memspace, filespace, out)
	}
	if d.remote != nil {
		elemSize := int64(d.remote.typ.Size)
		return d.remote.client.Read(context.Background(), d.remote.id, filespace, memspace, elemSize, out)
	}
	return errs.NewMetadata("lowfive: read: dataset has neither a local store nor a query client")
}

// WriteStrings interns vals into the dataset's string table and writes
// the resulting intern-index buffer as a triple covering memspace/filespace
// (spec.md §4.C variable-length string handling, exercised end-to-end by
// spec.md §8 S5). typ must be space.VLString; only valid for a resolved
// (non-dummy, non-remote) dataset.
func (d *Dataset) WriteStrings(typ space.Datatype, memspace, filespace *space.Dataspace, vals []string) error {
	if d.store == nil {
		return errs.NewMetadata("lowfive: write_strings: dataset is not resolved in memory")
	}
	if !typ.VarLen {
		return errs.NewMetadata("lowfive: write_strings: type is not variable-length")
	}
	return d.Write(typ, memspace, filespace, d.store.InternStrings(vals))
}

// ReadStrings replays the local triple log into an intern-index buffer and
// resolves it back into strings via the dataset's string table. Only valid
// for a resolved (non-dummy) dataset: remote reads have no local access to
// the producer's string table, so there is no way to resolve indices
// fetched from a dummy dataset into values.
func (d *Dataset) ReadStrings(typ space.Datatype, memspace, filespace *space.Dataspace) ([]string, error) {
	if d.store == nil {
		return nil, errs.NewMetadata("lowfive: read_strings: dataset is not resolved in memory")
	}
	if !typ.VarLen {
		return nil, errs.NewMetadata("lowfive: read_strings: type is not variable-length")
	}
	raw := make([]byte, filespace.Size()*int64(typ.Size))
	if err := d.store.Read(typ, memspace, filespace, raw); err != nil {
		return nil, err
	}
	vals, err := d.store.ResolveStrings(raw)
	if err != nil {
		return nil, errs.WrapMetadata("lowfive: read_strings: resolve intern indices", err)
	}
	return vals, nil
}

// SetExtent updates the dataset's current extent (spec.md §4.C `set_extent`).
func (d *Dataset) SetExtent(sizes []int64) error {
	if d.store == nil {
		return errs.NewMetadata("lowfive: set_extent: dataset is not resolved in memory")
	}
	return d.store.SetExtent(sizes)
}

// Space returns the dataset's declared dataspace (spec.md §4.D "dataset
// get (space...)").
func (d *Dataset) Space() (*space.Dataspace, error) {
	if d.store != nil {
		return d.store.Declared(), nil
	}
	return nil, errs.NewMetadata("lowfive: get_space: dataset is not resolved in memory")
}

// Type returns the dataset's element datatype (spec.md §4.D "dataset get
// (...type...)").
func (d *Dataset) Type() (space.Datatype, error) {
	if d.store != nil {
		return d.store.Type(), nil
	}
	if d.remote != nil {
		return d.remote.typ, nil
	}
	return space.Datatype{}, errs.NewMetadata("lowfive: get_type: dataset has no resolved type")
}

// IsDummy reports whether this handle is a placeholder for an
// as-yet-unresolved path (spec.md §4.D "Edge cases").
func (d *Dataset) IsDummy() bool { return d.node.IsDummy() }

// LocalTriples adapts the dataset's store into internal/rankserver's
// LocalTriple shape, for wiring into a Server's DatasetInfo (spec.md §4.F
// "Data assembly").
func (d *Dataset) localTriples() []localTripleView {
	if d.store == nil {
		return nil
	}
	triples := d.store.Triples()
	out := make([]localTripleView, len(triples))
	for i, t := range triples {
		out[i] = localTripleView{File: t.File.Space, Memory: t.Memory.Space, Buf: t.Buf}
	}
	return out
}

type localTripleView struct {
	File   *space.Dataspace
	Memory *space.Dataspace
	Buf    []byte
}
