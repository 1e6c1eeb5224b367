package lowfive

import (
	"github.com/diatomic/lowfive/internal/errs"
	"github.com/diatomic/lowfive/internal/policy"
	"github.com/diatomic/lowfive/internal/rankclient"
	"github.com/diatomic/lowfive/internal/tree"
)

// File is the root handle of an open LowFive file: a tree.File plus the
// Core it was opened through (spec.md §3 "File", §4.I "external/metadata
// handle pairs"). passthru is nil for a memory-only open; non-nil once a
// passthru backend has been opened alongside it.
type File struct {
	core     *Core
	node     *tree.File
	passthru *passthruFile
}

// Create opens a brand-new file (spec.md §4.D file create): a fresh tree
// root, plus a passthru-backed file if the glob policy routes this
// filename's root path there.
func Create(core *Core, filename string) (*File, error) {
	node := tree.NewFile(filename)
	node.Keep = core.matchKind(filename, "/", policy.Keep, core.keepDefault)
	f := &File{core: core, node: node}

	if core.matchKind(filename, "/", policy.Passthru, false) {
		pt, err := createPassthruFile(filename, core.passthruCfg)
		if err != nil {
			return nil, errs.WrapResource("lowfive: create passthru file", err)
		}
		f.passthru = pt
	}
	return f, nil
}

// Open resolves an existing filename. Per spec.md §9/SPEC_FULL.md's Open
// Question 1 resolution, a memory-only Core has nothing to "reopen" — this
// constructor exists for the consumer side, where the file is always a
// fresh dummy tree populated lazily by dataset opens (spec.md §2 "Data
// flow... builds a dummy tree populated lazily").
func Open(core *Core, filename string) *File {
	node := tree.NewFile(filename)
	return &File{core: core, node: node}
}

// Root returns the file's root group.
func (f *File) Root() *Group {
	return &Group{file: f, obj: f.node}
}

// Filename returns the file's name.
func (f *File) Filename() string { return f.node.Name() }

// Resolve looks up a token minted by this file (spec.md §4.A `fill_token`
// resolution through the file-scoped table).
func (f *File) Resolve(t tree.Token) (tree.Object, bool) { return f.node.Resolve(t) }

// QueryClient builds the consumer-side query driver for this file's
// inter-communicator at intercommIndex (spec.md §4.G): rank is this
// consumer's rank within the consumer group, maxInFlight bounds concurrent
// `data` requests. OpenDataset's client argument is constructed this way.
func (f *File) QueryClient(rank, intercommIndex int, maxInFlight int64) (*rankclient.Client, error) {
	inter, ok := f.core.Intercomm(f.Filename(), intercommIndex)
	if !ok {
		return nil, errs.NewProtocol("lowfive: query_client: no intercomm registered for " + f.Filename())
	}
	return rankclient.New(rank, inter, maxInFlight), nil
}

// Close releases the file's passthru handle, if any; the in-memory tree
// survives until garbage collected unless Keep was set to false and the
// Core wants to aggressively drop it, which this module does not do (the
// tree has no explicit free beyond ordinary GC, per spec.md §4.I "the tree
// node lives on until the owning File is destroyed").
func (f *File) Close() error {
	if f.passthru != nil {
		return f.passthru.Close()
	}
	return nil
}
