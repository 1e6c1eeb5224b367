package lowfive

import (
	"context"

	"github.com/diatomic/lowfive/internal/comm"
	"github.com/diatomic/lowfive/internal/dataset"
	"github.com/diatomic/lowfive/internal/decomp"
	"github.com/diatomic/lowfive/internal/errs"
	"github.com/diatomic/lowfive/internal/rankserver"
	"github.com/diatomic/lowfive/internal/space"
	"github.com/diatomic/lowfive/internal/tree"
	"github.com/diatomic/lowfive/internal/wire"
)

// sendDone writes a `done` message over ic (used by Core.SendDone).
func sendDone(ctx context.Context, ic comm.InterComm) error {
	payload, err := wire.EncodeToBytes(wire.WriteDone)
	if err != nil {
		return err
	}
	return errs.WrapProtocol("lowfive: send done", ic.Send(ctx, 0, comm.TagConsumer, payload))
}

// Serve runs the producer-side index/query server (spec.md §4.E/§4.F) for
// every resolved dataset reachable from f's root, over the
// inter-communicator registered for (f.Filename(), intercommIndex). It
// blocks until a `done` message completes the Ready/Serving/Terminated
// lifecycle.
//
// Index construction for a producer group of more than one rank is a
// genuine two-phase collective, not a per-dataset affair: every rank must
// finish issuing its record sends for every dataset before any rank can
// trust that draining its own inbox is exhaustive (rankserver.DrainExchange),
// so datasetInfo is built for all datasets first, then one intra.Barrier
// covers the whole batch, then one drain resolves every dataset's
// BoxLocations at once.
func (f *File) Serve(ctx context.Context, rank int, intercommIndex int) error {
	inter, ok := f.core.Intercomm(f.Filename(), intercommIndex)
	if !ok {
		return errs.NewProtocol("lowfive: serve: no intercomm registered for " + f.Filename())
	}
	intra := f.core.intra
	if intra == nil {
		return errs.NewProtocol("lowfive: serve: no intra-communicator registered (Core.SetIntraComm)")
	}

	datasets := collectDatasets(f.node)
	locationsByIdx := make(map[int]*decomp.BoxLocations, len(datasets))
	infos := make([]*rankserver.DatasetInfo, 0, len(datasets))
	for idx, ds := range datasets {
		info, locations, err := buildDatasetInfo(ctx, ds, rank, intra, idx)
		if err != nil {
			return err
		}
		locationsByIdx[idx] = locations
		infos = append(infos, info)
	}
	if err := intra.Barrier(ctx); err != nil {
		return errs.WrapProtocol("lowfive: serve: index exchange barrier", err)
	}
	if err := rankserver.DrainExchange(ctx, intra, locationsByIdx); err != nil {
		return err
	}

	srv := rankserver.New(rank, intra, inter)
	for _, info := range infos {
		srv.Register(info)
	}
	return srv.Serve(ctx)
}

// buildDatasetInfo decomposes ds's declared domain across intra's ranks
// and indexes its local triples' bounding boxes into a BoxLocations
// (spec.md §4.E), producing the DatasetInfo a Server registers and the
// BoxLocations File.Serve must later drain cross-rank records into.
// datasetIdx identifies ds within this serve round's exchange traffic
// (internal/rankserver.NewIntraExchanger).
func buildDatasetInfo(ctx context.Context, ds *Dataset, rank int, intra comm.Comm, datasetIdx int) (*rankserver.DatasetInfo, *decomp.BoxLocations, error) {
	declared := ds.store.Declared()
	domain, ok := declared.BoundingBox()
	if !ok {
		domain = space.NewBox(make([]int64, declared.Rank()), declared.Dims)
	}
	decomposition := decomp.NewDecomposition(domain, intra.Size())
	locations := decomp.NewBoxLocations()

	var fileSpaces []*space.Dataspace
	for _, t := range ds.store.Triples() {
		fileSpaces = append(fileSpaces, t.File.Space)
	}
	ex := rankserver.NewIntraExchanger(intra, datasetIdx, locations)
	if _, err := decomp.BuildIndex(ctx, decomposition, rank, fileSpaces, ex); err != nil {
		return nil, nil, err
	}

	info := &rankserver.DatasetInfo{
		Name:      ds.node.Name(),
		Type:      ds.store.Type(),
		Space:     declared,
		Domain:    domain,
		Decomp:    decomposition,
		Locations: locations,
		Triples: func() []rankserver.LocalTriple {
			views := ds.localTriples()
			out := make([]rankserver.LocalTriple, len(views))
			for i, v := range views {
				out[i] = rankserver.LocalTriple{File: v.File, Memory: v.Memory, Buf: v.Buf}
			}
			return out
		},
	}
	return info, locations, nil
}

// collectDatasets walks the tree rooted at root, returning every resolved
// (non-dummy) dataset as a façade Dataset handle.
func collectDatasets(root tree.Object) []*Dataset {
	var out []*Dataset
	var walk func(tree.Object)
	walk = func(o tree.Object) {
		if ds, ok := o.(*tree.Dataset); ok && !ds.IsDummy() {
			if store, ok := ds.Store.(*dataset.Store); ok {
				out = append(out, &Dataset{node: ds, store: store})
			}
		}
		for _, c := range o.Children() {
			walk(c)
		}
	}
	walk(root)
	return out
}
