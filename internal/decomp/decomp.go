// Package decomp implements the producer-side spatial index of spec.md
// §4.E: a regular decomposition of a dataset's bounding box into R
// axis-aligned tiles (R = producer communicator size), and the
// BoxLocations record exchange that lets any rank answer "which triples,
// on any rank, touch tile g" once indexing completes.
package decomp

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/diatomic/lowfive/internal/space"
)

// Decomposition partitions a bounding box into Size axis-aligned tiles,
// one per producer rank, via contiguous slabbing along the first
// dimension whose extent is at least Size (falling back to the largest
// dimension otherwise) — matching spec.md's "contiguous assignment" and
// the common regular-decomposition strategy original_source/ uses for its
// block decomposer.
type Decomposition struct {
	Domain   space.Box
	Size     int
	splitDim int
	tiles    []space.Box
}

// NewDecomposition builds a decomposition of domain into n contiguous
// tiles along whichever dimension has the largest extent.
func NewDecomposition(domain space.Box, n int) *Decomposition {
	d := &Decomposition{Domain: domain.Clone(), Size: n}
	d.splitDim = largestDim(domain)
	d.tiles = make([]space.Box, n)
	extent := domain.Count[d.splitDim]
	base := extent / int64(n)
	rem := extent % int64(n)
	start := domain.Start[d.splitDim]
	for g := 0; g < n; g++ {
		count := base
		if int64(g) < rem {
			count++
		}
		tile := domain.Clone()
		tile.Start[d.splitDim] = start
		tile.Count[d.splitDim] = count
		d.tiles[g] = tile
		start += count
	}
	return d
}

func largestDim(b space.Box) int {
	best := 0
	for i, c := range b.Count {
		if c > b.Count[best] {
			best = i
		}
	}
	return best
}

// Tile returns the bounding box owned by tile g.
func (d *Decomposition) Tile(g int) space.Box { return d.tiles[g] }

// Owner returns the rank owning tile g: spec.md's "contiguous assignment"
// makes tile id and owning rank the same number.
func (d *Decomposition) Owner(g int) int { return g }

// TilesIntersecting returns every tile id whose box intersects b (spec.md
// §4.E step 1: "enumerate the tile ids whose tile intersects b").
func (d *Decomposition) TilesIntersecting(b space.Box) []int {
	var out []int
	for g, tile := range d.tiles {
		if tile.Intersects(b) {
			out = append(out, g)
		}
	}
	return out
}

// Record is one (dataspace, source-rank) pair exchanged during index
// construction and stored in a tile owner's BoxLocations (spec.md §4.E).
type Record struct {
	Space      *space.Dataspace
	SourceRank int
}

// BoxLocations is the per-tile list of Records a rank has received,
// queried by internal/rankserver to answer `redirect` requests.
type BoxLocations struct {
	byTile map[int][]Record
}

func newBoxLocations() *BoxLocations {
	return &BoxLocations{byTile: make(map[int][]Record)}
}

// Append adds a record to tile g's location list.
func (bl *BoxLocations) Append(tile int, r Record) {
	bl.byTile[tile] = append(bl.byTile[tile], r)
}

// Query returns every record at tile g whose file-space intersects query
// (spec.md §4.F "list of (dataspace, owner-rank) pairs from the recipient
// tile's BoxLocations intersecting the query").
func (bl *BoxLocations) Query(tile int, query *space.Dataspace) []Record {
	var out []Record
	for _, r := range bl.byTile[tile] {
		if r.Space.Intersects(query) {
			out = append(out, r)
		}
	}
	return out
}

// Exchanger delivers a Record to whichever rank owns a tile (spec.md §4.E
// step 2's "all-to-some" exchange); internal/rankserver.IntraExchanger
// supplies the wire-protocol-backed implementation, routing over a Comm's
// point-to-point Send/Recv.
type Exchanger interface {
	Send(ctx context.Context, destRank int, tile int, r Record) error
}

// BuildIndex runs spec.md §4.E's three construction steps for one rank:
// for each of localTriples' file-space bounding boxes, find the tiles it
// touches and send a Record to each tile's owner via ex, fanning the sends
// out with errgroup.Group (SPEC_FULL.md §2: "fans out the per-rank record
// exchange"). It returns this rank's own BoxLocations, populated as
// exchanged records are simultaneously delivered by concurrent callers.
func BuildIndex(ctx context.Context, decomposition *Decomposition, sourceRank int, localTriples []*space.Dataspace, ex Exchanger) (*BoxLocations, error) {
	g, ctx := errgroup.WithContext(ctx)
	for _, triple := range localTriples {
		triple := triple
		bb, ok := triple.BoundingBox()
		if !ok {
			continue
		}
		tiles := decomposition.TilesIntersecting(bb)
		for _, tile := range tiles {
			tile := tile
			g.Go(func() error {
				return ex.Send(ctx, decomposition.Owner(tile), tile, Record{Space: triple, SourceRank: sourceRank})
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return newBoxLocations(), nil
}

// NewBoxLocations exposes the zero-value constructor for receivers that
// accumulate records delivered out-of-band (e.g. a rankserver message
// loop appending as `id`/Record deliveries arrive), rather than through
// BuildIndex's own Exchanger.
func NewBoxLocations() *BoxLocations { return newBoxLocations() }
