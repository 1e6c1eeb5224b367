package rankserver

import (
	"bytes"
	"context"
	"fmt"

	"github.com/diatomic/lowfive/internal/comm"
	"github.com/diatomic/lowfive/internal/errs"
	"github.com/diatomic/lowfive/internal/space"
	"github.com/diatomic/lowfive/internal/wire"
)

// dispatch handles one decoded request body, replying on TagProducer to
// srcRank (spec.md §4.F "The producer replies on producer tag").
func (s *Server) dispatch(ctx context.Context, srcRank int, kind wire.Kind, body *bytes.Reader) error {
	switch kind {
	case wire.KindID:
		return s.handleID(ctx, srcRank, body)
	case wire.KindDimension:
		return s.handleDimension(ctx, srcRank, body)
	case wire.KindDomain:
		return s.handleDomain(ctx, srcRank, body)
	case wire.KindRedirect:
		return s.handleRedirect(ctx, srcRank, body)
	case wire.KindData:
		return s.handleData(ctx, srcRank, body)
	default:
		return errs.NewProtocol(fmt.Sprintf("rankserver: unexpected message kind %v while serving", kind))
	}
}

func (s *Server) reply(ctx context.Context, destRank int, encode func(*bytes.Buffer) error) error {
	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		return err
	}
	return s.inter.Send(ctx, destRank, comm.TagProducer, buf.Bytes())
}

func (s *Server) lookup(id wire.DatasetID) (*DatasetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || int(id) >= len(s.byID) {
		return nil, errs.NewMetadata(fmt.Sprintf("rankserver: no dataset registered with id %d", id))
	}
	return s.byID[id], nil
}

func (s *Server) handleID(ctx context.Context, srcRank int, body *bytes.Reader) error {
	req, err := wire.DecodeIDRequest(body)
	if err != nil {
		return errs.WrapProtocol("rankserver: decode id request", err)
	}
	s.mu.RLock()
	id, ok := s.byName[req.Name]
	s.mu.RUnlock()
	if !ok {
		return errs.NewMetadata(fmt.Sprintf("rankserver: no dataset named %q", req.Name))
	}
	return s.reply(ctx, srcRank, func(buf *bytes.Buffer) error {
		return wire.IDReply{ID: id}.Encode(buf)
	})
}

func (s *Server) handleDimension(ctx context.Context, srcRank int, body *bytes.Reader) error {
	req, err := wire.DecodeDimensionRequest(body)
	if err != nil {
		return errs.WrapProtocol("rankserver: decode dimension request", err)
	}
	info, err := s.lookup(req.ID)
	if err != nil {
		return err
	}
	return s.reply(ctx, srcRank, func(buf *bytes.Buffer) error {
		return wire.DimensionReply{Dim: int32(info.Space.Rank()), Type: info.Type, Space: info.Space}.Encode(buf)
	})
}

func (s *Server) handleDomain(ctx context.Context, srcRank int, body *bytes.Reader) error {
	req, err := wire.DecodeDomainRequest(body)
	if err != nil {
		return errs.WrapProtocol("rankserver: decode domain request", err)
	}
	info, err := s.lookup(req.ID)
	if err != nil {
		return err
	}
	domainSpace, err := space.NewSimple(info.Domain.End())
	if err != nil {
		return errs.WrapMetadata("rankserver: build domain dataspace", err)
	}
	if err := domainSpace.SelectHyperslab(info.Domain.Start, info.Domain.Count); err != nil {
		return errs.WrapMetadata("rankserver: select domain bounding box", err)
	}
	return s.reply(ctx, srcRank, func(buf *bytes.Buffer) error {
		return wire.DomainReply{Box: domainSpace}.Encode(buf)
	})
}

func (s *Server) handleRedirect(ctx context.Context, srcRank int, body *bytes.Reader) error {
	req, err := wire.DecodeRedirectRequest(body)
	if err != nil {
		return errs.WrapProtocol("rankserver: decode redirect request", err)
	}
	info, err := s.lookup(req.ID)
	if err != nil {
		return err
	}
	bb, ok := req.Query.BoundingBox()
	if !ok {
		return s.reply(ctx, srcRank, func(buf *bytes.Buffer) error {
			return wire.RedirectReply{}.Encode(buf)
		})
	}
	// spec.md §4.E's index is partitioned one tile per owning rank, so a
	// tile this server's own rank doesn't own has its locations on that
	// owning rank's BoxLocations instead (internal/rankserver.forwardRedirect).
	var locs []wire.Location
	for _, tile := range info.Decomp.TilesIntersecting(bb) {
		if owner := info.Decomp.Owner(tile); owner != s.rank {
			fwd, err := s.forwardRedirect(ctx, owner, req.ID, int32(tile), req.Query)
			if err != nil {
				return err
			}
			locs = append(locs, fwd...)
			continue
		}
		for _, rec := range info.Locations.Query(tile, req.Query) {
			locs = append(locs, wire.Location{Space: rec.Space, Owner: int32(rec.SourceRank)})
		}
	}
	return s.reply(ctx, srcRank, func(buf *bytes.Buffer) error {
		return wire.RedirectReply{Locations: locs}.Encode(buf)
	})
}

func (s *Server) handleData(ctx context.Context, srcRank int, body *bytes.Reader) error {
	req, err := wire.DecodeDataRequest(body)
	if err != nil {
		return errs.WrapProtocol("rankserver: decode data request", err)
	}
	info, err := s.lookup(req.ID)
	if err != nil {
		return err
	}

	var entries []wire.DataEntry
	// Forward to every distinct remote rank that owns a tile the query
	// touches (spec.md §8 S3/S4's multi-rank producer groups): that
	// rank's own triples are the only place those bytes live.
	if bb, ok := req.Query.BoundingBox(); ok {
		forwarded := map[int]bool{s.rank: true}
		for _, tile := range info.Decomp.TilesIntersecting(bb) {
			owner := info.Decomp.Owner(tile)
			if forwarded[owner] {
				continue
			}
			forwarded[owner] = true
			fwd, err := s.forwardData(ctx, owner, req.ID, req.Query)
			if err != nil {
				return err
			}
			entries = append(entries, fwd...)
		}
	}

	local, err := s.localDataEntries(info, req.Query)
	if err != nil {
		return err
	}
	entries = append(entries, local...)

	return s.reply(ctx, srcRank, func(buf *bytes.Buffer) error {
		return wire.DataReply{Entries: entries}.Encode(buf)
	})
}

// localDataEntries scans info's own local triples for the byte ranges
// that intersect query, the assembly spec.md §4.F calls "Data assembly".
func (s *Server) localDataEntries(info *DatasetInfo, query *space.Dataspace) ([]wire.DataEntry, error) {
	elemSize := int64(info.Type.Size)
	var entries []wire.DataEntry
	for _, t := range info.Triples() {
		if !t.File.Intersects(query) {
			continue
		}
		// subFile: the intersection, expressed in t.File's own domain
		// (spec.md §4.F "encodes the intersection").
		subFile, err := space.ProjectIntersection(t.File, t.File, query)
		if err != nil {
			return nil, errs.WrapMetadata("rankserver: project_intersection (file domain)", err)
		}
		if subFile.Size() == 0 {
			continue
		}
		// subMem: the same elements, expressed in t.Memory's domain, to
		// locate them inside the triple's buffer.
		subMem, err := space.ProjectIntersection(t.File, t.Memory, query)
		if err != nil {
			return nil, errs.WrapMetadata("rankserver: project_intersection (memory domain)", err)
		}
		out := make([]byte, subFile.Size()*elemSize)
		for i, pr := range space.IteratePaired(subFile, subMem, elemSize) {
			if pr.Dst.Offset+pr.Dst.Length > int64(len(t.Buf)) {
				continue
			}
			copy(out[int64(i)*elemSize:], t.Buf[pr.Dst.Offset:pr.Dst.Offset+pr.Dst.Length])
		}
		entries = append(entries, wire.DataEntry{SubSpace: subFile, Bytes: out})
	}
	return entries, nil
}
