package rankserver

import (
	"bytes"
	"context"
	"fmt"

	"github.com/diatomic/lowfive/internal/errs"
	"github.com/diatomic/lowfive/internal/space"
	"github.com/diatomic/lowfive/internal/wire"
)

// intraKind discriminates the small set of messages rankserver exchanges
// over the intra-communicator: index-construction records
// (internal/rankserver.IntraExchanger/DrainExchange) and, once serving has
// started, redirect/data queries forwarded to whichever rank actually owns
// the relevant tile. It is a one-byte prefix on every intra payload,
// private to this package since it never crosses the producer/consumer
// inter-communicator spec.md §6 describes.
//
// spec.md §4.F routes every consumer request through producer rank 0, but
// §4.E's index is partitioned one tile per owning rank -- for a query
// spanning a tile rank 0 doesn't itself own (spec.md §8 S3/S4's multi-rank
// producer scenarios), rank 0 forwards the query here and relays the
// owning rank's answer back to the consumer.
type intraKind byte

const (
	intraRedirectRequest intraKind = iota
	intraRedirectReply
	intraDataRequest
	intraDataReply
)

func encodeIntra(kind intraKind, encode func(*bytes.Buffer) error) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(kind))
	if err := encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// forwardRedirect asks ownerRank, a different producer rank than this
// server's own, which locations at its own BoxLocations for tile intersect
// query. Only producer rank 0 ever calls this (it is the only rank that
// answers consumer requests), and only ranks other than 0 are ever asked,
// so there is never a concurrent forward outstanding against the same
// rank pair -- a blocking send-then-recv round trip is exhaustive.
func (s *Server) forwardRedirect(ctx context.Context, ownerRank int, id wire.DatasetID, tile int32, query *space.Dataspace) ([]wire.Location, error) {
	payload, err := encodeIntra(intraRedirectRequest, func(buf *bytes.Buffer) error {
		if err := wire.WriteInt32(buf, int32(id)); err != nil {
			return err
		}
		if err := wire.WriteInt32(buf, tile); err != nil {
			return err
		}
		return wire.WriteDataspace(buf, query)
	})
	if err != nil {
		return nil, err
	}
	if err := s.intra.Send(ctx, ownerRank, payload); err != nil {
		return nil, errs.WrapProtocol("rankserver: send redirect forward", err)
	}
	_, reply, err := s.intra.Recv(ctx)
	if err != nil {
		return nil, errs.WrapProtocol("rankserver: recv redirect forward reply", err)
	}
	r := bytes.NewReader(reply)
	if err := expectIntraKind(r, intraRedirectReply); err != nil {
		return nil, err
	}
	decoded, err := wire.DecodeRedirectReply(r)
	if err != nil {
		return nil, errs.WrapProtocol("rankserver: decode redirect forward reply", err)
	}
	return decoded.Locations, nil
}

// forwardData asks ownerRank for every DataEntry its own local triples
// hold that intersects query, the same way forwardRedirect asks for
// locations.
func (s *Server) forwardData(ctx context.Context, ownerRank int, id wire.DatasetID, query *space.Dataspace) ([]wire.DataEntry, error) {
	payload, err := encodeIntra(intraDataRequest, func(buf *bytes.Buffer) error {
		if err := wire.WriteInt32(buf, int32(id)); err != nil {
			return err
		}
		return wire.WriteDataspace(buf, query)
	})
	if err != nil {
		return nil, err
	}
	if err := s.intra.Send(ctx, ownerRank, payload); err != nil {
		return nil, errs.WrapProtocol("rankserver: send data forward", err)
	}
	_, reply, err := s.intra.Recv(ctx)
	if err != nil {
		return nil, errs.WrapProtocol("rankserver: recv data forward reply", err)
	}
	r := bytes.NewReader(reply)
	if err := expectIntraKind(r, intraDataReply); err != nil {
		return nil, err
	}
	decoded, err := wire.DecodeDataReply(r)
	if err != nil {
		return nil, errs.WrapProtocol("rankserver: decode data forward reply", err)
	}
	return decoded.Entries, nil
}

func expectIntraKind(r *bytes.Reader, want intraKind) error {
	b, err := r.ReadByte()
	if err != nil {
		return errs.WrapProtocol("rankserver: read intra message kind", err)
	}
	if intraKind(b) != want {
		return errs.NewProtocol(fmt.Sprintf("rankserver: expected intra kind %d, got %d", want, b))
	}
	return nil
}

// pollIntraForward answers one pending redirect/data forward request
// addressed to this rank, if any is queued; it is a no-op when nothing is
// pending. Only ranks other than 0 are ever asked (rank 0 never forwards
// to itself), so this only needs to run on the server loop of ranks != 0.
func (s *Server) pollIntraForward(ctx context.Context) error {
	ready, srcRank := s.intra.Probe()
	if !ready {
		return nil
	}
	_, payload, err := s.intra.Recv(ctx)
	if err != nil {
		return errs.WrapProtocol("rankserver: recv intra forward request", err)
	}
	if len(payload) == 0 {
		return errs.NewProtocol("rankserver: empty intra forward payload")
	}
	body := bytes.NewReader(payload[1:])
	switch intraKind(payload[0]) {
	case intraRedirectRequest:
		return s.handleIntraRedirectRequest(ctx, srcRank, body)
	case intraDataRequest:
		return s.handleIntraDataRequest(ctx, srcRank, body)
	default:
		return errs.NewProtocol(fmt.Sprintf("rankserver: unexpected intra forward kind %d", payload[0]))
	}
}

func (s *Server) handleIntraRedirectRequest(ctx context.Context, srcRank int, body *bytes.Reader) error {
	id32, err := wire.ReadInt32(body)
	if err != nil {
		return errs.WrapProtocol("rankserver: decode redirect forward request", err)
	}
	tile, err := wire.ReadInt32(body)
	if err != nil {
		return errs.WrapProtocol("rankserver: decode redirect forward request", err)
	}
	query, err := wire.ReadDataspace(body)
	if err != nil {
		return errs.WrapProtocol("rankserver: decode redirect forward request", err)
	}
	info, err := s.lookup(wire.DatasetID(id32))
	if err != nil {
		return err
	}
	var locs []wire.Location
	for _, rec := range info.Locations.Query(int(tile), query) {
		locs = append(locs, wire.Location{Space: rec.Space, Owner: int32(rec.SourceRank)})
	}
	payload, err := encodeIntra(intraRedirectReply, wire.RedirectReply{Locations: locs}.Encode)
	if err != nil {
		return err
	}
	return errs.WrapProtocol("rankserver: send redirect forward reply", s.intra.Send(ctx, srcRank, payload))
}

func (s *Server) handleIntraDataRequest(ctx context.Context, srcRank int, body *bytes.Reader) error {
	id32, err := wire.ReadInt32(body)
	if err != nil {
		return errs.WrapProtocol("rankserver: decode data forward request", err)
	}
	query, err := wire.ReadDataspace(body)
	if err != nil {
		return errs.WrapProtocol("rankserver: decode data forward request", err)
	}
	info, err := s.lookup(wire.DatasetID(id32))
	if err != nil {
		return err
	}
	entries, err := s.localDataEntries(info, query)
	if err != nil {
		return err
	}
	payload, err := encodeIntra(intraDataReply, wire.DataReply{Entries: entries}.Encode)
	if err != nil {
		return err
	}
	return errs.WrapProtocol("rankserver: send data forward reply", s.intra.Send(ctx, srcRank, payload))
}
