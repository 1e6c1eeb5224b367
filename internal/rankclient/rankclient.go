// Package rankclient implements the consumer-side query driver of spec.md
// §4.G: resolve a dataset id, fetch its dimension/domain, ask the
// producer's index server which of its triples intersect a query, fetch
// the matching bytes, and project them into the caller's own memory-space.
//
// Every request in spec.md §4.F is answered exclusively by producer rank
// 0 (internal/rankserver's serveUntilDone loop), so a Client never needs
// to address any other producer rank directly — it always sends on
// destRank 0 and receives back from srcRank 0 over its own
// inter-communicator.
package rankclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/sync/semaphore"

	"github.com/diatomic/lowfive/internal/comm"
	"github.com/diatomic/lowfive/internal/errs"
	"github.com/diatomic/lowfive/internal/space"
	"github.com/diatomic/lowfive/internal/wire"
)

const producerRank = 0

// Client drives queries for one consumer rank.
type Client struct {
	rank  int
	inter comm.InterComm
	sem   *semaphore.Weighted
	log   *log.Logger
}

// New creates a client for the given consumer rank. maxInFlight bounds how
// many `data` requests this rank will have outstanding at once
// (SPEC_FULL.md §2, golang.org/x/sync/semaphore.Weighted).
func New(rank int, inter comm.InterComm, maxInFlight int64) *Client {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &Client{
		rank:  rank,
		inter: inter,
		sem:   semaphore.NewWeighted(maxInFlight),
		log:   log.New(os.Stderr, fmt.Sprintf("rankclient[rank=%d]: ", rank), log.LstdFlags),
	}
}

// WaitReady blocks consumer rank 0 until the producer's `ready` handshake
// arrives (spec.md §4.F "Ready"). Other ranks return immediately: only
// rank 0 of each side participates in the ready/done handshake, but every
// rank may issue id/dimension/domain/redirect/data requests once it does.
func (c *Client) WaitReady(ctx context.Context) error {
	if c.rank != producerRank {
		return nil
	}
	_, payload, err := c.inter.Recv(ctx, comm.TagProducer)
	if err != nil {
		return errs.WrapProtocol("rankclient: recv ready", err)
	}
	kind, err := wire.ReadKind(bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if kind != wire.KindReady {
		return errs.NewProtocol(fmt.Sprintf("rankclient: expected ready, got kind %v", kind))
	}
	return nil
}

// request sends one encoded message to the producer and returns its
// reply payload.
func (c *Client) request(ctx context.Context, encode func(io.Writer) error) ([]byte, error) {
	payload, err := wire.EncodeToBytes(encode)
	if err != nil {
		return nil, err
	}
	if err := c.inter.Send(ctx, producerRank, comm.TagConsumer, payload); err != nil {
		return nil, errs.WrapProtocol("rankclient: send request", err)
	}
	_, reply, err := c.inter.Recv(ctx, comm.TagProducer)
	if err != nil {
		return nil, errs.WrapProtocol("rankclient: recv reply", err)
	}
	return reply, nil
}

// ResolveID looks up a dataset's session-local id by name (spec.md §4.G
// step 1).
func (c *Client) ResolveID(ctx context.Context, name string) (wire.DatasetID, error) {
	reply, err := c.request(ctx, wire.IDRequest{Name: name}.Encode)
	if err != nil {
		return 0, err
	}
	r, err := wire.DecodeIDReply(bytes.NewReader(reply))
	if err != nil {
		return 0, errs.WrapProtocol("rankclient: decode id reply", err)
	}
	return r.ID, nil
}

// Dimension fetches a dataset's declared type and dataspace.
func (c *Client) Dimension(ctx context.Context, id wire.DatasetID) (space.Datatype, *space.Dataspace, error) {
	payload, err := wire.EncodeToBytes(wire.DimensionRequest{ID: id}.Encode)
	if err != nil {
		return space.Datatype{}, nil, err
	}
	if err := c.inter.Send(ctx, producerRank, comm.TagConsumer, payload); err != nil {
		return space.Datatype{}, nil, errs.WrapProtocol("rankclient: send dimension request", err)
	}
	_, reply, err := c.inter.Recv(ctx, comm.TagProducer)
	if err != nil {
		return space.Datatype{}, nil, errs.WrapProtocol("rankclient: recv dimension reply", err)
	}
	r, err := wire.DecodeDimensionReply(bytes.NewReader(reply))
	if err != nil {
		return space.Datatype{}, nil, errs.WrapProtocol("rankclient: decode dimension reply", err)
	}
	return r.Type, r.Space, nil
}

// Domain fetches the bounding box the producer's decomposition partitions
// (spec.md §4.E/§4.G).
func (c *Client) Domain(ctx context.Context, id wire.DatasetID) (space.Box, error) {
	payload, err := wire.EncodeToBytes(wire.DomainRequest{ID: id}.Encode)
	if err != nil {
		return space.Box{}, err
	}
	if err := c.inter.Send(ctx, producerRank, comm.TagConsumer, payload); err != nil {
		return space.Box{}, errs.WrapProtocol("rankclient: send domain request", err)
	}
	_, reply, err := c.inter.Recv(ctx, comm.TagProducer)
	if err != nil {
		return space.Box{}, errs.WrapProtocol("rankclient: recv domain reply", err)
	}
	r, err := wire.DecodeDomainReply(bytes.NewReader(reply))
	if err != nil {
		return space.Box{}, errs.WrapProtocol("rankclient: decode domain reply", err)
	}
	bb, ok := r.Box.BoundingBox()
	if !ok {
		return space.Box{}, errs.NewMetadata("rankclient: domain reply carried an empty selection")
	}
	return bb, nil
}

// Redirect asks the producer which (dataspace, owner-rank) locations
// intersect query (spec.md §4.G step 2).
func (c *Client) Redirect(ctx context.Context, id wire.DatasetID, query *space.Dataspace) ([]wire.Location, error) {
	payload, err := wire.EncodeToBytes(wire.RedirectRequest{ID: id, Query: query}.Encode)
	if err != nil {
		return nil, err
	}
	if err := c.inter.Send(ctx, producerRank, comm.TagConsumer, payload); err != nil {
		return nil, errs.WrapProtocol("rankclient: send redirect request", err)
	}
	_, reply, err := c.inter.Recv(ctx, comm.TagProducer)
	if err != nil {
		return nil, errs.WrapProtocol("rankclient: recv redirect reply", err)
	}
	r, err := wire.DecodeRedirectReply(bytes.NewReader(reply))
	if err != nil {
		return nil, errs.WrapProtocol("rankclient: decode redirect reply", err)
	}
	return r.Locations, nil
}

// fetchData sends one `data` request, bounded by the client's semaphore
// (SPEC_FULL.md §2 "bound in-flight data requests").
func (c *Client) fetchData(ctx context.Context, id wire.DatasetID, query *space.Dataspace) ([]wire.DataEntry, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, errs.WrapProtocol("rankclient: acquire in-flight slot", err)
	}
	defer c.sem.Release(1)

	payload, err := wire.EncodeToBytes(wire.DataRequest{ID: id, Query: query}.Encode)
	if err != nil {
		return nil, err
	}
	if err := c.inter.Send(ctx, producerRank, comm.TagConsumer, payload); err != nil {
		return nil, errs.WrapProtocol("rankclient: send data request", err)
	}
	_, reply, err := c.inter.Recv(ctx, comm.TagProducer)
	if err != nil {
		return nil, errs.WrapProtocol("rankclient: recv data reply", err)
	}
	r, err := wire.DecodeDataReply(bytes.NewReader(reply))
	if err != nil {
		return nil, errs.WrapProtocol("rankclient: decode data reply", err)
	}
	return r.Entries, nil
}

// Read fills out (shaped like memSpace) with every byte the producer
// holds that intersects fileQuery, projecting each returned sub-file-space
// into memSpace's domain before copying (spec.md §4.G steps 2-4, the same
// project_intersection + IteratePaired pairing internal/dataset.Store.Read
// uses for local replay).
func (c *Client) Read(ctx context.Context, id wire.DatasetID, fileQuery, memSpace *space.Dataspace, elemSize int64, out []byte) error {
	locations, err := c.Redirect(ctx, id, fileQuery)
	if err != nil {
		return err
	}
	if len(locations) == 0 {
		return nil
	}
	entries, err := c.fetchData(ctx, id, fileQuery)
	if err != nil {
		return err
	}
	for _, e := range entries {
		subMem, err := space.ProjectIntersection(fileQuery, memSpace, e.SubSpace)
		if err != nil {
			return errs.WrapMetadata("rankclient: project_intersection into memory space", err)
		}
		for i, pr := range space.IteratePaired(e.SubSpace, subMem, elemSize) {
			srcOff := int64(i) * elemSize
			if srcOff+elemSize > int64(len(e.Bytes)) {
				continue
			}
			if pr.Dst.Offset+elemSize > int64(len(out)) {
				continue
			}
			copy(out[pr.Dst.Offset:pr.Dst.Offset+elemSize], e.Bytes[srcOff:srcOff+elemSize])
		}
	}
	return nil
}

// Close sends the final `done` message that completes the producer's
// Ready/Serving/Terminated barrier (spec.md §4.F "Terminated"); only
// consumer rank 0 sends it, matching the producer's rank-0-only done
// handling.
func (c *Client) Close(ctx context.Context) error {
	if c.rank != producerRank {
		return nil
	}
	payload, err := wire.EncodeToBytes(wire.WriteDone)
	if err != nil {
		return err
	}
	return errs.WrapProtocol("rankclient: send done", c.inter.Send(ctx, producerRank, comm.TagConsumer, payload))
}
