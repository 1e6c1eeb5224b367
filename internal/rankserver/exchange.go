package rankserver

import (
	"bytes"
	"context"

	"github.com/diatomic/lowfive/internal/comm"
	"github.com/diatomic/lowfive/internal/decomp"
	"github.com/diatomic/lowfive/internal/errs"
	"github.com/diatomic/lowfive/internal/wire"
)

// IntraExchanger implements decomp.Exchanger by routing each Record over
// the producer's own intra-communicator (spec.md §4.E step 2: "ranks
// exchange all-to-some"). A record destined for the caller's own rank is
// appended to locations directly; one destined for another rank is
// wire-encoded (dataset index, tile, source rank, dataspace) and sent
// over comm.Comm's point-to-point Send, to be collected by that rank's
// own DrainExchange call. This is the wire-protocol-backed Exchanger
// decomp.Exchanger's doc comment promises, replacing a same-rank-only
// stand-in that silently dropped cross-rank records.
type IntraExchanger struct {
	intra      comm.Comm
	datasetIdx int32
	locations  *decomp.BoxLocations
}

// NewIntraExchanger builds an Exchanger for one dataset's index build.
// datasetIdx must be unique among the exchangers sharing intra within one
// build+drain round (File.Serve assigns it as the dataset's position in
// its registration order) so DrainExchange can route a received record
// back to the right dataset's BoxLocations.
func NewIntraExchanger(intra comm.Comm, datasetIdx int, locations *decomp.BoxLocations) *IntraExchanger {
	return &IntraExchanger{intra: intra, datasetIdx: int32(datasetIdx), locations: locations}
}

// Send appends self-addressed records directly and wire-encodes+sends
// every other record to its destination rank.
func (e *IntraExchanger) Send(ctx context.Context, destRank, tile int, r decomp.Record) error {
	if destRank == e.intra.Rank() {
		e.locations.Append(tile, r)
		return nil
	}
	var buf bytes.Buffer
	if err := wire.WriteInt32(&buf, e.datasetIdx); err != nil {
		return err
	}
	if err := wire.WriteInt32(&buf, int32(tile)); err != nil {
		return err
	}
	if err := wire.WriteInt32(&buf, int32(r.SourceRank)); err != nil {
		return err
	}
	if err := wire.WriteDataspace(&buf, r.Space); err != nil {
		return err
	}
	return errs.WrapProtocol("rankserver: send exchange record", e.intra.Send(ctx, destRank, buf.Bytes()))
}

// DrainExchange receives every record other ranks have sent to this rank
// via an IntraExchanger.Send call across one build+drain round, routing
// each into locationsByIndex[datasetIdx] (keyed the same way
// NewIntraExchanger's datasetIdx was assigned).
//
// Callers must call intra.Barrier first so every rank has finished
// issuing its own sends: decomp.BuildIndex's errgroup only waits for this
// rank's own Send calls to return, not for the whole producer group's, so
// draining before the barrier could see an empty inbox and stop while a
// slower rank's sends are still in flight. Once past the barrier, every
// message this rank will ever receive in this round has already been
// pushed into its inbox, so draining until Probe reports empty is
// exhaustive rather than racing delivery.
func DrainExchange(ctx context.Context, intra comm.Comm, locationsByIndex map[int]*decomp.BoxLocations) error {
	for {
		ready, _ := intra.Probe()
		if !ready {
			return nil
		}
		_, payload, err := intra.Recv(ctx)
		if err != nil {
			return errs.WrapProtocol("rankserver: recv exchange record", err)
		}
		r := bytes.NewReader(payload)
		datasetIdx, err := wire.ReadInt32(r)
		if err != nil {
			return errs.WrapProtocol("rankserver: decode exchange record", err)
		}
		tile, err := wire.ReadInt32(r)
		if err != nil {
			return errs.WrapProtocol("rankserver: decode exchange record", err)
		}
		sourceRank, err := wire.ReadInt32(r)
		if err != nil {
			return errs.WrapProtocol("rankserver: decode exchange record", err)
		}
		sp, err := wire.ReadDataspace(r)
		if err != nil {
			return errs.WrapProtocol("rankserver: decode exchange record", err)
		}
		locations, ok := locationsByIndex[int(datasetIdx)]
		if !ok {
			return errs.NewProtocol("rankserver: exchange record for unregistered dataset index")
		}
		locations.Append(int(tile), decomp.Record{Space: sp, SourceRank: int(sourceRank)})
	}
}
