// Package rankserver implements the producer-side index/query server of
// spec.md §4.F: one instance per producer rank, cycling through Ready,
// Serving and Terminated states and answering id/dimension/domain/
// redirect/data requests from the consumer side.
package rankserver

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/diatomic/lowfive/internal/comm"
	"github.com/diatomic/lowfive/internal/decomp"
	"github.com/diatomic/lowfive/internal/errs"
	"github.com/diatomic/lowfive/internal/space"
	"github.com/diatomic/lowfive/internal/wire"
)

// DatasetInfo is everything the server needs to answer queries about one
// served dataset.
type DatasetInfo struct {
	Name      string
	Type      space.Datatype
	Space     *space.Dataspace // declared logical space
	Domain    space.Box        // bounding box the decomposition partitions
	Decomp    *decomp.Decomposition
	Locations *decomp.BoxLocations // this rank's own tile's received records

	// Triples returns the local triples whose file-space should be
	// searched for a `data` request (spec.md §4.F "Data assembly").
	Triples func() []LocalTriple
}

// LocalTriple is the subset of a dataset.Triple the server needs to
// answer a `data` request without importing package dataset (which would
// create a cycle back through the façade); package lowfive adapts its
// *dataset.Store triples into these.
type LocalTriple struct {
	File   *space.Dataspace
	Memory *space.Dataspace
	Buf    []byte
}

// Server runs the serve loop for one producer rank.
type Server struct {
	rank  int
	intra comm.Comm
	inter comm.InterComm
	log   *log.Logger

	mu     sync.RWMutex
	byName map[string]wire.DatasetID
	byID   []*DatasetInfo
}

// New creates a server for the given rank, intra-communicator (for the
// Ready/Terminated barrier) and inter-communicator (for consumer traffic).
func New(rank int, intra comm.Comm, inter comm.InterComm) *Server {
	return &Server{
		rank:   rank,
		intra:  intra,
		inter:  inter,
		log:    log.New(os.Stderr, fmt.Sprintf("rankserver[rank=%d]: ", rank), log.LstdFlags),
		byName: make(map[string]wire.DatasetID),
	}
}

// Register adds a dataset the server will answer queries about, returning
// its session-local id.
func (s *Server) Register(info *DatasetInfo) wire.DatasetID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := wire.DatasetID(len(s.byID))
	s.byID = append(s.byID, info)
	s.byName[info.Name] = id
	return id
}

// Serve runs Ready, Serving and Terminated (spec.md §4.F) until a `done`
// message completes the collective barrier, or ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if s.rank == 0 {
		readyMsg, err := wire.EncodeToBytes(wire.WriteReady)
		if err != nil {
			return err
		}
		if err := s.inter.Send(ctx, 0, comm.TagProducer, readyMsg); err != nil {
			return errs.WrapProtocol("rankserver: send ready", err)
		}
		return s.serveUntilDone(ctx)
	}

	barrierErr := make(chan error, 1)
	go func() { barrierErr <- s.intra.Barrier(ctx) }()

	for {
		select {
		case err := <-barrierErr:
			return err
		default:
		}
		if err := s.pollIntraForward(ctx); err != nil {
			return err
		}
		if err := s.pollOnce(ctx); err != nil {
			return err
		}
	}
}

// serveUntilDone is rank 0's loop: it owns the barrier call that, once
// issued, completes the collective every other rank is already waiting on.
func (s *Server) serveUntilDone(ctx context.Context) error {
	for {
		ready, _ := s.inter.Probe(comm.TagConsumer)
		if !ready {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Millisecond):
			}
			continue
		}
		srcRank, payload, err := s.inter.Recv(ctx, comm.TagConsumer)
		if err != nil {
			return errs.WrapProtocol("rankserver: recv", err)
		}
		kind, body, err := splitKind(payload)
		if err != nil {
			return err
		}
		if kind == wire.KindDone {
			return s.intra.Barrier(ctx)
		}
		if err := s.dispatch(ctx, srcRank, kind, body); err != nil {
			return err
		}
	}
}

func (s *Server) pollOnce(ctx context.Context) error {
	ready, _ := s.inter.Probe(comm.TagConsumer)
	if !ready {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
		return nil
	}
	srcRank, payload, err := s.inter.Recv(ctx, comm.TagConsumer)
	if err != nil {
		return errs.WrapProtocol("rankserver: recv", err)
	}
	kind, body, err := splitKind(payload)
	if err != nil {
		return err
	}
	if kind == wire.KindDone {
		// Non-root ranks never receive `done` directly in spec.md's
		// design (it targets rank 0), but tolerate it defensively.
		return nil
	}
	return s.dispatch(ctx, srcRank, kind, body)
}

func splitKind(payload []byte) (wire.Kind, *bytes.Reader, error) {
	r := bytes.NewReader(payload)
	k, err := wire.ReadKind(r)
	if err != nil {
		return 0, nil, err
	}
	return k, r, nil
}
