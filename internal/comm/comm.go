// Package comm abstracts the message-passing runtime spec.md §5/§6 treats
// as an external collaborator: point-to-point send/recv tagged `producer`
// or `consumer`, non-blocking probe, barrier, and broadcast. No binding for
// this exists anywhere in the retrieved example pack (see DESIGN.md), so
// two concrete transports are provided: an in-process goroutine/channel
// simulation for tests that need multiple cooperating ranks without real
// processes, and a TCP transport built on net.Conn + internal/wire framing
// for out-of-process use.
package comm

import (
	"context"

	"github.com/diatomic/lowfive/internal/errs"
)

// Tag distinguishes the two message tags spec.md §6 defines.
type Tag int

const (
	TagProducer Tag = iota
	TagConsumer
)

// Message is one framed point-to-point message: a tag plus an opaque
// payload (already wire-encoded by internal/wire).
type Message struct {
	Tag     Tag
	Payload []byte
}

// Comm is an intra-communicator: point-to-point and collective operations
// among the ranks of a single producer or consumer task (spec.md §5).
// Point-to-point Send/Recv is what internal/decomp's index construction
// (spec.md §4.E step 2, "ranks exchange all-to-some") routes a Record to
// a tile's owning rank over when that rank isn't the caller itself.
type Comm interface {
	Rank() int
	Size() int
	// Barrier blocks until every rank in the communicator has called it.
	Barrier(ctx context.Context) error
	// Broadcast sends data from root to every rank; non-root ranks pass a
	// nil buf and receive the broadcast value back.
	Broadcast(ctx context.Context, root int, buf []byte) ([]byte, error)
	// Send delivers payload to destRank, another rank of this same
	// communicator.
	Send(ctx context.Context, destRank int, payload []byte) error
	// Recv blocks until a message from any rank of this communicator
	// arrives, returning the sender's rank and the payload.
	Recv(ctx context.Context) (srcRank int, payload []byte, err error)
	// Probe reports whether a message is available without consuming it.
	Probe() (ready bool, srcRank int)
}

// InterComm is the inter-communicator linking a producer task to a
// consumer task (spec.md §6 "inter-communicator between producer and
// consumer tasks").
type InterComm interface {
	// Send delivers payload to the given remote rank under tag.
	Send(ctx context.Context, destRank int, tag Tag, payload []byte) error
	// Recv blocks until a message tagged tag arrives from any remote rank,
	// returning the sender's rank and the payload.
	Recv(ctx context.Context, tag Tag) (srcRank int, payload []byte, err error)
	// Probe reports whether a message tagged tag is available without
	// consuming it (spec.md §4.F "non-blocking probe on the
	// inter-communicator").
	Probe(tag Tag) (ready bool, srcRank int)
	// RemoteSize is the size of the peer task's communicator.
	RemoteSize() int
	// LocalRank is this rank's position within its own task.
	LocalRank() int
	// Close releases transport resources.
	Close() error
}

// ErrClosed is returned by Recv/Probe once an InterComm has been closed
// and no further messages will arrive.
var ErrClosed = errs.NewProtocol("comm: inter-communicator closed")
