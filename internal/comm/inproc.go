package comm

import (
	"context"
	"sync"
	"time"
)

// inprocState is the barrier/broadcast state shared by every rank of one
// in-process group; InprocGroup values are thin per-rank handles onto it.
type inprocState struct {
	size int

	mu      sync.Mutex
	gen     int
	arrived int
	wake    chan struct{}

	bmu   sync.Mutex
	bgen  int
	barr  int
	bval  []byte
	bwake chan struct{}

	// mesh[i][j] carries point-to-point messages from rank i to rank j,
	// reusing the tagged inprocLink queue inproc_intercomm.go already
	// defines for InterComm traffic; intra traffic always uses tagIntra
	// since there is no rank-pair-local notion of a producer/consumer tag.
	mesh [][]*inprocLink
}

// tagIntra is the single Tag intra-communicator point-to-point messages
// are pushed under; it never appears on an InterComm, so it is chosen
// outside Tag's own small enum to make that visible at a glance.
const tagIntra Tag = -1

func newInprocState(size int) *inprocState {
	mesh := make([][]*inprocLink, size)
	for i := range mesh {
		mesh[i] = make([]*inprocLink, size)
		for j := range mesh[i] {
			mesh[i][j] = newInprocLink()
		}
	}
	return &inprocState{size: size, wake: make(chan struct{}), bwake: make(chan struct{}), mesh: mesh}
}

// InprocGroup implements Comm for ranks that are really goroutines sharing
// memory, used to exercise multi-rank scenarios (spec.md §8 S1-S6) without
// spawning real processes.
type InprocGroup struct {
	rank  int
	state *inprocState
}

// NewInprocGroup creates size cooperating ranks sharing one barrier and
// broadcast state; index i of the result is rank i's Comm handle.
func NewInprocGroup(size int) []*InprocGroup {
	state := newInprocState(size)
	ranks := make([]*InprocGroup, size)
	for i := range ranks {
		ranks[i] = &InprocGroup{rank: i, state: state}
	}
	return ranks
}

func (g *InprocGroup) Rank() int { return g.rank }
func (g *InprocGroup) Size() int { return g.state.size }

// Barrier blocks until every rank in the group has called Barrier for the
// current generation, then releases them all together.
func (g *InprocGroup) Barrier(ctx context.Context) error {
	s := g.state
	s.mu.Lock()
	s.arrived++
	if s.arrived == s.size {
		s.arrived = 0
		s.gen++
		closing := s.wake
		s.wake = make(chan struct{})
		s.mu.Unlock()
		close(closing)
		return nil
	}
	wake := s.wake
	s.mu.Unlock()

	select {
	case <-wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Broadcast sends buf from root to every rank. Non-root callers pass a nil
// buf and receive root's value; root's own call returns buf unchanged.
func (g *InprocGroup) Broadcast(ctx context.Context, root int, buf []byte) ([]byte, error) {
	s := g.state
	s.bmu.Lock()
	if g.rank == root {
		s.bval = buf
	}
	s.barr++
	if s.barr == s.size {
		s.barr = 0
		s.bgen++
		val := s.bval
		closing := s.bwake
		s.bwake = make(chan struct{})
		s.bmu.Unlock()
		close(closing)
		return val, nil
	}
	wake := s.bwake
	s.bmu.Unlock()

	select {
	case <-wake:
		s.bmu.Lock()
		val := s.bval
		s.bmu.Unlock()
		return val, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send delivers payload to destRank, another rank sharing this group's
// state; a rank sending to itself is valid and is delivered the same way.
func (g *InprocGroup) Send(ctx context.Context, destRank int, payload []byte) error {
	cp := append([]byte(nil), payload...)
	g.state.mesh[g.rank][destRank].push(tagIntra, g.rank, cp)
	return nil
}

// Recv blocks until a message from any rank of the group arrives.
func (g *InprocGroup) Recv(ctx context.Context) (int, []byte, error) {
	for {
		for src := 0; src < g.state.size; src++ {
			if e, ok := g.state.mesh[src][g.rank].pop(tagIntra); ok {
				return e.srcRank, e.payload, nil
			}
		}
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// Probe reports whether a message addressed to this rank is already
// queued, without consuming it.
func (g *InprocGroup) Probe() (bool, int) {
	for src := 0; src < g.state.size; src++ {
		link := g.state.mesh[src][g.rank]
		link.mu.Lock()
		q := link.pending[tagIntra]
		if len(q) > 0 {
			srcRank := q[0].srcRank
			link.mu.Unlock()
			return true, srcRank
		}
		link.mu.Unlock()
	}
	return false, 0
}
