package comm

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/diatomic/lowfive/internal/errs"
)

// TCPIntercomm implements InterComm over a fixed mesh of net.Conn, one per
// remote rank, framed as [tag uint8][length uint64][payload]. It is the
// out-of-process counterpart to InprocIntercomm: same Send/Recv/Probe
// contract, real sockets underneath.
type TCPIntercomm struct {
	localRank  int
	remoteSize int
	conns      []net.Conn
	log        *log.Logger

	mu      sync.Mutex
	pending map[Tag][]tcpEnvelope
	closed  bool
}

type tcpEnvelope struct {
	srcRank int
	payload []byte
}

// DialTCPIntercomm connects localRank to every address in remoteAddrs, in
// rank order, and starts a reader goroutine per connection that demuxes
// incoming frames by tag into an in-memory queue Recv/Probe consult.
func DialTCPIntercomm(localRank int, remoteAddrs []string) (*TCPIntercomm, error) {
	c := &TCPIntercomm{
		localRank:  localRank,
		remoteSize: len(remoteAddrs),
		conns:      make([]net.Conn, len(remoteAddrs)),
		log:        log.New(os.Stderr, fmt.Sprintf("comm[rank=%d]: ", localRank), log.LstdFlags),
		pending:    make(map[Tag][]tcpEnvelope),
	}
	for i, addr := range remoteAddrs {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return nil, errs.WrapProtocol(fmt.Sprintf("comm: dial remote rank %d at %s", i, addr), err)
		}
		c.conns[i] = conn
		go c.readLoop(i, conn)
	}
	return c, nil
}

// ListenTCPIntercomm accepts remoteSize connections on listener, in the
// order remote ranks connect, and assigns them rank ids 0..remoteSize-1 by
// arrival order (callers needing a stable mapping should have each remote
// rank announce its id as the first frame; left to the caller per
// spec.md's "two peer processes are assumed ABI-compatible").
func ListenTCPIntercomm(localRank int, ln net.Listener, remoteSize int) (*TCPIntercomm, error) {
	c := &TCPIntercomm{
		localRank:  localRank,
		remoteSize: remoteSize,
		conns:      make([]net.Conn, remoteSize),
		log:        log.New(os.Stderr, fmt.Sprintf("comm[rank=%d]: ", localRank), log.LstdFlags),
		pending:    make(map[Tag][]tcpEnvelope),
	}
	for i := 0; i < remoteSize; i++ {
		conn, err := ln.Accept()
		if err != nil {
			return nil, errs.WrapProtocol("comm: accept inbound rank connection", err)
		}
		c.conns[i] = conn
		go c.readLoop(i, conn)
	}
	return c, nil
}

func (c *TCPIntercomm) readLoop(srcRank int, conn net.Conn) {
	for {
		var header [9]byte
		if _, err := io.ReadFull(conn, header[:]); err != nil {
			c.log.Printf("connection to rank %d closed: %v", srcRank, err)
			c.markClosed()
			return
		}
		tag := Tag(header[0])
		n := binary.LittleEndian.Uint64(header[1:])
		payload := make([]byte, n)
		if _, err := io.ReadFull(conn, payload); err != nil {
			c.log.Printf("truncated frame from rank %d: %v", srcRank, err)
			c.markClosed()
			return
		}
		c.mu.Lock()
		c.pending[tag] = append(c.pending[tag], tcpEnvelope{srcRank: srcRank, payload: payload})
		c.mu.Unlock()
	}
}

func (c *TCPIntercomm) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *TCPIntercomm) Send(ctx context.Context, destRank int, tag Tag, payload []byte) error {
	var header [9]byte
	header[0] = byte(tag)
	binary.LittleEndian.PutUint64(header[1:], uint64(len(payload)))
	conn := c.conns[destRank]
	if _, err := conn.Write(header[:]); err != nil {
		return errs.WrapProtocol(fmt.Sprintf("comm: send header to rank %d", destRank), err)
	}
	if _, err := conn.Write(payload); err != nil {
		return errs.WrapProtocol(fmt.Sprintf("comm: send payload to rank %d", destRank), err)
	}
	return nil
}

func (c *TCPIntercomm) Recv(ctx context.Context, tag Tag) (int, []byte, error) {
	for {
		c.mu.Lock()
		q := c.pending[tag]
		if len(q) > 0 {
			e := q[0]
			c.pending[tag] = q[1:]
			c.mu.Unlock()
			return e.srcRank, e.payload, nil
		}
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return 0, nil, ErrClosed
		}
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (c *TCPIntercomm) Probe(tag Tag) (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.pending[tag]
	if len(q) == 0 {
		return false, 0
	}
	return true, q[0].srcRank
}

func (c *TCPIntercomm) RemoteSize() int { return c.remoteSize }
func (c *TCPIntercomm) LocalRank() int  { return c.localRank }

func (c *TCPIntercomm) Close() error {
	var first error
	for _, conn := range c.conns {
		if conn == nil {
			continue
		}
		if err := conn.Close(); err != nil && first == nil {
			first = err
		}
	}
	c.markClosed()
	return first
}
