package comm_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/diatomic/lowfive/internal/comm"
)

func TestTCPIntercommSendRecv(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	type acceptResult struct {
		c   *comm.TCPIntercomm
		err error
	}
	acceptCh := make(chan acceptResult, 1)
	go func() {
		c, err := comm.ListenTCPIntercomm(0, ln, 1)
		acceptCh <- acceptResult{c, err}
	}()

	dialer, err := comm.DialTCPIntercomm(0, []string{ln.Addr().String()})
	require.NoError(t, err)
	defer dialer.Close()

	res := <-acceptCh
	require.NoError(t, res.err)
	listener := res.c
	defer listener.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, dialer.Send(ctx, 0, comm.TagConsumer, []byte("ping")))
	src, payload, err := listener.Recv(ctx, comm.TagConsumer)
	require.NoError(t, err)
	require.Equal(t, 0, src)
	require.Equal(t, []byte("ping"), payload)

	require.NoError(t, listener.Send(ctx, 0, comm.TagProducer, []byte("pong")))
	src, payload, err = dialer.Recv(ctx, comm.TagProducer)
	require.NoError(t, err)
	require.Equal(t, 0, src)
	require.Equal(t, []byte("pong"), payload)
}
