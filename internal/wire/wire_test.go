package wire_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/diatomic/lowfive/internal/space"
	"github.com/diatomic/lowfive/internal/wire"
)

func TestKindRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, wire.WriteKind(&buf, wire.KindRedirect))
	k, err := wire.ReadKind(&buf)
	require.NoError(t, err)
	require.Equal(t, wire.KindRedirect, k)
	require.Equal(t, "redirect", k.String())
}

func TestIDMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := wire.IDRequest{Name: "temperature"}
	require.NoError(t, req.Encode(&buf))
	k, err := wire.ReadKind(&buf)
	require.NoError(t, err)
	require.Equal(t, wire.KindID, k)
	decoded, err := wire.DecodeIDRequest(&buf)
	require.NoError(t, err)
	require.Equal(t, req, decoded)
}

func TestDimensionReplyRoundTrip(t *testing.T) {
	sp, err := space.NewSimple([]int64{4, 4})
	require.NoError(t, err)
	require.NoError(t, sp.SelectHyperslab([]int64{1, 1}, []int64{2, 2}))

	reply := wire.DimensionReply{Dim: 2, Type: space.Float64, Space: sp}
	var buf bytes.Buffer
	require.NoError(t, reply.Encode(&buf))
	decoded, err := wire.DecodeDimensionReply(&buf)
	require.NoError(t, err)
	require.Equal(t, reply.Dim, decoded.Dim)
	require.Equal(t, reply.Type, decoded.Type)
	require.Equal(t, sp.Dims, decoded.Space.Dims)
	require.Equal(t, sp.Size(), decoded.Space.Size())
}

func TestRedirectReplyRoundTrip(t *testing.T) {
	a, _ := space.NewSimple([]int64{4})
	b, _ := space.NewSimple([]int64{4})
	reply := wire.RedirectReply{Locations: []wire.Location{
		{Space: a, Owner: 0},
		{Space: b, Owner: 3},
	}}
	var buf bytes.Buffer
	require.NoError(t, reply.Encode(&buf))
	decoded, err := wire.DecodeRedirectReply(&buf)
	require.NoError(t, err)
	require.Len(t, decoded.Locations, 2)
	require.Equal(t, int32(0), decoded.Locations[0].Owner)
	require.Equal(t, int32(3), decoded.Locations[1].Owner)
}

func TestDataReplyRoundTrip(t *testing.T) {
	sp, _ := space.NewSimple([]int64{2})
	reply := wire.DataReply{Entries: []wire.DataEntry{
		{SubSpace: sp, Bytes: []byte{1, 2, 3, 4}},
	}}
	var buf bytes.Buffer
	require.NoError(t, reply.Encode(&buf))
	decoded, err := wire.DecodeDataReply(&buf)
	require.NoError(t, err)
	require.Len(t, decoded.Entries, 1)
	require.Equal(t, []byte{1, 2, 3, 4}, decoded.Entries[0].Bytes)
}

func TestReadyAndDoneHaveNoPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, wire.WriteReady(&buf))
	k, err := wire.ReadKind(&buf)
	require.NoError(t, err)
	require.Equal(t, wire.KindReady, k)
	require.Zero(t, buf.Len())
}

func TestReadBytesRejectsTruncatedInput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, wire.WriteBytes(&buf, []byte("hello")))
	truncated := buf.Bytes()[:len(buf.Bytes())-2]
	_, err := wire.ReadBytes(bytes.NewReader(truncated))
	require.Error(t, err)
}
