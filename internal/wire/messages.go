package wire

import (
	"bytes"
	"io"

	"github.com/diatomic/lowfive/internal/errs"
	"github.com/diatomic/lowfive/internal/space"
)

// DatasetID identifies a dataset within a single producer/consumer session
// (spec.md §4.F `id` reply).
type DatasetID int32

// IDRequest is the `id` message payload: a dataset name (spec.md §6).
type IDRequest struct {
	Name string
}

func (m IDRequest) Encode(w io.Writer) error {
	if err := WriteKind(w, KindID); err != nil {
		return err
	}
	return WriteString(w, m.Name)
}

func DecodeIDRequest(r io.Reader) (IDRequest, error) {
	name, err := ReadString(r)
	return IDRequest{Name: name}, err
}

// IDReply carries the dataset id resolved for an IDRequest.
type IDReply struct {
	ID DatasetID
}

func (m IDReply) Encode(w io.Writer) error { return WriteInt32(w, int32(m.ID)) }

func DecodeIDReply(r io.Reader) (IDReply, error) {
	v, err := ReadInt32(r)
	return IDReply{ID: DatasetID(v)}, err
}

// DimensionRequest is the `dimension` message payload: a dataset id.
type DimensionRequest struct {
	ID DatasetID
}

func (m DimensionRequest) Encode(w io.Writer) error {
	if err := WriteKind(w, KindDimension); err != nil {
		return err
	}
	return WriteInt32(w, int32(m.ID))
}

func DecodeDimensionRequest(r io.Reader) (DimensionRequest, error) {
	v, err := ReadInt32(r)
	return DimensionRequest{ID: DatasetID(v)}, err
}

// DimensionReply is `(dim, type, space)` for the requested dataset.
type DimensionReply struct {
	Dim   int32
	Type  space.Datatype
	Space *space.Dataspace
}

func (m DimensionReply) Encode(w io.Writer) error {
	if err := WriteInt32(w, m.Dim); err != nil {
		return err
	}
	if err := writeDatatype(w, m.Type); err != nil {
		return err
	}
	return WriteDataspace(w, m.Space)
}

func DecodeDimensionReply(r io.Reader) (DimensionReply, error) {
	var m DimensionReply
	dim, err := ReadInt32(r)
	if err != nil {
		return m, err
	}
	typ, err := readDatatype(r)
	if err != nil {
		return m, err
	}
	sp, err := ReadDataspace(r)
	if err != nil {
		return m, err
	}
	return DimensionReply{Dim: dim, Type: typ, Space: sp}, nil
}

// DomainRequest is the `domain` message payload: a dataset id.
type DomainRequest struct{ ID DatasetID }

func (m DomainRequest) Encode(w io.Writer) error {
	if err := WriteKind(w, KindDomain); err != nil {
		return err
	}
	return WriteInt32(w, int32(m.ID))
}

func DecodeDomainRequest(r io.Reader) (DomainRequest, error) {
	v, err := ReadInt32(r)
	return DomainRequest{ID: DatasetID(v)}, err
}

// DomainReply carries the decomposer's bounding box, encoded as a
// single-block hyperslab dataspace (spec.md §6 "serialized bounding box").
type DomainReply struct {
	Box *space.Dataspace
}

func (m DomainReply) Encode(w io.Writer) error { return WriteDataspace(w, m.Box) }

func DecodeDomainReply(r io.Reader) (DomainReply, error) {
	sp, err := ReadDataspace(r)
	return DomainReply{Box: sp}, err
}

// RedirectRequest is the `redirect` message payload: `(id, dataspace)`.
type RedirectRequest struct {
	ID    DatasetID
	Query *space.Dataspace
}

func (m RedirectRequest) Encode(w io.Writer) error {
	if err := WriteKind(w, KindRedirect); err != nil {
		return err
	}
	if err := WriteInt32(w, int32(m.ID)); err != nil {
		return err
	}
	return WriteDataspace(w, m.Query)
}

func DecodeRedirectRequest(r io.Reader) (RedirectRequest, error) {
	var m RedirectRequest
	id, err := ReadInt32(r)
	if err != nil {
		return m, err
	}
	q, err := ReadDataspace(r)
	if err != nil {
		return m, err
	}
	return RedirectRequest{ID: DatasetID(id), Query: q}, nil
}

// Location is one `(dataspace, owner-rank)` pair from a BoxLocations
// lookup (spec.md §4.E/§4.F).
type Location struct {
	Space *space.Dataspace
	Owner int32
}

// RedirectReply is the list of Locations whose tile's BoxLocations
// intersect the query.
type RedirectReply struct {
	Locations []Location
}

func (m RedirectReply) Encode(w io.Writer) error {
	if err := WriteInt32(w, int32(len(m.Locations))); err != nil {
		return err
	}
	for _, loc := range m.Locations {
		if err := WriteDataspace(w, loc.Space); err != nil {
			return err
		}
		if err := WriteInt32(w, loc.Owner); err != nil {
			return err
		}
	}
	return nil
}

func DecodeRedirectReply(r io.Reader) (RedirectReply, error) {
	n, err := ReadInt32(r)
	if err != nil {
		return RedirectReply{}, err
	}
	if n < 0 {
		return RedirectReply{}, errs.NewProtocol("wire: negative redirect-reply count")
	}
	locs := make([]Location, n)
	for i := range locs {
		sp, err := ReadDataspace(r)
		if err != nil {
			return RedirectReply{}, err
		}
		owner, err := ReadInt32(r)
		if err != nil {
			return RedirectReply{}, err
		}
		locs[i] = Location{Space: sp, Owner: owner}
	}
	return RedirectReply{Locations: locs}, nil
}

// DataRequest is the `data` message payload: `(id, dataspace)`.
type DataRequest struct {
	ID    DatasetID
	Query *space.Dataspace
}

func (m DataRequest) Encode(w io.Writer) error {
	if err := WriteKind(w, KindData); err != nil {
		return err
	}
	if err := WriteInt32(w, int32(m.ID)); err != nil {
		return err
	}
	return WriteDataspace(w, m.Query)
}

func DecodeDataRequest(r io.Reader) (DataRequest, error) {
	var m DataRequest
	id, err := ReadInt32(r)
	if err != nil {
		return m, err
	}
	q, err := ReadDataspace(r)
	if err != nil {
		return m, err
	}
	return DataRequest{ID: DatasetID(id), Query: q}, nil
}

// DataEntry is one `(sub-file-space, bytes)` pair of a data reply stream
// (spec.md §4.F "Data assembly").
type DataEntry struct {
	SubSpace *space.Dataspace
	Bytes    []byte
}

// DataReply is the queue of DataEntry values a producer sends back for one
// DataRequest (spec.md §4.G step 4 "receive a stream of ... entries").
type DataReply struct {
	Entries []DataEntry
}

func (m DataReply) Encode(w io.Writer) error {
	if err := WriteInt32(w, int32(len(m.Entries))); err != nil {
		return err
	}
	for _, e := range m.Entries {
		if err := WriteDataspace(w, e.SubSpace); err != nil {
			return err
		}
		if err := WriteBytes(w, e.Bytes); err != nil {
			return err
		}
	}
	return nil
}

func DecodeDataReply(r io.Reader) (DataReply, error) {
	n, err := ReadInt32(r)
	if err != nil {
		return DataReply{}, err
	}
	if n < 0 {
		return DataReply{}, errs.NewProtocol("wire: negative data-reply count")
	}
	entries := make([]DataEntry, n)
	for i := range entries {
		sp, err := ReadDataspace(r)
		if err != nil {
			return DataReply{}, err
		}
		b, err := ReadBytes(r)
		if err != nil {
			return DataReply{}, err
		}
		entries[i] = DataEntry{SubSpace: sp, Bytes: b}
	}
	return DataReply{Entries: entries}, nil
}

// WriteReady writes a `ready` message (empty payload).
func WriteReady(w io.Writer) error { return WriteKind(w, KindReady) }

// WriteDone writes a `done` message (empty payload).
func WriteDone(w io.Writer) error { return WriteKind(w, KindDone) }

func writeDatatype(w io.Writer, t space.Datatype) error {
	var buf [6]byte
	buf[0] = byte(t.Class)
	byteOrder.PutUint32(buf[1:5], uint32(t.Size))
	if t.VarLen {
		buf[5] = 1
	}
	_, err := w.Write(buf[:])
	return errs.WrapProtocol("wire: write datatype", err)
}

func readDatatype(r io.Reader) (space.Datatype, error) {
	var buf [6]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return space.Datatype{}, errs.WrapProtocol("wire: read datatype", err)
	}
	return space.Datatype{
		Class:  space.Class(buf[0]),
		Size:   int(byteOrder.Uint32(buf[1:5])),
		VarLen: buf[5] == 1,
	}, nil
}

// EncodeToBytes is a convenience for tests and in-process transports that
// want a single []byte instead of streaming writes.
func EncodeToBytes(encode func(io.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
