// Package wire implements the producer/consumer message protocol of
// spec.md §6: a 32-bit message-kind discriminator followed by a
// kind-specific payload, all integers native-endian fixed-width, strings
// as a uint64 length prefix plus bytes, dataspaces via internal/space's
// own Encode/Decode.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/diatomic/lowfive/internal/errs"
	"github.com/diatomic/lowfive/internal/space"
)

// Kind discriminates the message grammar of spec.md §6.
type Kind uint32

const (
	KindReady Kind = iota
	KindID
	KindDimension
	KindDomain
	KindRedirect
	KindData
	KindDone
)

func (k Kind) String() string {
	switch k {
	case KindReady:
		return "ready"
	case KindID:
		return "id"
	case KindDimension:
		return "dimension"
	case KindDomain:
		return "domain"
	case KindRedirect:
		return "redirect"
	case KindData:
		return "data"
	case KindDone:
		return "done"
	default:
		return "unknown"
	}
}

// Tag distinguishes the two tags spec.md §6 sends messages under.
type Tag uint8

const (
	TagProducer Tag = iota
	TagConsumer
)

var byteOrder = binary.LittleEndian

// WriteKind writes a message-kind discriminator.
func WriteKind(w io.Writer, k Kind) error {
	var buf [4]byte
	byteOrder.PutUint32(buf[:], uint32(k))
	_, err := w.Write(buf[:])
	return errs.WrapProtocol("wire: write kind", err)
}

// ReadKind reads a message-kind discriminator.
func ReadKind(r io.Reader) (Kind, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, errs.WrapProtocol("wire: read kind", err)
	}
	return Kind(byteOrder.Uint32(buf[:])), nil
}

// WriteString writes a uint64-length-prefixed UTF-8 string.
func WriteString(w io.Writer, s string) error {
	var lenBuf [8]byte
	byteOrder.PutUint64(lenBuf[:], uint64(len(s)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return errs.WrapProtocol("wire: write string length", err)
	}
	if _, err := io.WriteString(w, s); err != nil {
		return errs.WrapProtocol("wire: write string bytes", err)
	}
	return nil
}

// ReadString reads a uint64-length-prefixed UTF-8 string.
func ReadString(r io.Reader) (string, error) {
	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", errs.WrapProtocol("wire: read string length", err)
	}
	n := byteOrder.Uint64(lenBuf[:])
	if n > 1<<32 {
		return "", errs.NewProtocol(fmt.Sprintf("wire: implausible string length %d", n))
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", errs.WrapProtocol("wire: read string bytes", err)
	}
	return string(buf), nil
}

// WriteInt32 writes a fixed-width int32.
func WriteInt32(w io.Writer, v int32) error {
	var buf [4]byte
	byteOrder.PutUint32(buf[:], uint32(v))
	_, err := w.Write(buf[:])
	return errs.WrapProtocol("wire: write int32", err)
}

// ReadInt32 reads a fixed-width int32.
func ReadInt32(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, errs.WrapProtocol("wire: read int32", err)
	}
	return int32(byteOrder.Uint32(buf[:])), nil
}

// WriteBytes writes a uint64-length-prefixed raw byte blob.
func WriteBytes(w io.Writer, b []byte) error {
	var lenBuf [8]byte
	byteOrder.PutUint64(lenBuf[:], uint64(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return errs.WrapProtocol("wire: write bytes length", err)
	}
	if _, err := w.Write(b); err != nil {
		return errs.WrapProtocol("wire: write bytes body", err)
	}
	return nil
}

// ReadBytes reads a uint64-length-prefixed raw byte blob.
func ReadBytes(r io.Reader) ([]byte, error) {
	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, errs.WrapProtocol("wire: read bytes length", err)
	}
	n := byteOrder.Uint64(lenBuf[:])
	if n > 1<<32 {
		return nil, errs.NewProtocol(fmt.Sprintf("wire: implausible byte blob length %d", n))
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errs.WrapProtocol("wire: read bytes body", err)
	}
	return buf, nil
}

// WriteDataspace writes a dataspace using space.Encode, length-prefixed so
// the reader need not know the payload's size in advance.
func WriteDataspace(w io.Writer, d *space.Dataspace) error {
	return WriteBytes(w, d.Encode())
}

// ReadDataspace reads a dataspace written by WriteDataspace.
func ReadDataspace(r io.Reader) (*space.Dataspace, error) {
	buf, err := ReadBytes(r)
	if err != nil {
		return nil, err
	}
	d, n, err := space.Decode(buf)
	if err != nil {
		return nil, errs.WrapProtocol("wire: decode dataspace", err)
	}
	if n != len(buf) {
		return nil, errs.NewProtocol("wire: trailing bytes after dataspace")
	}
	return d, nil
}
