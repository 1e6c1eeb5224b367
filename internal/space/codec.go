package space

import (
	"encoding/binary"
	"fmt"
)

// Encode serializes the dataspace to an opaque byte buffer (spec.md §4.B
// "Encoding/decoding to an opaque byte buffer is required for wire
// transport"). Integers are native-endian fixed-width per spec.md §6.
func (d *Dataspace) Encode() []byte {
	buf := make([]byte, 0, 64)
	buf = appendU32(buf, uint32(d.Rank()))
	for i := range d.Dims {
		buf = appendI64(buf, d.Dims[i])
		buf = appendI64(buf, d.MaxDims[i])
	}
	buf = append(buf, byte(d.Sel.Kind))
	switch d.Sel.Kind {
	case KindHyperslab:
		buf = appendU32(buf, uint32(len(d.Sel.Blocks)))
		for _, b := range d.Sel.Blocks {
			for _, v := range b.Start {
				buf = appendI64(buf, v)
			}
			for _, v := range b.Count {
				buf = appendI64(buf, v)
			}
		}
	case KindPoints:
		buf = appendU32(buf, uint32(len(d.Sel.Points)))
		for _, p := range d.Sel.Points {
			for _, v := range p {
				buf = appendI64(buf, v)
			}
		}
	}
	return buf
}

// Decode parses a dataspace encoded with Encode and returns the number of
// bytes consumed so callers can decode successive values from one buffer
// (spec.md §6 wire grammar, e.g. `redirect`'s list of dataspaces).
func Decode(buf []byte) (*Dataspace, int, error) {
	if len(buf) < 4 {
		return nil, 0, fmt.Errorf("space: decode: buffer too short for rank")
	}
	rank := int(binary.LittleEndian.Uint32(buf))
	off := 4
	if rank <= 0 || rank > MaxDims {
		return nil, 0, fmt.Errorf("space: decode: invalid rank %d", rank)
	}
	dims := make([]int64, rank)
	maxdims := make([]int64, rank)
	for i := 0; i < rank; i++ {
		if len(buf) < off+16 {
			return nil, 0, fmt.Errorf("space: decode: truncated extent")
		}
		dims[i] = readI64(buf[off:])
		off += 8
		maxdims[i] = readI64(buf[off:])
		off += 8
	}
	if len(buf) < off+1 {
		return nil, 0, fmt.Errorf("space: decode: truncated selection kind")
	}
	kind := Kind(buf[off])
	off++

	d := &Dataspace{Dims: dims, MaxDims: maxdims}
	switch kind {
	case KindAll:
		d.Sel = AllSelection()
	case KindNone:
		d.Sel = NoneSelection()
	case KindHyperslab:
		if len(buf) < off+4 {
			return nil, 0, fmt.Errorf("space: decode: truncated block count")
		}
		n := int(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		blocks := make([]Box, n)
		for i := 0; i < n; i++ {
			start := make([]int64, rank)
			count := make([]int64, rank)
			for j := 0; j < rank; j++ {
				start[j] = readI64(buf[off:])
				off += 8
			}
			for j := 0; j < rank; j++ {
				count[j] = readI64(buf[off:])
				off += 8
			}
			blocks[i] = Box{Start: start, Count: count}
		}
		d.Sel = Selection{Kind: KindHyperslab, Blocks: blocks}
	case KindPoints:
		if len(buf) < off+4 {
			return nil, 0, fmt.Errorf("space: decode: truncated point count")
		}
		n := int(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		points := make([][]int64, n)
		for i := 0; i < n; i++ {
			p := make([]int64, rank)
			for j := 0; j < rank; j++ {
				p[j] = readI64(buf[off:])
				off += 8
			}
			points[i] = p
		}
		d.Sel = Selection{Kind: KindPoints, Points: points}
	default:
		return nil, 0, fmt.Errorf("space: decode: unknown selection kind %d", kind)
	}
	return d, off, nil
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendI64(buf []byte, v int64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	return append(buf, tmp[:]...)
}

func readI64(buf []byte) int64 {
	return int64(binary.LittleEndian.Uint64(buf))
}
