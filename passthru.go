package lowfive

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/diatomic/lowfive/diskhdf5"
	"github.com/diatomic/lowfive/internal/errs"
	"github.com/diatomic/lowfive/internal/space"
)

// passthruFile wraps the teacher's from-scratch on-disk HDF5 writer, the
// "underlying HDF5 native implementation" spec.md §4.D forwards passthru
// operations to. It only covers fixed-size numeric datatypes: compound,
// opaque and variable-length strings have no forwarding path here (see
// DESIGN.md) and are expected to be routed through `memory`/`zerocopy`
// policy instead.
//
// groups and datasets track every *diskhdf5.GroupWriter/DatasetWriter this
// file has created, keyed by absolute path. diskhdf5.FileWriter.OpenDataset
// can reopen a write handle for attribute access, but every diskhdf5 test
// that calls it does so only after a Close+reopen round trip — never
// within the same still-open write session a dataset was created in — so
// attribute forwarding holds onto the handle CreateGroup/CreateDataset
// already handed back instead of risking a same-session reopen.
type passthruFile struct {
	fw       *diskhdf5.FileWriter
	cfg      passthruConfig
	groups   map[string]*diskhdf5.GroupWriter
	datasets map[string]*diskhdf5.DatasetWriter
}

func createPassthruFile(filename string, cfg passthruConfig) (*passthruFile, error) {
	var opts []interface{}
	if cfg.lazyRebalance {
		opts = append(opts, diskhdf5.WithLazyRebalancing(diskhdf5.LazyThreshold(cfg.lazyThreshold)))
	}
	fw, err := diskhdf5.CreateForWrite(filename, diskhdf5.CreateTruncate, opts...)
	if err != nil {
		return nil, err
	}
	return &passthruFile{
		fw:       fw,
		cfg:      cfg,
		groups:   make(map[string]*diskhdf5.GroupWriter),
		datasets: make(map[string]*diskhdf5.DatasetWriter),
	}, nil
}

// CreateGroup forwards a memory-side group create to the passthru backend
// (spec.md §4.D "forwards to the passthru backend"), keeping the returned
// write handle around so attributes attached to this group later can be
// forwarded too.
func (p *passthruFile) CreateGroup(path string) error {
	gw, err := p.fw.CreateGroup(path)
	if err != nil {
		return err
	}
	p.groups[path] = gw
	return nil
}

// CreateDataset forwards a memory-side dataset create, chunked with the
// Core's configured chunk shape and filters (WithPassthruChunking/
// WithPassthruCompression/WithPassthruChecksum) when one was set;
// otherwise the backend lays the dataset out contiguous, matching
// diskhdf5's own default.
func (p *passthruFile) CreateDataset(path string, typ space.Datatype, dims []int64) error {
	dtype, err := toPassthruDatatype(typ)
	if err != nil {
		return err
	}
	udims := make([]uint64, len(dims))
	for i, d := range dims {
		udims[i] = uint64(d)
	}
	dw, err := p.fw.CreateDataset(path, dtype, udims, p.datasetOptions()...)
	if err != nil {
		return err
	}
	p.datasets[path] = dw
	return nil
}

// datasetOptions translates the Core's passthru tuning knobs into
// diskhdf5.DatasetOption values; compression and the fletcher32 checksum
// both require chunking, so they are only applied when a chunk shape was
// configured.
func (p *passthruFile) datasetOptions() []diskhdf5.DatasetOption {
	if len(p.cfg.chunkDims) == 0 {
		return nil
	}
	uchunk := make([]uint64, len(p.cfg.chunkDims))
	for i, d := range p.cfg.chunkDims {
		uchunk[i] = uint64(d)
	}
	opts := []diskhdf5.DatasetOption{diskhdf5.WithChunkDims(uchunk)}
	if p.cfg.shuffle {
		opts = append(opts, diskhdf5.WithShuffle())
	}
	if p.cfg.gzipLevel > 0 {
		opts = append(opts, diskhdf5.WithGZIPCompression(p.cfg.gzipLevel))
	}
	if p.cfg.fletcher32 {
		opts = append(opts, diskhdf5.WithFletcher32())
	}
	return opts
}

// CreateHardLink forwards a memory-side hard link create (tree.HardLink)
// to the passthru backend, aliasing an already-written object under a
// second path.
func (p *passthruFile) CreateHardLink(linkPath, targetPath string) error {
	return p.fw.CreateHardLink(linkPath, targetPath)
}

// CreateSoftLink forwards a memory-side soft link create (tree.SoftLink),
// which the backend stores as a path that resolves lazily and may dangle.
func (p *passthruFile) CreateSoftLink(linkPath, targetPath string) error {
	return p.fw.CreateSoftLink(linkPath, targetPath)
}

// WriteAttribute forwards a memory-side attribute write to the object at
// objPath (spec.md §4.D attribute create/write), reaching diskhdf5's own
// compact-to-dense promotion (diskhdf5.GroupWriter/DatasetWriter.WriteAttribute,
// internal/structures' fractal heap and B-tree v2 once an object accumulates
// MaxCompactAttributes attributes). objPath "/" (the file root) has no
// passthru handle to target — diskhdf5.FileWriter exposes no root
// GroupWriter — so root-level attributes are silently skipped here, the
// same scope limit CreateGroup/CreateDataset already apply to path "/".
func (p *passthruFile) WriteAttribute(objPath, name string, typ space.Datatype, dims []int64, buf []byte) error {
	value, err := toPassthruAttrValue(typ, dims, buf)
	if err != nil {
		return err
	}
	if gw, ok := p.groups[objPath]; ok {
		return gw.WriteAttribute(name, value)
	}
	if dw, ok := p.datasets[objPath]; ok {
		return dw.WriteAttribute(name, value)
	}
	return nil
}

// Close closes the underlying file writer.
func (p *passthruFile) Close() error { return p.fw.Close() }

// toPassthruDatatype maps the core's Datatype onto diskhdf5's enum, the
// intersection of element types both the triple store and the teacher's
// on-disk encoder understand natively.
func toPassthruDatatype(typ space.Datatype) (diskhdf5.Datatype, error) {
	switch {
	case typ.Equal(space.Int32):
		return diskhdf5.Int32, nil
	case typ.Equal(space.Int64):
		return diskhdf5.Int64, nil
	case typ.Equal(space.Float32):
		return diskhdf5.Float32, nil
	case typ.Equal(space.Float64):
		return diskhdf5.Float64, nil
	default:
		return 0, errs.WrapResource("lowfive: passthru", fmt.Errorf("unsupported datatype for passthru forwarding: class=%v size=%d varlen=%v", typ.Class, typ.Size, typ.VarLen))
	}
}

// toPassthruAttrValue decodes a raw attribute buffer (little-endian, the
// module's wire convention throughout, e.g. internal/dataset/stringtable.go)
// into the Go scalar/slice diskhdf5.WriteAttribute expects: a 1-element
// dataspace decodes to a bare scalar, matching the examples diskhdf5's own
// WriteAttribute doc comment gives (`ds.WriteAttribute("sensor_id",
// int32(42))`); anything larger decodes to a typed slice.
func toPassthruAttrValue(typ space.Datatype, dims []int64, buf []byte) (interface{}, error) {
	n := int64(1)
	for _, d := range dims {
		n *= d
	}
	switch {
	case typ.Equal(space.Int32):
		vals := make([]int32, n)
		for i := range vals {
			vals[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
		}
		if n == 1 {
			return vals[0], nil
		}
		return vals, nil
	case typ.Equal(space.Int64):
		vals := make([]int64, n)
		for i := range vals {
			vals[i] = int64(binary.LittleEndian.Uint64(buf[i*8:]))
		}
		if n == 1 {
			return vals[0], nil
		}
		return vals, nil
	case typ.Equal(space.Float32):
		vals := make([]float32, n)
		for i := range vals {
			vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		}
		if n == 1 {
			return vals[0], nil
		}
		return vals, nil
	case typ.Equal(space.Float64):
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
		}
		if n == 1 {
			return vals[0], nil
		}
		return vals, nil
	default:
		return nil, errs.WrapResource("lowfive: passthru", fmt.Errorf("unsupported datatype for passthru attribute forwarding: class=%v size=%d varlen=%v", typ.Class, typ.Size, typ.VarLen))
	}
}
