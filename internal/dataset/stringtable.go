package dataset

import (
	"encoding/binary"
	"strconv"
)

// stringTable interns variable-length strings for a dataset whose element
// type is space.VLString (spec.md §4.C "For variable-length strings,
// intern each string into the dataset string table and store intern
// indices in the buffer"). Indices are stable for the life of the store:
// a string already interned is never re-added, so index equality implies
// value equality.
type stringTable struct {
	values []string
	byVal  map[string]int64
}

func newStringTable() *stringTable {
	return &stringTable{byVal: make(map[string]int64)}
}

// Intern returns the stable index for s, adding it if this is the first
// occurrence.
func (t *stringTable) Intern(s string) int64 {
	if idx, ok := t.byVal[s]; ok {
		return idx
	}
	idx := int64(len(t.values))
	t.values = append(t.values, s)
	t.byVal[s] = idx
	return idx
}

// Lookup returns the string stored at idx.
func (t *stringTable) Lookup(idx int64) (string, bool) {
	if idx < 0 || idx >= int64(len(t.values)) {
		return "", false
	}
	return t.values[idx], true
}

// InternStrings interns each of vals into the dataset's string table and
// returns a little-endian int64-per-element buffer of their indices, ready
// to pass as Write's buf for a VLString dataset.
func (s *Store) InternStrings(vals []string) []byte {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		idx := s.strings.Intern(v)
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(idx))
	}
	return buf
}

// ResolveStrings decodes a little-endian int64-per-element index buffer
// (as produced by Read against a VLString dataset) back into strings,
// duplicating into caller-owned memory (spec.md §4.C "duplicate into
// caller-owned memory").
func (s *Store) ResolveStrings(buf []byte) ([]string, error) {
	n := len(buf) / 8
	out := make([]string, n)
	for i := 0; i < n; i++ {
		idx := int64(binary.LittleEndian.Uint64(buf[i*8:]))
		v, ok := s.strings.Lookup(idx)
		if !ok {
			return nil, errNoSuchIndex(idx)
		}
		out[i] = v
	}
	return out, nil
}

func errNoSuchIndex(idx int64) error {
	return &stringIndexError{idx: idx}
}

type stringIndexError struct{ idx int64 }

func (e *stringIndexError) Error() string {
	return "dataset: no interned string at index " + strconv.FormatInt(e.idx, 10)
}
