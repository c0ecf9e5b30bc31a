// Package argindex implements C9: the per-offset bitmap indexes over
// event argument values, keyed by the record position they occupy.
package argindex

import (
	"fmt"
	"strings"
	"sync"

	"github.com/unsecureio/vast/internal/bitstream"
	"github.com/unsecureio/vast/internal/coder"
	"github.com/unsecureio/vast/internal/value"
	"github.com/unsecureio/vast/internal/vindex"
	"github.com/unsecureio/vast/internal/wire"
)

// ArgIndex holds one typed bitmap index per distinct field offset seen
// across indexed events, plus a by-kind view used by type_extractor
// (spec §3, §4.7).
type ArgIndex struct {
	mu sync.RWMutex

	maxStringSize       int
	maxContainerElements int

	args  map[string]vindex.Index
	types map[value.Kind][]vindex.Index
}

// New constructs an empty ArgIndex. maxStringSize and
// maxContainerElements are forwarded to every typed index created on
// demand (spec §6).
func New(maxStringSize, maxContainerElements int) *ArgIndex {
	return &ArgIndex{
		maxStringSize:        maxStringSize,
		maxContainerElements: maxContainerElements,
		args:                 make(map[string]vindex.Index),
		types:                make(map[value.Kind][]vindex.Index),
	}
}

// Index writes a batch of events, in ascending ID order, descending
// into nested records and creating typed indexes lazily per offset.
func (a *ArgIndex) Index(events []value.Event) error {
	var lastID uint64
	for i, e := range events {
		if i > 0 && e.ID <= lastID {
			return fmt.Errorf("argindex: batch not in ID-ascending order at event %d", i)
		}
		lastID = e.ID
		if err := a.indexRecord(e.ID, value.Offset{}, e.Value); err != nil {
			return err
		}
	}
	return nil
}

// indexRecord descends rec field by field, extending base with each
// field's position.
func (a *ArgIndex) indexRecord(id uint64, base value.Offset, rec value.Record) error {
	for i, f := range rec {
		off := base.Child(i)
		switch f.Value.Kind {
		case value.KindTable:
			// Table-typed fields have no fixed arity and so no stable
			// offset to index under; left unindexed (open question in
			// the original design, resolved the same way here).
			continue
		case value.KindRecord:
			if err := a.indexRecord(id, off, f.Value.Rec); err != nil {
				return err
			}
		default:
			if err := a.indexValue(id, off, f.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *ArgIndex) indexValue(id uint64, off value.Offset, v value.Value) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := off.String()
	idx, ok := a.args[key]
	if !ok {
		idx = vindex.New(v.Kind, a.maxStringSize, a.maxContainerElements)
		if idx == nil {
			return fmt.Errorf("argindex: no index available for kind %s at offset %s", v.Kind, key)
		}
		a.args[key] = idx
		a.types[v.Kind] = append(a.types[v.Kind], idx)
	}

	cur := idx.Size()
	if id < cur {
		return fmt.Errorf("argindex: event id %d already indexed at offset %s (current length %d)", id, key, cur)
	}
	if gap := id - cur; gap > 0 {
		idx.Append(gap, false)
	}
	if !idx.PushBack(v) {
		return fmt.Errorf("argindex: row overflow at offset %s, id %d", key, id)
	}
	return nil
}

// Lookup resolves (op, v) against the index at off, if one exists. size
// is the partition's current row count: an offset nothing has written to
// yet matches nothing, over the full row range rather than a length-zero
// stream, so callers can combine the result with others via And/Or
// without padding first (spec §7 "no panics on valid input").
func (a *ArgIndex) Lookup(off value.Offset, op coder.Op, v value.Value, size uint64) (*bitstream.Bitstream, error) {
	a.mu.RLock()
	idx, ok := a.args[off.String()]
	a.mu.RUnlock()
	if !ok {
		return bitstream.Repeat(size, false), nil
	}
	return idx.Lookup(op, v)
}

// ByKind returns every offset's index whose values are of kind, for
// type_extractor evaluation (spec §4.7).
func (a *ArgIndex) ByKind(kind value.Kind) []vindex.Index {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]vindex.Index, len(a.types[kind]))
	copy(out, a.types[kind])
	return out
}

// Offsets returns every offset currently indexed.
func (a *ArgIndex) Offsets() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.args))
	for k := range a.args {
		out = append(out, k)
	}
	return out
}

type argBlob struct {
	Kind value.Kind
	Blob []byte
}

// fileName implements spec §4.6's per-offset naming convention.
func fileName(off string) string { return "@" + off + ".idx" }

func offsetFromFileName(name string) (string, bool) {
	if !strings.HasPrefix(name, "@") || !strings.HasSuffix(name, ".idx") {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, "@"), ".idx"), true
}

// Serialize emits one file per offset, named "@<offset>.idx", whose
// payload pairs the index's value kind with its serialized bitmap index
// (spec §4.6).
func (a *ArgIndex) Serialize() (map[string][]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	files := make(map[string][]byte, len(a.args))
	for off, idx := range a.args {
		blob, err := idx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("argindex: marshal offset %s: %w", off, err)
		}
		payload, err := wire.Encode(argBlob{Kind: idx.Kind(), Blob: blob})
		if err != nil {
			return nil, fmt.Errorf("argindex: encode offset %s: %w", off, err)
		}
		files[fileName(off)] = payload
	}
	return files, nil
}

// Load reconstructs an ArgIndex from the files Serialize produced,
// grouping indexes back into the types table by the kind tag each file
// carries (spec §4.6). Non-matching file names are ignored, so the same
// map a partition loads its meta index files from can be passed here
// unfiltered.
func Load(files map[string][]byte, maxStringSize, maxContainerElements int) (*ArgIndex, error) {
	a := New(maxStringSize, maxContainerElements)
	for name, raw := range files {
		off, ok := offsetFromFileName(name)
		if !ok {
			continue
		}
		var blob argBlob
		if err := wire.Decode(raw, &blob); err != nil {
			return nil, fmt.Errorf("argindex: decode %s: %w", name, err)
		}
		idx := vindex.New(blob.Kind, maxStringSize, maxContainerElements)
		if idx == nil {
			return nil, fmt.Errorf("argindex: %s: no index available for kind %s", name, blob.Kind)
		}
		if err := idx.UnmarshalBinary(blob.Blob); err != nil {
			return nil, fmt.Errorf("argindex: corrupt %s: %w", name, err)
		}
		a.args[off] = idx
		a.types[blob.Kind] = append(a.types[blob.Kind], idx)
	}
	return a, nil
}
