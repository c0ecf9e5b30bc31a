// Package metaindex implements C8: the per-partition bitmaps over event
// timestamp and event name, sharing the partition's ID space.
package metaindex

import (
	"fmt"

	"github.com/unsecureio/vast/internal/binner"
	"github.com/unsecureio/vast/internal/bitstream"
	"github.com/unsecureio/vast/internal/coder"
	"github.com/unsecureio/vast/internal/value"
	"github.com/unsecureio/vast/internal/vindex"
)

// Fixed filenames the two meta bitmaps persist under (spec §4.6, §6).
const (
	TimestampFile = "timestamp.idx"
	NameFile      = "name.idx"
)

// MetaIndex holds the timestamp and name bitmaps of a partition (spec
// §3, §4.6).
type MetaIndex struct {
	timestamp *vindex.Arithmetic
	name      *vindex.String
}

// New constructs a MetaIndex with both bitmaps seeded with one invalid
// gap bit, preserving the rule that event ID 0 is never valid (spec
// §4.6). timePrecision configures the timestamp bitmap's binner (spec
// §4.3); maxStringSize bounds the name bitmap (spec §6).
func New(timePrecision int, maxStringSize int) *MetaIndex {
	m := &MetaIndex{
		timestamp: vindex.NewArithmetic(value.KindTime, binner.Precision{P: timePrecision}),
		name:      vindex.NewString(maxStringSize),
	}
	m.timestamp.Append(1, false)
	m.name.Append(1, false)
	return m
}

// Index writes a batch of events, in ascending ID order, using the
// positional-append semantics of spec §4.6: each event's ID may be
// non-contiguous with the index's current length, so gap bits are
// appended first.
func (m *MetaIndex) Index(events []value.Event) error {
	for i, e := range events {
		if i > 0 && e.ID <= events[i-1].ID {
			return fmt.Errorf("metaindex: batch not in ID-ascending order at event %d", i)
		}
		if err := m.indexOne(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *MetaIndex) indexOne(e value.Event) error {
	cur := m.timestamp.Size()
	if e.ID < cur {
		return fmt.Errorf("metaindex: event id %d already indexed (current length %d)", e.ID, cur)
	}
	gap := e.ID - cur
	if gap > 0 {
		m.timestamp.Append(gap, false)
		m.name.Append(gap, false)
	}
	if !m.timestamp.PushBack(value.Time(e.Timestamp)) {
		return fmt.Errorf("metaindex: timestamp row overflow at id %d", e.ID)
	}
	if !m.name.PushBack(value.String(e.Type)) {
		return fmt.Errorf("metaindex: name row overflow at id %d", e.ID)
	}
	return nil
}

// LookupTimestamp resolves (op, t) against the timestamp bitmap.
func (m *MetaIndex) LookupTimestamp(op coder.Op, t value.Value) (*bitstream.Bitstream, error) {
	return m.timestamp.Lookup(op, t)
}

// LookupName resolves (op, name) against the name bitmap.
func (m *MetaIndex) LookupName(op coder.Op, name value.Value) (*bitstream.Bitstream, error) {
	return m.name.Lookup(op, name)
}

// Size returns the shared row count (spec §4.6: both bitmaps share the
// partition's ID space).
func (m *MetaIndex) Size() uint64 { return m.timestamp.Size() }

// Serialize returns the two fixed-name blobs a partition persists this
// index under (spec §4.6): timestamp.idx and name.idx.
func (m *MetaIndex) Serialize() (map[string][]byte, error) {
	ts, err := m.timestamp.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("metaindex: marshal %s: %w", TimestampFile, err)
	}
	name, err := m.name.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("metaindex: marshal %s: %w", NameFile, err)
	}
	return map[string][]byte{TimestampFile: ts, NameFile: name}, nil
}

// Load reconstructs a MetaIndex from the blobs Serialize produced.
// timePrecision and maxStringSize must match the values the index was
// originally constructed with: like bitmap binners and range-coder pred
// functions, index configuration is supplied at construction, not
// persisted (spec §7 "Corruption" covers a missing or unreadable file;
// partition.Open fails the whole load on such an error).
func Load(files map[string][]byte, timePrecision, maxStringSize int) (*MetaIndex, error) {
	ts, ok := files[TimestampFile]
	if !ok {
		return nil, fmt.Errorf("metaindex: missing %s", TimestampFile)
	}
	name, ok := files[NameFile]
	if !ok {
		return nil, fmt.Errorf("metaindex: missing %s", NameFile)
	}
	m := &MetaIndex{
		timestamp: vindex.NewArithmetic(value.KindTime, binner.Precision{P: timePrecision}),
		name:      vindex.NewString(maxStringSize),
	}
	if err := m.timestamp.UnmarshalBinary(ts); err != nil {
		return nil, fmt.Errorf("metaindex: corrupt %s: %w", TimestampFile, err)
	}
	if err := m.name.UnmarshalBinary(name); err != nil {
		return nil, fmt.Errorf("metaindex: corrupt %s: %w", NameFile, err)
	}
	return m, nil
}
