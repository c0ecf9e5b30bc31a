// Package segment implements C7: a chunked, serialized container of
// events with a per-chunk offset table, base ID, and embedded schema,
// supporting random-access seek by event ID.
package segment

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/unsecureio/vast/internal/value"
	"github.com/unsecureio/vast/internal/wire"
)

// Segment is an ordered, immutable-once-sealed container of events (spec
// §3, §4.8).
type Segment struct {
	Base        uint64
	ChunkSize   int
	Schema      *Schema
	chunks      []chunk
	eventsTotal uint64

	cache *lru.Cache // chunk index -> []value.Event, bounded per spec §5
}

// New constructs an empty segment starting at base with events batched
// chunkSize at a time. cacheSize bounds the in-memory LRU of decompressed
// chunks (spec §5); 0 disables caching.
func New(base uint64, chunkSize int, cacheSize int) *Segment {
	s := &Segment{Base: base, ChunkSize: chunkSize, Schema: NewSchema()}
	if cacheSize > 0 {
		s.cache, _ = lru.New(cacheSize)
	}
	return s
}

// EventsTotal returns the sum of events over all sealed chunks.
func (s *Segment) EventsTotal() uint64 { return s.eventsTotal }

// NumChunks returns the number of sealed chunks.
func (s *Segment) NumChunks() int { return len(s.chunks) }

// chunkFor returns the index of the chunk containing id, or -1 if id is
// out of range. Binary search over per-chunk bases (spec §4.8, §9).
func (s *Segment) chunkFor(id uint64) int {
	if id < s.Base {
		return -1
	}
	lo, hi := 0, len(s.chunks)-1
	best := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		if s.chunks[mid].header.Base <= id {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if best == -1 {
		return -1
	}
	c := s.chunks[best]
	if id >= c.header.Base+uint64(c.header.Count) {
		return -1
	}
	return best
}

func (s *Segment) decodeChunk(idx int) ([]value.Event, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(idx); ok {
			return v.([]value.Event), nil
		}
	}
	events, err := s.chunks[idx].decode()
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Add(idx, events)
	}
	return events, nil
}

// Load is a one-shot convenience for reading a single event by ID
// (spec §4.8).
func (s *Segment) Load(id uint64) (value.Event, bool, error) {
	r := NewReader(s)
	ok, err := r.Seek(id)
	if err != nil || !ok {
		return value.Event{}, false, err
	}
	e, ok := r.Read()
	return e, ok, nil
}

func (s *Segment) pushChunk(c chunk) {
	s.chunks = append(s.chunks, c)
	s.eventsTotal += uint64(c.header.Count)
}

type chunkBlob struct {
	Base       uint64
	Count      uint32
	Compressed []byte
}

type schemaTypeBlob struct {
	Name   string
	Fields []FieldType
}

type segmentBlob struct {
	Base        uint64
	EventsTotal uint64
	ChunkSize   int
	Chunks      []chunkBlob
	Schema      []schemaTypeBlob
}

// MarshalBinary serializes the segment's persisted layout (spec §6):
// base, events_total, schema, and the chunk table with its compressed
// bodies. The in-memory decode cache is not part of the persisted state.
func (s *Segment) MarshalBinary() ([]byte, error) {
	blob := segmentBlob{
		Base:        s.Base,
		EventsTotal: s.eventsTotal,
		ChunkSize:   s.ChunkSize,
		Chunks:      make([]chunkBlob, len(s.chunks)),
	}
	for i, c := range s.chunks {
		blob.Chunks[i] = chunkBlob{Base: c.header.Base, Count: c.header.Count, Compressed: c.compressed}
	}
	s.Schema.Each(func(t *RecordType) {
		blob.Schema = append(blob.Schema, schemaTypeBlob{Name: t.Name, Fields: t.Fields})
	})
	data, err := wire.Encode(blob)
	if err != nil {
		return nil, fmt.Errorf("segment: marshal: %w", err)
	}
	return data, nil
}

// UnmarshalSegment reconstructs a segment produced by MarshalBinary.
// cacheSize configures the decoded-chunk LRU the same way New does.
func UnmarshalSegment(data []byte, cacheSize int) (*Segment, error) {
	var blob segmentBlob
	if err := wire.Decode(data, &blob); err != nil {
		return nil, fmt.Errorf("segment: unmarshal: %w", err)
	}
	s := New(blob.Base, blob.ChunkSize, cacheSize)
	for _, t := range blob.Schema {
		s.Schema.restore(&RecordType{Name: t.Name, Fields: t.Fields})
	}
	for _, c := range blob.Chunks {
		s.pushChunk(chunk{
			header:     chunkHeader{Base: c.Base, Count: c.Count},
			compressed: c.Compressed,
		})
	}
	s.eventsTotal = blob.EventsTotal
	return s, nil
}
