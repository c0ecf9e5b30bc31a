package segment

import "github.com/unsecureio/vast/internal/value"

// Reader holds a cursor (chunk index, offset within chunk) over a
// sealed segment (spec §4.8).
type Reader struct {
	seg        *Segment
	chunkIndex int
	offset     int
	chunkCache []value.Event // decompressed current chunk, nil until first read
}

// NewReader returns a reader positioned before the segment's first
// event.
func NewReader(seg *Segment) *Reader {
	return &Reader{seg: seg, chunkIndex: 0, offset: 0}
}

func (r *Reader) ensureChunk(idx int) error {
	if r.chunkCache != nil && r.chunkIndex == idx {
		return nil
	}
	events, err := r.seg.decodeChunk(idx)
	if err != nil {
		return err
	}
	r.chunkCache = events
	r.chunkIndex = idx
	return nil
}

// Read returns the next event sequentially, or ok=false once the
// segment is exhausted.
func (r *Reader) Read() (value.Event, bool) {
	for r.chunkIndex < len(r.seg.chunks) {
		if err := r.ensureChunk(r.chunkIndex); err != nil {
			return value.Event{}, false
		}
		if r.offset < len(r.chunkCache) {
			e := r.chunkCache[r.offset]
			r.offset++
			return e, true
		}
		r.chunkIndex++
		r.offset = 0
		r.chunkCache = nil
	}
	return value.Event{}, false
}

// ReadID returns the event with exactly id, without disturbing the
// cursor's forward-read position beyond the seek itself.
func (r *Reader) ReadID(id uint64) (value.Event, bool) {
	ok, err := r.Seek(id)
	if err != nil || !ok {
		return value.Event{}, false
	}
	return r.Read()
}

// Seek positions the cursor on id. On failure (id out of the segment's
// range) the cursor is left unchanged (spec §4.8, §8 property 6).
func (r *Reader) Seek(id uint64) (bool, error) {
	idx := r.seg.chunkFor(id)
	if idx == -1 {
		return false, nil
	}
	if err := r.ensureChunk(idx); err != nil {
		return false, err
	}
	base := r.seg.chunks[idx].header.Base
	r.offset = int(id - base)
	return true, nil
}
