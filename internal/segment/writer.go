package segment

import "github.com/unsecureio/vast/internal/value"

// Writer is bound to exactly one segment at a time and batches writes
// into chunks of a fixed threshold, with an optional total-size cap
// (spec §4.8).
type Writer struct {
	seg       *Segment
	chunkSize int
	maxBytes  int64 // 0 means unbounded
	buf       []value.Event
	sealed    int64 // compressed bytes written to seg so far
}

// NewWriter constructs a Writer targeting seg. chunkSize is the
// events-per-chunk threshold; maxBytes is the optional total-size cap (0
// disables it).
func NewWriter(seg *Segment, chunkSize int, maxBytes int64) *Writer {
	return &Writer{seg: seg, chunkSize: chunkSize, maxBytes: maxBytes}
}

// Write records the event's type into the segment's schema, appends it
// to the in-memory chunk buffer, and seals+compresses the chunk once it
// reaches chunkSize. Returns false once the compressed bytes already
// sealed into a size-capped segment have reached its cap (the write
// that crosses the cap is still accepted) — the caller must AttachTo a
// new segment (spec §4.8, §7 "Capacity").
func (w *Writer) Write(e value.Event) bool {
	if w.maxBytes > 0 && w.sealed >= w.maxBytes {
		return false
	}
	w.seg.Schema.Intern(e.Type, e.Value)
	w.buf = append(w.buf, e)
	if len(w.buf) >= w.chunkSize {
		if err := w.sealBuffer(); err != nil {
			return false
		}
	}
	return true
}

func (w *Writer) sealBuffer() error {
	if len(w.buf) == 0 {
		return nil
	}
	c, err := sealChunk(w.buf)
	if err != nil {
		return err
	}
	w.seg.pushChunk(c)
	w.sealed += int64(len(c.compressed))
	w.buf = w.buf[:0]
	return nil
}

// Flush forces emission of a partial chunk.
func (w *Writer) Flush() error {
	return w.sealBuffer()
}

// AttachTo re-targets the writer at other, carrying over any pending
// (unflushed) buffered events, which will be sealed into other instead
// of the previous segment (spec §4.8).
func (w *Writer) AttachTo(other *Segment) {
	w.seg = other
	w.sealed = 0
}

// Segment returns the segment the writer currently targets.
func (w *Writer) Segment() *Segment { return w.seg }
