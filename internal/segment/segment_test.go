package segment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unsecureio/vast/internal/value"
)

func makeEvents(base uint64, n int) []value.Event {
	events := make([]value.Event, n)
	for i := 0; i < n; i++ {
		events[i] = value.Event{
			ID:        base + uint64(i),
			Timestamp: time.Unix(int64(i), 0).UTC(),
			Type:      "click",
			Value: value.Record{
				{Name: "count", Value: value.Int(int64(i))},
			},
		}
	}
	return events
}

func TestWriterReaderRoundTrip(t *testing.T) {
	seg := New(0, 256, 8)
	w := NewWriter(seg, 256, 0)

	events := makeEvents(0, 1124)
	for _, e := range events {
		require.True(t, w.Write(e))
	}
	require.NoError(t, w.Flush())

	require.Equal(t, uint64(1124), seg.EventsTotal())
	require.Equal(t, 5, seg.NumChunks()) // 4 full chunks of 256 + one partial

	r := NewReader(seg)
	for i, want := range events {
		got, ok := r.Read()
		require.True(t, ok, "event %d", i)
		require.Equal(t, want.ID, got.ID)
		require.Equal(t, want.Type, got.Type)
	}
	_, ok := r.Read()
	require.False(t, ok)
}

func TestSeekAcrossChunks(t *testing.T) {
	const base = 1000
	seg := New(base, 256, 8)
	w := NewWriter(seg, 256, 0)

	events := makeEvents(base, 1024)
	for _, e := range events {
		require.True(t, w.Write(e))
	}
	require.NoError(t, w.Flush())

	r := NewReader(seg)
	ok, err := r.Seek(base + 300)
	require.NoError(t, err)
	require.True(t, ok)

	got, ok := r.Read()
	require.True(t, ok)
	require.Equal(t, uint64(base+300), got.ID)

	// Sequential reads continue from the seeked position.
	next, ok := r.Read()
	require.True(t, ok)
	require.Equal(t, uint64(base+301), next.ID)
}

func TestSeekOutOfRangeLeavesCursorUnchanged(t *testing.T) {
	seg := New(0, 256, 8)
	w := NewWriter(seg, 256, 0)
	for _, e := range makeEvents(0, 10) {
		w.Write(e)
	}
	require.NoError(t, w.Flush())

	r := NewReader(seg)
	first, ok := r.Read()
	require.True(t, ok)
	require.Equal(t, uint64(0), first.ID)

	ok, err := r.Seek(9999)
	require.NoError(t, err)
	require.False(t, ok)

	// Cursor should still be positioned right after the first event.
	second, ok := r.Read()
	require.True(t, ok)
	require.Equal(t, uint64(1), second.ID)
}

func TestLoadSingleEvent(t *testing.T) {
	seg := New(0, 4, 8)
	w := NewWriter(seg, 4, 0)
	for _, e := range makeEvents(0, 10) {
		w.Write(e)
	}
	require.NoError(t, w.Flush())

	e, ok, err := seg.Load(7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7), e.ID)

	_, ok, err = seg.Load(999)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWriterSizeCapRejectsFurtherWrites(t *testing.T) {
	seg := New(0, 4, 8)
	w := NewWriter(seg, 4, 1) // 1 byte cap, sealed on first chunk

	for _, e := range makeEvents(0, 4) {
		require.True(t, w.Write(e))
	}
	// The chunk seals at 4 events; the 5th write should now observe the cap.
	require.False(t, w.Write(value.Event{ID: 4, Type: "x"}))
}

func TestSchemaInternsByShape(t *testing.T) {
	s := NewSchema()
	rec1 := value.Record{{Name: "a", Value: value.Int(1)}}
	rec2 := value.Record{{Name: "a", Value: value.Int(2)}}
	t1 := s.Intern("evt", rec1)
	t2 := s.Intern("evt", rec2)
	require.Same(t, t1, t2)
	require.Equal(t, 1, s.Len())

	rec3 := value.Record{{Name: "b", Value: value.Int(1)}}
	t3 := s.Intern("evt", rec3)
	require.NotSame(t, t1, t3)
	require.Equal(t, 2, s.Len())
}

func TestSegmentMarshalRoundTrip(t *testing.T) {
	seg := New(10, 4, 8)
	w := NewWriter(seg, 4, 0)
	for _, e := range makeEvents(10, 9) {
		require.True(t, w.Write(e))
	}
	require.NoError(t, w.Flush())
	seg.Schema.Intern("click", value.Record{{Name: "count", Value: value.Int(0)}})

	data, err := seg.MarshalBinary()
	require.NoError(t, err)

	got, err := UnmarshalSegment(data, 8)
	require.NoError(t, err)
	require.Equal(t, seg.Base, got.Base)
	require.Equal(t, seg.EventsTotal(), got.EventsTotal())
	require.Equal(t, seg.NumChunks(), got.NumChunks())
	require.Equal(t, seg.Schema.Len(), got.Schema.Len())

	e, ok, err := got.Load(15)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(15), e.ID)
}

func TestChunkCompressRoundTrip(t *testing.T) {
	events := makeEvents(0, 5)
	c, err := sealChunk(events)
	require.NoError(t, err)
	require.Equal(t, uint32(5), c.header.Count)

	got, err := c.decode()
	require.NoError(t, err)
	require.Len(t, got, 5)
	require.Equal(t, events[2].ID, got[2].ID)
}
