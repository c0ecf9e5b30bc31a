package metaindex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unsecureio/vast/internal/coder"
	"github.com/unsecureio/vast/internal/value"
)

func TestIndexSeedsInvalidZeroPosition(t *testing.T) {
	m := New(0, 0)
	require.Equal(t, uint64(1), m.Size())
}

func TestIndexAndLookupByName(t *testing.T) {
	m := New(0, 0)
	base := time.Unix(1000, 0).UTC()
	events := []value.Event{
		{ID: 1, Timestamp: base, Type: "click"},
		{ID: 2, Timestamp: base.Add(time.Second), Type: "scroll"},
		{ID: 3, Timestamp: base.Add(2 * time.Second), Type: "click"},
	}
	require.NoError(t, m.Index(events))
	require.Equal(t, uint64(4), m.Size())

	got, err := m.LookupName(coder.EQ, value.String("click"))
	require.NoError(t, err)
	require.False(t, got.Get(0))
	require.True(t, got.Get(1))
	require.False(t, got.Get(2))
	require.True(t, got.Get(3))
}

func TestIndexGapFillsNonContiguousIDs(t *testing.T) {
	m := New(0, 0)
	events := []value.Event{
		{ID: 5, Timestamp: time.Unix(0, 0), Type: "a"},
	}
	require.NoError(t, m.Index(events))
	require.Equal(t, uint64(6), m.Size())

	got, err := m.LookupName(coder.EQ, value.String("a"))
	require.NoError(t, err)
	require.True(t, got.Get(5))
	for i := uint64(0); i < 5; i++ {
		require.False(t, got.Get(i))
	}
}

func TestIndexRejectsOutOfOrderBatch(t *testing.T) {
	m := New(0, 0)
	events := []value.Event{
		{ID: 2, Type: "a"},
		{ID: 1, Type: "b"},
	}
	require.Error(t, m.Index(events))
}

func TestSerializeLoadRoundTrip(t *testing.T) {
	m := New(0, 0)
	events := []value.Event{
		{ID: 1, Timestamp: time.Unix(100, 0), Type: "click"},
		{ID: 2, Timestamp: time.Unix(200, 0), Type: "scroll"},
		{ID: 3, Timestamp: time.Unix(300, 0), Type: "click"},
	}
	require.NoError(t, m.Index(events))

	files, err := m.Serialize()
	require.NoError(t, err)
	require.Contains(t, files, TimestampFile)
	require.Contains(t, files, NameFile)

	got, err := Load(files, 0, 0)
	require.NoError(t, err)
	require.Equal(t, m.Size(), got.Size())

	want, err := m.LookupName(coder.EQ, value.String("click"))
	require.NoError(t, err)
	gotLookup, err := got.LookupName(coder.EQ, value.String("click"))
	require.NoError(t, err)
	require.True(t, want.Equals(gotLookup))
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(map[string][]byte{TimestampFile: {}}, 0, 0)
	require.Error(t, err)
}

func TestLookupTimestampRange(t *testing.T) {
	m := New(0, 0)
	events := []value.Event{
		{ID: 1, Timestamp: time.Unix(100, 0)},
		{ID: 2, Timestamp: time.Unix(200, 0)},
		{ID: 3, Timestamp: time.Unix(300, 0)},
	}
	require.NoError(t, m.Index(events))

	got, err := m.LookupTimestamp(coder.GE, value.Time(time.Unix(200, 0)))
	require.NoError(t, err)
	require.False(t, got.Get(0))
	require.False(t, got.Get(1))
	require.True(t, got.Get(2))
	require.True(t, got.Get(3))
}
