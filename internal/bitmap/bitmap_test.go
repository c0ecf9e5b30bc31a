package bitmap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unsecureio/vast/internal/coder"
	"github.com/unsecureio/vast/internal/storage"
)

func TestBitmapEqualityWithGaps(t *testing.T) {
	c := coder.NewEquality[string](storage.NewUnordered[string]())
	bm := New[string](c, nil)

	require.True(t, bm.PushBack("a"))
	require.True(t, bm.Append(2, false)) // gap: positions 1, 2 invalid
	require.True(t, bm.PushBack("a"))

	require.Equal(t, uint64(4), bm.Size())

	got := bm.Lookup(coder.EQ, "a")
	require.True(t, got.Get(0))
	require.False(t, got.Get(1))
	require.False(t, got.Get(2))
	require.True(t, got.Get(3))
}

func TestBitmapValidityExcludesGaps(t *testing.T) {
	c := coder.NewEquality[string](storage.NewUnordered[string]())
	bm := New[string](c, nil)
	bm.PushBack("x")
	bm.Append(3, false)

	v := bm.Validity()
	require.True(t, v.Get(0))
	require.False(t, v.Get(1))
	require.False(t, v.Get(2))
	require.False(t, v.Get(3))
}

func TestRangeBitmapUnsupportedOpPropagates(t *testing.T) {
	c := coder.NewRange[float64](storage.NewList[float64](), coder.NoPredecessor[float64])
	bm := NewRange[float64](c, nil)
	bm.PushBack(1.0)
	bm.PushBack(2.0)

	_, err := bm.Lookup(coder.LT, 1.5)
	require.Error(t, err)
	require.True(t, coder.IsUnsupported(err))
}

func TestBoolLookup(t *testing.T) {
	b := NewBool()
	b.PushBack(true)
	b.PushBack(false)
	b.PushBack(true)

	eqTrue := b.Lookup(coder.EQ, true)
	require.True(t, eqTrue.Get(0))
	require.False(t, eqTrue.Get(1))
	require.True(t, eqTrue.Get(2))

	neTrue := b.Lookup(coder.NE, true)
	require.False(t, neTrue.Get(0))
	require.True(t, neTrue.Get(1))
	require.False(t, neTrue.Get(2))

	require.Nil(t, b.Lookup(coder.LT, true))
}

func TestBitmapMarshalRoundTrip(t *testing.T) {
	c := coder.NewEquality[string](storage.NewUnordered[string]())
	bm := New[string](c, nil)
	bm.PushBack("a")
	bm.Append(2, false)
	bm.PushBack("a")

	data, err := bm.MarshalBinary()
	require.NoError(t, err)

	got := New[string](coder.NewEquality[string](storage.NewUnordered[string]()), nil)
	require.NoError(t, got.UnmarshalBinary(data))
	require.Equal(t, bm.Size(), got.Size())

	want := bm.Lookup(coder.EQ, "a")
	gotLookup := got.Lookup(coder.EQ, "a")
	require.True(t, want.Equals(gotLookup))
}

func TestRangeBitmapMarshalRoundTrip(t *testing.T) {
	c := coder.NewRange[int](storage.NewList[int](), coder.IntPredecessor[int])
	bm := NewRange[int](c, nil)
	bm.PushBack(10)
	bm.PushBack(20)
	bm.PushBack(30)

	data, err := bm.MarshalBinary()
	require.NoError(t, err)

	got := NewRange[int](coder.NewRange[int](storage.NewList[int](), coder.IntPredecessor[int]), nil)
	require.NoError(t, got.UnmarshalBinary(data))

	want, err := bm.Lookup(coder.GE, 20)
	require.NoError(t, err)
	gotLookup, err := got.Lookup(coder.GE, 20)
	require.NoError(t, err)
	require.True(t, want.Equals(gotLookup))
}

func TestBoolMarshalRoundTrip(t *testing.T) {
	b := NewBool()
	b.PushBack(true)
	b.PushBack(false)
	b.PushBack(true)

	data, err := b.MarshalBinary()
	require.NoError(t, err)

	got := NewBool()
	require.NoError(t, got.UnmarshalBinary(data))

	want := b.Lookup(coder.EQ, true)
	gotLookup := got.Lookup(coder.EQ, true)
	require.True(t, want.Equals(gotLookup))
}
