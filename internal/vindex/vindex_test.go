package vindex

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unsecureio/vast/internal/binner"
	"github.com/unsecureio/vast/internal/coder"
	"github.com/unsecureio/vast/internal/value"
)

func TestArithmeticLookup(t *testing.T) {
	idx := NewArithmetic(value.KindInt, nil)
	require.True(t, idx.PushBack(value.Int(10)))
	require.True(t, idx.PushBack(value.Int(20)))
	require.True(t, idx.PushBack(value.Int(30)))

	got, err := idx.Lookup(coder.GE, value.Int(20))
	require.NoError(t, err)
	require.False(t, got.Get(0))
	require.True(t, got.Get(1))
	require.True(t, got.Get(2))
	require.Equal(t, value.KindInt, idx.Kind())
}

func TestArithmeticTimeDistinguishesAdjacentNanoseconds(t *testing.T) {
	// Nanosecond epochs sit past float64's 53-bit mantissa; routed
	// through float64 two adjacent timestamps round to the same
	// representable value and become indistinguishable by EQ.
	idx := NewArithmetic(value.KindTime, binner.Null{})
	base := time.Unix(1700000000, 0)
	t1 := base
	t2 := base.Add(1)
	require.True(t, idx.PushBack(value.Time(t1)))
	require.True(t, idx.PushBack(value.Time(t2)))

	got, err := idx.Lookup(coder.EQ, value.Time(t1))
	require.NoError(t, err)
	require.True(t, got.Get(0))
	require.False(t, got.Get(1))

	got, err = idx.Lookup(coder.EQ, value.Time(t2))
	require.NoError(t, err)
	require.False(t, got.Get(0))
	require.True(t, got.Get(1))
}

func TestStringLookupUnknownLiteral(t *testing.T) {
	idx := NewString(0)
	idx.PushBack(value.String("alice"))
	idx.PushBack(value.String("bob"))

	eq, err := idx.Lookup(coder.EQ, value.String("carol"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), eq.Size())

	ne, err := idx.Lookup(coder.NE, value.String("carol"))
	require.NoError(t, err)
	require.True(t, ne.Get(0))
	require.True(t, ne.Get(1))
}

func TestStringTruncation(t *testing.T) {
	idx := NewString(3)
	idx.PushBack(value.String("hello"))
	idx.PushBack(value.String("help"))

	// Both truncate to "hel" and should compare equal.
	got, err := idx.Lookup(coder.EQ, value.String("help"))
	require.NoError(t, err)
	require.True(t, got.Get(0))
	require.True(t, got.Get(1))
}

func TestAddressEquality(t *testing.T) {
	idx := NewAddress()
	a := value.Addr(value.NewAddress(netip.MustParseAddr("10.0.0.1")))
	b := value.Addr(value.NewAddress(netip.MustParseAddr("10.0.0.2")))
	idx.PushBack(a)
	idx.PushBack(b)

	got, err := idx.Lookup(coder.EQ, a)
	require.NoError(t, err)
	require.True(t, got.Get(0))
	require.False(t, got.Get(1))

	_, err = idx.Lookup(coder.LT, a)
	require.Error(t, err)
}

func TestPortComparesNumberAcrossTransports(t *testing.T) {
	idx := NewPort()
	tcp80 := value.PortOf(value.Port{Number: 80, Transport: value.TransportTCP})
	udp53 := value.PortOf(value.Port{Number: 53, Transport: value.TransportUDP})
	idx.PushBack(tcp80)
	idx.PushBack(udp53)

	got, err := idx.Lookup(coder.GT, value.PortOf(value.Port{Number: 60, Transport: value.TransportTCP}))
	require.NoError(t, err)
	require.True(t, got.Get(0))
	require.False(t, got.Get(1))
}

func TestContainerEqualityWithMaxElements(t *testing.T) {
	idx := NewContainer(value.KindSet, 2)
	a := value.SetOf([]value.Value{value.Int(1), value.Int(2), value.Int(3)})
	b := value.SetOf([]value.Value{value.Int(1), value.Int(2), value.Int(9)})
	idx.PushBack(a)
	idx.PushBack(b)

	// Both truncate to their first two elements {1,2}, so they collapse
	// to the same key.
	got, err := idx.Lookup(coder.EQ, a)
	require.NoError(t, err)
	require.True(t, got.Get(0))
	require.True(t, got.Get(1))
}

func TestBoolIndex(t *testing.T) {
	idx := NewBool()
	idx.PushBack(value.Bool(true))
	idx.PushBack(value.Bool(false))

	got, err := idx.Lookup(coder.EQ, value.Bool(false))
	require.NoError(t, err)
	require.False(t, got.Get(0))
	require.True(t, got.Get(1))
}

func TestNewFactoryDispatchesByKind(t *testing.T) {
	require.IsType(t, &Bool{}, New(value.KindBool, 0, 0))
	require.IsType(t, &String{}, New(value.KindString, 0, 0))
	require.IsType(t, &Address{}, New(value.KindAddress, 0, 0))
	require.IsType(t, &Port{}, New(value.KindPort, 0, 0))
	require.IsType(t, &Container{}, New(value.KindSet, 0, 0))
	require.IsType(t, &Arithmetic{}, New(value.KindFloat, 0, 0))
	require.Nil(t, New(value.KindRecord, 0, 0))
}

func TestArithmeticMarshalRoundTrip(t *testing.T) {
	idx := NewArithmetic(value.KindInt, nil)
	idx.PushBack(value.Int(10))
	idx.PushBack(value.Int(20))
	idx.PushBack(value.Int(30))

	data, err := idx.MarshalBinary()
	require.NoError(t, err)

	got := NewArithmetic(value.KindInt, nil)
	require.NoError(t, got.UnmarshalBinary(data))

	want, err := idx.Lookup(coder.GE, value.Int(20))
	require.NoError(t, err)
	gotLookup, err := got.Lookup(coder.GE, value.Int(20))
	require.NoError(t, err)
	require.True(t, want.Equals(gotLookup))
}

func TestStringMarshalRoundTrip(t *testing.T) {
	idx := NewString(0)
	idx.PushBack(value.String("alice"))
	idx.PushBack(value.String("bob"))
	idx.PushBack(value.String("alice"))

	data, err := idx.MarshalBinary()
	require.NoError(t, err)

	got := NewString(0)
	require.NoError(t, got.UnmarshalBinary(data))

	want, err := idx.Lookup(coder.EQ, value.String("alice"))
	require.NoError(t, err)
	gotLookup, err := got.Lookup(coder.EQ, value.String("alice"))
	require.NoError(t, err)
	require.True(t, want.Equals(gotLookup))
}

func TestAddressMarshalRoundTrip(t *testing.T) {
	idx := NewAddress()
	a := value.Addr(value.NewAddress(netip.MustParseAddr("10.0.0.1")))
	b := value.Addr(value.NewAddress(netip.MustParseAddr("10.0.0.2")))
	idx.PushBack(a)
	idx.PushBack(b)

	data, err := idx.MarshalBinary()
	require.NoError(t, err)

	got := NewAddress()
	require.NoError(t, got.UnmarshalBinary(data))

	want, err := idx.Lookup(coder.EQ, a)
	require.NoError(t, err)
	gotLookup, err := got.Lookup(coder.EQ, a)
	require.NoError(t, err)
	require.True(t, want.Equals(gotLookup))
}

func TestPortMarshalRoundTrip(t *testing.T) {
	idx := NewPort()
	tcp80 := value.PortOf(value.Port{Number: 80, Transport: value.TransportTCP})
	udp53 := value.PortOf(value.Port{Number: 53, Transport: value.TransportUDP})
	idx.PushBack(tcp80)
	idx.PushBack(udp53)

	data, err := idx.MarshalBinary()
	require.NoError(t, err)

	got := NewPort()
	require.NoError(t, got.UnmarshalBinary(data))

	want, err := idx.Lookup(coder.EQ, tcp80)
	require.NoError(t, err)
	gotLookup, err := got.Lookup(coder.EQ, tcp80)
	require.NoError(t, err)
	require.True(t, want.Equals(gotLookup))
}

func TestContainerMarshalRoundTrip(t *testing.T) {
	idx := NewContainer(value.KindSet, 2)
	a := value.SetOf([]value.Value{value.Int(1), value.Int(2), value.Int(3)})
	idx.PushBack(a)

	data, err := idx.MarshalBinary()
	require.NoError(t, err)

	got := NewContainer(value.KindSet, 2)
	require.NoError(t, got.UnmarshalBinary(data))

	want, err := idx.Lookup(coder.EQ, a)
	require.NoError(t, err)
	gotLookup, err := got.Lookup(coder.EQ, a)
	require.NoError(t, err)
	require.True(t, want.Equals(gotLookup))
}

func TestBoolMarshalRoundTrip(t *testing.T) {
	idx := NewBool()
	idx.PushBack(value.Bool(true))
	idx.PushBack(value.Bool(false))

	data, err := idx.MarshalBinary()
	require.NoError(t, err)

	got := NewBool()
	require.NoError(t, got.UnmarshalBinary(data))

	want, err := idx.Lookup(coder.EQ, value.Bool(false))
	require.NoError(t, err)
	gotLookup, err := got.Lookup(coder.EQ, value.Bool(false))
	require.NoError(t, err)
	require.True(t, want.Equals(gotLookup))
}

func TestValidityTracksGaps(t *testing.T) {
	idx := NewArithmetic(value.KindInt, nil)
	idx.PushBack(value.Int(1))
	idx.Append(2, false)
	idx.PushBack(value.Int(2))

	v := idx.Validity()
	require.True(t, v.Get(0))
	require.False(t, v.Get(1))
	require.False(t, v.Get(2))
	require.True(t, v.Get(3))
}
