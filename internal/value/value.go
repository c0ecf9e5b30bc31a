// Package value implements the data model of spec §3: the tagged Value
// type, Offset (the argument index's primary key), and the Event tuple.
package value

import (
	"fmt"
	"net/netip"
	"time"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindTime
	KindDuration
	KindString
	KindAddress
	KindPort
	KindSet
	KindVector
	KindTable
	KindRecord
)

// String renders the kind's name, used by segment schema signatures and
// diagnostics.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindTime:
		return "time"
	case KindDuration:
		return "duration"
	case KindString:
		return "string"
	case KindAddress:
		return "address"
	case KindPort:
		return "port"
	case KindSet:
		return "set"
	case KindVector:
		return "vector"
	case KindTable:
		return "table"
	case KindRecord:
		return "record"
	default:
		return "invalid"
	}
}

// Transport tags the transport-layer protocol carried by a Port.
type Transport uint8

const (
	TransportUnknown Transport = iota
	TransportTCP
	TransportUDP
	TransportICMP
)

// Port is a 16-bit transport-layer port plus its transport tag.
type Port struct {
	Number    uint16
	Transport Transport
}

// Address is a 128-bit IP address, with v4-mapped-prefix detection per
// spec §3.
type Address struct {
	addr netip.Addr
}

// NewAddress wraps a netip.Addr.
func NewAddress(a netip.Addr) Address { return Address{addr: a} }

// IsV4 reports whether the address is an IPv4 address or a v4-mapped IPv6
// address.
func (a Address) IsV4() bool {
	return a.addr.Is4() || a.addr.Is4In6()
}

// String renders the address in its canonical form.
func (a Address) String() string { return a.addr.String() }

// Compare orders two addresses by their 128-bit value.
func (a Address) Compare(o Address) int { return a.addr.Compare(o.addr) }

// MarshalBinary implements encoding.BinaryMarshaler so Address survives
// msgpack round-tripping despite its unexported field.
func (a Address) MarshalBinary() ([]byte, error) { return a.addr.MarshalBinary() }

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (a *Address) UnmarshalBinary(b []byte) error { return a.addr.UnmarshalBinary(b) }

// Addr returns the underlying netip.Addr.
func (a Address) Addr() netip.Addr { return a.addr }

// Field is one named entry of a Record.
type Field struct {
	Name  string
	Value Value
}

// Record is an ordered sequence of named fields; fields may themselves be
// records, giving rise to nested Offsets.
type Record []Field

// Value is a tagged discriminated value (spec §3).
type Value struct {
	Kind Kind

	Bool    bool
	Int     int64
	Uint    uint64
	Float   float64
	Time    time.Time
	Dur     time.Duration
	Str     string
	Addr    Address
	Port    Port
	Set     []Value
	Vector  []Value
	Table   map[string]Value
	Rec     Record
}

// Bool/Int/... constructors keep call sites terse, small typed
// constructors over literal struct composites.

func Bool(b bool) Value            { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value            { return Value{Kind: KindInt, Int: i} }
func Uint(u uint64) Value          { return Value{Kind: KindUint, Uint: u} }
func Float(f float64) Value        { return Value{Kind: KindFloat, Float: f} }
func Time(t time.Time) Value       { return Value{Kind: KindTime, Time: t} }
func Duration(d time.Duration) Value { return Value{Kind: KindDuration, Dur: d} }
func String(s string) Value        { return Value{Kind: KindString, Str: s} }
func Addr(a Address) Value         { return Value{Kind: KindAddress, Addr: a} }
func PortOf(p Port) Value          { return Value{Kind: KindPort, Port: p} }
func SetOf(v []Value) Value        { return Value{Kind: KindSet, Set: v} }
func VectorOf(v []Value) Value     { return Value{Kind: KindVector, Vector: v} }
func TableOf(m map[string]Value) Value { return Value{Kind: KindTable, Table: m} }
func RecordOf(r Record) Value      { return Value{Kind: KindRecord, Rec: r} }

// IsContainer reports whether the value is a set, vector, or table.
func (v Value) IsContainer() bool {
	return v.Kind == KindSet || v.Kind == KindVector || v.Kind == KindTable
}

// Numeric returns v reduced to a float64, for binning, and reports
// whether v's kind supports numeric reduction.
func (v Value) Numeric() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindUint:
		return float64(v.Uint), true
	case KindFloat:
		return v.Float, true
	case KindTime:
		return float64(v.Time.UnixNano()), true
	case KindDuration:
		return float64(v.Dur), true
	default:
		return 0, false
	}
}

// String renders v for diagnostics; not used for on-disk encoding.
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return fmt.Sprintf("%v", v.Bool)
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindUint:
		return fmt.Sprintf("%d", v.Uint)
	case KindFloat:
		return fmt.Sprintf("%v", v.Float)
	case KindString:
		return v.Str
	case KindAddress:
		return v.Addr.String()
	default:
		return v.Kind.String()
	}
}

// Offset addresses a position within a (possibly nested) record; it is
// the primary key of the argument index (spec §3).
type Offset []int

// Equal reports whether two offsets address the same position.
func (o Offset) Equal(other Offset) bool {
	if len(o) != len(other) {
		return false
	}
	for i := range o {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}

// String renders the offset in its canonical decimal dot-joined form, as
// used for argument index filenames (spec §6).
func (o Offset) String() string {
	s := ""
	for i, c := range o {
		if i > 0 {
			s += "."
		}
		s += fmt.Sprintf("%d", c)
	}
	return s
}

// Child returns a new offset with c appended.
func (o Offset) Child(c int) Offset {
	out := make(Offset, len(o)+1)
	copy(out, o)
	out[len(o)] = c
	return out
}

// Event is the tuple (id, timestamp, type, value) of spec §3.
type Event struct {
	ID        uint64
	Timestamp time.Time
	Type      string
	Value     Record
}
