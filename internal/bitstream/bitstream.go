// Package bitstream implements C1: an appendable, length-tracked bit
// sequence over event identifiers, backed by a compressed run-length
// bitmap (github.com/RoaringBitmap/roaring/v2/roaring64) rather than a
// hand-rolled EWAH encoder. Event identifiers are 64-bit (spec §3), so
// the 64-bit-indexed roaring64.Bitmap is used directly rather than the
// 32-bit roaring.Bitmap: the same module ships both, so this costs no
// new dependency.
//
// Bitwise combinations require identical-length operands: a mismatch is a
// programmer error and panics rather than returning an error, per spec
// §4.1 and §7's "Invariant violation" class.
package bitstream

import (
	"bytes"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/unsecureio/vast/internal/must"
)

// Npos is the sentinel returned by FindFirst when no bit is set.
const Npos = ^uint64(0)

// Bitstream is a bit sequence of a known length. The zero value is a
// length-zero stream ready to use.
type Bitstream struct {
	bits *roaring64.Bitmap
	n    uint64
}

// New returns an empty bitstream of length 0.
func New() *Bitstream {
	return &Bitstream{bits: roaring64.New()}
}

// Repeat returns a bitstream of length n with every bit set to v.
func Repeat(n uint64, v bool) *Bitstream {
	b := New()
	must.Assert(b.Append(n, v))("bitstream: Repeat overflowed 2^64-1")
	return b
}

func (b *Bitstream) ensure() *roaring64.Bitmap {
	if b.bits == nil {
		b.bits = roaring64.New()
	}
	return b.bits
}

// Size returns the stream's length in bits.
func (b *Bitstream) Size() uint64 { return b.n }

// Append advances the stream's length by exactly n, setting every new
// position to bit. Returns false if doing so would overflow 2^64-1.
func (b *Bitstream) Append(n uint64, bit bool) bool {
	if n == 0 {
		return true
	}
	if b.n > ^uint64(0)-n {
		return false
	}
	if bit {
		b.ensure().AddRange(b.n, b.n+n)
	}
	b.n += n
	return true
}

// PushBack appends a single bit.
func (b *Bitstream) PushBack(bit bool) bool {
	return b.Append(1, bit)
}

// Set forces the bit at pos to 1. pos must be < Size(); used internally by
// coders that build a stream positionally rather than strictly by append.
func (b *Bitstream) Set(pos uint64) {
	must.Assert(pos < b.n)(fmt.Sprintf("bitstream: Set(%d) out of range for length %d", pos, b.n))
	b.ensure().Add(pos)
}

// Get returns the bit at pos.
func (b *Bitstream) Get(pos uint64) bool {
	if pos >= b.n {
		return false
	}
	return b.bits != nil && b.bits.Contains(pos)
}

func (b *Bitstream) checkSameLength(op string, o *Bitstream) {
	must.Assert(b.n == o.n)(fmt.Sprintf("bitstream: %s on mismatched lengths %d != %d", op, b.n, o.n))
}

// And returns the bitwise conjunction of b and o. Panics on length
// mismatch.
func (b *Bitstream) And(o *Bitstream) *Bitstream {
	b.checkSameLength("AND", o)
	return &Bitstream{bits: roaring64.And(b.ensure(), o.ensure()), n: b.n}
}

// Or returns the bitwise disjunction of b and o. Panics on length
// mismatch.
func (b *Bitstream) Or(o *Bitstream) *Bitstream {
	b.checkSameLength("OR", o)
	return &Bitstream{bits: roaring64.Or(b.ensure(), o.ensure()), n: b.n}
}

// Xor returns the bitwise exclusive-or of b and o. Panics on length
// mismatch.
func (b *Bitstream) Xor(o *Bitstream) *Bitstream {
	b.checkSameLength("XOR", o)
	return &Bitstream{bits: roaring64.Xor(b.ensure(), o.ensure()), n: b.n}
}

// Not returns the complement of b over its own length.
func (b *Bitstream) Not() *Bitstream {
	out := &Bitstream{bits: roaring64.Flip(b.ensure(), 0, b.n), n: b.n}
	return out
}

// AndNot returns bits set in b but not in o. Panics on length mismatch.
func (b *Bitstream) AndNot(o *Bitstream) *Bitstream {
	b.checkSameLength("ANDNOT", o)
	return &Bitstream{bits: roaring64.AndNot(b.ensure(), o.ensure()), n: b.n}
}

// FindFirst returns the lowest set-bit position, or Npos if none is set.
func (b *Bitstream) FindFirst() uint64 {
	if b.bits == nil || b.bits.IsEmpty() {
		return Npos
	}
	return b.bits.Minimum()
}

// IsEmpty reports whether no bit is set.
func (b *Bitstream) IsEmpty() bool {
	return b.bits == nil || b.bits.IsEmpty()
}

// Cardinality returns the number of set bits.
func (b *Bitstream) Cardinality() uint64 {
	if b.bits == nil {
		return 0
	}
	return b.bits.GetCardinality()
}

// Equals reports whether b and o have the same length and the same set
// bits.
func (b *Bitstream) Equals(o *Bitstream) bool {
	if b.n != o.n {
		return false
	}
	return b.ensure().Equals(o.ensure())
}

// Clone returns a deep copy.
func (b *Bitstream) Clone() *Bitstream {
	return &Bitstream{bits: b.ensure().Clone(), n: b.n}
}

// PadTo returns a stream of exactly size, padding with false bits if b is
// shorter. size must be >= b.Size(); callers that combine indexes of
// differing lengths (a relation over an offset not every event carries,
// say) use this to reach a common length before And/Or/Xor, which panic
// on mismatch. Never mutates b: PadTo clones before appending, since
// callers may hold b as a live index pointer (e.g. Validity()).
func (b *Bitstream) PadTo(size uint64) *Bitstream {
	if b.n >= size {
		return b
	}
	out := b.Clone()
	out.Append(size-b.n, false)
	return out
}

// iterable is the HasNext/Next shape roaring64's bitmap iterator
// implements; named locally so Iterator doesn't need to spell out the
// library's own iterator interface type.
type iterable interface {
	HasNext() bool
	Next() uint64
}

// Iterator yields the positions of set bits in ascending order.
type Iterator struct {
	it iterable
}

// Positions returns a forward iterator over set-bit positions. Complexity
// is proportional to the number of set bits, not the stream length.
func (b *Bitstream) Positions() *Iterator {
	return &Iterator{it: b.ensure().Iterator()}
}

// HasNext reports whether another position is available.
func (it *Iterator) HasNext() bool { return it.it.HasNext() }

// Next returns the next set-bit position.
func (it *Iterator) Next() uint64 { return it.it.Next() }

// MarshalBinary serializes the stream, round-trippable with
// UnmarshalBinary (spec §8 property 1 and §4.1's append/push_back
// invariants).
func (b *Bitstream) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := b.ensure().WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("bitstream: marshal: %w", err)
	}
	out := make([]byte, 8, 8+buf.Len())
	putUint64(out, b.n)
	out = append(out, buf.Bytes()...)
	return out, nil
}

// UnmarshalBinary reconstructs a stream produced by MarshalBinary.
func (b *Bitstream) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return fmt.Errorf("bitstream: unmarshal: truncated header")
	}
	n := getUint64(data)
	bm := roaring64.New()
	if _, err := bm.ReadFrom(bytes.NewReader(data[8:])); err != nil {
		return fmt.Errorf("bitstream: unmarshal: %w", err)
	}
	b.n = n
	b.bits = bm
	return nil
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * (7 - i)))
	}
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
