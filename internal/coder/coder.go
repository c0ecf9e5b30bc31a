// Package coder implements C4: the three encoding schemes a Bitmap can
// use to turn a value into a bitstream — equality, binary (bit-sliced),
// and range (≤).
package coder

import (
	"cmp"
	"fmt"

	"github.com/unsecureio/vast/internal/bitstream"
	"github.com/unsecureio/vast/internal/storage"
	"github.com/unsecureio/vast/internal/wire"
)

// empty is the sentinel "no such value was ever observed" result,
// distinguished from a concrete all-false bitstream of the coder's row
// count by having length 0.
func empty() *bitstream.Bitstream { return bitstream.New() }

// Equality is the equality coder of spec §4.4: one bitstream per observed
// value.
type Equality[K cmp.Ordered] struct {
	policy storage.Policy[K]
}

// NewEquality wraps a storage policy with equality coding.
func NewEquality[K cmp.Ordered](policy storage.Policy[K]) *Equality[K] {
	return &Equality[K]{policy: policy}
}

// Encode records one occurrence of v.
func (c *Equality[K]) Encode(v K) bool {
	if _, ok := c.policy.Find(v); !ok {
		c.policy.Insert(v, bitstream.Repeat(c.policy.Rows(), false))
	}
	c.policy.Each(func(k K, b *bitstream.Bitstream) {
		b.PushBack(k == v)
	})
	c.policy.IncrRows()
	return true
}

// Decode supports = and ≠ only.
func (c *Equality[K]) Decode(v K, op Op) *bitstream.Bitstream {
	b, ok := c.policy.Find(v)
	switch op {
	case EQ:
		if !ok {
			return empty()
		}
		return b.Clone()
	case NE:
		if !ok {
			return bitstream.Repeat(c.policy.Rows(), true)
		}
		return b.Not()
	default:
		return nil
	}
}

// Append forwards a gap append to every stored bitstream.
func (c *Equality[K]) Append(n uint64, bit bool) bool {
	ok := true
	c.policy.Each(func(_ K, b *bitstream.Bitstream) {
		if !b.Append(n, bit) {
			ok = false
		}
	})
	for i := uint64(0); i < n; i++ {
		c.policy.IncrRows()
	}
	return ok
}

// Rows returns the number of encoded rows.
func (c *Equality[K]) Rows() uint64 { return c.policy.Rows() }

// MarshalBinary delegates to the wrapped policy, which holds all of the
// coder's state.
func (c *Equality[K]) MarshalBinary() ([]byte, error) { return c.policy.MarshalBinary() }

// UnmarshalBinary restores state into the policy this coder already
// wraps; the caller must construct the Equality coder over a fresh
// policy of the same concrete type before calling this.
func (c *Equality[K]) UnmarshalBinary(data []byte) error { return c.policy.UnmarshalBinary(data) }

// Binary is the bit-sliced coder of spec §4.4: exactly width bitstreams,
// one per bit position.
type Binary struct {
	slices []*bitstream.Bitstream
	width  int
	rows   uint64
}

// NewBinary constructs a bit-sliced coder over width bits (spec "bits(T)").
func NewBinary(width int) *Binary {
	s := make([]*bitstream.Bitstream, width)
	for i := range s {
		s[i] = bitstream.New()
	}
	return &Binary{slices: s, width: width}
}

// Encode pushes each bit of x onto its corresponding slice.
func (c *Binary) Encode(x uint64) bool {
	for i := 0; i < c.width; i++ {
		c.slices[i].PushBack((x>>uint(i))&1 == 1)
	}
	c.rows++
	return true
}

// Decode supports = and ≠ only, per spec §4.4.
func (c *Binary) Decode(x uint64, op Op) *bitstream.Bitstream {
	if op != EQ && op != NE {
		return nil
	}
	result := bitstream.Repeat(c.rows, true)
	for i := 0; i < c.width; i++ {
		sel := c.slices[i]
		if (x>>uint(i))&1 == 0 {
			sel = sel.Not()
		}
		result = result.And(sel)
	}
	if op == NE {
		return result.Not()
	}
	return result
}

// Append forwards a gap append to every slice.
func (c *Binary) Append(n uint64, bit bool) bool {
	ok := true
	for _, s := range c.slices {
		if !s.Append(n, bit) {
			ok = false
		}
	}
	c.rows += n
	return ok
}

// Rows returns the number of encoded rows.
func (c *Binary) Rows() uint64 { return c.rows }

type binaryBlob struct {
	Width  int
	Rows   uint64
	Slices [][]byte
}

// MarshalBinary serializes the width and every bit-sliced stream.
func (c *Binary) MarshalBinary() ([]byte, error) {
	blob := binaryBlob{Width: c.width, Rows: c.rows, Slices: make([][]byte, len(c.slices))}
	for i, s := range c.slices {
		raw, err := s.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("coder: binary: marshal slice %d: %w", i, err)
		}
		blob.Slices[i] = raw
	}
	return wire.Encode(blob)
}

// UnmarshalBinary reconstructs a Binary coder produced by MarshalBinary.
func (c *Binary) UnmarshalBinary(data []byte) error {
	var blob binaryBlob
	if err := wire.Decode(data, &blob); err != nil {
		return fmt.Errorf("coder: binary: unmarshal: %w", err)
	}
	c.width = blob.Width
	c.rows = blob.Rows
	c.slices = make([]*bitstream.Bitstream, len(blob.Slices))
	for i, raw := range blob.Slices {
		s := bitstream.New()
		if err := s.UnmarshalBinary(raw); err != nil {
			return fmt.Errorf("coder: binary: unmarshal slice %d: %w", i, err)
		}
		c.slices[i] = s
	}
	return nil
}

// Range is the ≤-coder of spec §4.4: an ordered store of (value,
// bitstream) pairs where the bitstream at key k marks positions whose
// stored value is ≤ k.
type Range[K cmp.Ordered] struct {
	policy storage.Policy[K]
	// pred returns the integral predecessor of k, or ok=false if K does
	// not support a discrete predecessor (e.g. floating point), in which
	// case "<" decoding is an error per spec §4.4.
	pred func(K) (K, bool)
}

// NewRange constructs a range coder. pred implements spec §4.4's "for
// integral, x-1; for reals, an error" rule for "<".
func NewRange[K cmp.Ordered](policy storage.Policy[K], pred func(K) (K, bool)) *Range[K] {
	return &Range[K]{policy: policy, pred: pred}
}

// Encode inserts v following the neighbor-seeding rule of spec §4.4, then
// pushes v≤k onto every stored key k (including v itself, if newly
// inserted).
func (c *Range[K]) Encode(v K) bool {
	if _, ok := c.policy.Find(v); !ok {
		lower, upper := c.policy.FindBounds(v)
		var seed *bitstream.Bitstream
		switch {
		case lower.OK && upper.OK:
			seed = lower.Bits.Clone()
		case lower.OK:
			seed = bitstream.Repeat(c.policy.Rows(), true)
		case upper.OK:
			seed = bitstream.Repeat(c.policy.Rows(), false)
		default:
			seed = bitstream.Repeat(c.policy.Rows(), true)
		}
		c.policy.Insert(v, seed)
	}
	c.policy.Each(func(k K, b *bitstream.Bitstream) {
		b.PushBack(v <= k)
	})
	c.policy.IncrRows()
	return true
}

// Decode implements the table of spec §4.4. err is non-nil for "<" (and
// ">=", which is derived from it) on a value with no integral
// predecessor, and for an operator outside that table (spec §7
// "Unsupported query").
func (c *Range[K]) Decode(x K, op Op) (*bitstream.Bitstream, error) {
	switch op {
	case LE:
		return c.decodeLE(x), nil
	case LT:
		pred, ok := c.pred(x)
		if !ok {
			return nil, errUnsupportedLT
		}
		return c.decodeLE(pred), nil
	case GT:
		le := c.decodeLE(x)
		if le.Size() == 0 {
			return bitstream.Repeat(c.policy.Rows(), true), nil
		}
		return le.Not(), nil
	case GE:
		lt, err := c.Decode(x, LT)
		if err != nil {
			return nil, err
		}
		if lt.Size() == 0 {
			return bitstream.Repeat(c.policy.Rows(), true), nil
		}
		return lt.Not(), nil
	case EQ:
		le := c.decodeLE(x)
		if le.Size() == 0 {
			return empty(), nil
		}
		lower, _ := c.policy.FindBounds(x)
		if !lower.OK {
			return le.Clone(), nil
		}
		return le.AndNot(lower.Bits), nil
	case NE:
		eq, err := c.Decode(x, EQ)
		if err != nil {
			return nil, err
		}
		if eq.Size() == 0 {
			return bitstream.Repeat(c.policy.Rows(), true), nil
		}
		return eq.Not(), nil
	default:
		return nil, errUnsupportedOp
	}
}

func (c *Range[K]) decodeLE(x K) *bitstream.Bitstream {
	if b, ok := c.policy.Find(x); ok {
		return b.Clone()
	}
	lower, _ := c.policy.FindBounds(x)
	if lower.OK {
		return lower.Bits.Clone()
	}
	return empty()
}

// Append forwards a gap append to every stored bitstream.
func (c *Range[K]) Append(n uint64, bit bool) bool {
	ok := true
	c.policy.Each(func(_ K, b *bitstream.Bitstream) {
		if !b.Append(n, bit) {
			ok = false
		}
	})
	for i := uint64(0); i < n; i++ {
		c.policy.IncrRows()
	}
	return ok
}

// Rows returns the number of encoded rows.
func (c *Range[K]) Rows() uint64 { return c.policy.Rows() }

// MarshalBinary delegates to the wrapped policy. pred is a function
// value and isn't itself serializable; the caller must re-supply the
// same pred to NewRange before calling UnmarshalBinary (the same
// construction-time-parameter contract bin follows in internal/bitmap).
func (c *Range[K]) MarshalBinary() ([]byte, error) { return c.policy.MarshalBinary() }

// UnmarshalBinary restores state into the policy this coder already
// wraps.
func (c *Range[K]) UnmarshalBinary(data []byte) error { return c.policy.UnmarshalBinary(data) }

// IntPredecessor is the pred function for any signed-integer-like key:
// spec §4.4's "for integral, x-1" rule.
func IntPredecessor[K interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}](x K) (K, bool) {
	return x - 1, true
}

// NoPredecessor is the pred function for real-valued keys: spec §4.4's
// "for reals, an error" rule.
func NoPredecessor[K cmp.Ordered](K) (K, bool) {
	var zero K
	return zero, false
}
