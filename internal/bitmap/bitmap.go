// Package bitmap implements C5: the composition of a coder with a
// validity mask into the user-facing indexable column.
package bitmap

import (
	"cmp"
	"fmt"

	"github.com/unsecureio/vast/internal/bitstream"
	"github.com/unsecureio/vast/internal/coder"
	"github.com/unsecureio/vast/internal/wire"
)

// Coder is the subset of the equality/binary coder contract a Bitmap
// needs. Range coders return (bitstream, error) instead, since some of
// their operators can fail (spec §4.4), so they are adapted separately
// in RangeBitmap below.
type Coder[K cmp.Ordered] interface {
	Encode(K) bool
	Decode(K, coder.Op) *bitstream.Bitstream
	Append(n uint64, bit bool) bool

	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

// Bitmap wraps an equality- or binary-coded column with a binner and a
// validity mask (spec §4.5).
type Bitmap[K cmp.Ordered] struct {
	bin      func(K) K
	coder    Coder[K]
	validity *bitstream.Bitstream
}

// New constructs a Bitmap. bin may be nil, in which case values pass
// through unreduced.
func New[K cmp.Ordered](c Coder[K], bin func(K) K) *Bitmap[K] {
	if bin == nil {
		bin = func(k K) K { return k }
	}
	return &Bitmap[K]{bin: bin, coder: c, validity: bitstream.New()}
}

// PushBack binds x (after binning) and appends true to validity. Returns
// false iff the coder fails.
func (b *Bitmap[K]) PushBack(x K) bool {
	if !b.coder.Encode(b.bin(x)) {
		return false
	}
	return b.validity.PushBack(true)
}

// Append is the gap-append of spec §4.5: both coder and validity are
// advanced by n positions. The coder always receives false bits; only
// validity receives bit (false by convention for gaps).
func (b *Bitmap[K]) Append(n uint64, bit bool) bool {
	okCoder := b.coder.Append(n, false)
	okValidity := b.validity.Append(n, bit)
	return okCoder && okValidity
}

// Lookup ANDs the coder's decode result with validity before returning.
// A nil result means the operator is unsupported by this coder; a
// zero-length result is the "value never observed" sentinel.
func (b *Bitmap[K]) Lookup(op coder.Op, x K) *bitstream.Bitstream {
	d := b.coder.Decode(b.bin(x), op)
	if d == nil {
		return nil
	}
	if d.Size() == 0 {
		return d
	}
	return d.And(b.validity)
}

// Size returns rows, the underlying storage's row count.
func (b *Bitmap[K]) Size() uint64 { return b.validity.Size() }

// Validity returns the bitmap's validity mask.
func (b *Bitmap[K]) Validity() *bitstream.Bitstream { return b.validity }

type bitmapBlob struct {
	Coder    []byte
	Validity []byte
}

// MarshalBinary serializes the coder and validity mask. bin is a
// construction-time parameter, not part of the persisted state, the same
// way coder.Range's pred is (see coder.Range.MarshalBinary); the caller
// must reconstruct the Bitmap with the same bin before calling
// UnmarshalBinary.
func (b *Bitmap[K]) MarshalBinary() ([]byte, error) {
	c, err := b.coder.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("bitmap: marshal coder: %w", err)
	}
	v, err := b.validity.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("bitmap: marshal validity: %w", err)
	}
	return wire.Encode(bitmapBlob{Coder: c, Validity: v})
}

// UnmarshalBinary restores state produced by MarshalBinary.
func (b *Bitmap[K]) UnmarshalBinary(data []byte) error {
	var blob bitmapBlob
	if err := wire.Decode(data, &blob); err != nil {
		return fmt.Errorf("bitmap: unmarshal: %w", err)
	}
	if err := b.coder.UnmarshalBinary(blob.Coder); err != nil {
		return fmt.Errorf("bitmap: unmarshal coder: %w", err)
	}
	v := bitstream.New()
	if err := v.UnmarshalBinary(blob.Validity); err != nil {
		return fmt.Errorf("bitmap: unmarshal validity: %w", err)
	}
	b.validity = v
	return nil
}

// RangeCoder is the subset of *coder.Range's contract a RangeBitmap
// needs.
type RangeCoder[K cmp.Ordered] interface {
	Encode(K) bool
	Decode(K, coder.Op) (*bitstream.Bitstream, error)
	Append(n uint64, bit bool) bool

	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

// RangeBitmap is a Bitmap specialized for the range coder, whose Decode
// can fail with an "unsupported query" error (spec §4.4, §7).
type RangeBitmap[K cmp.Ordered] struct {
	bin      func(K) K
	coder    RangeCoder[K]
	validity *bitstream.Bitstream
}

// NewRange constructs a RangeBitmap.
func NewRange[K cmp.Ordered](c RangeCoder[K], bin func(K) K) *RangeBitmap[K] {
	if bin == nil {
		bin = func(k K) K { return k }
	}
	return &RangeBitmap[K]{bin: bin, coder: c, validity: bitstream.New()}
}

// PushBack binds x (after binning) and appends true to validity.
func (b *RangeBitmap[K]) PushBack(x K) bool {
	if !b.coder.Encode(b.bin(x)) {
		return false
	}
	return b.validity.PushBack(true)
}

// Append is the gap-append of spec §4.5.
func (b *RangeBitmap[K]) Append(n uint64, bit bool) bool {
	okCoder := b.coder.Append(n, false)
	okValidity := b.validity.Append(n, bit)
	return okCoder && okValidity
}

// Lookup decodes op against x and ANDs the result with validity. The
// error return is spec §7's "Unsupported query" class — callers must
// short-circuit the rest of the expression on error.
func (b *RangeBitmap[K]) Lookup(op coder.Op, x K) (*bitstream.Bitstream, error) {
	d, err := b.coder.Decode(b.bin(x), op)
	if err != nil {
		return nil, err
	}
	if d.Size() == 0 {
		return d, nil
	}
	return d.And(b.validity), nil
}

// Size returns rows, the underlying storage's row count.
func (b *RangeBitmap[K]) Size() uint64 { return b.validity.Size() }

// Validity returns the bitmap's validity mask.
func (b *RangeBitmap[K]) Validity() *bitstream.Bitstream { return b.validity }

// MarshalBinary serializes the coder and validity mask; see Bitmap's
// MarshalBinary for the construction-time-parameter contract.
func (b *RangeBitmap[K]) MarshalBinary() ([]byte, error) {
	c, err := b.coder.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("bitmap: range: marshal coder: %w", err)
	}
	v, err := b.validity.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("bitmap: range: marshal validity: %w", err)
	}
	return wire.Encode(bitmapBlob{Coder: c, Validity: v})
}

// UnmarshalBinary restores state produced by MarshalBinary.
func (b *RangeBitmap[K]) UnmarshalBinary(data []byte) error {
	var blob bitmapBlob
	if err := wire.Decode(data, &blob); err != nil {
		return fmt.Errorf("bitmap: range: unmarshal: %w", err)
	}
	if err := b.coder.UnmarshalBinary(blob.Coder); err != nil {
		return fmt.Errorf("bitmap: range: unmarshal coder: %w", err)
	}
	v := bitstream.New()
	if err := v.UnmarshalBinary(blob.Validity); err != nil {
		return fmt.Errorf("bitmap: range: unmarshal validity: %w", err)
	}
	b.validity = v
	return nil
}

// Bool is the boolean specialization of spec §4.5: it bypasses the coder
// entirely, keeping one values bitstream plus a validity bitstream.
type Bool struct {
	values   *bitstream.Bitstream
	validity *bitstream.Bitstream
}

// NewBool constructs an empty boolean bitmap.
func NewBool() *Bool {
	return &Bool{values: bitstream.New(), validity: bitstream.New()}
}

// PushBack records x.
func (b *Bool) PushBack(x bool) bool {
	b.values.PushBack(x)
	return b.validity.PushBack(true)
}

// Append is the gap-append of spec §4.5.
func (b *Bool) Append(n uint64, bit bool) bool {
	okValues := b.values.Append(n, false)
	okValidity := b.validity.Append(n, bit)
	return okValues && okValidity
}

// Lookup supports = and ≠ directly against the values bitstream.
func (b *Bool) Lookup(op coder.Op, x bool) *bitstream.Bitstream {
	switch op {
	case coder.EQ:
		if x {
			return b.values.And(b.validity)
		}
		return b.values.Not().And(b.validity)
	case coder.NE:
		if x {
			return b.values.Not().And(b.validity)
		}
		return b.values.And(b.validity)
	default:
		return nil
	}
}

// Size returns rows.
func (b *Bool) Size() uint64 { return b.validity.Size() }

// Validity returns the bitmap's validity mask.
func (b *Bool) Validity() *bitstream.Bitstream { return b.validity }

type boolBlob struct {
	Values   []byte
	Validity []byte
}

// MarshalBinary serializes the values and validity streams.
func (b *Bool) MarshalBinary() ([]byte, error) {
	values, err := b.values.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("bitmap: bool: marshal values: %w", err)
	}
	validity, err := b.validity.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("bitmap: bool: marshal validity: %w", err)
	}
	return wire.Encode(boolBlob{Values: values, Validity: validity})
}

// UnmarshalBinary restores state produced by MarshalBinary.
func (b *Bool) UnmarshalBinary(data []byte) error {
	var blob boolBlob
	if err := wire.Decode(data, &blob); err != nil {
		return fmt.Errorf("bitmap: bool: unmarshal: %w", err)
	}
	values := bitstream.New()
	if err := values.UnmarshalBinary(blob.Values); err != nil {
		return fmt.Errorf("bitmap: bool: unmarshal values: %w", err)
	}
	validity := bitstream.New()
	if err := validity.UnmarshalBinary(blob.Validity); err != nil {
		return fmt.Errorf("bitmap: bool: unmarshal validity: %w", err)
	}
	b.values = values
	b.validity = validity
	return nil
}
