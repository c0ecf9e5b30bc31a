// Package vindex implements C6: per-column bitmap specializations over
// the value domains an event's fields can hold — address, port,
// arithmetic, string, and container — each built from the generic
// bitmap/coder/storage/binner layers beneath it.
package vindex

import (
	"fmt"
	"strings"

	"github.com/unsecureio/vast/internal/binner"
	"github.com/unsecureio/vast/internal/bitmap"
	"github.com/unsecureio/vast/internal/bitstream"
	"github.com/unsecureio/vast/internal/coder"
	"github.com/unsecureio/vast/internal/intern"
	"github.com/unsecureio/vast/internal/storage"
	"github.com/unsecureio/vast/internal/value"
	"github.com/unsecureio/vast/internal/wire"
)

// Index is the contract every typed value-index offers to the meta and
// argument indexes: push a value positionally, gap-append, and look up
// an operator/value pair as a bitstream. An operator the index does not
// support is reported as a non-nil error (spec §7), never as a nil
// bitstream with a nil error.
type Index interface {
	PushBack(value.Value) bool
	Append(n uint64, bit bool) bool
	Lookup(coder.Op, value.Value) (*bitstream.Bitstream, error)
	Size() uint64
	Kind() value.Kind
	// Validity returns the mask of positions actually written through
	// PushBack, as opposed to gap-appended; used by type_extractor to
	// test "does the value at this offset have this kind" (spec §4.7).
	Validity() *bitstream.Bitstream

	// MarshalBinary and UnmarshalBinary serialize this index's state.
	// Kind is not itself encoded: the caller reconstructs the right
	// concrete type via New(kind, ...) before calling UnmarshalBinary
	// (spec §4.6's argument-index persistence pairs each blob with its
	// kind as a separate tag).
	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

// Arithmetic indexes integer, unsigned, float, time, and duration values
// uniformly by reducing every value to an int64 through a binner and
// range-coding it, giving <, <=, =, !=, >=, > all at once (spec §4.4).
type Arithmetic struct {
	kind value.Kind
	bin  binner.Binner
	bm   *bitmap.RangeBitmap[int64]
}

// NewArithmetic constructs an Arithmetic index over kind using bin to
// reduce values before coding.
func NewArithmetic(kind value.Kind, bin binner.Binner) *Arithmetic {
	if bin == nil {
		bin = binner.Null{}
	}
	policy := storage.NewList[int64]()
	c := coder.NewRange[int64](policy, coder.IntPredecessor[int64])
	return &Arithmetic{kind: kind, bin: bin, bm: bitmap.NewRange[int64](c, nil)}
}

// reduce takes the exact int64 path for kinds value.Numeric would
// otherwise round-trip through a float64 mantissa — nanosecond epochs
// (~1.7e18) and large uint64/int64 counters both exceed float64's
// 53-bit precision, so equality and range lookups on fine-grained
// timestamps would silently collide. The exact path only applies when
// a.bin performs no reduction (binner.Null, or binner.Precision{P: 0}):
// a configured Precision binner still bins in float space, per
// binner.Bin's own documented float64 domain.
func (a *Arithmetic) reduce(v value.Value) int64 {
	if exact, ok := exactInt64(v); ok && binnerIsIdentity(a.bin) {
		return exact
	}
	f, _ := v.Numeric()
	return int64(a.bin.Bin(f))
}

func exactInt64(v value.Value) (int64, bool) {
	switch v.Kind {
	case value.KindInt:
		return v.Int, true
	case value.KindUint:
		return int64(v.Uint), true
	case value.KindTime:
		return v.Time.UnixNano(), true
	case value.KindDuration:
		return int64(v.Dur), true
	default:
		return 0, false
	}
}

func binnerIsIdentity(b binner.Binner) bool {
	switch t := b.(type) {
	case binner.Null:
		return true
	case binner.Precision:
		return t.P == 0
	default:
		return false
	}
}

// PushBack binds v.
func (a *Arithmetic) PushBack(v value.Value) bool { return a.bm.PushBack(a.reduce(v)) }

// Append is the gap-append of spec §4.5.
func (a *Arithmetic) Append(n uint64, bit bool) bool { return a.bm.Append(n, bit) }

// Lookup decodes op against v.
func (a *Arithmetic) Lookup(op coder.Op, v value.Value) (*bitstream.Bitstream, error) {
	return a.bm.Lookup(op, a.reduce(v))
}

// Size returns rows.
func (a *Arithmetic) Size() uint64 { return a.bm.Size() }

// Kind returns the value kind this index was constructed for.
func (a *Arithmetic) Kind() value.Kind { return a.kind }

// Validity returns the underlying bitmap's validity mask.
func (a *Arithmetic) Validity() *bitstream.Bitstream { return a.bm.Validity() }

// MarshalBinary delegates to the underlying range bitmap; bin is a
// construction-time parameter and is not serialized.
func (a *Arithmetic) MarshalBinary() ([]byte, error) { return a.bm.MarshalBinary() }

// UnmarshalBinary restores state produced by MarshalBinary.
func (a *Arithmetic) UnmarshalBinary(data []byte) error { return a.bm.UnmarshalBinary(data) }

// String indexes string values by equality over an interned ID,
// truncating values longer than maxLen first (SPEC_FULL.md's
// index.max_string_size enforcement).
type String struct {
	maxLen int
	table  *intern.Table
	bm     *bitmap.Bitmap[uint32]
}

// NewString constructs a String index truncating values to maxLen (0
// means unlimited).
func NewString(maxLen int) *String {
	table := intern.New()
	policy := storage.NewUnordered[uint32]()
	c := coder.NewEquality[uint32](policy)
	return &String{maxLen: maxLen, table: table, bm: bitmap.New[uint32](c, nil)}
}

func (s *String) truncate(v string) string {
	if s.maxLen > 0 && len(v) > s.maxLen {
		return v[:s.maxLen]
	}
	return v
}

// PushBack binds v.
func (s *String) PushBack(v value.Value) bool {
	id := s.table.Intern(s.truncate(v.Str))
	return s.bm.PushBack(id)
}

// Append is the gap-append of spec §4.5.
func (s *String) Append(n uint64, bit bool) bool { return s.bm.Append(n, bit) }

// Lookup decodes op against v. Strings never seen are looked up via
// Table.Lookup so an unknown literal correctly yields coder "not found"
// semantics rather than silently interning a query-only string.
func (s *String) Lookup(op coder.Op, v value.Value) (*bitstream.Bitstream, error) {
	id, ok := s.table.Lookup(s.truncate(v.Str))
	if !ok {
		// Use an ID that was never inserted; the equality coder's
		// "unknown key" path handles = and ≠ correctly regardless of
		// the exact sentinel chosen.
		id = ^uint32(0)
	}
	d := s.bm.Lookup(op, id)
	if d == nil {
		return nil, coder.ErrUnsupportedOp(op)
	}
	return d, nil
}

// Size returns rows.
func (s *String) Size() uint64 { return s.bm.Size() }

// Kind returns value.KindString.
func (s *String) Kind() value.Kind { return value.KindString }

// Validity returns the underlying bitmap's validity mask.
func (s *String) Validity() *bitstream.Bitstream { return s.bm.Validity() }

type stringBlob struct {
	MaxLen int
	Table  []byte
	Bitmap []byte
}

// MarshalBinary serializes the interning table alongside the bitmap,
// since the bitmap's coded keys are only meaningful relative to it.
func (s *String) MarshalBinary() ([]byte, error) {
	table, err := s.table.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("vindex: string: marshal table: %w", err)
	}
	bm, err := s.bm.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("vindex: string: marshal bitmap: %w", err)
	}
	return wire.Encode(stringBlob{MaxLen: s.maxLen, Table: table, Bitmap: bm})
}

// UnmarshalBinary restores state produced by MarshalBinary.
func (s *String) UnmarshalBinary(data []byte) error {
	var blob stringBlob
	if err := wire.Decode(data, &blob); err != nil {
		return fmt.Errorf("vindex: string: unmarshal: %w", err)
	}
	s.maxLen = blob.MaxLen
	if err := s.table.UnmarshalBinary(blob.Table); err != nil {
		return fmt.Errorf("vindex: string: unmarshal table: %w", err)
	}
	if err := s.bm.UnmarshalBinary(blob.Bitmap); err != nil {
		return fmt.Errorf("vindex: string: unmarshal bitmap: %w", err)
	}
	return nil
}

// Address indexes IP addresses by equality over their canonical text
// form (netip.Addr.String) (lexicographic ordering is unused; only =
// and ≠ are meaningful for addresses per spec §3).
type Address struct {
	bm *bitmap.Bitmap[string]
}

// NewAddress constructs an empty Address index.
func NewAddress() *Address {
	policy := storage.NewUnordered[string]()
	c := coder.NewEquality[string](policy)
	return &Address{bm: bitmap.New[string](c, nil)}
}

func addressKey(v value.Value) string {
	return v.Addr.String()
}

// PushBack binds v.
func (a *Address) PushBack(v value.Value) bool { return a.bm.PushBack(addressKey(v)) }

// Append is the gap-append of spec §4.5.
func (a *Address) Append(n uint64, bit bool) bool { return a.bm.Append(n, bit) }

// Lookup decodes op against v; only = and ≠ are supported.
func (a *Address) Lookup(op coder.Op, v value.Value) (*bitstream.Bitstream, error) {
	d := a.bm.Lookup(op, addressKey(v))
	if d == nil {
		return nil, coder.ErrUnsupportedOp(op)
	}
	return d, nil
}

// Size returns rows.
func (a *Address) Size() uint64 { return a.bm.Size() }

// Kind returns value.KindAddress.
func (a *Address) Kind() value.Kind { return value.KindAddress }

// Validity returns the underlying bitmap's validity mask.
func (a *Address) Validity() *bitstream.Bitstream { return a.bm.Validity() }

// MarshalBinary delegates to the underlying bitmap.
func (a *Address) MarshalBinary() ([]byte, error) { return a.bm.MarshalBinary() }

// UnmarshalBinary restores state produced by MarshalBinary.
func (a *Address) UnmarshalBinary(data []byte) error { return a.bm.UnmarshalBinary(data) }

// Port indexes transport-layer ports by range-coding a composite key of
// (number, transport) so both equality and numeric comparison on the
// port number are available.
type Port struct {
	bm *bitmap.RangeBitmap[int64]
}

// NewPort constructs an empty Port index.
func NewPort() *Port {
	policy := storage.NewList[int64]()
	c := coder.NewRange[int64](policy, coder.IntPredecessor[int64])
	return &Port{bm: bitmap.NewRange[int64](c, nil)}
}

func portKey(v value.Value) int64 {
	return int64(v.Port.Number)<<8 | int64(v.Port.Transport)
}

// PushBack binds v.
func (p *Port) PushBack(v value.Value) bool { return p.bm.PushBack(portKey(v)) }

// Append is the gap-append of spec §4.5.
func (p *Port) Append(n uint64, bit bool) bool { return p.bm.Append(n, bit) }

// Lookup decodes op against v.
func (p *Port) Lookup(op coder.Op, v value.Value) (*bitstream.Bitstream, error) {
	return p.bm.Lookup(op, portKey(v))
}

// Size returns rows.
func (p *Port) Size() uint64 { return p.bm.Size() }

// Kind returns value.KindPort.
func (p *Port) Kind() value.Kind { return value.KindPort }

// Validity returns the underlying bitmap's validity mask.
func (p *Port) Validity() *bitstream.Bitstream { return p.bm.Validity() }

// MarshalBinary delegates to the underlying range bitmap.
func (p *Port) MarshalBinary() ([]byte, error) { return p.bm.MarshalBinary() }

// UnmarshalBinary restores state produced by MarshalBinary.
func (p *Port) UnmarshalBinary(data []byte) error { return p.bm.UnmarshalBinary(data) }

// Container indexes set/vector values by equality over a canonical join
// of up to maxElements element reprs (SPEC_FULL.md's
// index.max_container_elements enforcement).
type Container struct {
	kind        value.Kind
	maxElements int
	bm          *bitmap.Bitmap[string]
}

// NewContainer constructs a Container index over kind (Set or Vector).
func NewContainer(kind value.Kind, maxElements int) *Container {
	policy := storage.NewUnordered[string]()
	c := coder.NewEquality[string](policy)
	return &Container{kind: kind, maxElements: maxElements, bm: bitmap.New[string](c, nil)}
}

func (c *Container) key(v value.Value) string {
	elems := v.Set
	if v.Kind == value.KindVector {
		elems = v.Vector
	}
	if c.maxElements > 0 && len(elems) > c.maxElements {
		elems = elems[:c.maxElements]
	}
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = e.String()
	}
	return strings.Join(parts, "\x00")
}

// PushBack binds v.
func (c *Container) PushBack(v value.Value) bool { return c.bm.PushBack(c.key(v)) }

// Append is the gap-append of spec §4.5.
func (c *Container) Append(n uint64, bit bool) bool { return c.bm.Append(n, bit) }

// Lookup decodes op against v, comparing whole containers for equality.
func (c *Container) Lookup(op coder.Op, v value.Value) (*bitstream.Bitstream, error) {
	d := c.bm.Lookup(op, c.key(v))
	if d == nil {
		return nil, coder.ErrUnsupportedOp(op)
	}
	return d, nil
}

// Size returns rows.
func (c *Container) Size() uint64 { return c.bm.Size() }

// Kind returns the container kind this index was constructed for.
func (c *Container) Kind() value.Kind { return c.kind }

// Validity returns the underlying bitmap's validity mask.
func (c *Container) Validity() *bitstream.Bitstream { return c.bm.Validity() }

// MarshalBinary delegates to the underlying bitmap; maxElements is a
// construction-time parameter and is not serialized.
func (c *Container) MarshalBinary() ([]byte, error) { return c.bm.MarshalBinary() }

// UnmarshalBinary restores state produced by MarshalBinary.
func (c *Container) UnmarshalBinary(data []byte) error { return c.bm.UnmarshalBinary(data) }

// Bool indexes boolean values directly, bypassing the coder layer (spec
// §4.5's boolean specialization).
type Bool struct {
	bm *bitmap.Bool
}

// NewBool constructs an empty boolean index.
func NewBool() *Bool {
	return &Bool{bm: bitmap.NewBool()}
}

// PushBack binds v.
func (b *Bool) PushBack(v value.Value) bool { return b.bm.PushBack(v.Bool) }

// Append is the gap-append of spec §4.5.
func (b *Bool) Append(n uint64, bit bool) bool { return b.bm.Append(n, bit) }

// Lookup decodes op against v.
func (b *Bool) Lookup(op coder.Op, v value.Value) (*bitstream.Bitstream, error) {
	d := b.bm.Lookup(op, v.Bool)
	if d == nil {
		return nil, coder.ErrUnsupportedOp(op)
	}
	return d, nil
}

// Size returns rows.
func (b *Bool) Size() uint64 { return b.bm.Size() }

// Kind returns value.KindBool.
func (b *Bool) Kind() value.Kind { return value.KindBool }

// Validity returns the underlying bitmap's validity mask.
func (b *Bool) Validity() *bitstream.Bitstream { return b.bm.Validity() }

// MarshalBinary delegates to the underlying boolean bitmap.
func (b *Bool) MarshalBinary() ([]byte, error) { return b.bm.MarshalBinary() }

// UnmarshalBinary restores state produced by MarshalBinary.
func (b *Bool) UnmarshalBinary(data []byte) error { return b.bm.UnmarshalBinary(data) }

// New constructs the typed index appropriate for kind. maxStringSize and
// maxContainerElements implement the options of spec §6.
func New(kind value.Kind, maxStringSize, maxContainerElements int) Index {
	switch kind {
	case value.KindBool:
		return NewBool()
	case value.KindString:
		return NewString(maxStringSize)
	case value.KindAddress:
		return NewAddress()
	case value.KindPort:
		return NewPort()
	case value.KindSet, value.KindVector:
		return NewContainer(kind, maxContainerElements)
	case value.KindInt, value.KindUint, value.KindFloat, value.KindTime, value.KindDuration:
		return NewArithmetic(kind, binner.Null{})
	default:
		return nil
	}
}
