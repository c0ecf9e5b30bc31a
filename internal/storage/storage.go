// Package storage implements C2: the mapping from a coded value to its
// bitstream, in three variants (vector, list, unordered) with different
// space/time tradeoffs over the value domain.
package storage

import (
	"cmp"
	"fmt"
	"sort"

	"github.com/unsecureio/vast/internal/bitstream"
	"github.com/unsecureio/vast/internal/wire"
)

// Policy is the contract shared by every storage variant (spec §4.2).
// Each implementation must round-trip through MarshalBinary/
// UnmarshalBinary (spec §4.2, §8 property 1).
type Policy[K cmp.Ordered] interface {
	// Find returns the bitstream stored for k, if any.
	Find(k K) (*bitstream.Bitstream, bool)
	// FindBounds returns the nearest stored keys strictly below and above
	// k. Either may be absent (ok=false) if no such neighbor exists.
	FindBounds(k K) (lower, upper Bound[K])
	// Each visits every stored key in ascending order.
	Each(visit func(K, *bitstream.Bitstream))
	// Insert stores seed under k if k is new, returning the resulting
	// (possibly pre-existing) bitstream and whether it was newly inserted.
	Insert(k K, seed *bitstream.Bitstream) (*bitstream.Bitstream, bool)
	// Cardinality returns the number of distinct keys inserted.
	Cardinality() int
	// Rows returns the shared row counter.
	Rows() uint64
	// IncrRows advances the shared row counter by one, called once per
	// encoded row and once per gap-appended row.
	IncrRows()

	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
}

// Bound is one side of a FindBounds result.
type Bound[K cmp.Ordered] struct {
	Key  K
	Bits *bitstream.Bitstream
	OK   bool
}

// Vector is the dense, array-indexed policy: O(1) lookup, O(max(T)) space.
// Intended only for tiny integral domains (spec §3, §4.2).
type Vector struct {
	slots []*bitstream.Bitstream
	keys  []bool
	card  int
	rows  uint64
}

// NewVector returns an empty vector-backed policy.
func NewVector() *Vector {
	return &Vector{}
}

func (v *Vector) grow(idx int) {
	for len(v.slots) <= idx {
		v.slots = append(v.slots, nil)
		v.keys = append(v.keys, false)
	}
}

// Find returns the bitstream at index k.
func (v *Vector) Find(k int64) (*bitstream.Bitstream, bool) {
	idx := int(k)
	if idx < 0 || idx >= len(v.keys) || !v.keys[idx] {
		return nil, false
	}
	return v.slots[idx], true
}

// FindBounds performs a linear scan of the (tiny) domain, per spec §4.2.
func (v *Vector) FindBounds(k int64) (lower, upper Bound[int64]) {
	for idx := int(k) - 1; idx >= 0; idx-- {
		if idx < len(v.keys) && v.keys[idx] {
			lower = Bound[int64]{Key: int64(idx), Bits: v.slots[idx], OK: true}
			break
		}
	}
	for idx := int(k) + 1; idx < len(v.keys); idx++ {
		if v.keys[idx] {
			upper = Bound[int64]{Key: int64(idx), Bits: v.slots[idx], OK: true}
			break
		}
	}
	return
}

// Each visits stored indices in ascending order.
func (v *Vector) Each(visit func(int64, *bitstream.Bitstream)) {
	for idx, ok := range v.keys {
		if ok {
			visit(int64(idx), v.slots[idx])
		}
	}
}

// Insert stores seed at index k if absent.
func (v *Vector) Insert(k int64, seed *bitstream.Bitstream) (*bitstream.Bitstream, bool) {
	idx := int(k)
	v.grow(idx)
	if v.keys[idx] {
		return v.slots[idx], false
	}
	v.keys[idx] = true
	v.slots[idx] = seed
	v.card++
	return seed, true
}

// Cardinality returns the number of distinct indices inserted.
func (v *Vector) Cardinality() int { return v.card }

// Rows returns the shared row counter.
func (v *Vector) Rows() uint64 { return v.rows }

// IncrRows advances the shared row counter.
func (v *Vector) IncrRows() { v.rows++ }

type vectorEntry struct {
	Idx  int
	Bits []byte
}

type vectorBlob struct {
	Rows    uint64
	Entries []vectorEntry
}

// MarshalBinary serializes only the occupied slots, keyed by index, since
// a dense domain can still be sparsely populated.
func (v *Vector) MarshalBinary() ([]byte, error) {
	blob := vectorBlob{Rows: v.rows}
	for idx, ok := range v.keys {
		if !ok {
			continue
		}
		bits, err := v.slots[idx].MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("storage: vector: marshal slot %d: %w", idx, err)
		}
		blob.Entries = append(blob.Entries, vectorEntry{Idx: idx, Bits: bits})
	}
	return wire.Encode(blob)
}

// UnmarshalBinary reconstructs a Vector produced by MarshalBinary.
func (v *Vector) UnmarshalBinary(data []byte) error {
	var blob vectorBlob
	if err := wire.Decode(data, &blob); err != nil {
		return fmt.Errorf("storage: vector: unmarshal: %w", err)
	}
	v.rows = blob.Rows
	v.slots = nil
	v.keys = nil
	v.card = 0
	for _, e := range blob.Entries {
		v.grow(e.Idx)
		b := bitstream.New()
		if err := b.UnmarshalBinary(e.Bits); err != nil {
			return fmt.Errorf("storage: vector: unmarshal slot %d: %w", e.Idx, err)
		}
		v.keys[e.Idx] = true
		v.slots[e.Idx] = b
		v.card++
	}
	return nil
}

// listEntry is one node of the ordered-list policy.
type listEntry[K cmp.Ordered] struct {
	key  K
	bits *bitstream.Bitstream
}

// List is the ordered policy: O(1) lookup via a companion map, O(log n)
// bounds via binary search on the ordered slice (spec §3, §4.2).
type List[K cmp.Ordered] struct {
	entries []listEntry[K]
	index   map[K]int
	rows    uint64
}

// NewList returns an empty list-backed policy.
func NewList[K cmp.Ordered]() *List[K] {
	return &List[K]{index: make(map[K]int)}
}

// Find returns the bitstream stored for k.
func (l *List[K]) Find(k K) (*bitstream.Bitstream, bool) {
	i, ok := l.index[k]
	if !ok {
		return nil, false
	}
	return l.entries[i].bits, true
}

func (l *List[K]) search(k K) int {
	return sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].key >= k
	})
}

// FindBounds binary-searches the ordered slice for the neighbors of k.
func (l *List[K]) FindBounds(k K) (lower, upper Bound[K]) {
	i := l.search(k)
	if i < len(l.entries) && l.entries[i].key == k {
		if i > 0 {
			lower = Bound[K]{Key: l.entries[i-1].key, Bits: l.entries[i-1].bits, OK: true}
		}
		if i+1 < len(l.entries) {
			upper = Bound[K]{Key: l.entries[i+1].key, Bits: l.entries[i+1].bits, OK: true}
		}
		return
	}
	if i > 0 {
		lower = Bound[K]{Key: l.entries[i-1].key, Bits: l.entries[i-1].bits, OK: true}
	}
	if i < len(l.entries) {
		upper = Bound[K]{Key: l.entries[i].key, Bits: l.entries[i].bits, OK: true}
	}
	return
}

// Each visits entries in ascending key order.
func (l *List[K]) Each(visit func(K, *bitstream.Bitstream)) {
	for _, e := range l.entries {
		visit(e.key, e.bits)
	}
}

// Insert stores seed under k, keeping the slice sorted, if k is new.
func (l *List[K]) Insert(k K, seed *bitstream.Bitstream) (*bitstream.Bitstream, bool) {
	if i, ok := l.index[k]; ok {
		return l.entries[i].bits, false
	}
	i := l.search(k)
	l.entries = append(l.entries, listEntry[K]{})
	copy(l.entries[i+1:], l.entries[i:])
	l.entries[i] = listEntry[K]{key: k, bits: seed}
	for j := i; j < len(l.entries); j++ {
		l.index[l.entries[j].key] = j
	}
	return seed, true
}

// Cardinality returns the number of distinct keys inserted.
func (l *List[K]) Cardinality() int { return len(l.entries) }

// Rows returns the shared row counter.
func (l *List[K]) Rows() uint64 { return l.rows }

// IncrRows advances the shared row counter.
func (l *List[K]) IncrRows() { l.rows++ }

type listEntryBlob[K cmp.Ordered] struct {
	Key  K
	Bits []byte
}

type listBlob[K cmp.Ordered] struct {
	Rows    uint64
	Entries []listEntryBlob[K]
}

// MarshalBinary serializes entries in their existing sorted order, so
// UnmarshalBinary can rebuild the slice without re-sorting.
func (l *List[K]) MarshalBinary() ([]byte, error) {
	blob := listBlob[K]{Rows: l.rows, Entries: make([]listEntryBlob[K], len(l.entries))}
	for i, e := range l.entries {
		bits, err := e.bits.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("storage: list: marshal entry %d: %w", i, err)
		}
		blob.Entries[i] = listEntryBlob[K]{Key: e.key, Bits: bits}
	}
	return wire.Encode(blob)
}

// UnmarshalBinary reconstructs a List produced by MarshalBinary.
func (l *List[K]) UnmarshalBinary(data []byte) error {
	var blob listBlob[K]
	if err := wire.Decode(data, &blob); err != nil {
		return fmt.Errorf("storage: list: unmarshal: %w", err)
	}
	l.rows = blob.Rows
	l.entries = make([]listEntry[K], len(blob.Entries))
	l.index = make(map[K]int, len(blob.Entries))
	for i, e := range blob.Entries {
		b := bitstream.New()
		if err := b.UnmarshalBinary(e.Bits); err != nil {
			return fmt.Errorf("storage: list: unmarshal entry %d: %w", i, err)
		}
		l.entries[i] = listEntry[K]{key: e.Key, bits: b}
		l.index[e.Key] = i
	}
	return nil
}

// Unordered is the sparse, hash-map-only policy: O(1) lookup, O(n) bounds
// via linear scan (spec §3, §4.2).
type Unordered[K cmp.Ordered] struct {
	m    map[K]*bitstream.Bitstream
	rows uint64
}

// NewUnordered returns an empty hash-backed policy.
func NewUnordered[K cmp.Ordered]() *Unordered[K] {
	return &Unordered[K]{m: make(map[K]*bitstream.Bitstream)}
}

// Find returns the bitstream stored for k.
func (u *Unordered[K]) Find(k K) (*bitstream.Bitstream, bool) {
	b, ok := u.m[k]
	return b, ok
}

// FindBounds linear-scans every key to find k's nearest neighbors.
func (u *Unordered[K]) FindBounds(k K) (lower, upper Bound[K]) {
	haveLower, haveUpper := false, false
	for key, bits := range u.m {
		if key < k && (!haveLower || key > lower.Key) {
			lower = Bound[K]{Key: key, Bits: bits, OK: true}
			haveLower = true
		}
		if key > k && (!haveUpper || key < upper.Key) {
			upper = Bound[K]{Key: key, Bits: bits, OK: true}
			haveUpper = true
		}
	}
	return
}

// Each visits every stored key in ascending order (a sort is required
// since the backing map has no order).
func (u *Unordered[K]) Each(visit func(K, *bitstream.Bitstream)) {
	keys := make([]K, 0, len(u.m))
	for k := range u.m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		visit(k, u.m[k])
	}
}

// Insert stores seed under k if absent.
func (u *Unordered[K]) Insert(k K, seed *bitstream.Bitstream) (*bitstream.Bitstream, bool) {
	if b, ok := u.m[k]; ok {
		return b, false
	}
	u.m[k] = seed
	return seed, true
}

// Cardinality returns the number of distinct keys inserted.
func (u *Unordered[K]) Cardinality() int { return len(u.m) }

// Rows returns the shared row counter.
func (u *Unordered[K]) Rows() uint64 { return u.rows }

// IncrRows advances the shared row counter.
func (u *Unordered[K]) IncrRows() { u.rows++ }

type unorderedEntryBlob[K cmp.Ordered] struct {
	Key  K
	Bits []byte
}

type unorderedBlob[K cmp.Ordered] struct {
	Rows    uint64
	Entries []unorderedEntryBlob[K]
}

// MarshalBinary serializes every entry; order is irrelevant since Find
// and Each rebuild any needed ordering from the map.
func (u *Unordered[K]) MarshalBinary() ([]byte, error) {
	blob := unorderedBlob[K]{Rows: u.rows, Entries: make([]unorderedEntryBlob[K], 0, len(u.m))}
	for k, b := range u.m {
		bits, err := b.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("storage: unordered: marshal entry: %w", err)
		}
		blob.Entries = append(blob.Entries, unorderedEntryBlob[K]{Key: k, Bits: bits})
	}
	return wire.Encode(blob)
}

// UnmarshalBinary reconstructs an Unordered produced by MarshalBinary.
func (u *Unordered[K]) UnmarshalBinary(data []byte) error {
	var blob unorderedBlob[K]
	if err := wire.Decode(data, &blob); err != nil {
		return fmt.Errorf("storage: unordered: unmarshal: %w", err)
	}
	u.rows = blob.Rows
	u.m = make(map[K]*bitstream.Bitstream, len(blob.Entries))
	for _, e := range blob.Entries {
		b := bitstream.New()
		if err := b.UnmarshalBinary(e.Bits); err != nil {
			return fmt.Errorf("storage: unordered: unmarshal entry: %w", err)
		}
		u.m[e.Key] = b
	}
	return nil
}
