// Package intern implements the string interning table used by the meta
// index's name bitmap and by string-typed argument bitmaps (SPEC_FULL.md
// "Supplemented features"). Strings are deduplicated via xxhash so the
// equality coder keys on a small uint32 rather than repeating string
// comparisons.
package intern

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/unsecureio/vast/internal/wire"
)

// Table interns strings to dense uint32 IDs.
type Table struct {
	mu      sync.RWMutex
	byHash  map[uint64]uint32
	strings []string
}

// New returns an empty interning table.
func New() *Table {
	return &Table{byHash: make(map[uint64]uint32)}
}

// Intern returns the ID for s, assigning a new one if s has not been seen
// before.
func (t *Table) Intern(s string) uint32 {
	h := xxhash.Sum64String(s)
	t.mu.RLock()
	if id, ok := t.byHash[h]; ok {
		t.mu.RUnlock()
		return id
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byHash[h]; ok {
		return id
	}
	id := uint32(len(t.strings))
	t.strings = append(t.strings, s)
	t.byHash[h] = id
	return id
}

// Lookup returns the ID already assigned to s, if any, without
// interning it.
func (t *Table) Lookup(s string) (uint32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byHash[xxhash.Sum64String(s)]
	return id, ok
}

// String returns the string interned under id.
func (t *Table) String(id uint32) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.strings) {
		return "", false
	}
	return t.strings[id], true
}

// Len returns the number of distinct strings interned.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.strings)
}

// MarshalBinary serializes the interned strings in ID order; byHash is
// rebuilt from this list on load.
func (t *Table) MarshalBinary() ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	data, err := wire.Encode(t.strings)
	if err != nil {
		return nil, fmt.Errorf("intern: marshal: %w", err)
	}
	return data, nil
}

// UnmarshalBinary rebuilds the table from data produced by MarshalBinary.
func (t *Table) UnmarshalBinary(data []byte) error {
	var strs []string
	if err := wire.Decode(data, &strs); err != nil {
		return fmt.Errorf("intern: unmarshal: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.strings = strs
	t.byHash = make(map[uint64]uint32, len(strs))
	for i, s := range strs {
		t.byHash[xxhash.Sum64String(s)] = uint32(i)
	}
	return nil
}
