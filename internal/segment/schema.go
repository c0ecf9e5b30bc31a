package segment

import (
	"strings"
	"sync"

	"github.com/unsecureio/vast/internal/value"
)

// RecordType is an interned structural signature of a record: its field
// names and kinds in order. Two records with the same shape intern to
// the same *RecordType, so readers can compare types by pointer as well
// as by value (spec §8 property 7).
type RecordType struct {
	Name   string
	Fields []FieldType
}

// FieldType names one field of a RecordType.
type FieldType struct {
	Name string
	Kind value.Kind
}

func signature(name string, rec value.Record) string {
	fields := make([]FieldType, len(rec))
	for i, f := range rec {
		fields[i] = FieldType{Name: f.Name, Kind: f.Value.Kind}
	}
	return fieldsSignature(name, fields)
}

func fieldsSignature(name string, fields []FieldType) string {
	var b strings.Builder
	b.WriteString(name)
	for _, f := range fields {
		b.WriteByte('\x00')
		b.WriteString(f.Name)
		b.WriteByte('\x01')
		b.WriteString(f.Kind.String())
	}
	return b.String()
}

// Schema interns the distinct record types a segment writer encounters
// (spec §3, §4.8).
type Schema struct {
	mu    sync.Mutex
	types map[string]*RecordType
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{types: make(map[string]*RecordType)}
}

// Intern returns the RecordType for (name, rec), interning a new one if
// this exact shape has not been seen before.
func (s *Schema) Intern(name string, rec value.Record) *RecordType {
	sig := signature(name, rec)
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.types[sig]; ok {
		return t
	}
	fields := make([]FieldType, len(rec))
	for i, f := range rec {
		fields[i] = FieldType{Name: f.Name, Kind: f.Value.Kind}
	}
	t := &RecordType{Name: name, Fields: fields}
	s.types[sig] = t
	return t
}

// restore inserts t, previously persisted and decoded elsewhere, back
// into the schema under the signature its name and fields would
// normally have been interned under.
func (s *Schema) restore(t *RecordType) {
	sig := fieldsSignature(t.Name, t.Fields)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[sig] = t
}

// Len returns the number of distinct record types interned.
func (s *Schema) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.types)
}

// Each visits every interned type.
func (s *Schema) Each(visit func(*RecordType)) {
	s.mu.Lock()
	types := make([]*RecordType, 0, len(s.types))
	for _, t := range s.types {
		types = append(types, t)
	}
	s.mu.Unlock()
	for _, t := range types {
		visit(t)
	}
}
