// Package binner implements C3: value-domain reducers applied by a Bitmap
// before a value reaches its coder.
package binner

import "math"

// Binner reduces a raw value to the representative it should be coded
// under.
type Binner interface {
	// Bin returns the reduced representative of v.
	Bin(v float64) float64
	// Equal reports whether two binners are semantically interchangeable.
	Equal(Binner) bool
}

// Null is the identity binner.
type Null struct{}

// Bin returns v unchanged.
func (Null) Bin(v float64) float64 { return v }

// Equal reports whether other is also the identity binner.
func (Null) Equal(other Binner) bool {
	_, ok := other.(Null)
	return ok
}

// Precision bins floating values by rounding and integral values by
// truncating, both to 10^p resolution, per spec §4.3.
type Precision struct {
	P int
}

// Bin applies the precision reduction described in spec §4.3: for p<0,
// rounds the fractional part to 10^p; for p>=0, divides by 10^p.
//
// Taking a float64 here means integral inputs always take the rounding
// path rather than a separate truncation path for p<0; this is harmless
// in practice because vindex.Arithmetic always int64-reduces its bin
// output before coding, so the two paths agree on every integral value
// in range. P==0 is the identity reduction and is the only case
// vindex.Arithmetic trusts to preserve a value's exact int64
// representation (nanosecond timestamps, large counters) rather than
// round-tripping it through this float64 domain.
func (b Precision) Bin(v float64) float64 {
	if b.P == 0 {
		return v
	}
	scale := math.Pow(10, float64(b.P))
	if b.P < 0 {
		return math.Round(v/scale) * scale
	}
	return math.Trunc(v / scale)
}

// Equal reports whether other is a Precision binner with the same factor.
func (b Precision) Equal(other Binner) bool {
	o, ok := other.(Precision)
	return ok && o.P == b.P
}
