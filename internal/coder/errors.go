package coder

import (
	"errors"
	"fmt"
)

// errUnsupportedLT is returned by Range.Decode for "<" on a key type with
// no integral predecessor (spec §4.4, §7 "Unsupported query").
var errUnsupportedLT = errors.New("coder: < is unsupported on non-integral range-coded field")

// errUnsupportedOp is returned for an operator a coder does not implement
// at all (spec §7 "Unsupported query").
var errUnsupportedOp = errors.New("coder: operator unsupported by this coder")

// ErrUnsupportedOp wraps errUnsupportedOp with the offending operator, for
// a coder whose Lookup returned a nil bitstream (spec §7 "Unsupported
// query").
func ErrUnsupportedOp(op Op) error {
	return fmt.Errorf("%w: %s", errUnsupportedOp, op)
}

// IsUnsupported reports whether err originates from an unsupported query
// per spec §7, so callers can short-circuit the rest of the expression.
func IsUnsupported(err error) bool {
	return errors.Is(err, errUnsupportedLT) || errors.Is(err, errUnsupportedOp)
}
