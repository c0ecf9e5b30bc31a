// Package wire gives every persisted index and segment blob a single
// encode/decode contract: whatever Encode writes, Decode consumes
// byte-for-byte. It wraps github.com/hashicorp/go-msgpack/codec, the
// codec internal/segment already uses for chunk bodies.
package wire

import (
	"bytes"
	"fmt"

	"github.com/hashicorp/go-msgpack/codec"
)

func handle() *codec.MsgpackHandle {
	return &codec.MsgpackHandle{}
}

// Encode serializes v to its msgpack wire form.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, handle())
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode deserializes data produced by Encode into v, which must be a
// pointer.
func Decode(data []byte, v any) error {
	dec := codec.NewDecoder(bytes.NewReader(data), handle())
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("wire: decode: %w", err)
	}
	return nil
}
