package segment

import (
	"fmt"

	"github.com/unsecureio/vast/internal/value"
	"github.com/unsecureio/vast/internal/wire"
)

// chunkHeader describes one compressed chunk within a segment file (spec
// §4.8, §9's recommended per-chunk id base resolving the non-dense-ID
// open question).
type chunkHeader struct {
	Base  uint64 // id of the chunk's first event
	Count uint32 // number of events in the chunk
}

func encodeEvents(events []value.Event) ([]byte, error) {
	raw, err := wire.Encode(events)
	if err != nil {
		return nil, fmt.Errorf("segment: encode chunk: %w", err)
	}
	return raw, nil
}

func decodeEvents(raw []byte) ([]value.Event, error) {
	var events []value.Event
	if err := wire.Decode(raw, &events); err != nil {
		return nil, fmt.Errorf("segment: decode chunk: %w", err)
	}
	return events, nil
}

// chunk is a sealed, compressed batch of events plus the header needed
// to address it without decompressing (spec §4.8).
type chunk struct {
	header     chunkHeader
	compressed []byte
}

func sealChunk(events []value.Event) (chunk, error) {
	raw, err := encodeEvents(events)
	if err != nil {
		return chunk{}, err
	}
	return chunk{
		header: chunkHeader{
			Base:  events[0].ID,
			Count: uint32(len(events)),
		},
		compressed: compress(raw),
	}, nil
}

func (c chunk) decode() ([]value.Event, error) {
	raw, err := decompress(c.compressed)
	if err != nil {
		return nil, fmt.Errorf("segment: corrupt chunk at base %d: %w", c.header.Base, err)
	}
	return decodeEvents(raw)
}
