package segment

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	encOnce sync.Once
	enc     *zstd.Encoder

	decOnce sync.Once
	dec     *zstd.Decoder
)

func encoder() *zstd.Encoder {
	encOnce.Do(func() {
		enc, _ = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	})
	return enc
}

func decoder() *zstd.Decoder {
	decOnce.Do(func() {
		dec, _ = zstd.NewReader(nil)
	})
	return dec
}

func compress(raw []byte) []byte {
	return encoder().EncodeAll(raw, make([]byte, 0, len(raw)/2))
}

func decompress(compressed []byte) ([]byte, error) {
	return decoder().DecodeAll(compressed, nil)
}
