// Package msgcodec compresses stored payloads.
package msgcodec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compression identifies how a stored payload is encoded. The values are
// persisted; do not renumber.
type Compression int

const (
	None Compression = 0
	Zstd Compression = 1
)

// String returns the name of the compression.
func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", int(c))
	}
}

// DefaultThreshold is the payload size from which Encode tries zstd.
const DefaultThreshold = 256

// Package-level encoder/decoder, safe for concurrent use.
var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("msgcodec: init zstd encoder: %v", err))
	}
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("msgcodec: init zstd decoder: %v", err))
	}
}

// Compress returns data compressed with zstd.
func Compress(data []byte) []byte {
	return encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
}

// Encode compresses data when it is at least threshold bytes long and
// compression actually shrinks it. Otherwise data is returned unchanged
// with None.
func Encode(data []byte, threshold int) ([]byte, Compression) {
	if len(data) < threshold {
		return data, None
	}
	compressed := Compress(data)
	if len(compressed) >= len(data) {
		return data, None
	}
	return compressed, Zstd
}

// Decompress reverses Encode.
func Decompress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case Zstd:
		return decoder.DecodeAll(data, nil)
	case None:
		return data, nil
	default:
		return nil, fmt.Errorf("msgcodec: unsupported compression: %v", c)
	}
}
