package transport

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies how a frame payload is compressed. The values are
// written into every frame header and must not change.
type Compression uint8

const (
	// CompressionNone stores the binary envelope as is.
	CompressionNone Compression = 0

	// CompressionZstd compresses the payload with zstd at the default level.
	CompressionZstd Compression = 1

	// CompressionLZ4 compresses the payload as a single LZ4 block.
	CompressionLZ4 Compression = 2
)

// String returns the flag name of the compression.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a compression name as printed by String.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none", "":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, errors.Wrapf(ErrUnknownCompression, "%q", name)
	}
}

// zstd encoders and decoders are safe for concurrent use. The shared decoder
// refuses to produce more than DefaultMaxFrameSize bytes.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("transport: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder = newZstdDecoder(DefaultMaxFrameSize)
}

// newZstdDecoder returns a decoder whose output is capped at limit bytes.
func newZstdDecoder(limit uint64) *zstd.Decoder {
	limit = min(max(limit, 1), 1<<63)
	d, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(limit))
	if err != nil {
		panic("transport: zstd decoder initialization failed: " + err.Error())
	}
	return d
}

// compress returns the payload for data and the compression actually used.
// Data that does not shrink is stored uncompressed.
func compress(data []byte, c Compression) ([]byte, Compression, error) {
	switch c {
	case CompressionNone:
		return data, CompressionNone, nil
	case CompressionZstd:
		out := zstdEncoder.EncodeAll(data, nil)
		if len(out) >= len(data) {
			return data, CompressionNone, nil
		}
		return out, CompressionZstd, nil
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, 0, errors.Wrap(err, "lz4 compress")
		}
		// CompressBlock reports 0 for incompressible input.
		if n == 0 || n >= len(data) {
			return data, CompressionNone, nil
		}
		return dst[:n], CompressionLZ4, nil
	default:
		return nil, 0, errors.Wrapf(ErrUnknownCompression, "tag %d", uint8(c))
	}
}

// decompress restores a payload of exactly size bytes. zd bounds how much a
// zstd payload may expand to.
func decompress(payload []byte, c Compression, size int, zd *zstd.Decoder) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch c {
	case CompressionNone:
		out = payload
	case CompressionZstd:
		var h zstd.Header
		if err := h.Decode(payload); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "zstd header"), ErrCorruptFrame)
		}
		if h.HasFCS && h.FrameContentSize != uint64(size) {
			return nil, errors.Wrapf(ErrCorruptFrame, "zstd content size %d, header says %d", h.FrameContentSize, size)
		}
		out, err = zd.DecodeAll(payload, make([]byte, 0, size))
		if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
			return nil, errors.Mark(errors.Wrap(err, "zstd decompress"), ErrFrameTooLarge)
		}
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "zstd decompress"), ErrCorruptFrame)
		}
	case CompressionLZ4:
		out = make([]byte, size)
		var n int
		n, err = lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "lz4 decompress"), ErrCorruptFrame)
		}
		out = out[:n]
	default:
		return nil, errors.Wrapf(ErrUnknownCompression, "tag %d", uint8(c))
	}
	if len(out) != size {
		return nil, errors.Wrapf(ErrCorruptFrame, "%s payload has %d bytes, header says %d", c, len(out), size)
	}
	return out, nil
}
