// Package transport frames binary envelopes for storage and transfer.
//
// A frame is a compression tag byte, the uvarint length of the encoded
// envelope, and the length-prefixed payload:
//
//	tag  rawLen  payloadLen  payload...
//
// Payloads that do not shrink under the requested compression are stored
// with CompressionNone.
package transport

import (
	"bytes"
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/letmevibethatforyou/eqlx"
	"github.com/letmevibethatforyou/eqlx/wire"
)

const tracerName = "eqlx-transport"

// DefaultMaxFrameSize bounds the encoded envelope a frame may announce.
const DefaultMaxFrameSize = 32 << 20

var (
	// ErrUnknownCompression is returned for a compression name or tag that
	// is not supported.
	ErrUnknownCompression = errors.New("transport: unknown compression")

	// ErrCorruptFrame is returned when a frame header or payload is invalid.
	ErrCorruptFrame = errors.New("transport: corrupt frame")

	// ErrFrameTooLarge is returned when a frame announces more than the
	// codec's size limit.
	ErrFrameTooLarge = errors.New("transport: frame too large")
)

// Codec writes and reads frames. It is safe for concurrent use.
type Codec struct {
	compression  Compression
	maxFrameSize uint64
	tracer       trace.Tracer
	decoder      *zstd.Decoder
}

// Option configures a Codec.
type Option func(*Codec)

// WithMaxFrameSize sets the largest encoded envelope the codec accepts.
func WithMaxFrameSize(n uint64) Option {
	return func(c *Codec) { c.maxFrameSize = n }
}

// WithTracerProvider sets where frame spans are recorded. The global provider
// is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Codec) { c.tracer = tp.Tracer(tracerName) }
}

// NewCodec returns a codec that compresses new frames with compression.
// Reading accepts every supported compression.
func NewCodec(compression Compression, opts ...Option) *Codec {
	c := &Codec{
		compression:  compression,
		maxFrameSize: DefaultMaxFrameSize,
		tracer:       otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.decoder = zstdDecoder
	if c.maxFrameSize != DefaultMaxFrameSize {
		c.decoder = newZstdDecoder(c.maxFrameSize)
	}
	return c
}

// Compression returns the compression used for new frames.
func (c *Codec) Compression() Compression { return c.compression }

// Encode returns env as a single frame.
func (c *Codec) Encode(ctx context.Context, env eqlx.Envelope) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.WriteFrame(ctx, &buf, env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FrameCompression returns the compression recorded in the header of frame.
func FrameCompression(frame []byte) (Compression, error) {
	if len(frame) == 0 {
		return 0, errors.Wrap(ErrCorruptFrame, "empty frame")
	}
	c := Compression(frame[0])
	if c > CompressionLZ4 {
		return 0, errors.Wrapf(ErrUnknownCompression, "tag %d", frame[0])
	}
	return c, nil
}

// Decode reads the envelope held in frame. Bytes after the frame are an
// error.
func (c *Codec) Decode(ctx context.Context, frame []byte) (eqlx.Envelope, error) {
	r := bytes.NewReader(frame)
	env, err := c.ReadFrame(ctx, r)
	if err != nil {
		return eqlx.Envelope{}, err
	}
	if r.Len() > 0 {
		return eqlx.Envelope{}, errors.Wrapf(ErrCorruptFrame, "%d trailing bytes", r.Len())
	}
	return env, nil
}

// WriteFrame encodes env and writes one frame to w.
func (c *Codec) WriteFrame(ctx context.Context, w io.Writer, env eqlx.Envelope) (err error) {
	_, span := c.tracer.Start(ctx, "transport.write_frame",
		trace.WithAttributes(attribute.String("transport.compression", c.compression.String())),
	)
	defer func() { endSpan(span, err) }()

	raw, err := env.MarshalBinary()
	if err != nil {
		return err
	}
	if uint64(len(raw)) > c.maxFrameSize {
		return errors.Wrapf(ErrFrameTooLarge, "envelope is %d bytes, limit %d", len(raw), c.maxFrameSize)
	}
	payload, used, err := compress(raw, c.compression)
	if err != nil {
		return err
	}

	ww := wire.NewWriter(w)
	if err := ww.WriteByte(byte(used)); err != nil {
		return err
	}
	if err := ww.WriteUvarint(uint64(len(raw))); err != nil {
		return err
	}
	if err := ww.WriteBytes(payload); err != nil {
		return err
	}

	span.SetAttributes(
		attribute.String("transport.used_compression", used.String()),
		attribute.Int("transport.raw_bytes", len(raw)),
		attribute.Int("transport.payload_bytes", len(payload)),
	)
	return nil
}

// ReadFrame reads one frame from r and decodes its envelope. Readers that
// are not io.ByteReaders may be read past the end of the frame.
func (c *Codec) ReadFrame(ctx context.Context, r io.Reader) (env eqlx.Envelope, err error) {
	_, span := c.tracer.Start(ctx, "transport.read_frame")
	defer func() { endSpan(span, err) }()

	rd := wire.NewReader(r)
	rd.SetMaxLength(c.maxFrameSize)

	tag, err := rd.ReadByte()
	if err != nil {
		return eqlx.Envelope{}, frameError(err, "read compression tag")
	}
	used := Compression(tag)
	if used > CompressionLZ4 {
		return eqlx.Envelope{}, errors.Wrapf(ErrUnknownCompression, "tag %d", tag)
	}

	size, err := rd.ReadUvarint()
	if err != nil {
		return eqlx.Envelope{}, frameError(err, "read envelope length")
	}
	if size > c.maxFrameSize {
		return eqlx.Envelope{}, errors.Wrapf(ErrFrameTooLarge, "envelope is %d bytes, limit %d", size, c.maxFrameSize)
	}

	payload, err := rd.ReadBytes()
	if err != nil {
		return eqlx.Envelope{}, frameError(err, "read payload")
	}
	raw, err := decompress(payload, used, int(size), c.decoder)
	if err != nil {
		return eqlx.Envelope{}, err
	}

	span.SetAttributes(
		attribute.String("transport.used_compression", used.String()),
		attribute.Int("transport.raw_bytes", len(raw)),
	)

	if err := env.UnmarshalBinary(raw); err != nil {
		return eqlx.Envelope{}, err
	}
	return env, nil
}

func frameError(err error, op string) error {
	if errors.Is(err, wire.ErrTooLarge) {
		return errors.Mark(errors.Wrap(err, op), ErrFrameTooLarge)
	}
	return errors.Mark(errors.Wrap(err, op), ErrCorruptFrame)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
