// Package wire provides a sequential binary stream codec of primitive
// values: unsigned varints, booleans, single bytes, float32s and
// length-prefixed strings, blobs and string lists. There is no seeking.
package wire

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/cockroachdb/errors"
)

// DefaultMaxLength bounds any single length prefix read from a stream.
const DefaultMaxLength = 64 << 20

var (
	// ErrTruncated is returned when the stream ends before a value is complete.
	ErrTruncated = errors.New("wire: truncated stream")

	// ErrTooLarge is returned when a length prefix exceeds the reader's limit
	// or the bytes remaining in the stream.
	ErrTooLarge = errors.New("wire: length prefix too large")

	// ErrInvalidBool is returned when a boolean byte is neither 0 nor 1.
	ErrInvalidBool = errors.New("wire: invalid boolean byte")
)

// Writer writes primitive values to an underlying io.Writer.
type Writer struct {
	w       io.Writer
	scratch [binary.MaxVarintLen64]byte
}

// NewWriter returns a Writer writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) write(p []byte) error {
	if _, err := w.w.Write(p); err != nil {
		return errors.Wrap(err, "wire: write")
	}
	return nil
}

// WriteUvarint writes v as an unsigned LEB128 varint.
func (w *Writer) WriteUvarint(v uint64) error {
	n := binary.PutUvarint(w.scratch[:], v)
	return w.write(w.scratch[:n])
}

// WriteByte writes a single byte.
func (w *Writer) WriteByte(b byte) error {
	w.scratch[0] = b
	return w.write(w.scratch[:1])
}

// WriteBool writes 1 for true and 0 for false.
func (w *Writer) WriteBool(v bool) error {
	if v {
		return w.WriteByte(1)
	}
	return w.WriteByte(0)
}

// WriteFloat32 writes the IEEE-754 bits of v, big-endian.
func (w *Writer) WriteFloat32(v float32) error {
	binary.BigEndian.PutUint32(w.scratch[:4], math.Float32bits(v))
	return w.write(w.scratch[:4])
}

// WriteBytes writes a length-prefixed blob.
func (w *Writer) WriteBytes(p []byte) error {
	if err := w.WriteUvarint(uint64(len(p))); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	return w.write(p)
}

// WriteString writes a length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) error {
	if err := w.WriteUvarint(uint64(len(s))); err != nil {
		return err
	}
	if len(s) == 0 {
		return nil
	}
	if sw, ok := w.w.(io.StringWriter); ok {
		if _, err := sw.WriteString(s); err != nil {
			return errors.Wrap(err, "wire: write")
		}
		return nil
	}
	return w.write([]byte(s))
}

// WriteStrings writes a count followed by each string.
func (w *Writer) WriteStrings(ss []string) error {
	if err := w.WriteUvarint(uint64(len(ss))); err != nil {
		return err
	}
	for _, s := range ss {
		if err := w.WriteString(s); err != nil {
			return err
		}
	}
	return nil
}

// byteReader is what Reader needs from its source.
type byteReader interface {
	io.Reader
	io.ByteReader
}

// lener is implemented by in-memory readers such as bytes.Reader and
// bytes.Buffer that know how many bytes are left unread.
type lener interface {
	Len() int
}

// Reader reads primitive values from an underlying io.Reader.
type Reader struct {
	r         byteReader
	remaining lener
	maxLength uint64
	scratch   [4]byte
}

// NewReader returns a Reader reading from r. Readers that do not implement
// io.ByteReader are wrapped in a bufio.Reader, which may read ahead.
func NewReader(r io.Reader) *Reader {
	rd := &Reader{maxLength: DefaultMaxLength}
	if br, ok := r.(byteReader); ok {
		rd.r = br
	} else {
		rd.r = bufio.NewReader(r)
	}
	if l, ok := rd.r.(lener); ok {
		rd.remaining = l
	}
	return rd
}

// SetMaxLength changes the largest length prefix the reader accepts.
func (r *Reader) SetMaxLength(n uint64) {
	r.maxLength = n
}

// Remaining reports the number of unread bytes when the underlying reader
// knows it.
func (r *Reader) Remaining() (int, bool) {
	if r.remaining == nil {
		return 0, false
	}
	return r.remaining.Len(), true
}

// CheckCount fails when n items of at least minSize bytes each cannot fit in
// what is left of the stream.
func (r *Reader) CheckCount(n uint64, minSize int) error {
	if n > r.maxLength {
		return errors.Wrapf(ErrTooLarge, "count %d exceeds limit %d", n, r.maxLength)
	}
	left, ok := r.Remaining()
	if !ok || minSize <= 0 {
		return nil
	}
	if n > uint64(left)/uint64(minSize) {
		return errors.Wrapf(ErrTruncated, "count %d needs at least %d bytes, %d remain", n, n*uint64(minSize), left)
	}
	return nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return errors.Wrap(err, "wire: read")
}

// ReadUvarint reads an unsigned LEB128 varint.
func (r *Reader) ReadUvarint() (uint64, error) {
	v, err := binary.ReadUvarint(r.r)
	if err != nil {
		return 0, truncated(err)
	}
	return v, nil
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, truncated(err)
	}
	return b, nil
}

// ReadBool reads a byte that must be 0 or 1.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, errors.Wrapf(ErrInvalidBool, "got 0x%02x", b)
	}
}

// ReadFloat32 reads four big-endian bytes as an IEEE-754 float32.
func (r *Reader) ReadFloat32() (float32, error) {
	if _, err := io.ReadFull(r.r, r.scratch[:4]); err != nil {
		return 0, truncated(err)
	}
	return math.Float32frombits(binary.BigEndian.Uint32(r.scratch[:4])), nil
}

func (r *Reader) readLength() (int, error) {
	n, err := r.ReadUvarint()
	if err != nil {
		return 0, err
	}
	if n > r.maxLength {
		return 0, errors.Wrapf(ErrTooLarge, "length %d exceeds limit %d", n, r.maxLength)
	}
	if left, ok := r.Remaining(); ok && n > uint64(left) {
		return 0, errors.Wrapf(ErrTruncated, "length %d exceeds %d remaining bytes", n, left)
	}
	return int(n), nil
}

// ReadBytes reads a length-prefixed blob. A zero length yields nil.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.readLength()
	if err != nil || n == 0 {
		return nil, err
	}
	p := make([]byte, n)
	if _, err := io.ReadFull(r.r, p); err != nil {
		return nil, truncated(err)
	}
	return p, nil
}

// ReadString reads a length-prefixed string.
func (r *Reader) ReadString() (string, error) {
	p, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// ReadStrings reads a count followed by that many strings. An empty list
// yields a non-nil empty slice.
func (r *Reader) ReadStrings() ([]string, error) {
	n, err := r.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if err := r.CheckCount(n, 1); err != nil {
		return nil, err
	}
	ss := make([]string, 0, min(n, 1024))
	for i := uint64(0); i < n; i++ {
		s, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		ss = append(ss, s)
	}
	return ss, nil
}
