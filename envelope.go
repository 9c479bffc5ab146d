package eqlx

import (
	"bytes"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/letmevibethatforyou/eqlx/wire"
)

// Envelope is the outcome of one completed query: how long it took, whether
// it timed out, and its hits. The zero value is an empty, untimed result.
type Envelope struct {
	took     uint64
	timedOut bool
	hits     Hits
}

// NewEnvelope creates an envelope. took is in milliseconds.
func NewEnvelope(hits Hits, took uint64, timedOut bool) Envelope {
	return Envelope{took: took, timedOut: timedOut, hits: hits}
}

// Took returns the elapsed time in milliseconds.
func (e Envelope) Took() uint64 { return e.took }

// TookDuration returns the elapsed time as a duration.
func (e Envelope) TookDuration() time.Duration {
	return time.Duration(e.took) * time.Millisecond
}

// TimedOut reports whether the query stopped early because of a timeout.
func (e Envelope) TimedOut() bool { return e.timedOut }

// Hits returns the result payload.
func (e Envelope) Hits() Hits { return e.hits }

// Equal reports whether both envelopes are structurally equal.
func (e Envelope) Equal(o Envelope) bool {
	return e.took == o.took && e.timedOut == o.timedOut && e.hits.Equal(o.hits)
}

// String renders the envelope as a compact document.
func (e Envelope) String() string {
	data, err := e.MarshalJSON()
	if err != nil {
		return "error: " + err.Error()
	}
	return string(data)
}

// EncodeBinary writes the binary form of the envelope:
// took, timed_out, then the hits.
func (e Envelope) EncodeBinary(w io.Writer) error {
	ww := wire.NewWriter(w)
	if err := ww.WriteUvarint(e.took); err != nil {
		return errors.Wrap(err, "encode envelope")
	}
	if err := ww.WriteBool(e.timedOut); err != nil {
		return errors.Wrap(err, "encode envelope")
	}
	if err := e.hits.encode(ww); err != nil {
		return errors.Wrap(err, "encode envelope")
	}
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (e Envelope) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := e.EncodeBinary(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeBinary reads one envelope from r. On failure no envelope is returned
// and the error matches ErrMalformedStream.
func DecodeBinary(r io.Reader) (Envelope, error) {
	return decodeEnvelope(wire.NewReader(r))
}

func decodeEnvelope(r *wire.Reader) (Envelope, error) {
	malformed := func(err error, what string) (Envelope, error) {
		return Envelope{}, errors.Mark(errors.Wrapf(err, "decode envelope: %s", what), ErrMalformedStream)
	}

	took, err := r.ReadUvarint()
	if err != nil {
		return malformed(err, "took")
	}
	timedOut, err := r.ReadBool()
	if err != nil {
		return malformed(err, "timed_out")
	}
	hits, err := decodeHits(r)
	if err != nil {
		return malformed(err, "hits")
	}
	return Envelope{took: took, timedOut: timedOut, hits: hits}, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. Trailing bytes are
// an error.
func (e *Envelope) UnmarshalBinary(data []byte) error {
	br := bytes.NewReader(data)
	decoded, err := DecodeBinary(br)
	if err != nil {
		return err
	}
	if br.Len() > 0 {
		return errors.Wrapf(ErrMalformedStream, "decode envelope: %d trailing bytes", br.Len())
	}
	*e = decoded
	return nil
}

func (e Envelope) render(s *jsoniter.Stream) {
	s.WriteObjectStart()
	s.WriteObjectField("took")
	s.WriteUint64(e.took)
	s.WriteMore()
	s.WriteObjectField("timed_out")
	s.WriteBool(e.timedOut)
	s.WriteMore()
	e.hits.render(s)
	s.WriteObjectEnd()
}

// RenderDocument writes the document form of the envelope to w.
func (e Envelope) RenderDocument(w io.Writer, pretty bool) error {
	api := documentAPI(pretty)
	s := api.BorrowStream(w)
	defer api.ReturnStream(s)

	e.render(s)
	if s.Error != nil {
		return errors.Wrap(s.Error, "render envelope")
	}
	if err := s.Flush(); err != nil {
		return errors.Wrap(err, "render envelope")
	}
	return nil
}

// MarshalJSON implements json.Marshaler with the compact document form.
func (e Envelope) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := e.RenderDocument(&buf, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseDocument parses the document form of an envelope. Only whitespace may
// follow the envelope object.
func ParseDocument(data []byte) (Envelope, error) {
	it := compactAPI.BorrowIterator(data)
	defer compactAPI.ReturnIterator(it)
	e, err := parseEnvelope(it)
	if err != nil {
		return Envelope{}, err
	}
	if err := expectEnd(it, "envelope"); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

// DecodeDocument parses the document form of an envelope from r.
func DecodeDocument(r io.Reader) (Envelope, error) {
	it := jsoniter.Parse(compactAPI, r, 4096)
	return parseEnvelope(it)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	decoded, err := ParseDocument(data)
	if err != nil {
		return err
	}
	*e = decoded
	return nil
}

// parseEnvelope requires took, timed_out and hits; other fields are skipped.
func parseEnvelope(it *jsoniter.Iterator) (Envelope, error) {
	const op = "envelope"
	var e Envelope
	var seenTook, seenTimedOut, seenHits bool
	err := readObject(it, op, func(field string) error {
		var err error
		switch field {
		case "took":
			e.took, err = readUint64(it, op)
			seenTook = true
		case "timed_out":
			e.timedOut, err = readBool(it, op)
			seenTimedOut = true
		case "hits":
			e.hits, err = parseHits(it)
			seenHits = true
		default:
			err = skipValue(it)
		}
		return err
	})
	if err != nil {
		return Envelope{}, err
	}
	switch {
	case !seenTook:
		return Envelope{}, missingField(op, "took")
	case !seenTimedOut:
		return Envelope{}, missingField(op, "timed_out")
	case !seenHits:
		return Envelope{}, missingField(op, "hits")
	}
	return e, nil
}
