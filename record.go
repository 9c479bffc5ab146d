package eqlx

import (
	"bytes"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/letmevibethatforyou/eqlx/wire"
)

// MatchedRecord is a single document matched by a query.
type MatchedRecord struct {
	index  string
	id     string
	source []byte
}

// NewMatchedRecord creates a matched record. The source must be a JSON value
// or empty; it is stored compacted so that equal documents compare equal.
func NewMatchedRecord(index, id string, source []byte) (MatchedRecord, error) {
	compact, err := compactSource(source)
	if err != nil {
		return MatchedRecord{}, errors.Wrapf(err, "record %q", id)
	}
	return MatchedRecord{index: index, id: id, source: compact}, nil
}

// Index returns the name of the index the record was found in.
func (m MatchedRecord) Index() string { return m.index }

// ID returns the document id.
func (m MatchedRecord) ID() string { return m.id }

// Source returns a copy of the compacted document body, or nil.
func (m MatchedRecord) Source() []byte { return bytes.Clone(m.source) }

// Equal reports whether both records have the same index, id and source.
func (m MatchedRecord) Equal(o MatchedRecord) bool {
	return m.index == o.index && m.id == o.id && bytes.Equal(m.source, o.source)
}

func (MatchedRecord) collectionName() string { return eventsName }

// index and id are at least one length byte each, source one more.
func (MatchedRecord) minBinarySize() int { return 3 }

func (m MatchedRecord) encode(w *wire.Writer) error {
	if err := w.WriteString(m.index); err != nil {
		return err
	}
	if err := w.WriteString(m.id); err != nil {
		return err
	}
	return w.WriteBytes(m.source)
}

func decodeMatchedRecord(r *wire.Reader) (MatchedRecord, error) {
	var (
		m   MatchedRecord
		err error
	)
	if m.index, err = r.ReadString(); err != nil {
		return MatchedRecord{}, errors.Wrap(err, "record index")
	}
	if m.id, err = r.ReadString(); err != nil {
		return MatchedRecord{}, errors.Wrap(err, "record id")
	}
	if m.source, err = r.ReadBytes(); err != nil {
		return MatchedRecord{}, errors.Wrap(err, "record source")
	}
	if len(m.source) > 0 && !compactAPI.Valid(m.source) {
		return MatchedRecord{}, errors.Newf("record %q: source is not valid JSON", m.id)
	}
	return m, nil
}

func (m MatchedRecord) render(s *jsoniter.Stream) {
	s.WriteObjectStart()
	s.WriteObjectField("_index")
	s.WriteString(m.index)
	s.WriteMore()
	s.WriteObjectField("_id")
	s.WriteString(m.id)
	if len(m.source) > 0 {
		s.WriteMore()
		s.WriteObjectField("_source")
		s.WriteRaw(string(m.source))
	}
	s.WriteObjectEnd()
}

func parseMatchedRecord(it *jsoniter.Iterator) (MatchedRecord, error) {
	const op = "record"
	var (
		index, id string
		source    []byte
	)
	err := readObject(it, op, func(field string) error {
		var err error
		switch field {
		case "_index":
			index, err = readString(it, op)
		case "_id":
			id, err = readString(it, op)
		case "_source":
			if it.WhatIsNext() == jsoniter.NilValue {
				return skipValue(it)
			}
			source = it.SkipAndReturnBytes()
			err = iteratorError(it)
		default:
			err = skipValue(it)
		}
		return err
	})
	if err != nil {
		return MatchedRecord{}, err
	}
	return NewMatchedRecord(index, id, source)
}
