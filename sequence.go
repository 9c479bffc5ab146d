package eqlx

import (
	"slices"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/letmevibethatforyou/eqlx/wire"
)

// Sequence is an ordered run of matched records that share join key values.
type Sequence struct {
	joinKeys []string
	events   Events
}

// NewSequence creates a sequence. Nil join keys become an empty list and a
// zero Events becomes an empty collection.
func NewSequence(joinKeys []string, events Events) Sequence {
	keys := slices.Clone(joinKeys)
	if keys == nil {
		keys = []string{}
	}
	return Sequence{joinKeys: keys, events: events}
}

// JoinKeys returns a copy of the join key values. The result is never nil.
func (s Sequence) JoinKeys() []string {
	out := make([]string, len(s.joinKeys))
	copy(out, s.joinKeys)
	return out
}

// Events returns the records of the sequence in order.
func (s Sequence) Events() Events { return s.events }

// Equal reports whether both sequences have the same join keys and events.
func (s Sequence) Equal(o Sequence) bool {
	return slices.Equal(s.joinKeys, o.joinKeys) && s.events.Equal(o.events)
}

func (Sequence) collectionName() string { return sequencesName }

func (Sequence) minBinarySize() int { return 2 }

// encode writes the events inline as a count followed by each record rather
// than through Events.encode; the layout of the two must be kept apart.
func (s Sequence) encode(w *wire.Writer) error {
	if err := w.WriteStrings(s.joinKeys); err != nil {
		return err
	}
	if err := w.WriteUvarint(uint64(s.events.Len())); err != nil {
		return err
	}
	for _, event := range s.events.items {
		if err := event.encode(w); err != nil {
			return err
		}
	}
	return nil
}

func decodeSequence(r *wire.Reader) (Sequence, error) {
	joinKeys, err := r.ReadStrings()
	if err != nil {
		return Sequence{}, errors.Wrap(err, "join keys")
	}
	events, err := decodeEntries(r, decodeMatchedRecord)
	if err != nil {
		return Sequence{}, err
	}
	return Sequence{joinKeys: joinKeys, events: events}, nil
}

func (s Sequence) render(stream *jsoniter.Stream) {
	stream.WriteObjectStart()
	stream.WriteObjectField("join_keys")
	writeStringArray(stream, s.joinKeys)
	stream.WriteMore()
	s.events.render(stream)
	stream.WriteObjectEnd()
}

func parseSequence(it *jsoniter.Iterator) (Sequence, error) {
	const op = "sequence"
	var (
		joinKeys []string
		events   Events
	)
	err := readObject(it, op, func(field string) error {
		if it.WhatIsNext() == jsoniter.NilValue {
			return skipValue(it)
		}
		var err error
		switch field {
		case "join_keys":
			joinKeys, err = readStringArray(it, op)
		case eventsName:
			events, err = parseEntries(it, parseMatchedRecord)
		default:
			err = skipValue(it)
		}
		return err
	})
	if err != nil {
		return Sequence{}, err
	}
	return NewSequence(joinKeys, events), nil
}
