package eqlx

import (
	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/letmevibethatforyou/eqlx/wire"
)

// Kind identifies which collection, if any, a Hits holds.
type Kind uint8

const (
	// KindNone means no results were returned.
	KindNone Kind = iota
	// KindEvents means the hits are a flat list of matched records.
	KindEvents
	// KindSequences means the hits are sequences grouped by join keys.
	KindSequences
	// KindCounts means the hits are aggregated count buckets.
	KindCounts
)

// String returns the document key of the kind, or "none".
func (k Kind) String() string {
	switch k {
	case KindEvents:
		return eventsName
	case KindSequences:
		return sequencesName
	case KindCounts:
		return countsName
	default:
		return "none"
	}
}

// Hits is the payload of a result: an optional total and at most one of the
// events, sequences or counts collections.
type Hits struct {
	kind      Kind
	total     TotalHits
	hasTotal  bool
	events    Events
	sequences Sequences
	counts    Counts
}

// EmptyHits returns a payload with no total and no collection.
func EmptyHits() Hits { return Hits{} }

// NewHits returns a payload with no collection and the given total, which
// may be nil.
func NewHits(total *TotalHits) Hits {
	var h Hits
	h.setTotal(total)
	return h
}

// NewEventHits returns a payload holding matched records.
func NewEventHits(events Events, total *TotalHits) Hits {
	h := Hits{kind: KindEvents, events: events}
	h.setTotal(total)
	return h
}

// NewSequenceHits returns a payload holding sequences.
func NewSequenceHits(sequences Sequences, total *TotalHits) Hits {
	h := Hits{kind: KindSequences, sequences: sequences}
	h.setTotal(total)
	return h
}

// NewCountHits returns a payload holding count buckets.
func NewCountHits(counts Counts, total *TotalHits) Hits {
	h := Hits{kind: KindCounts, counts: counts}
	h.setTotal(total)
	return h
}

func (h *Hits) setTotal(total *TotalHits) {
	if total != nil {
		h.total, h.hasTotal = *total, true
	}
}

// Kind returns which collection the payload holds.
func (h Hits) Kind() Kind { return h.kind }

// Total returns the total match count when one was recorded.
func (h Hits) Total() (TotalHits, bool) { return h.total, h.hasTotal }

// Events returns the matched records when the payload holds events.
func (h Hits) Events() (Events, bool) { return h.events, h.kind == KindEvents }

// Sequences returns the sequences when the payload holds sequences.
func (h Hits) Sequences() (Sequences, bool) { return h.sequences, h.kind == KindSequences }

// Counts returns the count buckets when the payload holds counts.
func (h Hits) Counts() (Counts, bool) { return h.counts, h.kind == KindCounts }

// Equal reports whether both payloads have the same total and collection.
func (h Hits) Equal(o Hits) bool {
	if h.kind != o.kind || h.hasTotal != o.hasTotal {
		return false
	}
	if h.hasTotal && h.total != o.total {
		return false
	}
	switch h.kind {
	case KindEvents:
		return h.events.Equal(o.events)
	case KindSequences:
		return h.sequences.Equal(o.sequences)
	case KindCounts:
		return h.counts.Equal(o.counts)
	default:
		return true
	}
}

// encode writes four presence flags, each followed by its value when set:
// total, events, sequences, counts.
func (h Hits) encode(w *wire.Writer) error {
	if err := w.WriteBool(h.hasTotal); err != nil {
		return err
	}
	if h.hasTotal {
		if err := h.total.encode(w); err != nil {
			return err
		}
	}
	if err := encodeOptional(w, h.kind == KindEvents, h.events); err != nil {
		return err
	}
	if err := encodeOptional(w, h.kind == KindSequences, h.sequences); err != nil {
		return err
	}
	return encodeOptional(w, h.kind == KindCounts, h.counts)
}

func encodeOptional[T record[T]](w *wire.Writer, present bool, e Entries[T]) error {
	if err := w.WriteBool(present); err != nil {
		return err
	}
	if !present {
		return nil
	}
	return e.encode(w)
}

// decodeHits mirrors encode. The flags are independent on the wire; when a
// stream sets more than one collection flag all of them are consumed and the
// last one wins.
func decodeHits(r *wire.Reader) (Hits, error) {
	var h Hits

	hasTotal, err := r.ReadBool()
	if err != nil {
		return Hits{}, errors.Wrap(err, "total flag")
	}
	if hasTotal {
		t, err := decodeTotalHits(r)
		if err != nil {
			return Hits{}, err
		}
		h.setTotal(&t)
	}

	present, err := r.ReadBool()
	if err != nil {
		return Hits{}, errors.Wrap(err, "events flag")
	}
	if present {
		if h.events, err = decodeEntries(r, decodeMatchedRecord); err != nil {
			return Hits{}, err
		}
		h.kind = KindEvents
	}

	if present, err = r.ReadBool(); err != nil {
		return Hits{}, errors.Wrap(err, "sequences flag")
	}
	if present {
		if h.sequences, err = decodeEntries(r, decodeSequence); err != nil {
			return Hits{}, err
		}
		h.kind = KindSequences
	}

	if present, err = r.ReadBool(); err != nil {
		return Hits{}, errors.Wrap(err, "counts flag")
	}
	if present {
		if h.counts, err = decodeEntries(r, decodeCount); err != nil {
			return Hits{}, err
		}
		h.kind = KindCounts
	}

	return h, nil
}

// render writes the "hits" field of the enclosing object: the total first
// when present, then the single populated collection.
func (h Hits) render(s *jsoniter.Stream) {
	s.WriteObjectField("hits")
	s.WriteObjectStart()
	more := false
	if h.hasTotal {
		s.WriteObjectField("total")
		h.total.render(s)
		more = true
	}
	if h.kind != KindNone && more {
		s.WriteMore()
	}
	switch h.kind {
	case KindEvents:
		h.events.render(s)
	case KindSequences:
		h.sequences.render(s)
	case KindCounts:
		h.counts.render(s)
	}
	s.WriteObjectEnd()
}

// parseHits infers the kind from whichever collection key is present. Unknown
// fields are skipped. Should a document carry several collections, events
// win over sequences and sequences over counts.
func parseHits(it *jsoniter.Iterator) (Hits, error) {
	const op = "hits"
	var (
		total     *TotalHits
		events    *Events
		sequences *Sequences
		counts    *Counts
	)
	err := readObject(it, op, func(field string) error {
		if it.WhatIsNext() == jsoniter.NilValue {
			return skipValue(it)
		}
		switch field {
		case "total":
			t, err := parseTotalHits(it)
			if err != nil {
				return err
			}
			total = &t
		case eventsName:
			e, err := parseEntries(it, parseMatchedRecord)
			if err != nil {
				return err
			}
			events = &e
		case sequencesName:
			e, err := parseEntries(it, parseSequence)
			if err != nil {
				return err
			}
			sequences = &e
		case countsName:
			e, err := parseEntries(it, parseCount)
			if err != nil {
				return err
			}
			counts = &e
		default:
			return skipValue(it)
		}
		return nil
	})
	if err != nil {
		return Hits{}, err
	}

	switch {
	case events != nil:
		return NewEventHits(*events, total), nil
	case sequences != nil:
		return NewSequenceHits(*sequences, total), nil
	case counts != nil:
		return NewCountHits(*counts, total), nil
	default:
		return NewHits(total), nil
	}
}
