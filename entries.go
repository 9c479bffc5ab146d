package eqlx

import (
	"iter"
	"slices"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/letmevibethatforyou/eqlx/wire"
)

const (
	eventsName    = "events"
	sequencesName = "sequences"
	countsName    = "counts"
)

// record is implemented by the entry kinds an Entries collection can hold.
type record[T any] interface {
	Equal(T) bool

	// collectionName is the document key of a collection of T.
	collectionName() string
	// minBinarySize is a lower bound on the encoded size of one T.
	minBinarySize() int
	encode(w *wire.Writer) error
	render(s *jsoniter.Stream)
}

// Entries is an ordered, homogeneous collection of result records, keyed in
// documents by a name that depends only on the record kind.
type Entries[T record[T]] struct {
	items []T
}

// Events is the collection of matched records rendered under "events".
type Events = Entries[MatchedRecord]

// Sequences is the collection of sequences rendered under "sequences".
type Sequences = Entries[Sequence]

// Counts is the collection of count buckets rendered under "counts".
type Counts = Entries[Count]

// NewEvents creates an events collection in the given order.
func NewEvents(records ...MatchedRecord) Events { return newEntries(records) }

// NewSequences creates a sequences collection in the given order.
func NewSequences(sequences ...Sequence) Sequences { return newEntries(sequences) }

// NewCounts creates a counts collection in the given order.
func NewCounts(counts ...Count) Counts { return newEntries(counts) }

func newEntries[T record[T]](items []T) Entries[T] {
	return Entries[T]{items: slices.Clone(items)}
}

// Name returns the document key of the collection.
func (e Entries[T]) Name() string {
	var zero T
	return zero.collectionName()
}

// Len returns the number of entries.
func (e Entries[T]) Len() int { return len(e.items) }

// At returns the i-th entry.
func (e Entries[T]) At(i int) T { return e.items[i] }

// Entries returns a copy of the entries. The result is never nil.
func (e Entries[T]) Entries() []T {
	out := make([]T, len(e.items))
	copy(out, e.items)
	return out
}

// All iterates over the entries in order.
func (e Entries[T]) All() iter.Seq2[int, T] {
	return slices.All(e.items)
}

// Equal reports whether both collections hold equal entries in the same order.
func (e Entries[T]) Equal(o Entries[T]) bool {
	return slices.EqualFunc(e.items, o.items, func(a, b T) bool { return a.Equal(b) })
}

func (e Entries[T]) encode(w *wire.Writer) error {
	if err := w.WriteUvarint(uint64(len(e.items))); err != nil {
		return err
	}
	for _, item := range e.items {
		if err := item.encode(w); err != nil {
			return err
		}
	}
	return nil
}

// render writes the collection as a named array field of the enclosing object.
func (e Entries[T]) render(s *jsoniter.Stream) {
	s.WriteObjectField(e.Name())
	if len(e.items) == 0 {
		s.WriteEmptyArray()
		return
	}
	s.WriteArrayStart()
	for i, item := range e.items {
		if i > 0 {
			s.WriteMore()
		}
		item.render(s)
	}
	s.WriteArrayEnd()
}

func decodeEntries[T record[T]](r *wire.Reader, decode func(*wire.Reader) (T, error)) (Entries[T], error) {
	var zero T
	name := zero.collectionName()

	n, err := r.ReadUvarint()
	if err != nil {
		return Entries[T]{}, errors.Wrapf(err, "%s count", name)
	}
	if err := r.CheckCount(n, zero.minBinarySize()); err != nil {
		return Entries[T]{}, errors.Wrap(err, name)
	}
	items := make([]T, 0, min(n, 1024))
	for i := uint64(0); i < n; i++ {
		item, err := decode(r)
		if err != nil {
			return Entries[T]{}, errors.Wrapf(err, "%s[%d]", name, i)
		}
		items = append(items, item)
	}
	return Entries[T]{items: items}, nil
}

func parseEntries[T record[T]](it *jsoniter.Iterator, parse func(*jsoniter.Iterator) (T, error)) (Entries[T], error) {
	var zero T
	name := zero.collectionName()

	items := []T{}
	err := readArray(it, name, func() error {
		item, err := parse(it)
		if err != nil {
			return errors.Wrapf(err, "%s[%d]", name, len(items))
		}
		items = append(items, item)
		return nil
	})
	if err != nil {
		return Entries[T]{}, err
	}
	return Entries[T]{items: items}, nil
}
