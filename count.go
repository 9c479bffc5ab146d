package eqlx

import (
	"math"
	"slices"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/letmevibethatforyou/eqlx/wire"
)

// Count is an aggregated bucket: how many matches share the given key values
// and which fraction of all matches that is.
type Count struct {
	count   uint64
	keys    []string
	percent float32
}

// NewCount creates a count bucket. Nil keys become an empty list. Percent is
// expected in [0,1] but is not checked.
func NewCount(count uint64, keys []string, percent float32) Count {
	k := slices.Clone(keys)
	if k == nil {
		k = []string{}
	}
	return Count{count: count, keys: k, percent: percent}
}

// Count returns the number of matches in the bucket.
func (c Count) Count() uint64 { return c.count }

// Keys returns a copy of the bucket key values. The result is never nil.
func (c Count) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Percent returns the bucket's share of all matches.
func (c Count) Percent() float32 { return c.percent }

// Equal reports whether both buckets have the same count, keys and percent.
// Percents compare by bit pattern, so a NaN percent equals itself.
func (c Count) Equal(o Count) bool {
	return c.count == o.count && slices.Equal(c.keys, o.keys) &&
		math.Float32bits(c.percent) == math.Float32bits(o.percent)
}

func (Count) collectionName() string { return countsName }

// count and keys take a byte each, percent four.
func (Count) minBinarySize() int { return 6 }

func (c Count) encode(w *wire.Writer) error {
	if err := w.WriteUvarint(c.count); err != nil {
		return err
	}
	if err := w.WriteStrings(c.keys); err != nil {
		return err
	}
	return w.WriteFloat32(c.percent)
}

func decodeCount(r *wire.Reader) (Count, error) {
	var (
		c   Count
		err error
	)
	if c.count, err = r.ReadUvarint(); err != nil {
		return Count{}, errors.Wrap(err, "count")
	}
	if c.keys, err = r.ReadStrings(); err != nil {
		return Count{}, errors.Wrap(err, "count keys")
	}
	if c.percent, err = r.ReadFloat32(); err != nil {
		return Count{}, errors.Wrap(err, "count percent")
	}
	return c, nil
}

func (c Count) render(s *jsoniter.Stream) {
	s.WriteObjectStart()
	s.WriteObjectField("_count")
	s.WriteUint64(c.count)
	s.WriteMore()
	s.WriteObjectField("_keys")
	writeStringArray(s, c.keys)
	s.WriteMore()
	s.WriteObjectField("_percent")
	s.WriteFloat32(c.percent)
	s.WriteObjectEnd()
}

func parseCount(it *jsoniter.Iterator) (Count, error) {
	const op = "count"
	var c Count
	var seenCount, seenKeys, seenPct bool
	err := readObject(it, op, func(field string) error {
		var err error
		switch field {
		case "_count":
			c.count, err = readUint64(it, op)
			seenCount = true
		case "_keys":
			c.keys, err = readStringArray(it, op)
			seenKeys = true
		case "_percent":
			c.percent, err = readFloat32(it, op)
			seenPct = true
		default:
			err = skipValue(it)
		}
		return err
	})
	if err != nil {
		return Count{}, err
	}
	switch {
	case !seenCount:
		return Count{}, missingField(op, "_count")
	case !seenKeys:
		return Count{}, missingField(op, "_keys")
	case !seenPct:
		return Count{}, missingField(op, "_percent")
	}
	return c, nil
}
