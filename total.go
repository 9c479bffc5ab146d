package eqlx

import (
	"fmt"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/letmevibethatforyou/eqlx/wire"
)

// Relation tells whether a total count is exact or a lower bound.
type Relation uint8

const (
	// RelationEqual means the total is exact. Rendered as "eq".
	RelationEqual Relation = iota
	// RelationGreaterThanOrEqual means the total is a lower bound. Rendered as "gte".
	RelationGreaterThanOrEqual
)

// String returns the document literal of the relation.
func (r Relation) String() string {
	switch r {
	case RelationEqual:
		return "eq"
	case RelationGreaterThanOrEqual:
		return "gte"
	default:
		return fmt.Sprintf("relation(%d)", uint8(r))
	}
}

func (r Relation) valid() bool {
	return r == RelationEqual || r == RelationGreaterThanOrEqual
}

func (r Relation) check() error {
	if !r.valid() {
		return errors.Wrapf(ErrUnknownRelation, "relation %d", uint8(r))
	}
	return nil
}

// ParseRelation maps "eq" and "gte" back to a Relation.
func ParseRelation(s string) (Relation, error) {
	switch s {
	case "eq":
		return RelationEqual, nil
	case "gte":
		return RelationGreaterThanOrEqual, nil
	default:
		return 0, errors.Wrapf(ErrUnknownRelation, "%q", s)
	}
}

// TotalHits is the number of matches of a query and how exact it is.
type TotalHits struct {
	Value    uint64
	Relation Relation
}

// ExactTotal returns an exact total of v.
func ExactTotal(v uint64) *TotalHits {
	return &TotalHits{Value: v, Relation: RelationEqual}
}

// LowerBoundTotal returns a total of at least v.
func LowerBoundTotal(v uint64) *TotalHits {
	return &TotalHits{Value: v, Relation: RelationGreaterThanOrEqual}
}

func (t TotalHits) encode(w *wire.Writer) error {
	if err := t.Relation.check(); err != nil {
		return err
	}
	if err := w.WriteUvarint(t.Value); err != nil {
		return err
	}
	return w.WriteByte(byte(t.Relation))
}

func decodeTotalHits(r *wire.Reader) (TotalHits, error) {
	v, err := r.ReadUvarint()
	if err != nil {
		return TotalHits{}, errors.Wrap(err, "total value")
	}
	b, err := r.ReadByte()
	if err != nil {
		return TotalHits{}, errors.Wrap(err, "total relation")
	}
	rel := Relation(b)
	if !rel.valid() {
		return TotalHits{}, errors.Wrapf(ErrUnknownRelation, "relation byte %d", b)
	}
	return TotalHits{Value: v, Relation: rel}, nil
}

// render records an unknown relation on the stream's Error.
func (t TotalHits) render(s *jsoniter.Stream) {
	if err := t.Relation.check(); err != nil {
		if s.Error == nil {
			s.Error = err
		}
		return
	}
	s.WriteObjectStart()
	s.WriteObjectField("value")
	s.WriteUint64(t.Value)
	s.WriteMore()
	s.WriteObjectField("relation")
	s.WriteString(t.Relation.String())
	s.WriteObjectEnd()
}

// parseTotalHits accepts the {value, relation} object as well as a bare
// number, which is read as an exact total.
func parseTotalHits(it *jsoniter.Iterator) (TotalHits, error) {
	const op = "total"
	if it.WhatIsNext() == jsoniter.NumberValue {
		v, err := readUint64(it, op)
		if err != nil {
			return TotalHits{}, err
		}
		return TotalHits{Value: v, Relation: RelationEqual}, nil
	}

	var (
		t         TotalHits
		seenValue bool
	)
	err := readObject(it, op, func(field string) error {
		switch field {
		case "value":
			v, err := readUint64(it, op)
			if err != nil {
				return err
			}
			t.Value, seenValue = v, true
		case "relation":
			s, err := readString(it, op)
			if err != nil {
				return err
			}
			if t.Relation, err = ParseRelation(s); err != nil {
				return err
			}
		default:
			return skipValue(it)
		}
		return nil
	})
	if err != nil {
		return TotalHits{}, err
	}
	if !seenValue {
		return TotalHits{}, missingField(op, "value")
	}
	return t, nil
}
