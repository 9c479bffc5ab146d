package eqlx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
)

var (
	// compactAPI renders documents on a single line.
	compactAPI = jsoniter.ConfigCompatibleWithStandardLibrary

	// prettyAPI renders documents indented by two spaces.
	prettyAPI = jsoniter.Config{
		EscapeHTML:             true,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
		IndentionStep:          2,
	}.Froze()
)

func documentAPI(pretty bool) jsoniter.API {
	if pretty {
		return prettyAPI
	}
	return compactAPI
}

// valueTypeName names a json-iterator token kind for error messages.
func valueTypeName(t jsoniter.ValueType) string {
	switch t {
	case jsoniter.StringValue:
		return "string"
	case jsoniter.NumberValue:
		return "number"
	case jsoniter.NilValue:
		return "null"
	case jsoniter.BoolValue:
		return "boolean"
	case jsoniter.ArrayValue:
		return "array"
	case jsoniter.ObjectValue:
		return "object"
	default:
		return "invalid token"
	}
}

// expectToken peeks at the next token and records a positioned error on the
// iterator when it is not of the wanted kind.
func expectToken(it *jsoniter.Iterator, op string, want jsoniter.ValueType) bool {
	got := it.WhatIsNext()
	if got == want {
		return true
	}
	it.ReportError(op, fmt.Sprintf("expected %s, found %s", valueTypeName(want), valueTypeName(got)))
	return false
}

// iteratorError converts the error recorded on the iterator, if any.
func iteratorError(it *jsoniter.Iterator) error {
	if it.Error == nil {
		return nil
	}
	if it.Error == io.EOF {
		return errors.Wrap(ErrMalformedDocument, "unexpected end of document")
	}
	return errors.Mark(errors.Wrap(it.Error, "parse document"), ErrMalformedDocument)
}

// expectEnd fails unless only whitespace is left in the input.
func expectEnd(it *jsoniter.Iterator, op string) error {
	if it.WhatIsNext() == jsoniter.InvalidValue && it.Error == io.EOF {
		return nil
	}
	return errors.Wrapf(ErrMalformedDocument, "%s: unexpected data after the document", op)
}

// readObject walks the fields of the next object. It stops at the first error
// returned by fn or recorded on the iterator.
func readObject(it *jsoniter.Iterator, op string, fn func(field string) error) error {
	if !expectToken(it, op, jsoniter.ObjectValue) {
		return iteratorError(it)
	}
	var err error
	it.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
		err = fn(field)
		return err == nil && it.Error == nil
	})
	if err != nil {
		return err
	}
	return iteratorError(it)
}

// readArray calls fn once per element of the next array.
func readArray(it *jsoniter.Iterator, op string, fn func() error) error {
	if !expectToken(it, op, jsoniter.ArrayValue) {
		return iteratorError(it)
	}
	var err error
	it.ReadArrayCB(func(it *jsoniter.Iterator) bool {
		err = fn()
		return err == nil && it.Error == nil
	})
	if err != nil {
		return err
	}
	return iteratorError(it)
}

// readStringArray reads an array of strings. The result is never nil.
func readStringArray(it *jsoniter.Iterator, op string) ([]string, error) {
	ss := []string{}
	err := readArray(it, op, func() error {
		if !expectToken(it, op, jsoniter.StringValue) {
			return iteratorError(it)
		}
		ss = append(ss, it.ReadString())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ss, nil
}

func readUint64(it *jsoniter.Iterator, op string) (uint64, error) {
	if !expectToken(it, op, jsoniter.NumberValue) {
		return 0, iteratorError(it)
	}
	v := it.ReadUint64()
	return v, iteratorError(it)
}

// readFloat32 goes through the textual number so the value rounds exactly
// once, matching strconv's float32 formatting on the write side.
func readFloat32(it *jsoniter.Iterator, op string) (float32, error) {
	if !expectToken(it, op, jsoniter.NumberValue) {
		return 0, iteratorError(it)
	}
	num := it.ReadNumber()
	if err := iteratorError(it); err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(string(num), 32)
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "%s: parse float", op), ErrMalformedDocument)
	}
	return float32(f), nil
}

func readBool(it *jsoniter.Iterator, op string) (bool, error) {
	if !expectToken(it, op, jsoniter.BoolValue) {
		return false, iteratorError(it)
	}
	v := it.ReadBool()
	return v, iteratorError(it)
}

func readString(it *jsoniter.Iterator, op string) (string, error) {
	if !expectToken(it, op, jsoniter.StringValue) {
		return "", iteratorError(it)
	}
	v := it.ReadString()
	return v, iteratorError(it)
}

// skipValue discards the next value, whatever its kind.
func skipValue(it *jsoniter.Iterator) error {
	it.Skip()
	return iteratorError(it)
}

func missingField(op, field string) error {
	return errors.Wrapf(ErrMissingField, "%s: %q", op, field)
}

func writeStringArray(s *jsoniter.Stream, ss []string) {
	if len(ss) == 0 {
		s.WriteEmptyArray()
		return
	}
	s.WriteArrayStart()
	for i, v := range ss {
		if i > 0 {
			s.WriteMore()
		}
		s.WriteString(v)
	}
	s.WriteArrayEnd()
}

// compactSource normalizes raw JSON so that equal documents compare equal
// byte for byte. An empty input stays empty.
func compactSource(src []byte) ([]byte, error) {
	src = bytes.TrimSpace(src)
	if len(src) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, src); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "compact source"), ErrMalformedDocument)
	}
	// A null source is the same as no source.
	if bytes.Equal(buf.Bytes(), []byte("null")) {
		return nil, nil
	}
	return buf.Bytes(), nil
}
