package wire

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	steps := []func() error{
		func() error { return w.WriteUvarint(0) },
		func() error { return w.WriteUvarint(300) },
		func() error { return w.WriteUvarint(math.MaxUint64) },
		func() error { return w.WriteBool(true) },
		func() error { return w.WriteBool(false) },
		func() error { return w.WriteByte(7) },
		func() error { return w.WriteFloat32(0.42233) },
		func() error { return w.WriteString("héllo") },
		func() error { return w.WriteString("") },
		func() error { return w.WriteBytes([]byte{1, 2, 3}) },
		func() error { return w.WriteStrings([]string{"a", "", "c"}) },
		func() error { return w.WriteStrings(nil) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	r := NewReader(&buf)

	for _, want := range []uint64{0, 300, math.MaxUint64} {
		got, err := r.ReadUvarint()
		if err != nil {
			t.Fatalf("ReadUvarint: %v", err)
		}
		if got != want {
			t.Errorf("ReadUvarint = %d, want %d", got, want)
		}
	}
	for _, want := range []bool{true, false} {
		got, err := r.ReadBool()
		if err != nil {
			t.Fatalf("ReadBool: %v", err)
		}
		if got != want {
			t.Errorf("ReadBool = %v, want %v", got, want)
		}
	}
	if b, err := r.ReadByte(); err != nil || b != 7 {
		t.Errorf("ReadByte = %d, %v", b, err)
	}
	if f, err := r.ReadFloat32(); err != nil || f != 0.42233 {
		t.Errorf("ReadFloat32 = %v, %v", f, err)
	}
	if s, err := r.ReadString(); err != nil || s != "héllo" {
		t.Errorf("ReadString = %q, %v", s, err)
	}
	if s, err := r.ReadString(); err != nil || s != "" {
		t.Errorf("ReadString = %q, %v", s, err)
	}
	p, err := r.ReadBytes()
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if diff := cmp.Diff([]byte{1, 2, 3}, p); diff != "" {
		t.Errorf("ReadBytes mismatch (-want +got):\n%s", diff)
	}
	ss, err := r.ReadStrings()
	if err != nil {
		t.Fatalf("ReadStrings: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "", "c"}, ss); diff != "" {
		t.Errorf("ReadStrings mismatch (-want +got):\n%s", diff)
	}
	ss, err = r.ReadStrings()
	if err != nil {
		t.Fatalf("ReadStrings: %v", err)
	}
	if ss == nil || len(ss) != 0 {
		t.Errorf("empty ReadStrings = %#v, want empty non-nil slice", ss)
	}

	if _, err := r.ReadByte(); !errors.Is(err, ErrTruncated) {
		t.Errorf("read past end: got %v, want ErrTruncated", err)
	}
}

func TestReaderErrors(t *testing.T) {
	tests := map[string]struct {
		input []byte
		read  func(*Reader) error
		want  error
	}{
		"invalid_bool": {
			input: []byte{2},
			read:  func(r *Reader) error { _, err := r.ReadBool(); return err },
			want:  ErrInvalidBool,
		},
		"truncated_varint": {
			input: []byte{0x80},
			read:  func(r *Reader) error { _, err := r.ReadUvarint(); return err },
			want:  ErrTruncated,
		},
		"truncated_float": {
			input: []byte{0x3f, 0x80},
			read:  func(r *Reader) error { _, err := r.ReadFloat32(); return err },
			want:  ErrTruncated,
		},
		"string_longer_than_stream": {
			input: []byte{5, 'a', 'b'},
			read:  func(r *Reader) error { _, err := r.ReadString(); return err },
			want:  ErrTruncated,
		},
		"string_list_count_longer_than_stream": {
			input: []byte{10, 0, 0},
			read:  func(r *Reader) error { _, err := r.ReadStrings(); return err },
			want:  ErrTruncated,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.read(NewReader(bytes.NewReader(tt.input)))
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReaderWithoutKnownLength(t *testing.T) {
	// A plain io.Reader gets buffered and loses its length, so truncation is
	// only detected when the bytes actually run out.
	r := NewReader(io.MultiReader(bytes.NewReader([]byte{5, 'a', 'b'})))
	if _, ok := r.Remaining(); ok {
		t.Fatal("expected unknown remaining length")
	}
	if _, err := r.ReadString(); !errors.Is(err, ErrTruncated) {
		t.Errorf("got %v, want ErrTruncated", err)
	}
}

func TestMaxLength(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf).WriteString("too long"); err != nil {
		t.Fatal(err)
	}
	r := NewReader(&buf)
	r.SetMaxLength(4)
	if _, err := r.ReadString(); !errors.Is(err, ErrTooLarge) {
		t.Errorf("got %v, want ErrTooLarge", err)
	}
}
