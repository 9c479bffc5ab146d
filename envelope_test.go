package eqlx

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"

	"github.com/letmevibethatforyou/eqlx/wire"
)

func mustRecord(t testing.TB, index, id, source string) MatchedRecord {
	t.Helper()
	r, err := NewMatchedRecord(index, id, []byte(source))
	if err != nil {
		t.Fatalf("NewMatchedRecord(%q): %v", id, err)
	}
	return r
}

// sampleEnvelopes covers every hits kind, with and without totals and with
// empty collections.
func sampleEnvelopes(t testing.TB) map[string]Envelope {
	hit1 := mustRecord(t, "logs", "111", `{"process":{"name":"cmd.exe"},"pid": 4}`)
	hit2 := mustRecord(t, "logs", "222", `{"process":{"name":"net.exe"},"pid":12}`)
	hit3 := mustRecord(t, "logs-2", "333", "")
	hit4 := mustRecord(t, "logs", "444", `{"tags":["a","b"],"ok":true,"score":1.5}`)

	return map[string]Envelope{
		"empty": NewEnvelope(EmptyHits(), 0, false),
		"total_only": NewEnvelope(NewHits(LowerBoundTotal(10000)), 12, true),
		"events": NewEnvelope(
			NewEventHits(NewEvents(hit1, hit2, hit3), ExactTotal(3)), 5, false),
		"events_empty": NewEnvelope(NewEventHits(NewEvents(), nil), 1, false),
		"events_zero_collection": NewEnvelope(NewEventHits(Events{}, ExactTotal(0)), 1, false),
		"sequences": NewEnvelope(NewSequenceHits(NewSequences(
			NewSequence([]string{"4021"}, NewEvents(hit1, hit2)),
			NewSequence([]string{"2343", "host-a"}, NewEvents(hit3, hit4)),
			NewSequence(nil, Events{}),
		), ExactTotal(100)), 42, false),
		"sequences_empty": NewEnvelope(NewSequenceHits(NewSequences(), nil), 0, true),
		"counts": NewEnvelope(NewCountHits(NewCounts(
			NewCount(40, []string{"foo", "bar"}, .42233),
			NewCount(15, []string{"foo", "bar"}, .170275),
			NewCount(0, nil, 0),
			NewCount(7, []string{"out-of-range"}, 1.75),
		), LowerBoundTotal(55)), 3, false),
		"counts_empty": NewEnvelope(NewCountHits(NewCounts(), nil), 9, false),
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	for name, env := range sampleEnvelopes(t) {
		t.Run(name, func(t *testing.T) {
			data, err := env.MarshalBinary()
			if err != nil {
				t.Fatalf("MarshalBinary: %v", err)
			}

			var got Envelope
			if err := got.UnmarshalBinary(data); err != nil {
				t.Fatalf("UnmarshalBinary: %v", err)
			}
			if diff := cmp.Diff(env, got); diff != "" {
				t.Errorf("binary round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBinaryRoundTripSpecialPercents(t *testing.T) {
	tests := map[string]float32{
		"nan":      float32(math.NaN()),
		"inf":      float32(math.Inf(1)),
		"neg_zero": float32(math.Copysign(0, -1)),
	}
	for name, pct := range tests {
		t.Run(name, func(t *testing.T) {
			env := NewEnvelope(NewCountHits(NewCounts(NewCount(1, []string{"a"}, pct)), nil), 1, false)
			if !env.Equal(env) {
				t.Fatal("envelope does not equal itself")
			}
			data, err := env.MarshalBinary()
			if err != nil {
				t.Fatalf("MarshalBinary: %v", err)
			}
			var got Envelope
			if err := got.UnmarshalBinary(data); err != nil {
				t.Fatalf("UnmarshalBinary: %v", err)
			}
			if diff := cmp.Diff(env, got); diff != "" {
				t.Errorf("binary round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNullSource(t *testing.T) {
	withNull := mustRecord(t, "i", "a", " null ")
	if diff := cmp.Diff(mustRecord(t, "i", "a", ""), withNull); diff != "" {
		t.Errorf("null source differs from an empty one (-want +got):\n%s", diff)
	}
	if withNull.Source() != nil {
		t.Errorf("Source() = %q, want nil", withNull.Source())
	}

	env := NewEnvelope(NewEventHits(NewEvents(withNull), nil), 1, false)
	doc, err := env.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"took":1,"timed_out":false,"hits":{"events":[{"_index":"i","_id":"a"}]}}`; string(doc) != want {
		t.Errorf("rendered %s, want %s", doc, want)
	}

	parsed, err := ParseDocument([]byte(`{"took":1,"timed_out":false,"hits":{"events":[{"_index":"i","_id":"a","_source":null}]}}`))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(env, parsed); diff != "" {
		t.Errorf("parsed null source mismatch (-want +got):\n%s", diff)
	}
}

func TestHitsExclusivity(t *testing.T) {
	hit := mustRecord(t, "logs", "1", `{"a":1}`)
	tests := map[string]struct {
		hits Hits
		kind Kind
	}{
		"events":    {NewEventHits(NewEvents(hit), ExactTotal(1)), KindEvents},
		"sequences": {NewSequenceHits(NewSequences(NewSequence([]string{"k"}, NewEvents(hit))), nil), KindSequences},
		"counts":    {NewCountHits(NewCounts(NewCount(1, []string{"k"}, 1)), nil), KindCounts},
		"none":      {NewHits(ExactTotal(0)), KindNone},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := tt.hits.Kind(); got != tt.kind {
				t.Fatalf("Kind = %v, want %v", got, tt.kind)
			}
			_, events := tt.hits.Events()
			_, sequences := tt.hits.Sequences()
			_, counts := tt.hits.Counts()
			got := map[Kind]bool{KindEvents: events, KindSequences: sequences, KindCounts: counts}
			for k, ok := range got {
				if ok != (k == tt.kind) {
					t.Errorf("%v accessor ok = %t", k, ok)
				}
			}
		})
	}
}

func TestDefaultNormalization(t *testing.T) {
	empty := NewSequence(nil, Events{})
	decoded := decodedSequence(t)

	tests := map[string]struct {
		isNil bool
		len   int
	}{
		"sequence_join_keys":      {empty.JoinKeys() == nil, len(empty.JoinKeys())},
		"sequence_events":         {empty.Events().Entries() == nil, empty.Events().Len()},
		"count_keys":              {NewCount(0, nil, 0).Keys() == nil, len(NewCount(0, nil, 0).Keys())},
		"decoded_sequence_keys":   {decoded.JoinKeys() == nil, len(decoded.JoinKeys())},
		"decoded_sequence_events": {decoded.Events().Entries() == nil, decoded.Events().Len()},
		"zero_collection_entries": {Counts{}.Entries() == nil, Counts{}.Len()},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if tt.isNil {
				t.Error("got nil, want an empty slice")
			}
			if tt.len != 0 {
				t.Errorf("len = %d, want 0", tt.len)
			}
		})
	}
}

// decodedSequence parses a sequence with neither join keys nor events.
func decodedSequence(t *testing.T) Sequence {
	t.Helper()
	env, err := ParseDocument([]byte(`{"took":1,"timed_out":false,"hits":{"sequences":[{}]}}`))
	if err != nil {
		t.Fatal(err)
	}
	seqs, ok := env.Hits().Sequences()
	if !ok || seqs.Len() != 1 {
		t.Fatalf("sequences = %v, %t", seqs, ok)
	}
	return seqs.At(0)
}

func TestInvalidRelationNotEncoded(t *testing.T) {
	env := NewEnvelope(NewHits(&TotalHits{Value: 3, Relation: Relation(7)}), 1, false)

	if _, err := env.MarshalBinary(); !errors.Is(err, ErrUnknownRelation) {
		t.Errorf("MarshalBinary: got %v, want ErrUnknownRelation", err)
	}
	var buf bytes.Buffer
	if err := env.RenderDocument(&buf, false); !errors.Is(err, ErrUnknownRelation) {
		t.Errorf("RenderDocument: got %v, want ErrUnknownRelation", err)
	}
	if _, err := env.MarshalJSON(); !errors.Is(err, ErrUnknownRelation) {
		t.Errorf("MarshalJSON: got %v, want ErrUnknownRelation", err)
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	for name, env := range sampleEnvelopes(t) {
		for _, pretty := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/pretty=%t", name, pretty), func(t *testing.T) {
				var buf bytes.Buffer
				if err := env.RenderDocument(&buf, pretty); err != nil {
					t.Fatalf("RenderDocument: %v", err)
				}

				got, err := ParseDocument(buf.Bytes())
				if err != nil {
					t.Fatalf("ParseDocument: %v\n%s", err, buf.String())
				}
				if diff := cmp.Diff(env, got); diff != "" {
					t.Errorf("document round trip mismatch (-want +got):\n%s", diff)
				}

				streamed, err := DecodeDocument(bytes.NewReader(buf.Bytes()))
				if err != nil {
					t.Fatalf("DecodeDocument: %v", err)
				}
				if diff := cmp.Diff(env, streamed); diff != "" {
					t.Errorf("streamed document mismatch (-want +got):\n%s", diff)
				}
			})
		}
	}
}

func TestJSONMarshalerInterfaces(t *testing.T) {
	env := sampleEnvelopes(t)["sequences"]

	data, err := compactAPI.Marshal(struct {
		Result Envelope `json:"result"`
	}{env})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var wrapped struct {
		Result Envelope `json:"result"`
	}
	if err := compactAPI.Unmarshal(data, &wrapped); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(env, wrapped.Result); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderEventsDocument(t *testing.T) {
	hit1 := mustRecord(t, "logs", "1", `{ "user": "alice" }`)
	hit2 := mustRecord(t, "logs", "2", "")
	env := NewEnvelope(NewEventHits(NewEvents(hit1, hit2), ExactTotal(2)), 5, false)

	want := `{"took":5,"timed_out":false,"hits":{` +
		`"total":{"value":2,"relation":"eq"},` +
		`"events":[{"_index":"logs","_id":"1","_source":{"user":"alice"}},{"_index":"logs","_id":"2"}]}}`
	if got := env.String(); got != want {
		t.Errorf("document mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestRenderSequencesWithoutTotal(t *testing.T) {
	hitA := mustRecord(t, "logs", "a", `{"x":1}`)
	env := NewEnvelope(NewSequenceHits(NewSequences(NewSequence([]string{"k1"}, NewEvents(hitA))), nil), 0, false)

	want := `{"took":0,"timed_out":false,"hits":{"sequences":[` +
		`{"join_keys":["k1"],"events":[{"_index":"logs","_id":"a","_source":{"x":1}}]}]}}`
	got := env.String()
	if got != want {
		t.Errorf("document mismatch\n got: %s\nwant: %s", got, want)
	}
	if strings.Contains(got, `"total"`) {
		t.Errorf("document without total must not carry a total key: %s", got)
	}
}

func TestRenderEmptyCollections(t *testing.T) {
	tests := map[string]struct {
		env  Envelope
		want string
	}{
		"no_variant": {
			env:  NewEnvelope(EmptyHits(), 1, false),
			want: `{"took":1,"timed_out":false,"hits":{}}`,
		},
		"empty_events": {
			env:  NewEnvelope(NewEventHits(NewEvents(), nil), 1, false),
			want: `{"took":1,"timed_out":false,"hits":{"events":[]}}`,
		},
		"empty_counts_with_total": {
			env:  NewEnvelope(NewCountHits(Counts{}, LowerBoundTotal(3)), 1, true),
			want: `{"took":1,"timed_out":true,"hits":{"total":{"value":3,"relation":"gte"},"counts":[]}}`,
		},
		"count_bucket": {
			env:  NewEnvelope(NewCountHits(NewCounts(NewCount(40, []string{"foo", "bar"}, 0.5)), nil), 2, false),
			want: `{"took":2,"timed_out":false,"hits":{"counts":[{"_count":40,"_keys":["foo","bar"],"_percent":0.5}]}}`,
		},
		"sequence_defaults": {
			env:  NewEnvelope(NewSequenceHits(NewSequences(NewSequence(nil, Events{})), nil), 2, false),
			want: `{"took":2,"timed_out":false,"hits":{"sequences":[{"join_keys":[],"events":[]}]}}`,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := tt.env.String(); got != tt.want {
				t.Errorf("document mismatch\n got: %s\nwant: %s", got, tt.want)
			}
		})
	}
}

func TestBinaryLayout(t *testing.T) {
	tests := map[string]struct {
		env  Envelope
		want []byte
	}{
		"counts_with_total": {
			env: NewEnvelope(NewCountHits(NewCounts(NewCount(40, []string{"foo"}, 0.5)), ExactTotal(100)), 5, false),
			want: []byte{
				0x05, 0x00, // took, timed_out
				0x01, 0x64, 0x00, // total present, value, relation eq
				0x00, 0x00, // no events, no sequences
				0x01, 0x01, // counts present, one bucket
				0x28, 0x01, 0x03, 'f', 'o', 'o', 0x3f, 0x00, 0x00, 0x00,
			},
		},
		"sequence_inline_events": {
			env: NewEnvelope(NewSequenceHits(NewSequences(
				NewSequence([]string{"k"}, NewEvents(mustRecord(t, "i", "a", "")))), nil), 0, true),
			want: []byte{
				0x00, 0x01, // took, timed_out
				0x00,       // no total
				0x00,       // no events
				0x01, 0x01, // sequences present, one sequence
				0x01, 0x01, 'k', // join keys
				0x01,                       // event count
				0x01, 'i', 0x01, 'a', 0x00, // index, id, empty source
				0x00, // no counts
			},
		},
		"empty": {
			env:  NewEnvelope(EmptyHits(), 300, false),
			want: []byte{0xac, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00},
		},
		"lower_bound_total": {
			env:  NewEnvelope(NewHits(LowerBoundTotal(1)), 0, false),
			want: []byte{0x00, 0x00, 0x01, 0x01, 0x01, 0x00, 0x00, 0x00},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := tt.env.MarshalBinary()
			if err != nil {
				t.Fatalf("MarshalBinary: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("binary layout mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeBinaryTruncated(t *testing.T) {
	for name, env := range sampleEnvelopes(t) {
		t.Run(name, func(t *testing.T) {
			data, err := env.MarshalBinary()
			if err != nil {
				t.Fatalf("MarshalBinary: %v", err)
			}
			for n := 0; n < len(data); n++ {
				got, err := DecodeBinary(bytes.NewReader(data[:n]))
				if !errors.Is(err, ErrMalformedStream) {
					t.Fatalf("prefix %d/%d: got err %v, want ErrMalformedStream", n, len(data), err)
				}
				if !got.Equal(Envelope{}) {
					t.Fatalf("prefix %d/%d: partial envelope returned", n, len(data))
				}
			}
		})
	}
}

func TestDecodeBinaryMalformed(t *testing.T) {
	tests := map[string]struct {
		input []byte
		also  error
	}{
		"count_exceeds_stream": {
			// events flag set, 1000 records declared, nothing follows
			input: []byte{0x00, 0x00, 0x00, 0x01, 0xe8, 0x07},
			also:  wire.ErrTruncated,
		},
		"invalid_bool": {
			input: []byte{0x00, 0x02},
			also:  wire.ErrInvalidBool,
		},
		"unknown_relation": {
			input: []byte{0x00, 0x00, 0x01, 0x05, 0x07, 0x00, 0x00, 0x00},
			also:  ErrUnknownRelation,
		},
		"invalid_source": {
			input: []byte{0x00, 0x00, 0x00, 0x01, 0x01, 0x00, 0x00, 0x02, '{', '{', 0x00, 0x00},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeBinary(bytes.NewReader(tt.input))
			if !errors.Is(err, ErrMalformedStream) {
				t.Fatalf("got %v, want ErrMalformedStream", err)
			}
			if tt.also != nil && !errors.Is(err, tt.also) {
				t.Errorf("got %v, want it to also match %v", err, tt.also)
			}
		})
	}
}

func TestUnmarshalBinaryTrailingBytes(t *testing.T) {
	data, err := NewEnvelope(EmptyHits(), 1, false).MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	var env Envelope
	if err := env.UnmarshalBinary(append(data, 0x00)); !errors.Is(err, ErrMalformedStream) {
		t.Errorf("got %v, want ErrMalformedStream", err)
	}
}

func TestDecodeBinaryConflictingFlags(t *testing.T) {
	// Both the events and the counts flags are set. The decoder consumes both
	// collections and keeps the last one.
	input := []byte{
		0x00, 0x00, 0x00,
		0x01, 0x01, 0x01, 'i', 0x01, 'a', 0x00, // events: one record
		0x00,
		0x01, 0x01, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, // counts: one bucket
	}
	env, err := DecodeBinary(bytes.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeBinary: %v", err)
	}
	hits := env.Hits()
	if hits.Kind() != KindCounts {
		t.Fatalf("Kind = %v, want counts", hits.Kind())
	}
	if _, ok := hits.Events(); ok {
		t.Error("events must not be exposed once counts won")
	}
	counts, _ := hits.Counts()
	if diff := cmp.Diff(NewCounts(NewCount(2, nil, 0)), counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDocument(t *testing.T) {
	hit := mustRecord(t, "logs", "1", `{"a":1}`)

	tests := map[string]struct {
		input string
		want  Envelope
	}{
		"field_order_not_significant": {
			input: `{"hits":{"events":[{"_source":{"a":1},"_id":"1","_index":"logs"}],"total":{"relation":"eq","value":1}},"timed_out":false,"took":3}`,
			want:  NewEnvelope(NewEventHits(NewEvents(hit), ExactTotal(1)), 3, false),
		},
		"unknown_fields_skipped": {
			input: `{"took":3,"timed_out":false,"is_partial":false,"shards":{"total":1},` +
				`"hits":{"max_score":null,"other":[1,2,{"x":[]}],"events":[{"_index":"logs","_id":"1","_score":1.5,"_source":{"a":1},"fields":{}}]}}`,
			want: NewEnvelope(NewEventHits(NewEvents(hit), nil), 3, false),
		},
		"bare_number_total": {
			input: `{"took":1,"timed_out":true,"hits":{"total":7}}`,
			want:  NewEnvelope(NewHits(ExactTotal(7)), 1, true),
		},
		"total_without_relation": {
			input: `{"took":1,"timed_out":false,"hits":{"total":{"value":7}}}`,
			want:  NewEnvelope(NewHits(ExactTotal(7)), 1, false),
		},
		"gte_relation": {
			input: `{"took":1,"timed_out":false,"hits":{"total":{"value":10000,"relation":"gte"},"counts":[]}}`,
			want:  NewEnvelope(NewCountHits(NewCounts(), LowerBoundTotal(10000)), 1, false),
		},
		"null_collection_is_absent": {
			input: `{"took":1,"timed_out":false,"hits":{"events":null,"total":null}}`,
			want:  NewEnvelope(EmptyHits(), 1, false),
		},
		"sequence_optional_fields": {
			input: `{"took":1,"timed_out":false,"hits":{"sequences":[{},{"join_keys":null,"events":[]},{"join_keys":["x"]}]}}`,
			want: NewEnvelope(NewSequenceHits(NewSequences(
				NewSequence(nil, Events{}),
				NewSequence(nil, Events{}),
				NewSequence([]string{"x"}, Events{}),
			), nil), 1, false),
		},
		"events_win_over_counts": {
			input: `{"took":1,"timed_out":false,"hits":{"counts":[],"events":[]}}`,
			want:  NewEnvelope(NewEventHits(NewEvents(), nil), 1, false),
		},
		"percent_out_of_range_passes": {
			input: `{"took":1,"timed_out":false,"hits":{"counts":[{"_percent":2.5,"_keys":[],"_count":1}]}}`,
			want:  NewEnvelope(NewCountHits(NewCounts(NewCount(1, nil, 2.5)), nil), 1, false),
		},
		"trailing_whitespace": {
			input: "{\"took\":1,\"timed_out\":false,\"hits\":{}}\n\t ",
			want:  NewEnvelope(EmptyHits(), 1, false),
		},
		"whitespace": {
			input: "{\n  \"took\" : 1 ,\n  \"timed_out\" : false ,\n  \"hits\" : { \"events\" : [ { \"_index\" : \"logs\" , \"_id\" : \"1\" , \"_source\" : { \"a\" : 1 } } ] }\n}",
			want:  NewEnvelope(NewEventHits(NewEvents(hit), nil), 1, false),
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseDocument([]byte(tt.input))
			if err != nil {
				t.Fatalf("ParseDocument: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseDocumentErrors(t *testing.T) {
	tests := map[string]struct {
		input string
		want  error
	}{
		"not_an_object":         {input: `[]`, want: ErrMalformedDocument},
		"truncated":             {input: `{"took":1,"timed_out":false,"hits":{"events":[`, want: ErrMalformedDocument},
		"events_not_array":      {input: `{"took":1,"timed_out":false,"hits":{"events":{}}}`, want: ErrMalformedDocument},
		"took_not_number":       {input: `{"took":"1","timed_out":false,"hits":{}}`, want: ErrMalformedDocument},
		"negative_took":         {input: `{"took":-1,"timed_out":false,"hits":{}}`, want: ErrMalformedDocument},
		"join_key_not_string":   {input: `{"took":1,"timed_out":false,"hits":{"sequences":[{"join_keys":[1]}]}}`, want: ErrMalformedDocument},
		"missing_took":          {input: `{"timed_out":false,"hits":{}}`, want: ErrMissingField},
		"missing_timed_out":     {input: `{"took":1,"hits":{}}`, want: ErrMissingField},
		"missing_hits":          {input: `{"took":1,"timed_out":false}`, want: ErrMissingField},
		"count_missing_keys":    {input: `{"took":1,"timed_out":false,"hits":{"counts":[{"_count":1,"_percent":0.1}]}}`, want: ErrMissingField},
		"count_missing_count":   {input: `{"took":1,"timed_out":false,"hits":{"counts":[{"_keys":[],"_percent":0.1}]}}`, want: ErrMissingField},
		"count_missing_percent": {input: `{"took":1,"timed_out":false,"hits":{"counts":[{"_count":1,"_keys":[]}]}}`, want: ErrMissingField},
		"total_missing_value":   {input: `{"took":1,"timed_out":false,"hits":{"total":{"relation":"eq"}}}`, want: ErrMissingField},
		"unknown_relation":      {input: `{"took":1,"timed_out":false,"hits":{"total":{"value":1,"relation":"lt"}}}`, want: ErrUnknownRelation},
		"trailing_garbage":      {input: `{"took":1,"timed_out":false,"hits":{}} garbage`, want: ErrMalformedDocument},
		"second_document":       {input: `{"took":1,"timed_out":false,"hits":{}}{}`, want: ErrMalformedDocument},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseDocument([]byte(tt.input))
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if !got.Equal(Envelope{}) {
				t.Error("partial envelope returned")
			}
		})
	}
}

func TestParseDocumentErrorNamesExpectedToken(t *testing.T) {
	_, err := ParseDocument([]byte(`{"took":1,"timed_out":false,"hits":{"counts":"many"}}`))
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"expected array", "found string", "counts"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}
}

func TestRelationLiterals(t *testing.T) {
	tests := []struct {
		relation Relation
		literal  string
	}{
		{RelationEqual, "eq"},
		{RelationGreaterThanOrEqual, "gte"},
	}
	for _, tt := range tests {
		if got := tt.relation.String(); got != tt.literal {
			t.Errorf("%d.String() = %q, want %q", tt.relation, got, tt.literal)
		}
		got, err := ParseRelation(tt.literal)
		if err != nil {
			t.Fatalf("ParseRelation(%q): %v", tt.literal, err)
		}
		if got != tt.relation {
			t.Errorf("ParseRelation(%q) = %v, want %v", tt.literal, got, tt.relation)
		}
	}
	if _, err := ParseRelation("EQ"); !errors.Is(err, ErrUnknownRelation) {
		t.Errorf("ParseRelation(EQ): got %v, want ErrUnknownRelation", err)
	}
}

func TestEnvelopeAccessors(t *testing.T) {
	env := NewEnvelope(EmptyHits(), 1500, true)
	if env.Took() != 1500 {
		t.Errorf("Took = %d", env.Took())
	}
	if env.TookDuration().Seconds() != 1.5 {
		t.Errorf("TookDuration = %v", env.TookDuration())
	}
	if !env.TimedOut() {
		t.Error("TimedOut = false")
	}
	if env.Hits().Kind() != KindNone {
		t.Errorf("Kind = %v", env.Hits().Kind())
	}
	if !(Envelope{}).Equal(NewEnvelope(EmptyHits(), 0, false)) {
		t.Error("zero envelope must equal an empty one")
	}
}
