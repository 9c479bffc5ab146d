// Package inmemory produces result envelopes from documents held in memory.
// It is meant for tests, demos and the query CLI.
package inmemory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/letmevibethatforyou/eqlx"
)

// DefaultIndex is the index name reported on records when none is given.
const DefaultIndex = "inmemory"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Document is a JSON object stored under an id.
type Document struct {
	ID     string
	Fields map[string]any
}

// Searcher implements eqlx.Searcher over an in-memory document list. Documents
// keep their insertion order, which is the order sequences are built in.
type Searcher struct {
	index string

	mu        sync.RWMutex
	documents []Document
	idIndex   map[string]int
}

// New creates an empty searcher whose records report the given index name.
func New(index string) *Searcher {
	if index == "" {
		index = DefaultIndex
	}
	return &Searcher{
		index:   index,
		idIndex: make(map[string]int),
	}
}

// Index returns the index name reported on records.
func (s *Searcher) Index() string { return s.index }

// AddDocument stores doc, replacing any document with the same id in place.
func (s *Searcher) AddDocument(doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.idIndex[doc.ID]; ok {
		s.documents[idx] = doc
		return
	}
	s.idIndex[doc.ID] = len(s.documents)
	s.documents = append(s.documents, doc)
}

// AddJSON parses data as a JSON object and stores it under id.
func (s *Searcher) AddJSON(id string, data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return errors.Wrapf(err, "document %q", id)
	}
	if fields == nil {
		return errors.Newf("document %q is not an object", id)
	}
	s.AddDocument(Document{ID: id, Fields: fields})
	return nil
}

// RemoveDocument deletes the document with the given id and reports whether
// it existed.
func (s *Searcher) RemoveDocument(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.idIndex[id]
	if !ok {
		return false
	}
	s.documents = slices.Delete(s.documents, idx, idx+1)
	delete(s.idIndex, id)
	for i := idx; i < len(s.documents); i++ {
		s.idIndex[s.documents[i].ID] = i
	}
	return true
}

// Clear removes all documents.
func (s *Searcher) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.documents = nil
	s.idIndex = make(map[string]int)
}

// Size returns the number of stored documents.
func (s *Searcher) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

// Search implements eqlx.Searcher.
//
// A cancelled context fails the search with eqlx.ErrCanceled. When the
// context deadline passes during the scan, the documents scanned so far are
// used and the envelope is marked as timed out.
func (s *Searcher) Search(ctx context.Context, query string, opts ...eqlx.SearchOption) (eqlx.Envelope, error) {
	start := time.Now()

	cfg, err := eqlx.NewSearchConfig(opts...)
	if err != nil {
		return eqlx.Envelope{}, err
	}
	if err := ctx.Err(); err != nil {
		return eqlx.Envelope{}, contextError(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, timedOut, err := s.scan(ctx, query, cfg.Filters)
	if err != nil {
		return eqlx.Envelope{}, err
	}

	var hits eqlx.Hits
	switch cfg.Kind() {
	case eqlx.KindSequences:
		hits, err = s.sequenceHits(matches, cfg)
	case eqlx.KindCounts:
		hits, err = countHits(matches, cfg)
	default:
		hits, err = s.eventHits(matches, cfg)
	}
	if err != nil {
		return eqlx.Envelope{}, err
	}

	took := uint64(time.Since(start).Milliseconds())
	return eqlx.NewEnvelope(hits, took, timedOut), nil
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return eqlx.ErrTimeout
	}
	return eqlx.ErrCanceled
}

type scoredDocument struct {
	document Document
	score    float64
}

// scan returns the documents matching the filters and the query, in
// insertion order.
func (s *Searcher) scan(ctx context.Context, query string, filters []eqlx.Expression) ([]scoredDocument, bool, error) {
	terms := strings.Fields(strings.ToLower(query))

	var matches []scoredDocument
	for _, doc := range s.documents {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return matches, true, nil
			}
			return nil, false, eqlx.ErrCanceled
		}
		if !matchesAll(doc.Fields, filters) {
			continue
		}
		if score := scoreDocument(doc.Fields, terms); score > 0 {
			matches = append(matches, scoredDocument{document: doc, score: score})
		}
	}
	return matches, false, nil
}

func (s *Searcher) eventHits(matches []scoredDocument, cfg eqlx.SearchConfig) (eqlx.Hits, error) {
	sortMatches(matches, cfg.Sort, true)

	from, to := cfg.Page(len(matches))
	records := make([]eqlx.MatchedRecord, 0, to-from)
	for _, m := range matches[from:to] {
		r, err := s.record(m.document)
		if err != nil {
			return eqlx.Hits{}, err
		}
		records = append(records, r)
	}
	return eqlx.NewEventHits(eqlx.NewEvents(records...), cfg.Total(uint64(len(matches)))), nil
}

func (s *Searcher) record(doc Document) (eqlx.MatchedRecord, error) {
	src, err := json.Marshal(doc.Fields)
	if err != nil {
		return eqlx.MatchedRecord{}, errors.Wrapf(err, "marshal document %q", doc.ID)
	}
	return eqlx.NewMatchedRecord(s.index, doc.ID, src)
}

// scoreDocument counts term hits across the field values. Documents that
// contain every term get a boost. An empty query matches everything.
func scoreDocument(fields map[string]any, terms []string) float64 {
	if len(terms) == 0 {
		return 1.0
	}

	score := 0.0
	matchedTerms := 0
	for _, term := range terms {
		termMatched := false
		for _, value := range fields {
			if valueContainsTerm(value, term) {
				termMatched = true
				score++
			}
		}
		if termMatched {
			matchedTerms++
		}
	}

	if matchedTerms == 0 {
		return 0
	}
	if matchedTerms == len(terms) {
		score *= 1.5
	}
	return score
}

func valueContainsTerm(value any, term string) bool {
	switch v := value.(type) {
	case string:
		return strings.Contains(strings.ToLower(v), term)
	case []any:
		return slices.ContainsFunc(v, func(item any) bool { return valueContainsTerm(item, term) })
	case map[string]any:
		for _, item := range v {
			if valueContainsTerm(item, term) {
				return true
			}
		}
		return false
	default:
		return strings.Contains(strings.ToLower(fmt.Sprint(v)), term)
	}
}

// sortMatches orders matches by the sort fields. Without sort fields it
// orders by descending score when byScore is set and keeps insertion order
// otherwise. The sort is stable.
func sortMatches(matches []scoredDocument, fields []eqlx.SortField, byScore bool) {
	if len(fields) == 0 {
		if byScore {
			slices.SortStableFunc(matches, func(a, b scoredDocument) int {
				return cmp.Compare(b.score, a.score)
			})
		}
		return
	}

	slices.SortStableFunc(matches, func(a, b scoredDocument) int {
		for _, sf := range fields {
			var c int
			if sf.Field == "_score" {
				c = cmp.Compare(a.score, b.score)
			} else {
				va, _ := lookup(a.document.Fields, sf.Field)
				vb, _ := lookup(b.document.Fields, sf.Field)
				c = compareValues(va, vb)
			}
			if c != 0 {
				if sf.Desc {
					return -c
				}
				return c
			}
		}
		return 0
	})
}
