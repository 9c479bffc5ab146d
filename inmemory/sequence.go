package inmemory

import (
	"slices"
	"strings"

	"github.com/letmevibethatforyou/eqlx"
)

// joinState tracks, for one join key, the latest partial sequence that has
// completed each stage but the last.
type joinState struct {
	keys    []string
	pending [][]Document
}

type completedSequence struct {
	keys      []string
	documents []Document
}

// buildSequences walks the matches in order. A document that matches stage i
// extends the partial sequence waiting after stage i-1 with the same join
// key, or starts a new partial sequence when i is 0. Each document takes part
// in at most one transition, the one for the latest stage it can complete.
// A newer partial sequence replaces an older one waiting at the same stage.
func buildSequences(matches []scoredDocument, spec *eqlx.SequenceSpec) []completedSequence {
	last := len(spec.Stages) - 1
	states := make(map[string]*joinState)
	var completed []completedSequence

	for _, m := range matches {
		keys, ok := joinKeys(m.document.Fields, spec.By)
		if !ok {
			continue
		}
		id := strings.Join(keys, "\x00")
		state := states[id]
		if state == nil {
			state = &joinState{keys: keys, pending: make([][]Document, last)}
			states[id] = state
		}

		for i := last; i >= 0; i-- {
			if !evaluate(m.document.Fields, spec.Stages[i]) {
				continue
			}
			if i == 0 {
				state.pending[0] = []Document{m.document}
				break
			}
			prev := state.pending[i-1]
			if prev == nil {
				continue
			}
			state.pending[i-1] = nil
			seq := append(slices.Clip(prev), m.document)
			if i == last {
				completed = append(completed, completedSequence{keys: state.keys, documents: seq})
			} else {
				state.pending[i] = seq
			}
			break
		}
	}
	return completed
}

// joinKeys returns the values of the join fields, or false when the document
// lacks one of them.
func joinKeys(fields map[string]any, by []string) ([]string, bool) {
	keys := make([]string, 0, len(by))
	for _, f := range by {
		v, ok := lookup(fields, f)
		if !ok {
			return nil, false
		}
		keys = append(keys, keyString(v))
	}
	return keys, true
}

func (s *Searcher) sequenceHits(matches []scoredDocument, cfg eqlx.SearchConfig) (eqlx.Hits, error) {
	sortMatches(matches, cfg.Sort, false)
	completed := buildSequences(matches, cfg.Sequence)

	from, to := cfg.Page(len(completed))
	sequences := make([]eqlx.Sequence, 0, to-from)
	for _, c := range completed[from:to] {
		records := make([]eqlx.MatchedRecord, 0, len(c.documents))
		for _, doc := range c.documents {
			r, err := s.record(doc)
			if err != nil {
				return eqlx.Hits{}, err
			}
			records = append(records, r)
		}
		sequences = append(sequences, eqlx.NewSequence(c.keys, eqlx.NewEvents(records...)))
	}
	return eqlx.NewSequenceHits(eqlx.NewSequences(sequences...), cfg.Total(uint64(len(completed)))), nil
}
