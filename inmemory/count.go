package inmemory

import (
	"cmp"
	"slices"
	"strings"

	"github.com/letmevibethatforyou/eqlx"
)

type bucket struct {
	keys  []string
	count uint64
}

// countHits groups the matches by the values of the count fields. Documents
// lacking one of the fields are not counted. Buckets are ordered by
// descending count, then by keys.
func countHits(matches []scoredDocument, cfg eqlx.SearchConfig) (eqlx.Hits, error) {
	buckets := make(map[string]*bucket)
	var counted uint64
	for _, m := range matches {
		keys, ok := joinKeys(m.document.Fields, cfg.CountBy)
		if !ok {
			continue
		}
		counted++
		id := strings.Join(keys, "\x00")
		if b := buckets[id]; b != nil {
			b.count++
			continue
		}
		buckets[id] = &bucket{keys: keys, count: 1}
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	slices.SortFunc(ordered, func(a, b *bucket) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return slices.Compare(a.keys, b.keys)
	})

	from, to := cfg.Page(len(ordered))
	counts := make([]eqlx.Count, 0, to-from)
	for _, b := range ordered[from:to] {
		counts = append(counts, eqlx.NewCount(b.count, b.keys, float32(float64(b.count)/float64(counted))))
	}
	return eqlx.NewCountHits(eqlx.NewCounts(counts...), cfg.Total(counted)), nil
}
