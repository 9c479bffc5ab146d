package algolia

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/algolia/algoliasearch-client-go/v3/algolia/opt"
	"github.com/algolia/algoliasearch-client-go/v3/algolia/search"
	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/letmevibethatforyou/eqlx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// queryFunc runs one Algolia query. Client.Query is the production one.
type queryFunc func(ctx context.Context, indexName, query string, params ...any) (search.QueryRes, error)

// Searcher implements eqlx.Searcher over one Algolia index. It produces
// events, and counts over a single faceted field. Sequences are not
// supported.
type Searcher struct {
	query     queryFunc
	indexName string
}

// NewSearcher creates a searcher for indexName.
func NewSearcher(client *Client, indexName string) *Searcher {
	return &Searcher{query: client.Query, indexName: indexName}
}

// Search implements eqlx.Searcher. Took is Algolia's processing time and the
// envelope is marked as timed out when Algolia stopped counting or
// collecting hits early.
func (s *Searcher) Search(ctx context.Context, query string, opts ...eqlx.SearchOption) (eqlx.Envelope, error) {
	cfg, err := eqlx.NewSearchConfig(opts...)
	if err != nil {
		return eqlx.Envelope{}, err
	}
	if err := ctx.Err(); err != nil {
		return eqlx.Envelope{}, contextError(err)
	}

	var params []any
	switch cfg.Kind() {
	case eqlx.KindSequences:
		return eqlx.Envelope{}, errors.Wrap(eqlx.ErrNotImplemented, "algolia: sequences")
	case eqlx.KindCounts:
		if len(cfg.CountBy) != 1 {
			return eqlx.Envelope{}, errors.Wrapf(eqlx.ErrNotImplemented, "algolia: counts over %d fields", len(cfg.CountBy))
		}
		params = buildCountParams(cfg)
	default:
		params = buildSearchParams(cfg)
	}

	res, err := s.query(ctx, s.indexName, query, params...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return eqlx.Envelope{}, contextError(err)
		}
		return eqlx.Envelope{}, errors.WithSecondaryError(eqlx.ErrBackendUnavailable, err)
	}

	var hits eqlx.Hits
	if cfg.Kind() == eqlx.KindCounts {
		hits = s.countHits(res, cfg)
	} else if hits, err = s.eventHits(res, cfg); err != nil {
		return eqlx.Envelope{}, err
	}

	return eqlx.NewEnvelope(hits, uint64(max(res.ProcessingTimeMS, 0)), res.TimeoutHits || res.TimeoutCounts), nil
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return eqlx.ErrTimeout
	}
	return eqlx.ErrCanceled
}

// total reports NbHits, as a lower bound when Algolia did not count
// exhaustively.
func total(res search.QueryRes, cfg eqlx.SearchConfig) *eqlx.TotalHits {
	n := uint64(max(res.NbHits, 0))
	if !res.ExhaustiveNbHits {
		return eqlx.LowerBoundTotal(n)
	}
	return cfg.Total(n)
}

func (s *Searcher) eventHits(res search.QueryRes, cfg eqlx.SearchConfig) (eqlx.Hits, error) {
	records := make([]eqlx.MatchedRecord, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r, err := s.record(hit)
		if err != nil {
			return eqlx.Hits{}, err
		}
		records = append(records, r)
	}
	return eqlx.NewEventHits(eqlx.NewEvents(records...), total(res, cfg)), nil
}

// record turns a hit into a matched record. objectID becomes the id and
// Algolia's underscore-prefixed metadata is dropped from the source.
func (s *Searcher) record(hit map[string]any) (eqlx.MatchedRecord, error) {
	id, _ := hit["objectID"].(string)
	source := make(map[string]any, len(hit))
	for k, v := range hit {
		if k == "objectID" || strings.HasPrefix(k, "_") {
			continue
		}
		source[k] = v
	}
	data, err := json.Marshal(source)
	if err != nil {
		return eqlx.MatchedRecord{}, errors.Wrapf(err, "marshal hit %q", id)
	}
	return eqlx.NewMatchedRecord(s.indexName, id, data)
}

// countHits builds buckets from the facet counts of the single count field,
// ordered by descending count, then by value.
func (s *Searcher) countHits(res search.QueryRes, cfg eqlx.SearchConfig) eqlx.Hits {
	field := cfg.CountBy[0]
	values := res.Facets[field]

	type facet struct {
		value string
		count int
	}
	facets := make([]facet, 0, len(values))
	for v, n := range values {
		facets = append(facets, facet{value: v, count: n})
	}
	slices.SortFunc(facets, func(a, b facet) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return strings.Compare(a.value, b.value)
	})

	from, to := cfg.Page(len(facets))
	counts := make([]eqlx.Count, 0, to-from)
	for _, f := range facets[from:to] {
		var pct float32
		if res.NbHits > 0 {
			pct = float32(float64(f.count) / float64(res.NbHits))
		}
		counts = append(counts, eqlx.NewCount(uint64(max(f.count, 0)), []string{f.value}, pct))
	}
	return eqlx.NewCountHits(eqlx.NewCounts(counts...), total(res, cfg))
}

// buildSearchParams maps the configuration onto Algolia query parameters.
// Sorting needs replica indices in Algolia and is not mapped.
func buildSearchParams(cfg eqlx.SearchConfig) []any {
	params := []any{opt.HitsPerPage(cfg.Limit)}
	if cfg.Offset > 0 {
		params = append(params, opt.Page(cfg.Offset/cfg.Limit))
	}
	if f := buildFilters(cfg.Filters); f != "" {
		params = append(params, opt.Filters(f))
	}
	return params
}

// buildCountParams asks only for the facet counts of the count field.
func buildCountParams(cfg eqlx.SearchConfig) []any {
	params := []any{
		opt.HitsPerPage(0),
		opt.Facets(cfg.CountBy...),
		opt.MaxValuesPerFacet(cfg.Offset + cfg.Limit),
	}
	if f := buildFilters(cfg.Filters); f != "" {
		params = append(params, opt.Filters(f))
	}
	return params
}

func buildFilters(exprs []eqlx.Expression) string {
	filters := make([]string, 0, len(exprs))
	for _, expr := range exprs {
		if f := convertExpression(expr); f != "" {
			filters = append(filters, f)
		}
	}
	return strings.Join(filters, " AND ")
}

// convertExpression renders an expression in Algolia filter syntax. Unknown
// expressions render as the empty string and are left out.
func convertExpression(expr eqlx.Expression) string {
	switch e := expr.(type) {
	case eqlx.AndExpr:
		return joinFilters(e.Exprs, " AND ")
	case eqlx.OrExpr:
		return joinFilters(e.Exprs, " OR ")
	case eqlx.NotExpr:
		inner := convertExpression(e.Inner)
		if inner == "" {
			return ""
		}
		return "NOT (" + inner + ")"
	case eqlx.CompareExpr:
		return convertCompare(e)
	case eqlx.RangeExpr:
		var parts []string
		if e.Min != nil {
			parts = append(parts, fmt.Sprintf("%s >= %s", escapeField(e.Field), escapeNumericValue(e.Min)))
		}
		if e.Max != nil {
			parts = append(parts, fmt.Sprintf("%s <= %s", escapeField(e.Field), escapeNumericValue(e.Max)))
		}
		return strings.Join(parts, " AND ")
	default:
		return ""
	}
}

func joinFilters(exprs []eqlx.Expression, sep string) string {
	filters := make([]string, 0, len(exprs))
	for _, e := range exprs {
		if f := convertExpression(e); f != "" {
			filters = append(filters, "("+f+")")
		}
	}
	return strings.Join(filters, sep)
}

func convertCompare(e eqlx.CompareExpr) string {
	field := escapeField(e.Field)
	switch e.Op {
	case eqlx.OpEq:
		return fmt.Sprintf("%s:%s", field, escapeValue(e.Value))
	case eqlx.OpNe:
		return fmt.Sprintf("NOT %s:%s", field, escapeValue(e.Value))
	case eqlx.OpGt:
		return fmt.Sprintf("%s > %s", field, escapeNumericValue(e.Value))
	case eqlx.OpGte:
		return fmt.Sprintf("%s >= %s", field, escapeNumericValue(e.Value))
	case eqlx.OpLt:
		return fmt.Sprintf("%s < %s", field, escapeNumericValue(e.Value))
	case eqlx.OpLte:
		return fmt.Sprintf("%s <= %s", field, escapeNumericValue(e.Value))
	case eqlx.OpExists:
		return fmt.Sprintf("%s:*", field)
	default:
		return ""
	}
}

// escapeField quotes field names with characters Algolia treats specially.
func escapeField(field string) string {
	if strings.ContainsAny(field, " :-()") {
		return strconv.Quote(field)
	}
	return field
}

func escapeValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	case bool:
		return `"` + strconv.FormatBool(v) + `"`
	default:
		return fmt.Sprintf(`"%v"`, v)
	}
}

func escapeNumericValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "0"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(v)
	default:
		str := fmt.Sprint(v)
		if _, err := strconv.ParseFloat(str, 64); err == nil {
			return str
		}
		return escapeValue(value)
	}
}
