package eqlx

import "github.com/cockroachdb/errors"

// DefaultLimit is the number of entries returned when no limit is set.
const DefaultLimit = 10

// SearchOption configures a search.
type SearchOption interface {
	Apply(*SearchConfig)
}

// SearchConfig holds the parameters of one search.
type SearchConfig struct {
	// Limit caps the number of entries in the returned collection.
	Limit int

	// Offset skips that many entries before the first returned one.
	Offset int

	// Sort orders events. Sequences are always built in the order given by
	// Sort, or in insertion order when it is empty.
	Sort []SortField

	// Filters must all match for a document to be considered.
	Filters []Expression

	// TrackTotalHits caps exact counting. When more matches than this are
	// found the total is reported as a lower bound. Zero counts exactly.
	TrackTotalHits int

	// Sequence turns the search into a sequence search.
	Sequence *SequenceSpec

	// CountBy turns the search into a count aggregation over these fields.
	CountBy []string
}

// SequenceSpec describes an ordered sequence of stages that must be matched
// by documents sharing the same values for the By fields.
type SequenceSpec struct {
	// By names the join fields. Their values become the join keys.
	By []string
	// Stages are matched in order. Each document completes at most one stage.
	Stages []Expression
}

// SortField represents a field to sort by.
type SortField struct {
	// Field is the name of the field to sort by. "_score" sorts by relevance.
	Field string
	// Desc sorts in descending order when true.
	Desc bool
}

// NewSearchConfig applies opts over the defaults and validates the result.
func NewSearchConfig(opts ...SearchOption) (SearchConfig, error) {
	var cfg SearchConfig
	for _, opt := range opts {
		opt.Apply(&cfg)
	}
	if cfg.Limit == 0 {
		cfg.Limit = DefaultLimit
	}
	if err := cfg.Validate(); err != nil {
		return SearchConfig{}, err
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c SearchConfig) Validate() error {
	switch {
	case c.Limit < 0:
		return errors.Wrapf(ErrInvalidOption, "limit %d is negative", c.Limit)
	case c.Offset < 0:
		return errors.Wrapf(ErrInvalidOption, "offset %d is negative", c.Offset)
	case c.TrackTotalHits < 0:
		return errors.Wrapf(ErrInvalidOption, "track_total_hits %d is negative", c.TrackTotalHits)
	case c.Sequence != nil && len(c.CountBy) > 0:
		return errors.Wrap(ErrInvalidOption, "sequence and count cannot be combined")
	}
	if c.Sequence != nil {
		if len(c.Sequence.By) == 0 {
			return errors.Wrap(ErrInvalidOption, "sequence needs at least one join field")
		}
		if len(c.Sequence.Stages) < 2 {
			return errors.Wrapf(ErrInvalidOption, "sequence needs at least two stages, got %d", len(c.Sequence.Stages))
		}
		for i, stage := range c.Sequence.Stages {
			if stage == nil {
				return errors.Wrapf(ErrInvalidExpression, "sequence stage %d is nil", i)
			}
		}
	}
	for i, f := range c.CountBy {
		if f == "" {
			return errors.Wrapf(ErrInvalidOption, "count field %d is empty", i)
		}
	}
	return nil
}

// Kind returns the shape of hits the configuration asks for.
func (c SearchConfig) Kind() Kind {
	switch {
	case c.Sequence != nil:
		return KindSequences
	case len(c.CountBy) > 0:
		return KindCounts
	default:
		return KindEvents
	}
}

// Total builds the reported total for n matches, honoring TrackTotalHits.
func (c SearchConfig) Total(n uint64) *TotalHits {
	if c.TrackTotalHits > 0 && n > uint64(c.TrackTotalHits) {
		return LowerBoundTotal(uint64(c.TrackTotalHits))
	}
	return ExactTotal(n)
}

// Page returns the [start,end) bounds of the requested page over n entries.
func (c SearchConfig) Page(n int) (start, end int) {
	start = min(c.Offset, n)
	end = min(start+c.Limit, n)
	return start, end
}

type optionFunc func(*SearchConfig)

func (f optionFunc) Apply(cfg *SearchConfig) {
	f(cfg)
}

// WithLimit sets the maximum number of entries to return.
func WithLimit(n int) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.Limit = n
	})
}

// WithOffset sets the number of entries to skip.
func WithOffset(n int) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.Offset = n
	})
}

// WithSort adds a sort field.
func WithSort(field string, desc bool) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.Sort = append(cfg.Sort, SortField{Field: field, Desc: desc})
	})
}

// WithTrackTotalHits caps exact total counting at n.
func WithTrackTotalHits(n int) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.TrackTotalHits = n
	})
}

// WithSequence asks for sequences of stages joined on the by fields.
func WithSequence(by []string, stages ...Expression) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.Sequence = &SequenceSpec{By: by, Stages: stages}
	})
}

// WithCountBy asks for count buckets over the given fields.
func WithCountBy(fields ...string) SearchOption {
	return optionFunc(func(cfg *SearchConfig) {
		cfg.CountBy = append(cfg.CountBy, fields...)
	})
}
