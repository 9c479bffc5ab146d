package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/letmevibethatforyou/eqlx"
	"github.com/letmevibethatforyou/eqlx/transport"
)

// Envelope formats accepted by --format, --from and --to.
const (
	formatJSON   = "json"
	formatPretty = "pretty"
	formatBinary = "binary"
	formatFrame  = "frame"
)

// searchFlags holds the raw flag values that shape a search.
type searchFlags struct {
	limit      int
	offset     int
	filters    []string
	where      []string
	sort       []string
	trackTotal int
	sequenceBy []string
	stages     []string
	countBy    []string
}

// buildSearchOptions turns flag values into search options. field=value
// filters are equality tests; --where takes any condition ParseCondition
// understands.
func buildSearchOptions(f searchFlags) ([]eqlx.SearchOption, error) {
	opts := []eqlx.SearchOption{
		eqlx.WithLimit(f.limit),
		eqlx.WithOffset(f.offset),
	}
	if f.trackTotal > 0 {
		opts = append(opts, eqlx.WithTrackTotalHits(f.trackTotal))
	}

	filters, err := buildFilterOptions(f.filters)
	if err != nil {
		return nil, err
	}
	opts = append(opts, filters...)

	for _, raw := range f.where {
		expr, err := eqlx.ParseCondition(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "--where %q", raw)
		}
		opts = append(opts, expr)
	}

	for _, raw := range f.sort {
		field := strings.TrimSpace(raw)
		desc := strings.HasPrefix(field, "-")
		field = strings.TrimPrefix(field, "-")
		if field == "" {
			return nil, errors.Newf("sort field cannot be empty: %q", raw)
		}
		opts = append(opts, eqlx.WithSort(field, desc))
	}

	if len(f.stages) > 0 || len(f.sequenceBy) > 0 {
		stages := make([]eqlx.Expression, 0, len(f.stages))
		for _, raw := range f.stages {
			expr, err := eqlx.ParseCondition(raw)
			if err != nil {
				return nil, errors.Wrapf(err, "--stage %q", raw)
			}
			stages = append(stages, expr)
		}
		opts = append(opts, eqlx.WithSequence(f.sequenceBy, stages...))
	}

	if len(f.countBy) > 0 {
		opts = append(opts, eqlx.WithCountBy(f.countBy...))
	}
	return opts, nil
}

func buildFilterOptions(raw []string) ([]eqlx.SearchOption, error) {
	options := make([]eqlx.SearchOption, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item == "" {
			return nil, errors.New("filter cannot be empty")
		}

		field, value, ok := strings.Cut(item, "=")
		if !ok {
			return nil, errors.Newf("filter must be in field=value format: %q", item)
		}
		field, value = strings.TrimSpace(field), strings.TrimSpace(value)
		if field == "" || value == "" {
			return nil, errors.Newf("filter field and value must be non-empty: %q", item)
		}

		options = append(options, eqlx.Eq(field, value))
	}
	return options, nil
}

// writeEnvelope writes env to w in format. Frames use codec.
func writeEnvelope(ctx context.Context, w io.Writer, env eqlx.Envelope, format string, codec *transport.Codec) error {
	switch format {
	case formatJSON, formatPretty:
		if err := env.RenderDocument(w, format == formatPretty); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n")
		return err
	case formatBinary:
		return env.EncodeBinary(w)
	case formatFrame:
		return codec.WriteFrame(ctx, w, env)
	default:
		return errors.Newf("unknown format %q", format)
	}
}

// readEnvelope reads one envelope in format from r.
func readEnvelope(ctx context.Context, r io.Reader, format string, codec *transport.Codec) (eqlx.Envelope, error) {
	switch format {
	case formatJSON, formatPretty:
		data, err := io.ReadAll(r)
		if err != nil {
			return eqlx.Envelope{}, errors.Wrap(err, "read document")
		}
		return eqlx.ParseDocument(bytes.TrimSpace(data))
	case formatBinary:
		data, err := io.ReadAll(r)
		if err != nil {
			return eqlx.Envelope{}, errors.Wrap(err, "read binary envelope")
		}
		var env eqlx.Envelope
		if err := env.UnmarshalBinary(data); err != nil {
			return eqlx.Envelope{}, err
		}
		return env, nil
	case formatFrame:
		return codec.ReadFrame(ctx, r)
	default:
		return eqlx.Envelope{}, errors.Newf("unknown format %q", format)
	}
}

func summary(env eqlx.Envelope) []any {
	attrs := []any{
		"kind", env.Hits().Kind().String(),
		"took_ms", env.Took(),
		"timed_out", env.TimedOut(),
	}
	if total, ok := env.Hits().Total(); ok {
		attrs = append(attrs, "total", fmt.Sprintf("%d (%s)", total.Value, total.Relation))
	}
	return attrs
}
