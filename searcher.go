package eqlx

import "context"

// Searcher runs a query and returns its outcome as an envelope. The shape of
// the hits depends on the options: events by default, sequences when
// WithSequence is given and counts when WithCountBy is given.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...SearchOption) (Envelope, error)
}

// SearcherFunc adapts a function to the Searcher interface, like
// http.HandlerFunc.
type SearcherFunc func(context.Context, string, ...SearchOption) (Envelope, error)

// Search calls f.
func (f SearcherFunc) Search(ctx context.Context, query string, opts ...SearchOption) (Envelope, error) {
	return f(ctx, query, opts...)
}
