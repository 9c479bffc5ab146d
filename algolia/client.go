// Package algolia produces result envelopes from an Algolia index, with a
// lazily built client and pluggable credential sources.
package algolia

import (
	"context"
	"os"
	"sync"

	"github.com/algolia/algoliasearch-client-go/v3/algolia/search"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Secrets holds the Algolia application credentials.
type Secrets struct {
	AppID  string `json:"app_id"`
	APIKey string `json:"api_key"`
}

// FetchSecrets retrieves Algolia credentials. It is called at most once per
// Client, on first use.
type FetchSecrets func() (Secrets, error)

// StaticSecrets returns fixed credentials.
func StaticSecrets(appID, apiKey string) FetchSecrets {
	return func() (Secrets, error) {
		return Secrets{AppID: appID, APIKey: apiKey}, nil
	}
}

// EnvSecrets reads ALGOLIA_APP_ID and ALGOLIA_API_KEY.
func EnvSecrets() FetchSecrets {
	return func() (Secrets, error) {
		appID := os.Getenv("ALGOLIA_APP_ID")
		if appID == "" {
			return Secrets{}, errors.New("ALGOLIA_APP_ID environment variable is not set")
		}
		apiKey := os.Getenv("ALGOLIA_API_KEY")
		if apiKey == "" {
			return Secrets{}, errors.New("ALGOLIA_API_KEY environment variable is not set")
		}
		return Secrets{AppID: appID, APIKey: apiKey}, nil
	}
}

// Client wraps an Algolia search client that is created on first use.
type Client struct {
	getClient func() (*search.Client, error)
	tracer    trace.Tracer
}

// NewClient returns a client that fetches its credentials on first use.
func NewClient(fetchSecrets FetchSecrets) *Client {
	getClient := sync.OnceValues(func() (*search.Client, error) {
		secrets, err := fetchSecrets()
		if err != nil {
			return nil, errors.Wrap(err, "fetch algolia secrets")
		}
		if secrets.AppID == "" {
			return nil, errors.New("algolia app id is empty")
		}
		if secrets.APIKey == "" {
			return nil, errors.New("algolia api key is empty")
		}
		return search.NewClient(secrets.AppID, secrets.APIKey), nil
	})

	return &Client{
		getClient: getClient,
		tracer:    otel.Tracer("eqlx-algolia"),
	}
}

// Query runs one search against indexName.
func (c *Client) Query(ctx context.Context, indexName, query string, params ...any) (search.QueryRes, error) {
	_, span := c.tracer.Start(ctx, "algolia.search",
		trace.WithAttributes(
			attribute.String("algolia.index_name", indexName),
			attribute.Int("algolia.query_length", len(query)),
		),
	)
	defer span.End()

	client, err := c.getClient()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get Algolia client")
		return search.QueryRes{}, err
	}

	res, err := client.InitIndex(indexName).Search(query, params...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return search.QueryRes{}, errors.Wrapf(err, "search algolia index %s", indexName)
	}

	span.SetAttributes(
		attribute.Int("algolia.nb_hits", res.NbHits),
		attribute.Int("algolia.processing_time_ms", res.ProcessingTimeMS),
	)
	span.SetStatus(codes.Ok, "")
	return res, nil
}
