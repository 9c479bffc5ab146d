// Package resultstore keeps finished result envelopes in DynamoDB so they
// can be fetched later by id. Items are keyed by a ksuid and hold the
// envelope as a transport frame.
package resultstore

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cockroachdb/errors"
	"github.com/segmentio/ksuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/letmevibethatforyou/eqlx"
	"github.com/letmevibethatforyou/eqlx/transport"
)

// SortKey is the sk value of every result item.
const SortKey = "result"

// DefaultTTL is how long stored results are kept.
const DefaultTTL = 24 * time.Hour

var (
	// ErrNotFound is returned when no live result exists for an id.
	ErrNotFound = errors.New("resultstore: result not found")

	// ErrInvalidID is returned for ids that are not ksuids.
	ErrInvalidID = errors.New("resultstore: invalid result id")
)

// DynamoDBClient is the part of the DynamoDB API used by Store.
type DynamoDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Item is the stored form of a result. Compression is the tag written in the
// frame header, which is none when the payload did not shrink.
type Item struct {
	ID          string    `dynamodbav:"pk"`
	SK          string    `dynamodbav:"sk"`
	Kind        string    `dynamodbav:"kind"`
	Took        uint64    `dynamodbav:"took"`
	TimedOut    bool      `dynamodbav:"timed_out"`
	Compression string    `dynamodbav:"compression"`
	Frame       []byte    `dynamodbav:"frame"`
	CreatedAt   time.Time `dynamodbav:"created_at"`
	ExpiresAt   int64     `dynamodbav:"expires_at,omitempty"`
}

type itemKey struct {
	ID string `dynamodbav:"pk"`
	SK string `dynamodbav:"sk"`
}

// Result is a stored envelope with its metadata.
type Result struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time
	Envelope  eqlx.Envelope
}

// Store reads and writes results in one DynamoDB table.
type Store struct {
	client DynamoDBClient
	table  string
	codec  *transport.Codec
	ttl    time.Duration
	now    func() time.Time
	tracer trace.Tracer
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets how long results are kept. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithTracerProvider sets where store spans are recorded.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Store) { s.tracer = tp.Tracer("eqlx-resultstore") }
}

// New returns a store over table that frames envelopes with codec.
func New(client DynamoDBClient, table string, codec *transport.Codec, opts ...Option) *Store {
	s := &Store{
		client: client,
		table:  table,
		codec:  codec,
		ttl:    DefaultTTL,
		now:    time.Now,
		tracer: otel.Tracer("eqlx-resultstore"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores env under a new id and returns the id.
func (s *Store) Put(ctx context.Context, env eqlx.Envelope) (id string, err error) {
	ctx, span := s.tracer.Start(ctx, "resultstore.put",
		trace.WithAttributes(
			attribute.String("resultstore.table", s.table),
			attribute.String("resultstore.kind", env.Hits().Kind().String()),
		),
	)
	defer func() { endSpan(span, err) }()

	now := s.now().UTC()
	uid, err := ksuid.NewRandomWithTime(now)
	if err != nil {
		return "", errors.Wrap(err, "generate result id")
	}
	id = uid.String()
	span.SetAttributes(attribute.String("resultstore.id", id))

	frame, err := s.codec.Encode(ctx, env)
	if err != nil {
		return "", errors.Wrapf(err, "encode result %s", id)
	}
	used, err := transport.FrameCompression(frame)
	if err != nil {
		return "", errors.Wrapf(err, "encode result %s", id)
	}

	item := Item{
		ID:          id,
		SK:          SortKey,
		Kind:        env.Hits().Kind().String(),
		Took:        env.Took(),
		TimedOut:    env.TimedOut(),
		Compression: used.String(),
		Frame:       frame,
		CreatedAt:   now,
	}
	if s.ttl > 0 {
		item.ExpiresAt = now.Add(s.ttl).Unix()
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return "", errors.Wrapf(err, "marshal result %s", id)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		return "", errors.Wrapf(err, "put result %s", id)
	}
	return id, nil
}

// Get fetches the result stored under id. Results past their expiry are
// reported as not found even before DynamoDB removes them.
func (s *Store) Get(ctx context.Context, id string) (res Result, err error) {
	ctx, span := s.tracer.Start(ctx, "resultstore.get",
		trace.WithAttributes(
			attribute.String("resultstore.table", s.table),
			attribute.String("resultstore.id", id),
		),
	)
	defer func() { endSpan(span, err) }()

	key, err := s.key(id)
	if err != nil {
		return Result{}, err
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Result{}, errors.Wrapf(err, "get result %s", id)
	}
	if len(out.Item) == 0 {
		return Result{}, errors.Wrapf(ErrNotFound, "id %s", id)
	}

	var item Item
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return Result{}, errors.Wrapf(err, "unmarshal result %s", id)
	}
	res = Result{ID: item.ID, CreatedAt: item.CreatedAt}
	if item.ExpiresAt > 0 {
		res.ExpiresAt = time.Unix(item.ExpiresAt, 0).UTC()
		if !s.now().Before(res.ExpiresAt) {
			return Result{}, errors.Wrapf(ErrNotFound, "id %s expired at %s", id, res.ExpiresAt.Format(time.RFC3339))
		}
	}

	res.Envelope, err = s.codec.Decode(ctx, item.Frame)
	if err != nil {
		return Result{}, errors.Wrapf(err, "decode result %s", id)
	}
	span.SetAttributes(attribute.String("resultstore.kind", item.Kind))
	return res, nil
}

// Delete removes the result stored under id. Deleting a missing result is
// not an error.
func (s *Store) Delete(ctx context.Context, id string) (err error) {
	ctx, span := s.tracer.Start(ctx, "resultstore.delete",
		trace.WithAttributes(attribute.String("resultstore.id", id)),
	)
	defer func() { endSpan(span, err) }()

	key, err := s.key(id)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       key,
	}); err != nil {
		return errors.Wrapf(err, "delete result %s", id)
	}
	return nil
}

func (s *Store) key(id string) (map[string]types.AttributeValue, error) {
	if _, err := ksuid.Parse(id); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "id %q", id), ErrInvalidID)
	}
	key, err := attributevalue.MarshalMap(itemKey{ID: id, SK: SortKey})
	if err != nil {
		return nil, errors.Wrapf(err, "marshal key %s", id)
	}
	return key, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
