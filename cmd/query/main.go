package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/urfave/cli/v2"

	"github.com/letmevibethatforyou/eqlx"
	"github.com/letmevibethatforyou/eqlx/algolia"
	"github.com/letmevibethatforyou/eqlx/inmemory"
	"github.com/letmevibethatforyou/eqlx/resultstore"
	"github.com/letmevibethatforyou/eqlx/transport"
)

const (
	defaultTimeout = 5 * time.Second

	backendInMemory = "inmemory"
	backendAlgolia  = "algolia"
)

func main() {
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" || os.Getenv("AWS_REGION") != "" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}

	if err := newApp(os.Stdin, os.Stdout).Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func newApp(stdin io.Reader, stdout io.Writer) *cli.App {
	compressionFlag := &cli.StringFlag{
		Name:    "compression",
		Usage:   "Frame compression: none, zstd or lz4",
		EnvVars: []string{"RESULT_COMPRESSION"},
		Value:   transport.CompressionZstd.String(),
	}
	tableFlag := &cli.StringFlag{
		Name:    "table-name",
		Aliases: []string{"t"},
		Usage:   "DynamoDB table holding stored results",
		EnvVars: []string{"TABLE_NAME"},
	}

	return &cli.App{
		Name:      "query",
		Usage:     "Search, convert and store result envelopes",
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: os.Stderr,
		Commands: []*cli.Command{
			{
				Name:  "search",
				Usage: "Run a search and print the result envelope",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "backend",
						Aliases: []string{"b"},
						Usage:   "Search backend: inmemory or algolia",
						EnvVars: []string{"EQLX_BACKEND"},
						Value:   backendInMemory,
					},
					&cli.StringFlag{
						Name:    "index",
						Aliases: []string{"i"},
						Usage:   "Index name",
						EnvVars: []string{"ALGOLIA_INDEX", "EQLX_INDEX"},
					},
					&cli.StringFlag{
						Name:    "input",
						Usage:   "JSON lines file for the inmemory backend; - reads stdin",
						EnvVars: []string{"EQLX_INPUT"},
						Value:   "-",
					},
					&cli.StringFlag{
						Name:  "id-field",
						Usage: "Document field used as the record id by the inmemory backend",
						Value: "id",
					},
					&cli.StringFlag{
						Name:    "algolia-secret-arn",
						Usage:   "ARN of AWS Secrets Manager secret containing Algolia credentials",
						EnvVars: []string{"ALGOLIA_SECRET_ARN"},
					},
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Query string to search for; positional arg is a fallback",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Usage:   "Maximum number of entries to return",
						Value:   eqlx.DefaultLimit,
					},
					&cli.IntFlag{
						Name:    "offset",
						Aliases: []string{"o"},
						Usage:   "Number of entries to skip",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Timeout for the search request",
						Value: defaultTimeout,
					},
					&cli.StringSliceFlag{
						Name:  "filter",
						Usage: "Filter in field=value format; repeatable",
					},
					&cli.StringSliceFlag{
						Name:    "where",
						Aliases: []string{"w"},
						Usage:   `Condition such as "year >= 2015" or "color exists"; repeatable`,
					},
					&cli.StringSliceFlag{
						Name:  "sort",
						Usage: "Sort field, prefixed with - for descending; repeatable",
					},
					&cli.IntFlag{
						Name:  "track-total",
						Usage: "Count matches exactly up to this many; 0 counts all",
					},
					&cli.StringSliceFlag{
						Name:  "sequence-by",
						Usage: "Join key field for sequences; repeatable",
					},
					&cli.StringSliceFlag{
						Name:  "stage",
						Usage: "Sequence stage condition, in order; repeatable",
					},
					&cli.StringSliceFlag{
						Name:  "count-by",
						Usage: "Field to count matches by; repeatable",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: json, pretty, binary or frame",
						Value:   formatPretty,
					},
					compressionFlag,
					&cli.BoolFlag{
						Name:  "store",
						Usage: "Store the result in DynamoDB and log its id",
					},
					tableFlag,
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "How long a stored result is kept",
						Value: resultstore.DefaultTTL,
					},
				},
				Action: searchAction,
			},
			{
				Name:  "convert",
				Usage: "Convert an envelope between formats",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "from",
						Usage: "Input format: json, binary or frame",
						Value: formatJSON,
					},
					&cli.StringFlag{
						Name:  "to",
						Usage: "Output format: json, pretty, binary or frame",
						Value: formatBinary,
					},
					&cli.StringFlag{
						Name:  "input",
						Usage: "Input file; - reads stdin",
						Value: "-",
					},
					compressionFlag,
				},
				Action: convertAction,
			},
			{
				Name:      "fetch",
				Usage:     "Print a stored result",
				ArgsUsage: "<result id>",
				Flags: []cli.Flag{
					tableFlag,
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: json, pretty, binary or frame",
						Value:   formatPretty,
					},
					compressionFlag,
				},
				Action: fetchAction,
			},
			{
				Name:      "delete",
				Usage:     "Delete a stored result",
				ArgsUsage: "<result id>",
				Flags:     []cli.Flag{tableFlag},
				Action:    deleteAction,
			},
		},
	}
}

func searchAction(c *cli.Context) error {
	ctx := c.Context

	query := strings.TrimSpace(c.String("query"))
	if query == "" && c.NArg() > 0 {
		query = strings.TrimSpace(c.Args().First())
	}

	timeout := c.Duration("timeout")
	if timeout <= 0 {
		slog.WarnContext(ctx, "timeout must be positive; using default", "timeout", timeout, "default", defaultTimeout)
		timeout = defaultTimeout
	}

	opts, err := buildSearchOptions(searchFlags{
		limit:      c.Int("limit"),
		offset:     c.Int("offset"),
		filters:    c.StringSlice("filter"),
		where:      c.StringSlice("where"),
		sort:       c.StringSlice("sort"),
		trackTotal: c.Int("track-total"),
		sequenceBy: c.StringSlice("sequence-by"),
		stages:     c.StringSlice("stage"),
		countBy:    c.StringSlice("count-by"),
	})
	if err != nil {
		return fmt.Errorf("invalid search options: %w", err)
	}
	codec, err := newCodec(c)
	if err != nil {
		return err
	}

	indexName := strings.TrimSpace(c.String("index"))
	searcher, err := newSearcher(c, indexName)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "executing query",
		"backend", c.String("backend"),
		"index", indexName,
		"query", query,
		"option_count", len(opts),
		"timeout", timeout,
	)

	searchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	env, err := searcher.Search(searchCtx, query, opts...)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	slog.InfoContext(ctx, "search finished", summary(env)...)

	if c.Bool("store") {
		store, err := newStore(c, codec, resultstore.WithTTL(c.Duration("ttl")))
		if err != nil {
			return err
		}
		id, err := store.Put(ctx, env)
		if err != nil {
			return fmt.Errorf("failed to store result: %w", err)
		}
		slog.InfoContext(ctx, "stored result", "id", id, "table", c.String("table-name"))
	}

	return writeEnvelope(ctx, c.App.Writer, env, c.String("format"), codec)
}

func newSearcher(c *cli.Context, indexName string) (eqlx.Searcher, error) {
	ctx := c.Context

	switch backend := c.String("backend"); backend {
	case backendInMemory:
		s := inmemory.New(indexName)
		in, closeInput, err := openInput(c, c.String("input"))
		if err != nil {
			return nil, err
		}
		defer closeInput()
		n, err := s.LoadJSONLines(in, c.String("id-field"))
		if err != nil {
			return nil, fmt.Errorf("failed to load documents: %w", err)
		}
		slog.InfoContext(ctx, "loaded documents", "count", n, "unique", s.Size())
		return s, nil

	case backendAlgolia:
		if indexName == "" {
			return nil, fmt.Errorf("--index is required for the algolia backend")
		}
		var fetchSecrets algolia.FetchSecrets
		if secretArn := strings.TrimSpace(c.String("algolia-secret-arn")); secretArn != "" {
			slog.InfoContext(ctx, "using AWS Secrets Manager for Algolia credentials", "secret_arn", secretArn)
			cfg, err := config.LoadDefaultConfig(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to load AWS config: %w", err)
			}
			fetchSecrets = algolia.AWSSecretsFromARN(ctx, secretsmanager.NewFromConfig(cfg), secretArn)
		} else {
			fetchSecrets = algolia.EnvSecrets()
		}
		return algolia.NewSearcher(algolia.NewClient(fetchSecrets), indexName), nil

	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func convertAction(c *cli.Context) error {
	ctx := c.Context
	codec, err := newCodec(c)
	if err != nil {
		return err
	}

	in, closeInput, err := openInput(c, c.String("input"))
	if err != nil {
		return err
	}
	defer closeInput()

	env, err := readEnvelope(ctx, in, c.String("from"), codec)
	if err != nil {
		return fmt.Errorf("failed to read %s envelope: %w", c.String("from"), err)
	}
	return writeEnvelope(ctx, c.App.Writer, env, c.String("to"), codec)
}

func fetchAction(c *cli.Context) error {
	ctx := c.Context
	id := strings.TrimSpace(c.Args().First())
	if id == "" {
		return fmt.Errorf("result id is required")
	}

	codec, err := newCodec(c)
	if err != nil {
		return err
	}
	store, err := newStore(c, codec)
	if err != nil {
		return err
	}
	res, err := store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch result: %w", err)
	}
	slog.InfoContext(ctx, "fetched result", append(summary(res.Envelope), "id", res.ID, "created_at", res.CreatedAt)...)
	return writeEnvelope(ctx, c.App.Writer, res.Envelope, c.String("format"), codec)
}

func deleteAction(c *cli.Context) error {
	ctx := c.Context
	id := strings.TrimSpace(c.Args().First())
	if id == "" {
		return fmt.Errorf("result id is required")
	}

	store, err := newStore(c, transport.NewCodec(transport.CompressionNone))
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}
	slog.InfoContext(ctx, "deleted result", "id", id)
	return nil
}

func newCodec(c *cli.Context) (*transport.Codec, error) {
	compression, err := transport.ParseCompression(c.String("compression"))
	if err != nil {
		return nil, fmt.Errorf("invalid --compression: %w", err)
	}
	return transport.NewCodec(compression), nil
}

func newStore(c *cli.Context, codec *transport.Codec, opts ...resultstore.Option) (*resultstore.Store, error) {
	table := strings.TrimSpace(c.String("table-name"))
	if table == "" {
		return nil, fmt.Errorf("--table-name is required")
	}
	cfg, err := config.LoadDefaultConfig(c.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return resultstore.New(dynamodb.NewFromConfig(cfg), table, codec, opts...), nil
}

// openInput opens path, or the app's reader for "-".
func openInput(c *cli.Context, path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return c.App.Reader, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
