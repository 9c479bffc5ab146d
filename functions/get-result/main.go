package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/cockroachdb/errors"
	"github.com/urfave/cli/v2"

	"github.com/letmevibethatforyou/eqlx/resultstore"
	"github.com/letmevibethatforyou/eqlx/transport"
)

// ResultGetter fetches stored results. *resultstore.Store implements it.
type ResultGetter interface {
	Get(ctx context.Context, id string) (resultstore.Result, error)
}

type Handler struct {
	results ResultGetter
}

func NewHandler(results ResultGetter) *Handler {
	return &Handler{results: results}
}

// HandleRequest serves GET /results/{id}. The pretty query parameter
// indents the document.
func (h *Handler) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	id := req.PathParameters["id"]
	pretty, _ := strconv.ParseBool(req.QueryStringParameters["pretty"])
	slog.InfoContext(ctx, "Fetching result", "id", id, "request_id", req.RequestContext.RequestID)

	res, err := h.results.Get(ctx, id)
	switch {
	case errors.Is(err, resultstore.ErrInvalidID):
		slog.WarnContext(ctx, "Invalid result id", "id", id, "error", err)
		return errorResponse(http.StatusBadRequest, "invalid result id"), nil
	case errors.Is(err, resultstore.ErrNotFound):
		slog.InfoContext(ctx, "Result not found", "id", id)
		return errorResponse(http.StatusNotFound, "result not found"), nil
	case err != nil:
		slog.ErrorContext(ctx, "Failed to fetch result", "id", id, "error", err)
		return errorResponse(http.StatusInternalServerError, "failed to fetch result"), nil
	}

	var body bytes.Buffer
	if err := res.Envelope.RenderDocument(&body, pretty); err != nil {
		slog.ErrorContext(ctx, "Failed to render result", "id", id, "error", err)
		return errorResponse(http.StatusInternalServerError, "failed to render result"), nil
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if !res.ExpiresAt.IsZero() {
		headers["Expires"] = res.ExpiresAt.UTC().Format(http.TimeFormat)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    headers,
		Body:       body.String(),
	}, nil
}

func errorResponse(status int, msg string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       `{"error":` + strconv.Quote(msg) + `}`,
	}
}

func main() {
	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" || os.Getenv("AWS_REGION") != "" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	app := &cli.App{
		Name:  "get-result",
		Usage: "Serve stored result envelopes from DynamoDB",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "table-name",
				Usage:    "DynamoDB table holding stored results",
				EnvVars:  []string{"TABLE_NAME"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "compression",
				Usage:   "Frame compression of stored results: none, zstd or lz4",
				EnvVars: []string{"RESULT_COMPRESSION"},
				Value:   transport.CompressionZstd.String(),
			},
		},
		Action: runAction,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func runAction(c *cli.Context) error {
	ctx := c.Context
	tableName := c.String("table-name")

	compression, err := transport.ParseCompression(c.String("compression"))
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Starting result reader", "table", tableName, "compression", compression.String())

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load AWS config", "error", err)
		return err
	}
	store := resultstore.New(dynamodb.NewFromConfig(cfg), tableName, transport.NewCodec(compression))
	handler := NewHandler(store)

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		slog.InfoContext(ctx, "Running in Lambda environment")
		lambda.Start(handler.HandleRequest)
	} else {
		slog.InfoContext(ctx, "Function cannot run outside of AWS Lambda environment")
	}

	return nil
}
