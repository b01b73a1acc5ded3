package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"archie-builder-credential-broker/internal/domain"
	"archie-builder-credential-broker/internal/ports"

	"github.com/99designs/gqlgen/graphql"
	"github.com/rs/zerolog"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

const queryOperation = `query Query($database: String!, $collection: String!, $filters: [FilterInput!]!) {
  query(database: $database, collection: $collection, filters: $filters) {
    database
    key
    value
  }
}`

const writeByKeyOperation = `mutation WriteByKey($database: String!, $collection: String!, $key: String, $value: JSON, $delete: Boolean) {
  writeByKey(database: $database, collection: $collection, key: $key, value: $value, delete: $delete) {
    success
    key
  }
}`

// GraphQLConfig configures the remote document store endpoint
type GraphQLConfig struct {
	Endpoint     string
	SecretHeader string
	Secret       string
	Timeout      time.Duration
}

// operation is a parsed, validated GraphQL document
type operation struct {
	name     string
	document string
}

// GraphQLClient talks to the remote document database over GraphQL
type GraphQLClient struct {
	config     GraphQLConfig
	httpClient *http.Client
	query      operation
	writeByKey operation
	logger     zerolog.Logger
}

// NewGraphQLClient creates a GraphQL document store client
func NewGraphQLClient(cfg GraphQLConfig, httpClient *http.Client, logger zerolog.Logger) (*GraphQLClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("document store endpoint is required")
	}
	if cfg.SecretHeader == "" {
		cfg.SecretHeader = "X-Service-Key"
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	query, err := parseOperation("query", queryOperation)
	if err != nil {
		return nil, err
	}
	write, err := parseOperation("writeByKey", writeByKeyOperation)
	if err != nil {
		return nil, err
	}

	return &GraphQLClient{
		config:     cfg,
		httpClient: httpClient,
		query:      query,
		writeByKey: write,
		logger:     logger,
	}, nil
}

var _ ports.DocumentStore = (*GraphQLClient)(nil)

func parseOperation(name, document string) (operation, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: name, Input: document})
	if err != nil {
		return operation{}, fmt.Errorf("invalid %s operation: %w", name, err)
	}
	if len(doc.Operations) != 1 {
		return operation{}, fmt.Errorf("%s document must hold exactly one operation", name)
	}
	return operation{name: doc.Operations[0].Name, document: document}, nil
}

type queryData struct {
	Query []ports.Document `json:"query"`
}

type writeByKeyData struct {
	WriteByKey *ports.WriteResult `json:"writeByKey"`
}

// Query runs a filtered query against one database or, with "*", all of them
func (c *GraphQLClient) Query(ctx context.Context, database, collection string, filters []ports.Filter) ([]ports.Document, error) {
	if err := validateFilters(filters); err != nil {
		return nil, domain.Upstream("query", err)
	}
	if filters == nil {
		filters = []ports.Filter{}
	}

	var data queryData
	err := c.do(ctx, c.query, map[string]any{
		"database":   database,
		"collection": collection,
		"filters":    filters,
	}, &data)
	if err != nil {
		return nil, domain.Upstream("query", err)
	}

	for i := range data.Query {
		if data.Query[i].Key == "" {
			return nil, domain.Upstream("query", fmt.Errorf("document without key in %s", collection))
		}
		if data.Query[i].Database == "" {
			data.Query[i].Database = database
		}
		data.Query[i].Collection = collection
	}
	return data.Query, nil
}

// WriteByKey upserts, creates (empty key) or deletes a document
func (c *GraphQLClient) WriteByKey(ctx context.Context, database, collection string, doc ports.WriteDocument, opts ports.WriteOptions) (ports.WriteResult, error) {
	variables := map[string]any{
		"database":   database,
		"collection": collection,
		"delete":     opts.Delete,
	}
	if doc.Key != "" {
		variables["key"] = doc.Key
	}
	if !opts.Delete {
		variables["value"] = doc.Value
	}

	var data writeByKeyData
	if err := c.do(ctx, c.writeByKey, variables, &data); err != nil {
		return ports.WriteResult{}, domain.Upstream("writeByKey", err)
	}
	if data.WriteByKey == nil {
		return ports.WriteResult{}, domain.Upstream("writeByKey", fmt.Errorf("malformed response: missing writeByKey"))
	}
	if !data.WriteByKey.Success {
		return *data.WriteByKey, domain.Upstream("writeByKey", fmt.Errorf("store rejected write to %s/%s", database, collection))
	}
	if data.WriteByKey.Key == "" {
		return ports.WriteResult{}, domain.Upstream("writeByKey", fmt.Errorf("malformed response: missing key"))
	}
	return *data.WriteByKey, nil
}

func (c *GraphQLClient) do(ctx context.Context, op operation, variables map[string]any, out any) error {
	body, err := json.Marshal(graphql.RawParams{
		Query:         op.document,
		OperationName: op.name,
		Variables:     variables,
	})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(c.config.SecretHeader, c.config.Secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call document store: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error().
			Str("operation", op.name).
			Int("status", resp.StatusCode).
			Str("body", string(bodyBytes)).
			Msg("Document store returned non-OK status")
		return fmt.Errorf("document store status %d", resp.StatusCode)
	}

	var gqlResp graphql.Response
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		c.logger.Error().
			Str("operation", op.name).
			Str("errors", gqlResp.Errors.Error()).
			Msg("Document store returned GraphQL errors")
		return fmt.Errorf("graphql errors: %w", gqlResp.Errors)
	}
	if len(gqlResp.Data) == 0 || string(gqlResp.Data) == "null" {
		return fmt.Errorf("malformed response: no data")
	}
	if err := json.Unmarshal(gqlResp.Data, out); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	return nil
}
