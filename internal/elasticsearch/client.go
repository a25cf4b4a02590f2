// Package elasticsearch wraps the search cluster for the query path and the
// job layer: searches and counts return decoded results, writes are
// single-document or bulk NDJSON.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/datacite/lupo-sub003/infrastructure/logger"
	"github.com/datacite/lupo-sub003/infrastructure/metrics"
	"github.com/datacite/lupo-sub003/internal/domain"
)

const maxErrorBody = 1024

// Client executes requests against one cluster.
type Client struct {
	esClient     *es.Client
	metrics      *metrics.Metrics
	log          logger.Logger
	queryTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithMetrics records call durations and failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger used for backend failures.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithQueryTimeout bounds every search and count call.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *Client) { c.queryTimeout = d }
}

// NewClient wraps an established cluster connection.
func NewClient(esClient *es.Client, opts ...Option) *Client {
	c := &Client{esClient: esClient, log: logger.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping verifies the cluster answers.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.esClient.Ping(c.esClient.Ping.WithContext(ctx))
	if err != nil {
		return classify("ping", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		return responseError("ping", res)
	}
	return nil
}

// Search runs body against index and decodes hits, total and aggregations.
func (c *Client) Search(ctx context.Context, index string, body map[string]any) (*SearchResult, error) {
	ctx, cancel := c.withQueryTimeout(ctx)
	defer cancel()

	start := time.Now()
	result, err := c.search(ctx, index, body)
	c.metrics.ObserveSearch(index, "search", time.Since(start), err)
	if err != nil {
		c.log.Warn("Search failed", logger.String("index", index), logger.Error(err))
	}
	return result, err
}

func (c *Client) search(ctx context.Context, index string, body map[string]any) (*SearchResult, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	res, err := c.esClient.Search(
		c.esClient.Search.WithContext(ctx),
		c.esClient.Search.WithIndex(index),
		c.esClient.Search.WithBody(payload),
	)
	if err != nil {
		return nil, classify("search", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		return nil, responseError("search", res)
	}

	var result SearchResult
	if err = json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, domain.NewBackendError("search", fmt.Errorf("decode response: %w", err))
	}
	return &result, nil
}

// Count returns the number of documents in index matching body's query.
func (c *Client) Count(ctx context.Context, index string, body map[string]any) (int64, error) {
	ctx, cancel := c.withQueryTimeout(ctx)
	defer cancel()

	start := time.Now()
	n, err := c.count(ctx, index, body)
	c.metrics.ObserveSearch(index, "count", time.Since(start), err)
	return n, err
}

func (c *Client) count(ctx context.Context, index string, body map[string]any) (int64, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return 0, err
	}

	res, err := c.esClient.Count(
		c.esClient.Count.WithContext(ctx),
		c.esClient.Count.WithIndex(index),
		c.esClient.Count.WithBody(payload),
	)
	if err != nil {
		return 0, classify("count", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		return 0, responseError("count", res)
	}

	var out struct {
		Count int64 `json:"count"`
	}
	if err = json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, domain.NewBackendError("count", fmt.Errorf("decode response: %w", err))
	}
	return out.Count, nil
}

// Index replaces the document id in index with doc.
func (c *Client) Index(ctx context.Context, index, id string, doc any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", id, err)
	}

	res, err := c.esClient.Index(
		index,
		bytes.NewReader(payload),
		c.esClient.Index.WithContext(ctx),
		c.esClient.Index.WithDocumentID(id),
	)
	if err != nil {
		return classify("index", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		return responseError("index", res)
	}
	return nil
}

// Delete removes document id from index. A missing document is not an error.
func (c *Client) Delete(ctx context.Context, index, id string) error {
	res, err := c.esClient.Delete(index, id, c.esClient.Delete.WithContext(ctx))
	if err != nil {
		return classify("delete", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return responseError("delete", res)
	}
	return nil
}

// BulkDocument is one index action of a bulk request.
type BulkDocument struct {
	ID     string
	Source any
}

// BulkResult summarizes a bulk request.
type BulkResult struct {
	Indexed int
	Failed  []string
}

// Bulk indexes docs into index in one request. Per-item failures are
// reported in the result, not as an error.
func (c *Client) Bulk(ctx context.Context, index string, docs []BulkDocument) (BulkResult, error) {
	if len(docs) == 0 {
		return BulkResult{}, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		action := map[string]any{"index": map[string]any{"_index": index, "_id": doc.ID}}
		if err := enc.Encode(action); err != nil {
			return BulkResult{}, fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(doc.Source); err != nil {
			return BulkResult{}, fmt.Errorf("encode bulk document %s: %w", doc.ID, err)
		}
	}

	start := time.Now()
	res, err := c.esClient.Bulk(
		&buf,
		c.esClient.Bulk.WithContext(ctx),
		c.esClient.Bulk.WithIndex(index),
	)
	if err != nil {
		err = classify("bulk", err)
		c.metrics.ObserveSearch(index, "bulk", time.Since(start), err)
		return BulkResult{}, err
	}
	defer func() {
		_ = res.Body.Close()
	}()

	if res.IsError() {
		err = responseError("bulk", res)
		c.metrics.ObserveSearch(index, "bulk", time.Since(start), err)
		return BulkResult{}, err
	}

	var out bulkResponse
	if err = json.NewDecoder(res.Body).Decode(&out); err != nil {
		return BulkResult{}, domain.NewBackendError("bulk", fmt.Errorf("decode response: %w", err))
	}
	c.metrics.ObserveSearch(index, "bulk", time.Since(start), nil)

	var result BulkResult
	for _, item := range out.Items {
		for _, status := range item {
			if status.Status >= http.StatusBadRequest {
				result.Failed = append(result.Failed, status.ID)
				continue
			}
			result.Indexed++
		}
	}
	if len(result.Failed) > 0 {
		c.log.Warn("Bulk request had failed items",
			logger.String("index", index),
			logger.Int("failed", len(result.Failed)),
		)
	}
	return result, nil
}

type bulkResponse struct {
	Errors bool                        `json:"errors"`
	Items  []map[string]bulkItemStatus `json:"items"`
}

type bulkItemStatus struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
}

func (c *Client) withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.queryTimeout)
}

func encodeBody(body map[string]any) (io.Reader, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	return bytes.NewReader(payload), nil
}

// classify maps a transport failure onto the domain taxonomy.
func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewBackendError(op, fmt.Errorf("%w: %w", domain.ErrQueryTimeout, err))
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewBackendError(op, err)
	}
	return domain.NewBackendError(op, fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err))
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	err := fmt.Errorf("%s returned error [%d]: %s", op, res.StatusCode, string(body))
	switch {
	case res.StatusCode == http.StatusNotFound:
		err = fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case res.StatusCode == http.StatusRequestTimeout || res.StatusCode == http.StatusGatewayTimeout:
		err = fmt.Errorf("%w: %w", domain.ErrQueryTimeout, err)
	case res.StatusCode >= http.StatusInternalServerError || res.StatusCode == http.StatusTooManyRequests:
		err = fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	return domain.NewBackendError(op, err)
}
