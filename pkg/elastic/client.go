// Package elastic wraps the go-elasticsearch v8 client with the handful of
// calls the loader needs: bulk writes and idempotent provisioning PUTs.
// Responses are read fully and returned as status code plus body so callers
// can log them without holding connections open.
package elastic

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/config"
)

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Body       []byte
}

// IsError reports a status code outside 2xx.
func (r *Response) IsError() bool {
	return r.StatusCode < 200 || r.StatusCode > 299
}

func (r *Response) String() string {
	return fmt.Sprintf("[%d] %s", r.StatusCode, bytes.TrimSpace(r.Body))
}

// Client issues requests against one Elasticsearch cluster.
type Client struct {
	es *elasticsearch.Client
}

// NewClient builds a client with basic auth when credentials are configured.
// Transport-level retries are disabled: failed bulk requests are reported,
// never replayed.
func NewClient(cfg config.ElasticsearchConfig) (*Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{}
		}
		transport.TLSClientConfig.InsecureSkipVerify = true
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{cfg.URL},
		Username:     cfg.Username,
		Password:     cfg.Password,
		Transport:    transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}
	return &Client{es: es}, nil
}

// Bulk posts an NDJSON bulk body to /<index>/_bulk.
func (c *Client) Bulk(ctx context.Context, index string, body []byte) (*Response, error) {
	return read(c.es.Bulk(
		bytes.NewReader(body),
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithIndex(index),
	))
}

// CreateIndex creates index with the given settings/mappings body.
func (c *Client) CreateIndex(ctx context.Context, index string, body []byte) (*Response, error) {
	return read(c.es.Indices.Create(
		index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
	))
}

// PutMapping updates the mappings of an existing index.
func (c *Client) PutMapping(ctx context.Context, index string, body []byte) (*Response, error) {
	return read(c.es.Indices.PutMapping(
		[]string{index},
		bytes.NewReader(body),
		c.es.Indices.PutMapping.WithContext(ctx),
	))
}

// PutPipeline registers (or replaces) an ingest pipeline.
func (c *Client) PutPipeline(ctx context.Context, name string, body []byte) (*Response, error) {
	return read(c.es.Ingest.PutPipeline(
		name,
		bytes.NewReader(body),
		c.es.Ingest.PutPipeline.WithContext(ctx),
	))
}

// PutLifecycle registers (or replaces) an ILM policy.
func (c *Client) PutLifecycle(ctx context.Context, name string, body []byte) (*Response, error) {
	return read(c.es.ILM.PutLifecycle(
		name,
		c.es.ILM.PutLifecycle.WithContext(ctx),
		c.es.ILM.PutLifecycle.WithBody(bytes.NewReader(body)),
	))
}

// PutIndexTemplate registers (or replaces) a composable index template.
func (c *Client) PutIndexTemplate(ctx context.Context, name string, body []byte) (*Response, error) {
	return read(c.es.Indices.PutIndexTemplate(
		name,
		bytes.NewReader(body),
		c.es.Indices.PutIndexTemplate.WithContext(ctx),
	))
}

// Ping checks that the cluster answers.
func (c *Client) Ping(ctx context.Context) (*Response, error) {
	return read(c.es.Ping(c.es.Ping.WithContext(ctx)))
}

func read(res *esapi.Response, err error) (*Response, error) {
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return &Response{StatusCode: res.StatusCode, Body: body}, nil
}

// BulkResult is the subset of a bulk response used to detect per-item
// failures. Items are keyed by action name ("index", "create").
type BulkResult struct {
	Took   int                         `json:"took"`
	Errors bool                        `json:"errors"`
	Items  []map[string]BulkItemResult `json:"items"`
}

// BulkItemResult is one action's outcome.
type BulkItemResult struct {
	Index  string          `json:"_index"`
	Status int             `json:"status"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// ParseBulkResult decodes a bulk response body.
func ParseBulkResult(body []byte) (*BulkResult, error) {
	var result BulkResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding bulk response: %w", err)
	}
	return &result, nil
}

// Failed returns the number of items that carry an error, and the first
// error for logging.
func (r *BulkResult) Failed() (int, json.RawMessage) {
	var (
		count int
		first json.RawMessage
	)
	for _, item := range r.Items {
		for _, res := range item {
			if len(res.Error) == 0 {
				continue
			}
			count++
			if first == nil {
				first = res.Error
			}
		}
	}
	return count, first
}
