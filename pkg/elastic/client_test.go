package elastic

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/config"
)

type capturedRequest struct {
	Method string
	Path   string
	Body   string
	User   string
}

// newFakeCluster starts an httptest server that answers like Elasticsearch
// and records every request.
func newFakeCluster(t *testing.T, status int, respBody string) (*Client, *[]capturedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		user, _, _ := r.BasicAuth()
		mu.Lock()
		reqs = append(reqs, capturedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body), User: user})
		mu.Unlock()
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(config.ElasticsearchConfig{URL: srv.URL, Username: "elastic", Password: "changeme"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, &reqs
}

func TestClientRoutes(t *testing.T) {
	c, reqs := newFakeCluster(t, http.StatusOK, `{"acknowledged":true}`)
	ctx := context.Background()

	calls := []struct {
		name   string
		call   func() (*Response, error)
		method string
		path   string
	}{
		{"bulk", func() (*Response, error) { return c.Bulk(ctx, "zeek_conn_2023-11-14", []byte("{}\n{}\n")) }, http.MethodPost, "/zeek_conn_2023-11-14/_bulk"},
		{"create index", func() (*Response, error) { return c.CreateIndex(ctx, "zeek_conn", []byte(`{}`)) }, http.MethodPut, "/zeek_conn"},
		{"put mapping", func() (*Response, error) { return c.PutMapping(ctx, "zeek_conn", []byte(`{}`)) }, http.MethodPut, "/zeek_conn/_mapping"},
		{"pipeline", func() (*Response, error) { return c.PutPipeline(ctx, "zeek_enrich", []byte(`{}`)) }, http.MethodPut, "/_ingest/pipeline/zeek_enrich"},
		{"lifecycle", func() (*Response, error) { return c.PutLifecycle(ctx, "logs-zeek-conn-policy", []byte(`{}`)) }, http.MethodPut, "/_ilm/policy/logs-zeek-conn-policy"},
		{"template", func() (*Response, error) { return c.PutIndexTemplate(ctx, "logs-zeek-conn", []byte(`{}`)) }, http.MethodPut, "/_index_template/logs-zeek-conn"},
		{"ping", func() (*Response, error) { return c.Ping(ctx) }, http.MethodHead, "/"},
	}
	for i, tt := range calls {
		res, err := tt.call()
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if res.IsError() {
			t.Errorf("%s: unexpected error response %s", tt.name, res)
		}
		got := (*reqs)[i]
		if got.Method != tt.method || got.Path != tt.path {
			t.Errorf("%s: %s %s, want %s %s", tt.name, got.Method, got.Path, tt.method, tt.path)
		}
		if got.User != "elastic" {
			t.Errorf("%s: basic auth user = %q", tt.name, got.User)
		}
	}
	if (*reqs)[0].Body != "{}\n{}\n" {
		t.Errorf("bulk body = %q", (*reqs)[0].Body)
	}
}

func TestClientErrorStatusIsNotRetried(t *testing.T) {
	c, reqs := newFakeCluster(t, http.StatusServiceUnavailable, `{"error":"unavailable"}`)
	res, err := c.Bulk(context.Background(), "zeek_dns", []byte("{}\n"))
	if err != nil {
		t.Fatalf("Bulk: %v", err)
	}
	if !res.IsError() || res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 response, got %s", res)
	}
	if len(*reqs) != 1 {
		t.Errorf("requests = %d, want exactly 1", len(*reqs))
	}
}

func TestParseBulkResult(t *testing.T) {
	body := []byte(`{"took":3,"errors":true,"items":[
		{"index":{"_index":"zeek","status":201}},
		{"index":{"_index":"zeek","status":400,"error":{"type":"mapper_parsing_exception"}}},
		{"create":{"_index":"zeek","status":409,"error":{"type":"version_conflict_engine_exception"}}}
	]}`)
	res, err := ParseBulkResult(body)
	if err != nil {
		t.Fatalf("ParseBulkResult: %v", err)
	}
	n, first := res.Failed()
	if !res.Errors || n != 2 {
		t.Fatalf("errors=%v failed=%d", res.Errors, n)
	}
	if string(first) != `{"type":"mapper_parsing_exception"}` {
		t.Errorf("first error = %s", first)
	}
	if _, err := ParseBulkResult([]byte("not json")); err == nil {
		t.Error("expected decode error")
	}
}
