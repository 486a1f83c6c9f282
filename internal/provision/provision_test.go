package provision

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/zeek"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/zeek/schema"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/elastic"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/resilience"
)

type call struct {
	method, path, body string
}

// fakeCluster answers provisioning requests. responses maps "METHOD path"
// to a status and body; anything else gets 200.
type fakeCluster struct {
	mu        sync.Mutex
	calls     []call
	responses map[string][]response
}

type response struct {
	status int
	body   string
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	key := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.calls = append(f.calls, call{r.Method, r.URL.Path, string(b)})
	res := response{http.StatusOK, `{"acknowledged":true}`}
	if queue := f.responses[key]; len(queue) > 0 {
		res = queue[0]
		if len(queue) > 1 {
			f.responses[key] = queue[1:]
		}
	}
	f.mu.Unlock()
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.status)
	io.WriteString(w, res.body)
}

func (f *fakeCluster) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.method + " " + c.path
	}
	return out
}

func newOrchestrator(t *testing.T, f *fakeCluster, opts Options) *Orchestrator {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	client, err := elastic.NewClient(config.ElasticsearchConfig{URL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	opts.Retry = resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	if opts.Logger == nil {
		opts.Logger = logger.New(io.Discard, "info", "text", false)
	}
	return New(client, opts)
}

var testSchema = schema.Build([]zeek.FieldSpec{{Name: "ts", Type: "time"}, {Name: "id.orig_h", Type: "addr"}}, schema.Options{Geo: true})

func TestProvisionOnce(t *testing.T) {
	f := &fakeCluster{}
	o := newOrchestrator(t, f, Options{Pipeline: "zeek_enrich", SplitFields: []string{"tunnel_parents"}})
	var state State

	o.Provision(context.Background(), &state, "zeek_conn_2023-11-14", testSchema)
	o.Provision(context.Background(), &state, "zeek_conn_2023-11-14", testSchema)

	want := []string{"PUT /zeek_conn_2023-11-14", "PUT /_ingest/pipeline/zeek_enrich"}
	if got := f.paths(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if !state.SchemaSent || !state.PipelineSent || state.DatastreamSent {
		t.Errorf("state = %+v", state)
	}
	if !strings.Contains(f.calls[0].body, `"mappings":{"properties"`) {
		t.Errorf("index body = %s", f.calls[0].body)
	}
}

func TestExistingIndexGetsMapping(t *testing.T) {
	f := &fakeCluster{responses: map[string][]response{
		"PUT /zeek_dns": {{http.StatusBadRequest, `{"error":{"type":"resource_already_exists_exception"},"status":400}`}},
	}}
	o := newOrchestrator(t, f, Options{})
	o.Provision(context.Background(), &State{}, "zeek_dns", testSchema)

	want := "PUT /zeek_dns,PUT /zeek_dns/_mapping"
	if got := strings.Join(f.paths(), ","); got != want {
		t.Errorf("calls = %s, want %s", got, want)
	}
	if !strings.HasPrefix(f.calls[1].body, `{"properties":`) {
		t.Errorf("mapping body = %s", f.calls[1].body)
	}
}

func TestDataStream(t *testing.T) {
	f := &fakeCluster{}
	o := newOrchestrator(t, f, Options{DataStream: true, MaxShardGB: 50})
	var state State
	o.Provision(context.Background(), &state, "logs-zeek-conn", testSchema)

	want := "PUT /_ilm/policy/logs-zeek-conn-policy,PUT /_index_template/logs-zeek-conn"
	if got := strings.Join(f.paths(), ","); got != want {
		t.Errorf("calls = %s, want %s", got, want)
	}
	if !state.SchemaSent || !state.DatastreamSent {
		t.Errorf("state = %+v", state)
	}
	if !strings.Contains(f.calls[0].body, `"max_primary_shard_size":"50gb"`) {
		t.Errorf("policy body = %s", f.calls[0].body)
	}

	var tmpl struct {
		IndexPatterns []string       `json:"index_patterns"`
		DataStream    map[string]any `json:"data_stream"`
		Template      struct {
			Settings map[string]string `json:"settings"`
			Mappings schema.Schema     `json:"mappings"`
		} `json:"template"`
	}
	if err := json.Unmarshal([]byte(f.calls[1].body), &tmpl); err != nil {
		t.Fatalf("template body: %v", err)
	}
	if len(tmpl.IndexPatterns) != 1 || tmpl.IndexPatterns[0] != "logs-zeek-conn*" || tmpl.DataStream == nil {
		t.Errorf("template = %+v", tmpl)
	}
	if tmpl.Template.Settings["index.lifecycle.name"] != "logs-zeek-conn-policy" {
		t.Errorf("settings = %v", tmpl.Template.Settings)
	}
	if tmpl.Template.Mappings.Properties["ts"].Type != schema.TypeDate {
		t.Errorf("mappings = %+v", tmpl.Template.Mappings)
	}
}

func TestFailuresAreRetriedThenLogged(t *testing.T) {
	var logs strings.Builder
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	f := &fakeCluster{responses: map[string][]response{
		"PUT /_ingest/pipeline/zeek_enrich": {{http.StatusServiceUnavailable, `{}`}, {http.StatusOK, `{"acknowledged":true}`}},
		"PUT /zeek_http":                    {{http.StatusForbidden, `{"error":"forbidden"}`}},
	}}
	o := newOrchestrator(t, f, Options{
		Pipeline: "zeek_enrich",
		Metrics:  m,
		Logger:   logger.New(&logs, "info", "text", false),
	})
	var state State
	o.Provision(context.Background(), &state, "zeek_http", testSchema)

	want := "PUT /zeek_http,PUT /_ingest/pipeline/zeek_enrich,PUT /_ingest/pipeline/zeek_enrich"
	if got := strings.Join(f.paths(), ","); got != want {
		t.Errorf("calls = %s, want %s", got, want)
	}
	if !strings.Contains(logs.String(), "provisioning failed") || !strings.Contains(logs.String(), "kind=schema") {
		t.Errorf("missing warning: %s", logs.String())
	}
	if got := testutil.ToFloat64(m.ProvisionCalls.WithLabelValues(KindPipeline, "ok")); got != 1 {
		t.Errorf("pipeline ok = %v", got)
	}
	if got := testutil.ToFloat64(m.ProvisionCalls.WithLabelValues(KindSchema, "failed")); got != 1 {
		t.Errorf("schema failed = %v", got)
	}
}

func TestPipelineBody(t *testing.T) {
	body, err := PipelineBody([]string{"tunnel_parents"}, "|")
	if err != nil {
		t.Fatal(err)
	}
	var p struct {
		Processors []map[string]map[string]any `json:"processors"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatal(err)
	}
	if len(p.Processors) != 4 {
		t.Fatalf("processors = %v", p.Processors)
	}
	if p.Processors[1]["geoip"]["target_field"] != "geoip_orig" || p.Processors[2]["geoip"]["field"] != "id.resp_h" {
		t.Errorf("geoip processors = %v", p.Processors[1:3])
	}
	if split := p.Processors[3]["split"]; split["field"] != "tunnel_parents" || split["separator"] != `\|` {
		t.Errorf("split = %v", split)
	}
}
