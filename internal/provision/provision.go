// Package provision prepares the destination before the first batch of an
// input is delivered: index mappings, the enrichment pipeline, and for data
// streams a rollover policy plus index template. Each step runs at most once
// per input; calls are idempotent overwrites, checked and retried, and a
// step that still fails is logged without stopping the load.
package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/zeek/schema"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/elastic"
	apperrors "github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/tracing"
)

// Step kinds, used in logs and metrics.
const (
	KindSchema   = "schema"
	KindPipeline = "pipeline"
	KindPolicy   = "policy"
	KindTemplate = "template"
)

// templatePriority outranks the built-in logs-*-* template.
const templatePriority = 500

// State records which steps have run for one input.
type State struct {
	SchemaSent     bool
	PipelineSent   bool
	DatastreamSent bool
}

// API is the subset of *elastic.Client used for provisioning.
type API interface {
	CreateIndex(ctx context.Context, index string, body []byte) (*elastic.Response, error)
	PutMapping(ctx context.Context, index string, body []byte) (*elastic.Response, error)
	PutPipeline(ctx context.Context, name string, body []byte) (*elastic.Response, error)
	PutLifecycle(ctx context.Context, name string, body []byte) (*elastic.Response, error)
	PutIndexTemplate(ctx context.Context, name string, body []byte) (*elastic.Response, error)
}

// Options configures the Orchestrator.
type Options struct {
	// Pipeline is the enrichment pipeline name; empty disables it.
	Pipeline     string
	SplitFields  []string
	SetSeparator string
	DataStream   bool
	MaxShardGB   int
	Retry        resilience.RetryConfig
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

type Orchestrator struct {
	api    API
	opts   Options
	logger *slog.Logger
}

func New(api API, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "provision")
	}
	if opts.SetSeparator == "" {
		opts.SetSeparator = ","
	}
	return &Orchestrator{api: api, opts: opts, logger: logger}
}

// Provision runs the steps that state has not recorded yet. A step is
// marked as sent once attempted, whatever its outcome.
func (o *Orchestrator) Provision(ctx context.Context, state *State, index string, s *schema.Schema) {
	if !state.SchemaSent {
		state.SchemaSent = true
		if !o.opts.DataStream {
			o.run(ctx, KindSchema, index, func(ctx context.Context) error { return o.sendSchema(ctx, index, s) })
		}
	}
	if !state.PipelineSent && o.opts.Pipeline != "" {
		state.PipelineSent = true
		o.run(ctx, KindPipeline, o.opts.Pipeline, func(ctx context.Context) error {
			body, err := PipelineBody(o.opts.SplitFields, o.opts.SetSeparator)
			if err != nil {
				return resilience.Permanent(err)
			}
			return check(o.api.PutPipeline(ctx, o.opts.Pipeline, body))
		})
	}
	if !state.DatastreamSent && o.opts.DataStream {
		state.DatastreamSent = true
		policy := PolicyName(index)
		o.run(ctx, KindPolicy, policy, func(ctx context.Context) error {
			return check(o.api.PutLifecycle(ctx, policy, PolicyBody(o.opts.MaxShardGB)))
		})
		o.run(ctx, KindTemplate, index, func(ctx context.Context) error {
			body, err := TemplateBody(index, policy, s)
			if err != nil {
				return resilience.Permanent(err)
			}
			return check(o.api.PutIndexTemplate(ctx, index, body))
		})
	}
}

// sendSchema creates the index with its mappings, or overwrites the
// mappings when the index already exists.
func (o *Orchestrator) sendSchema(ctx context.Context, index string, s *schema.Schema) error {
	body, err := s.IndexBody()
	if err != nil {
		return resilience.Permanent(err)
	}
	res, err := o.api.CreateIndex(ctx, index, body)
	if err != nil {
		return err
	}
	if !res.IsError() {
		return nil
	}
	if res.StatusCode != http.StatusBadRequest || !bytes.Contains(res.Body, []byte("resource_already_exists_exception")) {
		return classify(res)
	}
	mapping, err := s.MappingBody()
	if err != nil {
		return resilience.Permanent(err)
	}
	return check(o.api.PutMapping(ctx, index, mapping))
}

func (o *Orchestrator) run(ctx context.Context, kind, name string, fn func(ctx context.Context) error) {
	ctx, span := tracing.StartChildSpan(ctx, "provision")
	span.SetAttr("kind", kind)
	span.SetAttr("name", name)
	err := resilience.Retry(ctx, "provision "+kind, o.opts.Retry, func() error { return fn(ctx) })
	span.End(err)
	status := "ok"
	if err != nil {
		status = "failed"
		o.logger.Warn("provisioning failed", "kind", kind, "name", name, "error", err)
	} else {
		o.logger.Debug("provisioned", "kind", kind, "name", name)
	}
	if o.opts.Metrics != nil {
		o.opts.Metrics.ProvisionCalls.WithLabelValues(kind, status).Inc()
	}
}

func check(res *elastic.Response, err error) error {
	if err != nil {
		return err
	}
	if res.IsError() {
		return classify(res)
	}
	return nil
}

// classify marks client errors other than throttling as permanent.
func classify(res *elastic.Response) error {
	err := fmt.Errorf("%w: %s", apperrors.ErrProvision, res)
	if res.StatusCode < 500 && res.StatusCode != http.StatusTooManyRequests {
		return resilience.Permanent(err)
	}
	return err
}

// PolicyName is the rollover policy bound to a data stream.
func PolicyName(index string) string {
	return index + "-policy"
}

// PipelineBody builds the enrichment pipeline: expand dotted names, look up
// both connection endpoints, and split the listed fields into arrays.
func PipelineBody(splitFields []string, separator string) ([]byte, error) {
	processors := []map[string]any{
		{"dot_expander": map[string]any{"field": "*"}},
		{"geoip": map[string]any{"field": "id.orig_h", "target_field": "geoip_orig", "ignore_missing": true}},
		{"geoip": map[string]any{"field": "id.resp_h", "target_field": "geoip_resp", "ignore_missing": true}},
	}
	for _, f := range splitFields {
		processors = append(processors, map[string]any{
			"split": map[string]any{"field": f, "separator": regexp.QuoteMeta(separator), "ignore_missing": true},
		})
	}
	return json.Marshal(map[string]any{
		"description": "Zeek log enrichment",
		"processors":  processors,
	})
}

// PolicyBody rolls the hot phase over once a primary shard reaches maxGB.
func PolicyBody(maxGB int) []byte {
	return []byte(fmt.Sprintf(`{"policy":{"phases":{"hot":{"actions":{"rollover":{"max_primary_shard_size":"%dgb"}}}}}}`, maxGB))
}

// TemplateBody binds the mappings and policy to every index matching the
// data stream name.
func TemplateBody(index, policy string, s *schema.Schema) ([]byte, error) {
	return json.Marshal(map[string]any{
		"index_patterns": []string{index + "*"},
		"data_stream":    map[string]any{},
		"priority":       templatePriority,
		"template": map[string]any{
			"settings": map[string]any{"index.lifecycle.name": policy},
			"mappings": s,
		},
	})
}
