package loader

import (
	"context"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/bulk"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/provision"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/zeek/predicate"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/zeek/record"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/zeek/schema"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/metrics"
)

// Options are the per-run settings every file is loaded with.
type Options struct {
	JSON           bool
	Index          string
	SystemName     string
	DataStream     bool
	BatchSize      int
	HeaderLines    int
	TimeMode       string
	OutputFields   []string
	KeywordFields  []string
	Pipeline       string
	BulkHeaders    bool
	Geo            bool
	RequestTimeout time.Duration
}

// OptionsFromConfig derives loader options from validated configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		JSON:           cfg.Processing.JSON,
		Index:          cfg.Elasticsearch.Index,
		SystemName:     cfg.Processing.SystemName,
		DataStream:     cfg.DataStream.Enabled,
		BatchSize:      cfg.Processing.BatchSize,
		HeaderLines:    cfg.Processing.HeaderLines,
		TimeMode:       cfg.Processing.TimeMode,
		OutputFields:   cfg.Processing.OutputFields,
		KeywordFields:  cfg.Processing.KeywordFields,
		BulkHeaders:    cfg.Output.BulkHeaders,
		Geo:            cfg.Enrichment.Pipeline || cfg.Enrichment.GeoIPDatabase != "",
		RequestTimeout: cfg.Elasticsearch.RequestTimeout,
	}
	if cfg.Enrichment.Pipeline {
		opts.Pipeline = cfg.Enrichment.PipelineName
	}
	return opts
}

// Provisioner prepares the destination of an index.
type Provisioner interface {
	Provision(ctx context.Context, state *provision.State, index string, s *schema.Schema)
}

// Deps are the collaborators shared by every loader of a run.
type Deps struct {
	Sink        bulk.Sink
	Provisioner Provisioner
	Predicate   predicate.Expr
	KeyFilter   record.KeyFilter
	KeyLoggers  []record.KeyLogger
	Enricher    record.Enricher
	Metrics     *metrics.Metrics
}

// IndexName returns the destination for a log path and date: the explicit
// index when set, logs-zeek-[system-]path for data streams, and
// zeek_[system_]path_YYYY-MM-DD otherwise.
func (o Options) IndexName(logPath string, date time.Time) string {
	if o.Index != "" {
		return o.Index
	}
	if o.DataStream {
		parts := []string{"logs", "zeek"}
		if o.SystemName != "" {
			parts = append(parts, o.SystemName)
		}
		return strings.ToLower(strings.Join(append(parts, logPath), "-"))
	}
	parts := []string{"zeek"}
	if o.SystemName != "" {
		parts = append(parts, o.SystemName)
	}
	parts = append(parts, logPath, date.UTC().Format("2006-01-02"))
	return strings.ToLower(strings.Join(parts, "_"))
}

func (o Options) schemaOptions() schema.Options {
	opts := schema.Options{Keywords: o.KeywordFields, Geo: o.Geo}
	if o.TimeMode == config.TimeOriginal {
		opts.DateFormat = "epoch_second"
	}
	return opts
}

func (o Options) actionHeader() []byte {
	if !o.BulkHeaders {
		return nil
	}
	return bulk.ActionHeader(o.Pipeline, o.DataStream)
}
