// Package metrics defines the Prometheus collectors used by the loader and
// exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for a loader run.
type Metrics struct {
	RecordsRead     *prometheus.CounterVec
	RecordsDropped  *prometheus.CounterVec
	DocsEmitted     *prometheus.CounterVec
	BatchesFlushed  *prometheus.CounterVec
	BulkLatency     *prometheus.HistogramVec
	BulkBytes       prometheus.Counter
	ProvisionCalls  *prometheus.CounterVec
	FilesProcessed  *prometheus.CounterVec
	KeysLogged      *prometheus.CounterVec
	LoadersInFlight prometheus.Gauge
}

// New creates all metrics and registers them with the default registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsRead: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zeek2es_records_read_total",
				Help: "Input records read, by log path.",
			},
			[]string{"log_path"},
		),
		RecordsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zeek2es_records_dropped_total",
				Help: "Input records not emitted, by reason (empty, no_ts, key_filter, predicate, coerce, malformed).",
			},
			[]string{"reason"},
		),
		DocsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zeek2es_documents_emitted_total",
				Help: "Documents appended to a bulk batch, by index.",
			},
			[]string{"index"},
		),
		BatchesFlushed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zeek2es_batches_flushed_total",
				Help: "Bulk batches handed to the sink, by sink and status.",
			},
			[]string{"sink", "status"},
		),
		BulkLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zeek2es_bulk_latency_seconds",
				Help:    "Sink flush latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"sink"},
		),
		BulkBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "zeek2es_bulk_bytes_total",
				Help: "Bytes of bulk body handed to sinks.",
			},
		),
		ProvisionCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zeek2es_provision_calls_total",
				Help: "Provisioning calls by kind (schema, pipeline, policy, template) and status.",
			},
			[]string{"kind", "status"},
		),
		FilesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zeek2es_files_processed_total",
				Help: "Input files processed, by status.",
			},
			[]string{"status"},
		),
		KeysLogged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zeek2es_keys_logged_total",
				Help: "Values written to key logs, by field.",
			},
			[]string{"field"},
		),
		LoadersInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "zeek2es_loaders_in_flight",
				Help: "Number of input files currently being loaded.",
			},
		),
	}

	reg.MustRegister(
		m.RecordsRead,
		m.RecordsDropped,
		m.DocsEmitted,
		m.BatchesFlushed,
		m.BulkLatency,
		m.BulkBytes,
		m.ProvisionCalls,
		m.FilesProcessed,
		m.KeysLogged,
		m.LoadersInFlight,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
