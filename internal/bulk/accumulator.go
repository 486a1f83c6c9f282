package bulk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/tracing"
)

// Sink delivers batches. An error matching errors.ErrDelivery is reported
// as a warning and loading continues; any other error stops the load.
type Sink interface {
	Name() string
	Flush(ctx context.Context, batch *Batch) error
}

// Options configures an Accumulator.
type Options struct {
	// MaxDocs is the number of documents that triggers a flush.
	MaxDocs int
	// Header is the action line written before every document; nil
	// writes documents only.
	Header  []byte
	Source  string
	Timeout time.Duration
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Stats counts what an Accumulator delivered.
type Stats struct {
	Documents     int
	Batches       int
	FailedBatches int
}

// Accumulator buffers documents for one input and flushes them to a sink
// in the order they were appended. It is not safe for concurrent use.
type Accumulator struct {
	sink   Sink
	opts   Options
	index  string
	buf    bytes.Buffer
	spans  []span
	stats  Stats
	logger *slog.Logger
}

func NewAccumulator(sink Sink, opts Options) *Accumulator {
	if opts.MaxDocs <= 0 {
		opts.MaxDocs = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "bulk")
	}
	return &Accumulator{
		sink:   sink,
		opts:   opts,
		spans:  make([]span, 0, min(opts.MaxDocs, 4096)),
		logger: logger,
	}
}

// SetIndex sets the destination of subsequent batches.
func (a *Accumulator) SetIndex(index string) {
	a.index = index
}

// Append adds a document and flushes when the batch is full.
func (a *Accumulator) Append(ctx context.Context, doc any) error {
	line, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	return a.AppendLine(ctx, line)
}

// AppendLine adds an already encoded document.
func (a *Accumulator) AppendLine(ctx context.Context, line []byte) error {
	s := span{start: a.buf.Len()}
	if a.opts.Header != nil {
		a.buf.Write(a.opts.Header)
		a.buf.WriteByte('\n')
	}
	s.doc = a.buf.Len()
	a.buf.Write(line)
	a.buf.WriteByte('\n')
	s.end = a.buf.Len()
	a.spans = append(a.spans, s)

	if len(a.spans) >= a.opts.MaxDocs {
		return a.Flush(ctx)
	}
	return nil
}

// Stats returns the delivery counts so far.
func (a *Accumulator) Stats() Stats { return a.stats }

// Flush delivers buffered documents, if any. Delivery failures are logged
// with the index, source and response, and the batch is discarded.
func (a *Accumulator) Flush(ctx context.Context) error {
	if len(a.spans) == 0 {
		return nil
	}
	batch := &Batch{
		Index:  a.index,
		Source: a.opts.Source,
		Body:   bytes.Clone(a.buf.Bytes()),
		spans:  a.spans,
	}
	a.buf.Reset()
	a.spans = make([]span, 0, cap(batch.spans))

	ctx, span := tracing.StartChildSpan(ctx, "flush")
	span.SetAttr("sink", a.sink.Name())
	span.SetAttr("documents", batch.Len())
	start := time.Now()
	err := resilience.WithTimeout(ctx, a.opts.Timeout, a.sink.Name()+" flush", func(ctx context.Context) error {
		return a.sink.Flush(ctx, batch)
	})
	span.End(err)
	a.observe(batch, time.Since(start), err)

	a.stats.Batches++
	if err == nil {
		a.stats.Documents += batch.Len()
		return nil
	}
	a.stats.FailedBatches++
	if errors.Is(err, apperrors.ErrDelivery) || errors.Is(err, context.DeadlineExceeded) {
		a.logger.Warn("bulk delivery failed",
			"index", batch.Index,
			"source", batch.Source,
			"documents", batch.Len(),
			"error", err,
		)
		return nil
	}
	return fmt.Errorf("flushing %d documents to %s: %w", batch.Len(), a.sink.Name(), err)
}

func (a *Accumulator) observe(batch *Batch, elapsed time.Duration, err error) {
	m := a.opts.Metrics
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "failed"
	}
	m.BatchesFlushed.WithLabelValues(a.sink.Name(), status).Inc()
	m.BulkLatency.WithLabelValues(a.sink.Name()).Observe(elapsed.Seconds())
	m.BulkBytes.Add(float64(len(batch.Body)))
	if err == nil {
		m.DocsEmitted.WithLabelValues(batch.Index).Add(float64(batch.Len()))
	}
}
