// Package loader drives one input file through header extraction, record
// building, provisioning and batching. Each file is processed strictly in
// order by a single goroutine; separate files may be loaded concurrently
// with one Loader.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/bulk"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/input"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/provision"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/zeek"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/zeek/coerce"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/zeek/record"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/zeek/schema"
	apperrors "github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/tracing"
)

// Stats summarizes one file.
type Stats struct {
	Source        string
	Index         string
	LogPath       string
	Read          int
	Accepted      int
	Dropped       map[string]int
	Documents     int
	Batches       int
	FailedBatches int
	Started       time.Time
	Finished      time.Time
}

// DroppedTotal sums drops over all reasons.
func (s *Stats) DroppedTotal() int {
	n := 0
	for _, v := range s.Dropped {
		n += v
	}
	return n
}

type Loader struct {
	opts Options
	deps Deps
}

func New(opts Options, deps Deps) *Loader {
	if opts.HeaderLines <= 0 {
		opts.HeaderLines = 64
	}
	return &Loader{opts: opts, deps: deps}
}

// run is the state of loading one file.
type run struct {
	*Loader
	ctx    context.Context
	src    input.LineSource
	stats  *Stats
	acc    *bulk.Accumulator
	state  provision.State
	schema *schema.Schema
	logger *slog.Logger
}

// Load processes path. Errors are fatal for the file: unreadable input,
// missing #open or #path, an underivable JSON log path, or a sink failure
// that is not a delivery warning. Whatever was buffered before a read
// error or cancellation is still flushed.
func (l *Loader) Load(ctx context.Context, path string) (*Stats, error) {
	stats := &Stats{Source: path, Dropped: make(map[string]int), Started: time.Now()}
	defer func() { stats.Finished = time.Now() }()

	if m := l.deps.Metrics; m != nil {
		m.LoadersInFlight.Inc()
		defer m.LoadersInFlight.Dec()
	}

	src, err := input.Open(path)
	if err != nil {
		return stats, err
	}
	defer src.Close()

	ctx, span := tracing.StartSpan(ctx, "load", "")
	span.SetAttr("source", path)
	r := &run{
		Loader: l,
		ctx:    ctx,
		src:    src,
		stats:  stats,
		logger: logger.FromContext(logger.WithSource(ctx, path)).With("component", "loader"),
	}
	r.acc = bulk.NewAccumulator(l.deps.Sink, bulk.Options{
		MaxDocs: l.opts.BatchSize,
		Header:  l.opts.actionHeader(),
		Source:  path,
		Timeout: l.opts.RequestTimeout,
		Metrics: l.deps.Metrics,
		Logger:  r.logger,
	})

	if l.opts.JSON {
		err = r.loadJSON()
	} else {
		err = r.loadTSV()
	}

	// Deliver the remainder even when the load was cancelled.
	if ferr := r.acc.Flush(context.WithoutCancel(ctx)); ferr != nil && err == nil {
		err = ferr
	}
	accStats := r.acc.Stats()
	stats.Documents = accStats.Documents
	stats.Batches = accStats.Batches
	stats.FailedBatches = accStats.FailedBatches

	if err == nil {
		err = ctx.Err()
	}
	r.logger.Info("load finished",
		"index", stats.Index,
		"read", stats.Read,
		"accepted", stats.Accepted,
		"dropped", stats.DroppedTotal(),
		"documents", stats.Documents,
		"batches", stats.Batches,
		"failed_batches", stats.FailedBatches,
		"duration", time.Since(stats.Started).Round(time.Millisecond),
	)
	span.SetAttr("index", stats.Index)
	span.SetAttr("documents", stats.Documents)
	span.End(err)
	span.Log(ctx, r.logger)
	return stats, err
}

func (r *run) loadTSV() error {
	var (
		headerLines []string
		pending     string
		hasPending  bool
	)
	for r.src.Next() {
		line := r.src.Line()
		if !zeek.IsComment(line) {
			pending, hasPending = line, true
			break
		}
		if len(headerLines) < r.opts.HeaderLines {
			headerLines = append(headerLines, line)
		}
	}
	if err := r.src.Err(); err != nil {
		return apperrors.Newf(apperrors.ErrInput, apperrors.ExitInput, "reading %s: %v", r.stats.Source, err)
	}

	h, err := zeek.ExtractHeader(headerLines, r.stats.Source)
	if err != nil {
		return err
	}
	r.stats.LogPath = h.Path
	r.stats.Index = r.opts.IndexName(h.Path, h.Open)
	r.acc.SetIndex(r.stats.Index)

	fields, err := h.FieldSpecs()
	if err != nil {
		r.logger.Warn("unusable field header, skipping body", "error", err)
		return nil
	}

	coercer := coerce.New(
		coerce.WithTimeMode(r.opts.TimeMode),
		coerce.WithSetSeparator(h.SetSeparator),
		coerce.WithSentinels(h.Sentinels()...),
	)
	r.schema = schema.Build(fields, r.opts.schemaOptions())
	builder := record.NewTSVBuilder(fields, h.Separator, coercer, r.recordOptions(h.Path))

	handle := func(line string) error {
		if line == "" || zeek.IsComment(line) {
			return nil
		}
		r.stats.Read++
		out, err := builder.BuildLine(r.ctx, line)
		return r.handle(out, err)
	}

	if hasPending {
		if err := handle(pending); err != nil {
			return err
		}
	}
	for r.ctx.Err() == nil && r.src.Next() {
		if err := handle(r.src.Line()); err != nil {
			return err
		}
	}
	if err := r.src.Err(); err != nil {
		return apperrors.Newf(apperrors.ErrInput, apperrors.ExitInput, "reading %s: %v", r.stats.Source, err)
	}
	return nil
}

func (r *run) loadJSON() error {
	logPath, err := zeek.DerivePathLabel(r.stats.Source)
	if err != nil {
		return err
	}
	r.stats.LogPath = logPath
	coercer := coerce.New(coerce.WithTimeMode(r.opts.TimeMode))
	r.schema = schema.BuildMinimal(r.opts.schemaOptions())
	builder := record.NewJSONBuilder(coercer, r.recordOptions(logPath))

	for r.ctx.Err() == nil && r.src.Next() {
		line := r.src.Line()
		if line == "" {
			continue
		}
		r.stats.Read++
		out, err := builder.Build(r.ctx, []byte(line))
		if r.stats.Index == "" && !out.TS.IsZero() {
			// The first timestamped record fixes the index for the file.
			r.stats.Index = r.opts.IndexName(logPath, out.TS)
			r.acc.SetIndex(r.stats.Index)
			r.provision()
		}
		if err := r.handle(out, err); err != nil {
			return err
		}
	}
	if err := r.src.Err(); err != nil {
		return apperrors.Newf(apperrors.ErrInput, apperrors.ExitInput, "reading %s: %v", r.stats.Source, err)
	}
	return nil
}

func (r *run) recordOptions(logPath string) record.Options {
	return record.Options{
		OutputFields: r.opts.OutputFields,
		Filename:     r.stats.Source,
		LogPath:      logPath,
		SystemName:   r.opts.SystemName,
		Predicate:    r.deps.Predicate,
		KeyFilter:    r.deps.KeyFilter,
		KeyLoggers:   r.deps.KeyLoggers,
		Enricher:     r.deps.Enricher,
		Logger:       r.logger,
	}
}

// handle counts a built record and appends it when accepted.
func (r *run) handle(out record.Outcome, buildErr error) error {
	if m := r.deps.Metrics; m != nil {
		m.RecordsRead.WithLabelValues(r.stats.LogPath).Inc()
	}
	if buildErr != nil {
		r.logger.Debug("record dropped", "line", r.stats.Read, "error", buildErr)
	}
	if out.Result != record.Accepted {
		r.drop(out.Result)
		return nil
	}
	r.stats.Accepted++
	r.provision()
	if err := r.acc.Append(r.ctx, out.Doc); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("loading %s: %w", r.stats.Source, err)
	}
	return nil
}

func (r *run) provision() {
	// Provision marks the schema step first, so SchemaSent means the
	// orchestrator already ran for this file.
	if r.deps.Provisioner == nil || r.state.SchemaSent {
		return
	}
	r.deps.Provisioner.Provision(r.ctx, &r.state, r.stats.Index, r.schema)
}

func (r *run) drop(res record.Result) {
	r.stats.Dropped[res.Reason()]++
	if m := r.deps.Metrics; m != nil {
		m.RecordsDropped.WithLabelValues(res.Reason()).Inc()
	}
}
