// Package record builds output documents from Zeek TSV rows and JSON log
// lines. Both builders apply the same acceptance rule: at least one field
// written, ts written, and the key filter (when configured) admitting one
// of the record's values.
package record

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/zeek/predicate"
)

// Provenance field names.
const (
	FieldFilename   = "zeek_log_filename"
	FieldLogPath    = "zeek_log_path"
	FieldSystemName = "zeek_log_system_name"
	FieldTS         = "ts"
	FieldTimestamp  = "@timestamp"
)

// Document is one output record.
type Document map[string]any

// Result says what happened to an input record.
type Result int

const (
	Accepted Result = iota
	DropEmpty
	DropNoTS
	DropKeyFilter
	DropPredicate
	DropCoerce
	DropMalformed
)

var reasons = [...]string{"accepted", "empty", "no_ts", "key_filter", "predicate", "coerce", "malformed"}

// Reason is the metrics label for r.
func (r Result) Reason() string {
	if int(r) < len(reasons) {
		return reasons[r]
	}
	return "unknown"
}

// Outcome is the result of building one record. TS is the record's event
// time whenever ts could be read, even if the record was then dropped.
type Outcome struct {
	Doc    Document
	Result Result
	TS     time.Time
}

// KeyFilter admits records by the value of one field.
type KeyFilter interface {
	Field() string
	Allows(value string) bool
}

// KeyLogger records every value of one field of accepted records.
type KeyLogger interface {
	Field() string
	Log(ctx context.Context, values ...string) error
}

// Enricher adds derived fields to an accepted document.
type Enricher interface {
	Enrich(doc map[string]any)
}

// Options are shared by the TSV and JSON builders.
type Options struct {
	// OutputFields is the allow-list; empty means every field. Provenance
	// fields are subject to it as well.
	OutputFields []string
	Filename     string
	LogPath      string
	SystemName   string
	Predicate    predicate.Expr
	KeyFilter    KeyFilter
	KeyLoggers   []KeyLogger
	Enricher     Enricher
	Logger       *slog.Logger
}

type common struct {
	opts    Options
	allowed map[string]bool
	watched map[string]bool
	logger  *slog.Logger
}

func newCommon(opts Options) common {
	c := common{opts: opts, watched: make(map[string]bool), logger: opts.Logger}
	if c.logger == nil {
		c.logger = slog.Default().With("component", "record")
	}
	if len(opts.OutputFields) > 0 {
		c.allowed = make(map[string]bool, len(opts.OutputFields))
		for _, f := range opts.OutputFields {
			c.allowed[f] = true
		}
	}
	if opts.KeyFilter != nil {
		c.watched[opts.KeyFilter.Field()] = true
	}
	for _, kl := range opts.KeyLoggers {
		c.watched[kl.Field()] = true
	}
	return c
}

func (c *common) isAllowed(field string) bool {
	return c.allowed == nil || c.allowed[field]
}

func (c *common) admits(keyValues map[string][]string) bool {
	if c.opts.KeyFilter == nil {
		return true
	}
	for _, v := range keyValues[c.opts.KeyFilter.Field()] {
		if c.opts.KeyFilter.Allows(v) {
			return true
		}
	}
	return false
}

// finish runs the steps shared by both builders once a record has passed
// the acceptance rule.
func (c *common) finish(ctx context.Context, doc Document, keyValues map[string][]string) Result {
	c.setProvenance(doc)
	if c.opts.Enricher != nil {
		c.opts.Enricher.Enrich(doc)
	}
	if c.opts.Predicate != nil && !c.opts.Predicate.Match(doc) {
		return DropPredicate
	}
	for _, kl := range c.opts.KeyLoggers {
		values := keyValues[kl.Field()]
		if len(values) == 0 {
			continue
		}
		if err := kl.Log(ctx, values...); err != nil {
			c.logger.Warn("key log write failed", "field", kl.Field(), "error", err)
		}
	}
	doc[FieldTimestamp] = doc[FieldTS]
	return Accepted
}

func (c *common) setProvenance(doc Document) {
	if c.opts.Filename != "" && c.isAllowed(FieldFilename) {
		doc[FieldFilename] = c.opts.Filename
	}
	if c.opts.LogPath != "" && c.isAllowed(FieldLogPath) {
		doc[FieldLogPath] = c.opts.LogPath
	}
	if c.opts.SystemName != "" && c.isAllowed(FieldSystemName) {
		doc[FieldSystemName] = c.opts.SystemName
	}
}

// keyStrings renders a value as the strings written to key logs and checked
// against the key filter. Sequences yield one string per element.
func keyStrings(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, keyStrings(e)...)
		}
		return out
	case json.Number:
		return []string{t.String()}
	case int64:
		return []string{strconv.FormatInt(t, 10)}
	case uint64:
		return []string{strconv.FormatUint(t, 10)}
	case float64:
		return []string{strconv.FormatFloat(t, 'f', -1, 64)}
	case nil:
		return nil
	default:
		return []string{fmt.Sprint(t)}
	}
}

// Line serializes a document as one bulk body line.
func (d Document) Line() ([]byte, error) {
	return json.Marshal(d)
}
