package record

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/zeek/coerce"
	apperrors "github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/errors"
)

// JSONBuilder builds documents from Zeek JSON log lines. Values keep the
// types they were written with; only ts is converted.
type JSONBuilder struct {
	common
	coercer *coerce.Coercer
}

func NewJSONBuilder(coercer *coerce.Coercer, opts Options) *JSONBuilder {
	return &JSONBuilder{common: newCommon(opts), coercer: coercer}
}

// SetLogPath sets the provenance log path once it is known.
func (b *JSONBuilder) SetLogPath(path string) {
	b.opts.LogPath = path
}

// Build converts one JSON object line.
func (b *JSONBuilder) Build(ctx context.Context, line []byte) (Outcome, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return Outcome{Result: DropMalformed}, nil
	}

	var out Outcome
	if tsRaw, ok := raw[FieldTS]; ok && tsRaw != nil {
		ts, err := parseTS(tsRaw)
		if err != nil {
			return Outcome{Result: DropCoerce}, err
		}
		out.TS = ts
	}

	doc := make(Document, len(raw)+4)
	keyValues := make(map[string][]string, len(b.watched))
	for k, v := range raw {
		if v == nil {
			continue
		}
		if b.watched[k] {
			keyValues[k] = keyStrings(v)
		}
		if !b.isAllowed(k) {
			continue
		}
		if k == FieldTS {
			doc[k] = b.coercer.TimeFromTime(out.TS)
			continue
		}
		doc[k] = v
	}

	_, tsWritten := doc[FieldTS]
	switch {
	case len(doc) == 0:
		out.Result = DropEmpty
		return out, nil
	case !tsWritten:
		out.Result = DropNoTS
		return out, nil
	case !b.admits(keyValues):
		out.Result = DropKeyFilter
		return out, nil
	}

	if res := b.finish(ctx, doc, keyValues); res != Accepted {
		out.Result = res
		return out, nil
	}
	out.Doc = doc
	out.Result = Accepted
	return out, nil
}

// parseTS accepts epoch seconds as a JSON number or numeric string, or an
// RFC 3339 timestamp string.
func parseTS(v any) (time.Time, error) {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts.UTC(), nil
		}
		s = t
	default:
		return time.Time{}, fmt.Errorf("%w: ts has type %T", apperrors.ErrNumericParse, v)
	}
	return coerce.ParseEpoch(s)
}
