package record

import (
	"context"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/zeek"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/zeek/coerce"
)

// TSVBuilder builds documents from rows of a Zeek TSV log.
type TSVBuilder struct {
	common
	fields    []zeek.FieldSpec
	separator string
	coercer   *coerce.Coercer
}

// NewTSVBuilder returns a builder for rows described by fields and split on
// separator.
func NewTSVBuilder(fields []zeek.FieldSpec, separator string, coercer *coerce.Coercer, opts Options) *TSVBuilder {
	if separator == "" {
		separator = zeek.DefaultSeparator
	}
	return &TSVBuilder{
		common:    newCommon(opts),
		fields:    fields,
		separator: separator,
		coercer:   coercer,
	}
}

// BuildLine splits line on the log's separator and builds it.
func (b *TSVBuilder) BuildLine(ctx context.Context, line string) (Outcome, error) {
	return b.Build(ctx, strings.Split(line, b.separator))
}

// Build converts one row. A malformed numeric cell drops the record and is
// returned as an error wrapping errors.ErrNumericParse.
func (b *TSVBuilder) Build(ctx context.Context, cells []string) (Outcome, error) {
	if len(cells) != len(b.fields) {
		return Outcome{Result: DropMalformed}, nil
	}

	doc := make(Document, len(cells)+4)
	keyValues := make(map[string][]string, len(b.watched))
	addedAny := false
	tsWritten := false

	for i, f := range b.fields {
		v, ok, err := b.coercer.Coerce(f.Type, cells[i])
		if err != nil {
			return Outcome{Result: DropCoerce}, fmt.Errorf("field %s: %w", f.Name, err)
		}
		if !ok {
			continue
		}
		if b.watched[f.Name] {
			keyValues[f.Name] = keyStrings(v)
		}
		if !b.isAllowed(f.Name) {
			continue
		}
		doc[f.Name] = v
		addedAny = true
		if f.Name == FieldTS {
			tsWritten = true
		}
	}

	switch {
	case !addedAny:
		return Outcome{Result: DropEmpty}, nil
	case !tsWritten:
		return Outcome{Result: DropNoTS}, nil
	case !b.admits(keyValues):
		return Outcome{Result: DropKeyFilter}, nil
	}

	if res := b.finish(ctx, doc, keyValues); res != Accepted {
		return Outcome{Result: res}, nil
	}
	return Outcome{Doc: doc, Result: Accepted}, nil
}
