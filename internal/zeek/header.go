// Package zeek understands the self-describing Zeek ASCII log format: the
// leading "#" metadata lines and the per-column type tags they declare.
package zeek

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/errors"
)

// Metadata line tags.
const (
	TagSeparator    = "#separator"
	TagSetSeparator = "#set_separator"
	TagEmptyField   = "#empty_field"
	TagUnsetField   = "#unset_field"
	TagPath         = "#path"
	TagOpen         = "#open"
	TagFields       = "#fields"
	TagTypes        = "#types"
)

// OpenLayout is the format of the #open timestamp.
const OpenLayout = "2006-01-02-15-04-05"

// Defaults used when the corresponding header line is absent.
const (
	DefaultSeparator    = "\t"
	DefaultSetSeparator = ","
	DefaultEmptyField   = "(empty)"
	DefaultUnsetField   = "-"
)

// FieldSpec is one column of a TSV log: its name and declared type tag.
type FieldSpec struct {
	Name string
	Type string
}

// Header holds the metadata of a Zeek TSV log.
type Header struct {
	Separator    string
	SetSeparator string
	EmptyField   string
	UnsetField   string
	Path         string
	Open         time.Time
	Fields       []string
	Types        []string
}

// IsComment reports whether line is a metadata or comment line.
func IsComment(line string) bool {
	return strings.HasPrefix(line, "#")
}

// ExtractHeader parses the leading metadata lines of a log. It fails with a
// *errors.HeaderError when #open or #path is missing or unusable; missing
// #fields or #types are reported later by FieldSpecs so the caller can skip
// the body without aborting.
func ExtractHeader(lines []string, source string) (*Header, error) {
	h := &Header{
		Separator:    DefaultSeparator,
		SetSeparator: DefaultSetSeparator,
		EmptyField:   DefaultEmptyField,
		UnsetField:   DefaultUnsetField,
	}

	var openSeen bool
	for _, line := range lines {
		if !IsComment(line) {
			break
		}
		// The separator line always uses a space, since the separator it
		// declares is not known yet.
		if rest, ok := strings.CutPrefix(line, TagSeparator+" "); ok {
			sep, err := unescapeSeparator(rest)
			if err != nil {
				return nil, fmt.Errorf("%s in %s: %w", TagSeparator, source, err)
			}
			h.Separator = sep
			continue
		}

		tag, value, _ := strings.Cut(line, h.Separator)
		switch tag {
		case TagSetSeparator:
			h.SetSeparator = value
		case TagEmptyField:
			h.EmptyField = value
		case TagUnsetField:
			h.UnsetField = value
		case TagPath:
			h.Path = value
		case TagOpen:
			t, err := time.Parse(OpenLayout, value)
			if err != nil {
				return nil, &apperrors.HeaderError{Tag: TagOpen, Source: source}
			}
			h.Open = t
			openSeen = true
		case TagFields:
			h.Fields = strings.Split(value, h.Separator)
		case TagTypes:
			h.Types = strings.Split(value, h.Separator)
		}
	}

	if !openSeen {
		return nil, &apperrors.HeaderError{Tag: TagOpen, Source: source}
	}
	if h.Path == "" {
		return nil, &apperrors.HeaderError{Tag: TagPath, Source: source}
	}
	return h, nil
}

// FieldSpecs pairs field names with their types. Missing lists or lists of
// different length are an error.
func (h *Header) FieldSpecs() ([]FieldSpec, error) {
	if len(h.Fields) == 0 {
		return nil, &apperrors.HeaderError{Tag: TagFields}
	}
	if len(h.Types) == 0 {
		return nil, &apperrors.HeaderError{Tag: TagTypes}
	}
	if len(h.Fields) != len(h.Types) {
		return nil, fmt.Errorf("%w: %d fields but %d types", apperrors.ErrHeaderNotFound, len(h.Fields), len(h.Types))
	}
	specs := make([]FieldSpec, len(h.Fields))
	for i := range h.Fields {
		specs[i] = FieldSpec{Name: h.Fields[i], Type: h.Types[i]}
	}
	return specs, nil
}

// Sentinels returns the raw values that mean "field absent" for this log.
func (h *Header) Sentinels() []string {
	return []string{h.UnsetField, h.EmptyField}
}

// unescapeSeparator decodes the \xNN escapes Zeek uses for the separator.
func unescapeSeparator(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); {
		if strings.HasPrefix(s[i:], `\x`) && i+4 <= len(s) {
			n, err := strconv.ParseUint(s[i+2:i+4], 16, 8)
			if err != nil {
				return "", fmt.Errorf("bad escape %q", s[i:i+4])
			}
			b.WriteByte(byte(n))
			i += 4
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("empty separator")
	}
	return b.String(), nil
}

// DerivePathLabel returns the log path label encoded in a file name: the text
// after the last path separator up to the first "." or "_". It is used for
// JSON logs, which carry no #path line.
func DerivePathLabel(filename string) (string, error) {
	base := filename
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	end := strings.IndexAny(base, "._")
	if end <= 0 {
		return "", apperrors.Newf(apperrors.ErrPathNotDerivable, apperrors.ExitMissingPath, "cannot derive a log path from %q", filepath.Base(filename))
	}
	return base[:end], nil
}

// IsContainer reports whether tag is a vector or set type.
func IsContainer(tag string) bool {
	return strings.HasPrefix(tag, "vector") || strings.HasPrefix(tag, "set")
}
