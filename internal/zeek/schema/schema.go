// Package schema derives destination index mappings from Zeek field types.
package schema

import (
	"encoding/json"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/zeek"
)

// Storage types.
const (
	TypeDate     = "date"
	TypeIP       = "ip"
	TypeText     = "text"
	TypeKeyword  = "keyword"
	TypeGeoPoint = "geo_point"
)

// Synthetic properties populated by GeoIP enrichment.
const (
	GeoOrigLocation = "geoip_orig.location"
	GeoRespLocation = "geoip_resp.location"
)

// Property is one field mapping.
type Property struct {
	Type   string              `json:"type"`
	Format string              `json:"format,omitempty"`
	Fields map[string]Property `json:"fields,omitempty"`
}

// Options controls Build.
type Options struct {
	// Keywords names string fields that get a keyword subfield.
	Keywords []string
	// Geo pre-seeds the GeoIP location properties.
	Geo bool
	// DateFormat is set on date properties when times are not ISO strings,
	// e.g. "epoch_second".
	DateFormat string
}

// Schema maps field names to storage types. It is not modified after Build.
type Schema struct {
	Properties map[string]Property `json:"properties"`
}

// Build maps time to date, addr to ip and string to text (with a keyword
// subfield when listed in opts.Keywords). Other types are left to the
// destination.
func Build(fields []zeek.FieldSpec, opts Options) *Schema {
	s := newSchema(opts)
	for _, f := range fields {
		switch f.Type {
		case "time":
			s.Properties[f.Name] = dateProperty(opts)
		case "addr":
			s.Properties[f.Name] = Property{Type: TypeIP}
		case "string":
			p := Property{Type: TypeText}
			if slices.Contains(opts.Keywords, f.Name) {
				p.Fields = map[string]Property{"keyword": {Type: TypeKeyword}}
			}
			s.Properties[f.Name] = p
		}
	}
	if _, ok := s.Properties["ts"]; ok {
		s.Properties["@timestamp"] = dateProperty(opts)
	}
	return s
}

// BuildMinimal is the schema for JSON logs, whose types are unknown up front.
func BuildMinimal(opts Options) *Schema {
	s := newSchema(opts)
	s.Properties["ts"] = dateProperty(opts)
	s.Properties["@timestamp"] = dateProperty(opts)
	return s
}

func newSchema(opts Options) *Schema {
	s := &Schema{Properties: make(map[string]Property)}
	if opts.Geo {
		s.Properties[GeoOrigLocation] = Property{Type: TypeGeoPoint}
		s.Properties[GeoRespLocation] = Property{Type: TypeGeoPoint}
	}
	return s
}

func dateProperty(opts Options) Property {
	return Property{Type: TypeDate, Format: opts.DateFormat}
}

// MappingBody returns the body of a put-mapping request. Map keys are
// encoded in sorted order, so equal schemas give identical bytes.
func (s *Schema) MappingBody() ([]byte, error) {
	return json.Marshal(s)
}

// IndexBody returns the body of a create-index request.
func (s *Schema) IndexBody() ([]byte, error) {
	return json.Marshal(map[string]any{"mappings": s})
}
