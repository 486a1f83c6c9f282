// Package geoip adds geolocation fields to documents from a MaxMind MMDB
// database, mirroring what the server-side geoip ingest processor produces.
package geoip

import (
	"fmt"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

// Address fields and the objects they are enriched into.
var targets = [...][2]string{
	{"id.orig_h", "geoip_orig"},
	{"id.resp_h", "geoip_resp"},
}

type mmdbRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Location struct {
		Latitude  *float64 `maxminddb:"latitude"`
		Longitude *float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

// Enricher looks up connection endpoints. The reader is safe for concurrent
// use, so one Enricher serves every loader.
type Enricher struct {
	reader *maxminddb.Reader
}

// Open loads the database at path.
func Open(path string) (*Enricher, error) {
	r, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mmdb %q: %w", path, err)
	}
	return &Enricher{reader: r}, nil
}

// Lookup returns the geo object for an address, or nil when the address is
// invalid or unknown to the database.
func (e *Enricher) Lookup(addr string) map[string]any {
	ip := net.ParseIP(addr)
	if ip == nil {
		return nil
	}
	var rec mmdbRecord
	if err := e.reader.Lookup(ip, &rec); err != nil {
		return nil
	}

	out := make(map[string]any, 3)
	if rec.Location.Latitude != nil && rec.Location.Longitude != nil {
		out["location"] = map[string]float64{
			"lat": *rec.Location.Latitude,
			"lon": *rec.Location.Longitude,
		}
	}
	if rec.Country.ISOCode != "" {
		out["country_iso_code"] = rec.Country.ISOCode
	}
	if name := rec.City.Names["en"]; name != "" {
		out["city_name"] = name
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Enrich sets geoip_orig and geoip_resp from the connection's addresses.
func (e *Enricher) Enrich(doc map[string]any) {
	for _, t := range targets {
		addr, ok := doc[t[0]].(string)
		if !ok {
			continue
		}
		if geo := e.Lookup(addr); geo != nil {
			doc[t[1]] = geo
		}
	}
}

func (e *Enricher) Close() error {
	return e.reader.Close()
}
