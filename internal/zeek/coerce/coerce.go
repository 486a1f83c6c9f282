// Package coerce converts raw Zeek cell text to typed document values using
// the type tag declared for the column.
package coerce

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/zeek2es/internal/zeek"
	"github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/errors"
)

// ISOLayout renders times without a zone suffix. Microseconds are appended
// only when non-zero.
const ISOLayout = "2006-01-02T15:04:05"

// DefaultSentinels are the raw values that never produce a document key.
var DefaultSentinels = []string{"-", "(empty)", ""}

// Coercer converts raw values. The zero value is not usable; use New.
type Coercer struct {
	timeMode     string
	setSeparator string
	sentinels    map[string]struct{}
}

// Option configures a Coercer.
type Option func(*Coercer)

// WithTimeMode selects the representation of time values (config.TimeISO,
// config.TimeMillis or config.TimeOriginal).
func WithTimeMode(mode string) Option {
	return func(c *Coercer) { c.timeMode = mode }
}

// WithSetSeparator sets the element separator for vector and set values.
func WithSetSeparator(sep string) Option {
	return func(c *Coercer) {
		if sep != "" {
			c.setSeparator = sep
		}
	}
}

// WithSentinels adds raw values that mean "absent", such as the values
// declared by #unset_field and #empty_field.
func WithSentinels(values ...string) Option {
	return func(c *Coercer) {
		for _, v := range values {
			c.sentinels[v] = struct{}{}
		}
	}
}

// New returns a Coercer with the default sentinels, ISO time and ","
// as set separator, adjusted by opts.
func New(opts ...Option) *Coercer {
	c := &Coercer{
		timeMode:     config.TimeISO,
		setSeparator: ",",
		sentinels:    make(map[string]struct{}, len(DefaultSentinels)),
	}
	for _, s := range DefaultSentinels {
		c.sentinels[s] = struct{}{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsSentinel reports whether raw means "field absent".
func (c *Coercer) IsSentinel(raw string) bool {
	_, ok := c.sentinels[raw]
	return ok
}

// Coerce converts raw according to tag. ok is false when raw is a sentinel.
// Malformed numeric text returns an error wrapping errors.ErrNumericParse.
func (c *Coercer) Coerce(tag, raw string) (value any, ok bool, err error) {
	if c.IsSentinel(raw) {
		return nil, false, nil
	}
	switch {
	case tag == "time":
		v, err := c.Time(raw)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	case tag == "interval" || tag == "double":
		f, err := parseFloat(raw)
		if err != nil {
			return nil, false, numericError(tag, raw)
		}
		return f, true, nil
	case tag == "bool":
		return raw == "T", true, nil
	case tag == "port" || tag == "count" || tag == "int":
		return parseInt(tag, raw)
	case zeek.IsContainer(tag):
		return strings.Split(raw, c.setSeparator), true, nil
	default:
		return raw, true, nil
	}
}

func parseInt(tag, raw string) (any, bool, error) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, true, nil
	}
	if tag == "count" {
		if u, err := strconv.ParseUint(raw, 10, 64); err == nil {
			return u, true, nil
		}
	}
	return nil, false, numericError(tag, raw)
}

// parseFloat rejects NaN and infinities, which cannot be encoded as JSON.
func parseFloat(raw string) (float64, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not finite")
	}
	return f, nil
}

func numericError(tag, raw string) error {
	return fmt.Errorf("%w: %s value %q", apperrors.ErrNumericParse, tag, raw)
}

// Time converts a fractional epoch-seconds string to the configured
// representation.
func (c *Coercer) Time(raw string) (any, error) {
	secs, err := parseFloat(raw)
	if err != nil {
		return nil, numericError("time", raw)
	}
	switch c.timeMode {
	case config.TimeMillis:
		return secs * 1000, nil
	case config.TimeOriginal:
		return secs, nil
	default:
		return FormatISO(epochTime(raw, secs)), nil
	}
}

// ParseEpoch parses fractional epoch seconds into a UTC time.
func ParseEpoch(raw string) (time.Time, error) {
	secs, err := parseFloat(raw)
	if err != nil {
		return time.Time{}, numericError("time", raw)
	}
	return epochTime(raw, secs), nil
}

// TimeFromTime renders t in the configured mode.
func (c *Coercer) TimeFromTime(t time.Time) any {
	secs := float64(t.UnixNano()) / 1e9
	switch c.timeMode {
	case config.TimeMillis:
		return float64(t.UnixNano()) / 1e6
	case config.TimeOriginal:
		return secs
	default:
		return FormatISO(t.UTC().Truncate(time.Microsecond))
	}
}

// FormatISO formats t as YYYY-MM-DDTHH:MM:SS with a six-digit fraction when
// the microsecond part is non-zero.
func FormatISO(t time.Time) string {
	s := t.UTC().Format(ISOLayout)
	if us := t.Nanosecond() / 1000; us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	return s
}

// epochTime builds a time from the decimal text when it is a plain
// "seconds[.fraction]" value, so that microseconds are exact. Other forms
// (exponents, signs) go through the float.
func epochTime(raw string, secs float64) time.Time {
	whole, frac, _ := strings.Cut(raw, ".")
	if whole != "" && isDigits(whole) && isDigits(frac) {
		s, err := strconv.ParseInt(whole, 10, 64)
		if err == nil {
			if len(frac) > 6 {
				frac = frac[:6]
			}
			frac += strings.Repeat("0", 6-len(frac))
			us, _ := strconv.ParseInt(frac, 10, 64)
			return time.Unix(s, us*1000).UTC()
		}
	}
	whole64, fracPart := math.Modf(secs)
	us := math.Round(fracPart * 1e6)
	return time.Unix(int64(whole64), int64(us)*1000).UTC()
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
