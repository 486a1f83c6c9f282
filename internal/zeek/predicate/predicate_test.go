package predicate

import (
	"encoding/json"
	"errors"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/errors"
)

var doc = map[string]any{
	"ts":             "2023-11-14T22:13:20",
	"id.orig_h":      "10.0.0.1",
	"id.resp_p":      int64(443),
	"service":        "ssl",
	"duration":       1.25,
	"local_orig":     true,
	"tunnel_parents": []string{"CHhAvVGS1DHFjwGM9", "C4J4Th3PJpwUYZZ6gc"},
	"orig_bytes":     json.Number("1024"),
}

func TestMatch(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{`service == "ssl"`, true},
		{`service == ssl`, true},
		{`service != "ssl"`, false},
		{`missing != "x"`, true},
		{`missing == "x"`, false},
		{`id.resp_p == 443`, true},
		{`id.resp_p >= 1024`, false},
		{`id.resp_p < 1024 and service == ssl`, true},
		{`duration > 1`, true},
		{`duration <= 1.25`, true},
		{`orig_bytes > 1000`, true},
		{`local_orig == true`, true},
		{`local_orig == false`, false},
		{`id.orig_h startswith "10."`, true},
		{`service contains "s"`, true},
		{`tunnel_parents contains "C4J4Th3PJpwUYZZ6gc"`, true},
		{`tunnel_parents == "nope"`, false},
		{`service in [dns, http, ssl]`, true},
		{`id.resp_p in [80, 8080]`, false},
		{`exists service`, true},
		{`not exists uid`, true},
		{`service == dns or (id.resp_p == 443 and not local_orig == false)`, true},
		{`ts >= "2023-11-14" AND ts < "2023-11-15"`, true},
		{`service == dns or service == http`, false},
	}
	for _, tt := range tests {
		e, err := Parse(tt.expr)
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.expr, err)
			continue
		}
		if got := e.Match(doc); got != tt.want {
			t.Errorf("%q (parsed %s) = %v, want %v", tt.expr, e, got, tt.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{
		"",
		"service ==",
		`service == "ssl`,
		"(service == ssl",
		"service == ssl)",
		"service = ssl",
		"service ~ ssl",
		"service in ssl",
		"service in [ssl",
		"and",
		"__import__('os').system('id')",
	} {
		_, err := Parse(input)
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want error", input)
			continue
		}
		if !errors.Is(err, apperrors.ErrInvalidFilter) {
			t.Errorf("Parse(%q) err = %v, want ErrInvalidFilter", input, err)
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Parse(%q) err is %T, want *ParseError", input, err)
		}
	}
}

func TestSingleEqualsRejected(t *testing.T) {
	_, err := Parse("a = 1")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("Parse(%q) err = %v, want *ParseError", "a = 1", err)
	}
	if pe.Pos != 2 {
		t.Errorf("Pos = %d, want 2", pe.Pos)
	}

	// Expressions used by benchmarks and usage examples must compile.
	for _, expr := range []string{
		"id.resp_p in [80, 443] and not service == 'dns'",
		"id.resp_p == 443",
	} {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("MustParse(%q) panicked: %v", expr, r)
				}
			}()
			MustParse(expr)
		}()
	}
}

func TestUnmatchedParenCause(t *testing.T) {
	_, err := Parse("(a == 1")
	if !errors.Is(err, ErrUnmatchedParen) {
		t.Errorf("err = %v", err)
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustParse("==")
}
