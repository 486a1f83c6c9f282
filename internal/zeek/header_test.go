package zeek

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/errors"
)

var connHeader = []string{
	`#separator \x09`,
	"#set_separator\t,",
	"#empty_field\t(empty)",
	"#unset_field\t-",
	"#path\tconn",
	"#open\t2023-11-14-22-13-20",
	"#fields\tts\tid.orig_h\tservice",
	"#types\ttime\taddr\tstring",
	"1700000000.0\t10.0.0.1\thttp",
}

func TestExtractHeader(t *testing.T) {
	h, err := ExtractHeader(connHeader, "conn.log")
	if err != nil {
		t.Fatalf("ExtractHeader: %v", err)
	}
	if h.Separator != "\t" || h.SetSeparator != "," {
		t.Errorf("separators = %q %q", h.Separator, h.SetSeparator)
	}
	if h.Path != "conn" {
		t.Errorf("path = %q", h.Path)
	}
	if !h.Open.Equal(time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)) {
		t.Errorf("open = %v", h.Open)
	}
	specs, err := h.FieldSpecs()
	if err != nil {
		t.Fatalf("FieldSpecs: %v", err)
	}
	want := []FieldSpec{{"ts", "time"}, {"id.orig_h", "addr"}, {"service", "string"}}
	if len(specs) != len(want) {
		t.Fatalf("specs = %v", specs)
	}
	for i := range want {
		if specs[i] != want[i] {
			t.Errorf("spec %d = %v, want %v", i, specs[i], want[i])
		}
	}
}

func TestExtractHeaderCustomSeparator(t *testing.T) {
	lines := []string{
		`#separator \x7c`,
		"#set_separator|;",
		"#path|dns",
		"#open|2023-01-02-03-04-05",
		"#fields|ts|answers",
		"#types|time|vector[string]",
	}
	h, err := ExtractHeader(lines, "dns.log")
	if err != nil {
		t.Fatalf("ExtractHeader: %v", err)
	}
	if h.Separator != "|" || h.SetSeparator != ";" {
		t.Errorf("separators = %q %q", h.Separator, h.SetSeparator)
	}
	if len(h.Fields) != 2 || h.Fields[1] != "answers" {
		t.Errorf("fields = %v", h.Fields)
	}
}

func TestExtractHeaderMissingOpen(t *testing.T) {
	_, err := ExtractHeader([]string{"#path\tconn", "#fields\tts", "#types\ttime"}, "conn.log")
	var hdrErr *apperrors.HeaderError
	if !errors.As(err, &hdrErr) || hdrErr.Tag != TagOpen {
		t.Fatalf("err = %v, want missing #open", err)
	}
	if apperrors.ExitCode(err) != apperrors.ExitMissingOpen {
		t.Errorf("exit code = %d", apperrors.ExitCode(err))
	}
}

func TestExtractHeaderMissingPath(t *testing.T) {
	_, err := ExtractHeader([]string{"#open\t2023-11-14-22-13-20"}, "conn.log")
	if apperrors.ExitCode(err) != apperrors.ExitMissingPath {
		t.Fatalf("err = %v, exit code %d", err, apperrors.ExitCode(err))
	}
}

func TestExtractHeaderStopsAtData(t *testing.T) {
	lines := []string{"#path\tconn", "1700000000.0\tx", "#open\t2023-11-14-22-13-20"}
	if _, err := ExtractHeader(lines, "conn.log"); !errors.Is(err, apperrors.ErrHeaderNotFound) {
		t.Fatalf("err = %v, want header not found", err)
	}
}

func TestFieldSpecsMismatch(t *testing.T) {
	h := &Header{Fields: []string{"ts", "uid"}, Types: []string{"time"}}
	if _, err := h.FieldSpecs(); !errors.Is(err, apperrors.ErrHeaderNotFound) {
		t.Errorf("mismatch: err = %v", err)
	}
	h = &Header{Types: []string{"time"}}
	if _, err := h.FieldSpecs(); err == nil {
		t.Error("missing #fields should fail")
	}
}

func TestDerivePathLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/data/zeek/2023-11-14/conn.22:00:00-23:00:00.log.gz", "conn", true},
		{"dns_20231114.json", "dns", true},
		{`C:\logs\http.log`, "http", true},
		{"/data/ssl", "", false},
		{"/data/.hidden", "", false},
		{"-", "", false},
	}
	for _, tt := range tests {
		got, err := DerivePathLabel(tt.in)
		if tt.ok {
			if err != nil || got != tt.want {
				t.Errorf("DerivePathLabel(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
			continue
		}
		if !errors.Is(err, apperrors.ErrPathNotDerivable) {
			t.Errorf("DerivePathLabel(%q) err = %v, want ErrPathNotDerivable", tt.in, err)
		}
	}
}

func TestIsContainer(t *testing.T) {
	for tag, want := range map[string]bool{"vector[string]": true, "set[addr]": true, "string": false, "time": false} {
		if IsContainer(tag) != want {
			t.Errorf("IsContainer(%q) = %v", tag, !want)
		}
	}
}
