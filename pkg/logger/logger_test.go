package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewQuietSuppressesWarnings(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "debug", "text", true)
	l.Warn("bulk request failed")
	if buf.Len() != 0 {
		t.Fatalf("quiet logger wrote %q", buf.String())
	}
	l.Error("fatal")
	if !strings.Contains(buf.String(), "fatal") {
		t.Errorf("expected error line, got %q", buf.String())
	}
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info", "json", false)
	l.Info("loaded", "docs", 3)
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"docs":3`) {
		t.Errorf("unexpected json output %q", buf.String())
	}
}

func TestFromContextAddsSource(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(New(&buf, "info", "text", false))
	t.Cleanup(func() { slog.SetDefault(prev) })

	FromContext(WithSource(context.Background(), "conn.log.gz")).Info("hello")
	if !strings.Contains(buf.String(), "source=conn.log.gz") {
		t.Errorf("expected source attribute, got %q", buf.String())
	}
}
