package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "load", "")
	if root.TraceID == "" {
		t.Fatal("root span has no trace id")
	}
	root.SetAttr("source", "conn.log")

	_, flush := StartChildSpan(ctx, "flush")
	flush.SetAttr("documents", 2)
	flush.End(errors.New("bulk delivery failed"))
	root.End(nil)

	if len(root.Children) != 1 || root.Children[0] != flush {
		t.Fatalf("children = %v", root.Children)
	}
	if flush.TraceID != root.TraceID {
		t.Errorf("child trace id %q, want %q", flush.TraceID, root.TraceID)
	}
	if SpanFromContext(ctx) != root {
		t.Error("root span not in context")
	}

	var buf bytes.Buffer
	root.Log(ctx, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	out := buf.String()
	if strings.Count(out, "msg=span") != 2 {
		t.Fatalf("want two span records, got:\n%s", out)
	}
	for _, want := range []string{"span=load", "source=conn.log", "span=flush", "depth=1", `error="bulk delivery failed"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestSpanLogSkippedAboveDebug(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "load", "run-1")
	root.End(nil)
	var buf bytes.Buffer
	root.Log(ctx, slog.New(slog.NewTextHandler(&buf, nil)))
	if buf.Len() != 0 {
		t.Errorf("info logger wrote spans: %s", buf.String())
	}
}

func TestDetachedChild(t *testing.T) {
	_, child := StartChildSpan(context.Background(), "flush")
	child.End(nil)
	if child.TraceID != "" {
		t.Errorf("detached child has trace id %q", child.TraceID)
	}
}
