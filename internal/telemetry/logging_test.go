package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestLoggerAddsTraceContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "verify")
	defer span.End()

	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	logger.InfoContext(ctx, "payment verified", "order_id", "o1")

	entry := decodeLine(t, &buf)
	if entry["trace_id"] != span.SpanContext().TraceID().String() {
		t.Errorf("expected trace_id %s, got %v", span.SpanContext().TraceID(), entry["trace_id"])
	}
	if entry["span_id"] != span.SpanContext().SpanID().String() {
		t.Errorf("expected span_id %s, got %v", span.SpanContext().SpanID(), entry["span_id"])
	}
}

func TestLoggerWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo).Info("started")

	entry := decodeLine(t, &buf)
	if _, ok := entry["trace_id"]; ok {
		t.Error("expected no trace_id without a span")
	}
}

func TestLoggerKeepsTraceFieldsOutsideGroups(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "refund")
	defer span.End()

	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo).
		With("component", "refunds").
		WithGroup("payment").
		With("id", "pay-1")
	logger.InfoContext(ctx, "refund issued", "amount", "50.00")

	entry := decodeLine(t, &buf)
	if entry["trace_id"] == nil {
		t.Error("expected trace_id at the top level")
	}
	if entry["component"] != "refunds" {
		t.Errorf("expected component attr, got %v", entry["component"])
	}
	group, ok := entry["payment"].(map[string]any)
	if !ok {
		t.Fatalf("expected payment group, got %v", entry["payment"])
	}
	if group["id"] != "pay-1" || group["amount"] != "50.00" {
		t.Errorf("unexpected group contents: %v", group)
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)
	logger.Info("ignored")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered, got %q", buf.String())
	}
	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Error("expected warn to be written")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		" warn": slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}
