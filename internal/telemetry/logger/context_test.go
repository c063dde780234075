package logger

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext() should fall back to the default logger")
	}

	l := NewNop()
	ctx := WithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("FromContext() did not return the stored logger")
	}
}

func TestRequestID(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("RequestIDFromContext(empty) = %q", got)
	}
	ctx := WithRequestID(context.Background(), "req-01HZX")
	if got := RequestIDFromContext(ctx); got != "req-01HZX" {
		t.Errorf("RequestIDFromContext() = %q, want req-01HZX", got)
	}
}

func TestL_EnrichesIDs(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})

	ctx := WithLogger(context.Background(), l)
	ctx = WithRequestID(ctx, "req-12345")
	ctx = trace.ContextWithSpanContext(ctx, sc)

	L(ctx).Info("handled")

	entry := decodeLine(t, buf)
	if entry["request_id"] != "req-12345" {
		t.Errorf("request_id = %v, want req-12345", entry["request_id"])
	}
	if entry["trace_id"] != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace_id = %v", entry["trace_id"])
	}
}

func TestL_NoIDs(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")
	L(WithLogger(context.Background(), l)).Info("plain")

	entry := decodeLine(t, buf)
	if _, ok := entry["request_id"]; ok {
		t.Error("request_id should be absent")
	}
	if _, ok := entry["trace_id"]; ok {
		t.Error("trace_id should be absent")
	}
}
