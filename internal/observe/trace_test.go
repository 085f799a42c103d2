package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// withTestTracer installs an in-memory exporter as the global tracer provider
// for the duration of the test.
func withTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return exp
}

func TestStartSpanProducesCorrelationID(t *testing.T) {
	exp := withTestTracer(t)

	ctx, span := StartSpan(context.Background(), "pipeline.chunk")
	id := CorrelationID(ctx)
	if id == "" {
		t.Fatal("no correlation ID inside an active span")
	}
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("exported %d spans, want 1", len(spans))
	}
	if spans[0].Name != "pipeline.chunk" {
		t.Errorf("span name = %q, want pipeline.chunk", spans[0].Name)
	}
	if got := spans[0].SpanContext.TraceID().String(); got != id {
		t.Errorf("exported trace ID %q != correlation ID %q", got, id)
	}
}

func TestStageSpansShareTraceID(t *testing.T) {
	withTestTracer(t)

	ctx, parent := StartSpan(context.Background(), "pipeline.chunk")
	cctx, child := StartSpan(ctx, "pipeline.transcribe")
	defer parent.End()
	defer child.End()

	if CorrelationID(cctx) != CorrelationID(ctx) {
		t.Errorf("stage span trace ID %q != chunk trace ID %q",
			CorrelationID(cctx), CorrelationID(ctx))
	}
}

func TestCorrelationIDWithoutSpan(t *testing.T) {
	if id := CorrelationID(context.Background()); id != "" {
		t.Errorf("CorrelationID = %q without an active span, want empty", id)
	}
}

func TestLoggerCarriesTraceAttributes(t *testing.T) {
	withTestTracer(t)

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx, span := StartSpan(context.Background(), "pipeline.chunk")
	Logger(ctx).Info("chunk accepted")
	span.End()

	out := buf.String()
	if !strings.Contains(out, "trace_id="+CorrelationID(ctx)) {
		t.Errorf("log line missing trace_id: %s", out)
	}
	if !strings.Contains(out, "span_id=") {
		t.Errorf("log line missing span_id: %s", out)
	}
}
