package fam

import (
	"context"
	"fmt"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type otelTracerAdapter struct {
	tracer trace.Tracer
}

func (o *otelTracerAdapter) StartSpan(name string, attrs ...TraceAttribute) Span {
	attributes := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		attributes = append(attributes, attribute.String(attr.Key, fmt.Sprint(attr.Value)))
	}
	_, span := o.tracer.Start(context.Background(), name, trace.WithAttributes(attributes...))
	return &otelSpanAdapter{span: span}
}

type otelSpanAdapter struct {
	span trace.Span
}

func (o *otelSpanAdapter) End(err error) {
	if err != nil {
		o.span.RecordError(err)
	}
	o.span.End()
}

func (o *otelSpanAdapter) AddEvent(name string, attrs ...TraceAttribute) {
	attributes := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		attributes = append(attributes, attribute.String(attr.Key, fmt.Sprint(attr.Value)))
	}
	o.span.AddEvent(name, trace.WithAttributes(attributes...))
}

func (o *otelSpanAdapter) RecordError(err error) {
	o.span.RecordError(err)
}

func TestTracingSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(recorder))
	adapter := &otelTracerAdapter{tracer: tp.Tracer("fam-test")}

	ops, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Tracer = adapter
	})

	d := &Descriptor{MemserverID: 0, RegionID: MakeRegionID(0, 1), AccessKey: 1}
	if _, err := ops.CompareSwapInt128(d, 0, Int128{}, Int128{1}); err != nil {
		t.Fatalf("CompareSwapInt128: %v", err)
	}
	if err := ops.Quiet(nil); err != nil {
		t.Fatalf("Quiet: %v", err)
	}

	var sawWide, sawQuiet bool
	for _, span := range recorder.Ended() {
		switch span.Name() {
		case "fam-atomic-int128":
			sawWide = true
		case "fam-quiet":
			sawQuiet = true
		}
	}
	if !sawWide {
		t.Fatalf("expected a fam-atomic-int128 span")
	}
	if !sawQuiet {
		t.Fatalf("expected a fam-quiet span")
	}
}
