package fam

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestOTelMetricsCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewOTelMetrics(OTelMetricsOptions{MeterProvider: provider})
	if err != nil {
		t.Fatalf("NewOTelMetrics: %v", err)
	}

	opAttrs := map[string]string{
		labelContextModel: "default",
		labelProvider:     "shm",
		labelService:      "7500",
		labelOperation:    "atomic_fetch_add",
	}
	scopeAttrs := map[string]string{
		labelContextModel: "default",
		labelProvider:     "shm",
		labelService:      "7500",
	}

	metrics.OperationCompleted(opAttrs)
	metrics.OperationFailed(errors.New("boom"), opAttrs)
	metrics.ContextCreated(scopeAttrs)
	metrics.QuietCompleted(scopeAttrs)
	metrics.FenceCompleted(scopeAttrs)

	ctx := context.Background()
	if err := provider.ForceFlush(ctx); err != nil {
		t.Fatalf("ForceFlush: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	cases := map[string]float64{
		"fam.operations.completed": 1,
		"fam.operations.failed":    1,
		"fam.contexts.created":     1,
		"fam.quiet.completed":      1,
		"fam.fence.completed":      1,
	}
	for name, want := range cases {
		if got := otelCounterValue(rm, name); got != want {
			t.Fatalf("unexpected counter %s: got %v want %v", name, got, want)
		}
	}

	if err := provider.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func otelCounterValue(rm metricdata.ResourceMetrics, name string) float64 {
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			if metric.Name != name {
				continue
			}
			switch data := metric.Data.(type) {
			case metricdata.Sum[int64]:
				var sum float64
				for _, dp := range data.DataPoints {
					sum += float64(dp.Value)
				}
				return sum
			}
		}
	}
	return 0
}
