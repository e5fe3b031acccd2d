package fam

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetricsOptions configures NewOTelMetrics.
type OTelMetricsOptions struct {
	MeterProvider          metric.MeterProvider
	Meter                  metric.Meter
	InstrumentationName    string
	InstrumentationVersion string
}

var _ MetricHook = (*OTelMetrics)(nil)

// OTelMetrics implements MetricHook using OpenTelemetry counters.
type OTelMetrics struct {
	meter              metric.Meter
	operationCompleted metric.Int64Counter
	operationFailed    metric.Int64Counter
	contextCreated     metric.Int64Counter
	quietCompleted     metric.Int64Counter
	fenceCompleted     metric.Int64Counter
}

// NewOTelMetrics constructs a MetricHook that emits OpenTelemetry counter
// measurements.
func NewOTelMetrics(opts OTelMetricsOptions) (*OTelMetrics, error) {
	meter := opts.Meter
	if meter == nil {
		provider := opts.MeterProvider
		if provider == nil {
			provider = otel.GetMeterProvider()
		}
		name := opts.InstrumentationName
		if name == "" {
			name = "github.com/rocketbitz/fam-go/fam"
		}
		meter = provider.Meter(name, metric.WithInstrumentationVersion(opts.InstrumentationVersion))
	}

	operationCompleted, err := meter.Int64Counter("fam.operations.completed")
	if err != nil {
		return nil, err
	}
	operationFailed, err := meter.Int64Counter("fam.operations.failed")
	if err != nil {
		return nil, err
	}
	contextCreated, err := meter.Int64Counter("fam.contexts.created")
	if err != nil {
		return nil, err
	}
	quietCompleted, err := meter.Int64Counter("fam.quiet.completed")
	if err != nil {
		return nil, err
	}
	fenceCompleted, err := meter.Int64Counter("fam.fence.completed")
	if err != nil {
		return nil, err
	}

	return &OTelMetrics{
		meter:              meter,
		operationCompleted: operationCompleted,
		operationFailed:    operationFailed,
		contextCreated:     contextCreated,
		quietCompleted:     quietCompleted,
		fenceCompleted:     fenceCompleted,
	}, nil
}

// OperationCompleted records a successful datapath operation.
func (o *OTelMetrics) OperationCompleted(attrs map[string]string) {
	o.operationCompleted.Add(context.Background(), 1, metric.WithAttributes(otelAttrsWithOperation(attrs)...))
}

// OperationFailed records a datapath operation that surfaced an error.
func (o *OTelMetrics) OperationFailed(_ error, attrs map[string]string) {
	o.operationFailed.Add(context.Background(), 1, metric.WithAttributes(otelAttrsWithOperation(attrs)...))
}

// ContextCreated records creation of a fabric context.
func (o *OTelMetrics) ContextCreated(attrs map[string]string) {
	o.contextCreated.Add(context.Background(), 1, metric.WithAttributes(otelAttrs(attrs)...))
}

// QuietCompleted records a completed quiet synchronisation.
func (o *OTelMetrics) QuietCompleted(attrs map[string]string) {
	o.quietCompleted.Add(context.Background(), 1, metric.WithAttributes(otelAttrs(attrs)...))
}

// FenceCompleted records a completed fence ordering.
func (o *OTelMetrics) FenceCompleted(attrs map[string]string) {
	o.fenceCompleted.Add(context.Background(), 1, metric.WithAttributes(otelAttrs(attrs)...))
}

func otelAttrs(attrs map[string]string) []attribute.KeyValue {
	kvs := []attribute.KeyValue{
		attribute.String(labelContextModel, attrs[labelContextModel]),
	}
	if v := attrs[labelProvider]; v != "" {
		kvs = append(kvs, attribute.String(labelProvider, v))
	}
	if v := attrs[labelService]; v != "" {
		kvs = append(kvs, attribute.String(labelService, v))
	}
	return kvs
}

func otelAttrsWithOperation(attrs map[string]string) []attribute.KeyValue {
	kvs := otelAttrs(attrs)
	if v := attrs[labelOperation]; v != "" {
		kvs = append(kvs, attribute.String(labelOperation, v))
	}
	return kvs
}
