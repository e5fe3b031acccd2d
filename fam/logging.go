package fam

import (
	"fmt"
	"strings"
)

// Logger provides printf-style debug logging hooks for the engine.
type Logger interface {
	Debugf(format string, args ...any)
}

// StructuredLogger emits key/value pairs for structured logging backends.
// *zap.SugaredLogger satisfies it directly.
type StructuredLogger interface {
	Debugw(msg string, keyvals ...any)
}

// TraceAttribute is a tracing attribute attached to engine spans.
type TraceAttribute struct {
	Key   string
	Value any
}

// Tracer starts spans that wrap engine activity.
type Tracer interface {
	StartSpan(name string, attrs ...TraceAttribute) Span
}

// Span records engine activity for tracing systems.
type Span interface {
	End(err error)
	AddEvent(name string, attrs ...TraceAttribute)
	RecordError(err error)
}

// MetricHook captures datapath telemetry events.
type MetricHook interface {
	OperationCompleted(attrs map[string]string)
	OperationFailed(err error, attrs map[string]string)
	ContextCreated(attrs map[string]string)
	QuietCompleted(attrs map[string]string)
	FenceCompleted(attrs map[string]string)
}

const (
	labelProvider     = "provider"
	labelContextModel = "context_model"
	labelService      = "service"
	labelOperation    = "operation"
)

type logField struct {
	key   string
	value any
}

func logKV(key string, value any) logField {
	return logField{key: key, value: value}
}

func (o *Ops) metricAttrs(fields ...logField) map[string]string {
	attrs := make(map[string]string, len(fields)+3)
	attrs[labelContextModel] = o.cfg.ContextModel.String()
	if o.cfg.Provider != "" {
		attrs[labelProvider] = o.cfg.Provider
	}
	if o.cfg.Service != "" {
		attrs[labelService] = o.cfg.Service
	}
	for _, field := range fields {
		if field.key == "" {
			continue
		}
		attrs[field.key] = fmt.Sprint(field.value)
	}
	return attrs
}

func (o *Ops) logEvent(event string, fields ...logField) {
	if o == nil {
		return
	}
	if o.structuredLogger != nil {
		kv := make([]any, 0, len(fields)*2+2)
		kv = append(kv, "event", event)
		for _, field := range fields {
			if field.key == "" {
				continue
			}
			kv = append(kv, field.key, field.value)
		}
		o.structuredLogger.Debugw("fam datapath", kv...)
		return
	}
	if o.logger == nil {
		return
	}
	var b strings.Builder
	b.WriteString(event)
	for _, field := range fields {
		if field.key == "" {
			continue
		}
		b.WriteString(" ")
		b.WriteString(field.key)
		b.WriteString("=")
		b.WriteString(fmt.Sprint(field.value))
	}
	o.logger.Debugf("fam datapath %s", b.String())
}

func (o *Ops) metricOperationCompleted(op string) {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.OperationCompleted(o.metricAttrs(logKV(labelOperation, op)))
}

func (o *Ops) metricOperationFailed(op string, err error) {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.OperationFailed(err, o.metricAttrs(logKV(labelOperation, op)))
}

func (o *Ops) metricContextCreated(fields ...logField) {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.ContextCreated(o.metricAttrs(fields...))
}

func (o *Ops) metricQuietCompleted() {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.QuietCompleted(o.metricAttrs())
}

func (o *Ops) metricFenceCompleted() {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.FenceCompleted(o.metricAttrs())
}

type noopSpan struct{}

func (noopSpan) End(error)                          {}
func (noopSpan) AddEvent(string, ...TraceAttribute) {}
func (noopSpan) RecordError(error)                  {}

func (o *Ops) startSpan(name string, attrs ...TraceAttribute) Span {
	if o == nil || o.tracer == nil {
		return noopSpan{}
	}
	if span := o.tracer.StartSpan(name, attrs...); span != nil {
		return span
	}
	return noopSpan{}
}
