package fam

import "github.com/prometheus/client_golang/prometheus"

// PrometheusMetricsOptions configures NewPrometheusMetrics.
type PrometheusMetricsOptions struct {
	Registerer  prometheus.Registerer
	Namespace   string
	Subsystem   string
	ConstLabels prometheus.Labels
}

var _ MetricHook = (*PrometheusMetrics)(nil)

// PrometheusMetrics implements MetricHook using Prometheus counters.
type PrometheusMetrics struct {
	operationCompleted *prometheus.CounterVec
	operationFailed    *prometheus.CounterVec
	contextCreated     *prometheus.CounterVec
	quietCompleted     *prometheus.CounterVec
	fenceCompleted     *prometheus.CounterVec
}

var (
	operationLabelKeys = []string{labelContextModel, labelProvider, labelService, labelOperation}
	scopeLabelKeys     = []string{labelContextModel, labelProvider, labelService}
)

// NewPrometheusMetrics constructs a MetricHook backed by Prometheus
// counters.
func NewPrometheusMetrics(opts PrometheusMetricsOptions) (*PrometheusMetrics, error) {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &PrometheusMetrics{
		operationCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "fam_operations_completed_total",
			Help:        "Number of datapath operations completed successfully",
			ConstLabels: opts.ConstLabels,
		}, operationLabelKeys),
		operationFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "fam_operations_failed_total",
			Help:        "Number of datapath operations that surfaced an error",
			ConstLabels: opts.ConstLabels,
		}, operationLabelKeys),
		contextCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "fam_contexts_created_total",
			Help:        "Number of fabric contexts created",
			ConstLabels: opts.ConstLabels,
		}, scopeLabelKeys),
		quietCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "fam_quiet_completed_total",
			Help:        "Number of quiet synchronisations completed",
			ConstLabels: opts.ConstLabels,
		}, scopeLabelKeys),
		fenceCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "fam_fence_completed_total",
			Help:        "Number of fence orderings completed",
			ConstLabels: opts.ConstLabels,
		}, scopeLabelKeys),
	}

	var err error
	if p.operationCompleted, err = registerCounterVec(reg, p.operationCompleted); err != nil {
		return nil, err
	}
	if p.operationFailed, err = registerCounterVec(reg, p.operationFailed); err != nil {
		return nil, err
	}
	if p.contextCreated, err = registerCounterVec(reg, p.contextCreated); err != nil {
		return nil, err
	}
	if p.quietCompleted, err = registerCounterVec(reg, p.quietCompleted); err != nil {
		return nil, err
	}
	if p.fenceCompleted, err = registerCounterVec(reg, p.fenceCompleted); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *PrometheusMetrics) OperationCompleted(attrs map[string]string) {
	p.operationCompleted.With(labels(attrs, operationLabelKeys...)).Inc()
}

func (p *PrometheusMetrics) OperationFailed(_ error, attrs map[string]string) {
	p.operationFailed.With(labels(attrs, operationLabelKeys...)).Inc()
}

func (p *PrometheusMetrics) ContextCreated(attrs map[string]string) {
	p.contextCreated.With(labels(attrs, scopeLabelKeys...)).Inc()
}

func (p *PrometheusMetrics) QuietCompleted(attrs map[string]string) {
	p.quietCompleted.With(labels(attrs, scopeLabelKeys...)).Inc()
}

func (p *PrometheusMetrics) FenceCompleted(attrs map[string]string) {
	p.fenceCompleted.With(labels(attrs, scopeLabelKeys...)).Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return vec, nil
}

func labels(attrs map[string]string, keys ...string) prometheus.Labels {
	labs := make(prometheus.Labels, len(keys))
	for _, key := range keys {
		labs[key] = attrs[key]
	}
	return labs
}
