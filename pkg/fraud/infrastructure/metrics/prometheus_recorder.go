package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/core/metrics"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// durationLabels are the tag keys RecordDuration maps onto histogram labels. Other tags are dropped.
var durationLabels = []string{"name", "pipeline", "state", "status"}

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Run Metrics
	runDurationSeconds *prometheus.HistogramVec
	runStatusCounter   *prometheus.CounterVec

	// State Metrics
	stepDurationSeconds *prometheus.HistogramVec
	stepStatusCounter   *prometheus.CounterVec
	stepRetryCounter    *prometheus.CounterVec

	operationDurationSeconds *prometheus.HistogramVec
}

// NewPrometheusRegistry creates a registry with Go runtime and process collectors.
func NewPrometheusRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

// NewPrometheusRecorder creates a recorder whose metrics live in registry.
func NewPrometheusRecorder(registry *prometheus.Registry) *PrometheusRecorder {
	r := &PrometheusRecorder{
		registry: registry,
		runDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fraudflow_run_duration_seconds",
			Help:    "Duration of pipeline runs.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"pipeline", "status", "exit_status"}),
		runStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fraudflow_run_status_total",
			Help: "Total number of pipeline runs by status.",
		}, []string{"pipeline", "status"}),
		stepDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fraudflow_state_duration_seconds",
			Help:    "Duration of executed states.",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 10),
		}, []string{"pipeline", "state", "status", "exit_status"}),
		stepStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fraudflow_state_status_total",
			Help: "Total number of executed states by status.",
		}, []string{"pipeline", "state", "status"}),
		stepRetryCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fraudflow_state_retry_total",
			Help: "Total state retries by error name.",
		}, []string{"state", "reason"}),
		operationDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fraudflow_operation_duration_seconds",
			Help:    "Duration of named operations such as dashboard queries.",
			Buckets: prometheus.DefBuckets,
		}, durationLabels),
	}

	registry.MustRegister(r.runDurationSeconds)
	registry.MustRegister(r.runStatusCounter)
	registry.MustRegister(r.stepDurationSeconds)
	registry.MustRegister(r.stepStatusCounter)
	registry.MustRegister(r.stepRetryCounter)
	registry.MustRegister(r.operationDurationSeconds)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RecordRunStart records the start of a PipelineRun.
func (r *PrometheusRecorder) RecordRunStart(ctx context.Context, run *model.PipelineRun) {
	r.runStatusCounter.WithLabelValues(run.PipelineName, run.Status.String()).Inc()
	logger.Debugf("Metrics: Run '%s' of '%s' started.", run.ID, run.PipelineName)
}

// RecordRunEnd records the end of a PipelineRun.
func (r *PrometheusRecorder) RecordRunEnd(ctx context.Context, run *model.PipelineRun) {
	r.runStatusCounter.WithLabelValues(run.PipelineName, run.Status.String()).Inc()
	if run.EndTime == nil {
		return
	}
	duration := run.EndTime.Sub(run.StartTime).Seconds()
	r.runDurationSeconds.WithLabelValues(run.PipelineName, run.Status.String(), run.ExitStatus.String()).Observe(duration)
	logger.Debugf("Metrics: Run '%s' ended. Duration: %.3fs", run.ID, duration)
}

// RecordStepStart records the start of a state.
func (r *PrometheusRecorder) RecordStepStart(ctx context.Context, run *model.PipelineRun, step *model.StepRecord) {
	r.stepStatusCounter.WithLabelValues(run.PipelineName, step.StateName, step.Status.String()).Inc()
}

// RecordStepEnd records the end of a state.
func (r *PrometheusRecorder) RecordStepEnd(ctx context.Context, run *model.PipelineRun, step *model.StepRecord) {
	r.stepStatusCounter.WithLabelValues(run.PipelineName, step.StateName, step.Status.String()).Inc()
	if step.EndTime == nil {
		return
	}
	duration := step.EndTime.Sub(step.StartTime).Seconds()
	r.stepDurationSeconds.WithLabelValues(run.PipelineName, step.StateName, step.Status.String(), step.ExitStatus.String()).Observe(duration)
}

// RecordRetry records one retry of a state.
func (r *PrometheusRecorder) RecordRetry(ctx context.Context, stateName string, reason string) {
	r.stepRetryCounter.WithLabelValues(stateName, reason).Inc()
}

// RecordDuration records the execution time of a named operation.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	values := make([]string, len(durationLabels))
	values[0] = name
	for i, label := range durationLabels[1:] {
		values[i+1] = tags[label]
	}
	r.operationDurationSeconds.WithLabelValues(values...).Observe(duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
