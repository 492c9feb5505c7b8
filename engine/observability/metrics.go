// Package observability provides Prometheus metrics and OpenTelemetry tracing
// for the pipeline engine.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// WORKFLOW METRICS
// =============================================================================

var (
	workflowRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_workflow_runs_total",
			Help: "Total number of workflow runs",
		},
		[]string{"workflow", "state"}, // state: completed, terminated_early, failed
	)

	workflowDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_workflow_duration_seconds",
			Help:    "Workflow run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"workflow"},
	)

	workflowLoopIterations = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_workflow_loop_iterations",
			Help:    "Iterations consumed per loop directive",
			Buckets: []float64{1, 2, 3, 5, 8, 13},
		},
		[]string{"workflow"},
	)
)

// =============================================================================
// STEP METRICS
// =============================================================================

var (
	stepExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_step_executions_total",
			Help: "Total number of step executions",
		},
		[]string{"step", "status"}, // status: success, error, stopped
	)

	stepDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_step_duration_seconds",
			Help:    "Step execution duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"step"},
	)
)

// =============================================================================
// GENERATION METRICS
// =============================================================================

var (
	generationCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_generation_calls_total",
			Help: "Total number of text generation calls",
		},
		[]string{"step", "status"}, // status: success, error
	)

	generationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_generation_duration_seconds",
			Help:    "Text generation call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"step"},
	)
)

// =============================================================================
// FALLBACK METRICS
// =============================================================================

var (
	fallbackSelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_fallback_selections_total",
			Help: "Strategy selections by outcome",
		},
		[]string{"selector", "approach"}, // approach: primary strategy name or fallback
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

// RecordWorkflowRun records workflow run metrics after a run finishes.
func RecordWorkflowRun(workflow string, state string, durationMS int64) {
	workflowRunsTotal.WithLabelValues(workflow, state).Inc()
	workflowDurationSeconds.WithLabelValues(workflow).Observe(float64(durationMS) / 1000.0)
}

// RecordLoopIterations records iterations consumed by one loop directive.
func RecordLoopIterations(workflow string, iterations int) {
	workflowLoopIterations.WithLabelValues(workflow).Observe(float64(iterations))
}

// RecordStepExecution records step execution metrics after a step completes.
func RecordStepExecution(step string, status string, durationMS int64) {
	stepExecutionsTotal.WithLabelValues(step, status).Inc()
	stepDurationSeconds.WithLabelValues(step).Observe(float64(durationMS) / 1000.0)
}

// RecordGenerationCall records a text generation call made by a step.
func RecordGenerationCall(step string, status string, durationMS int64) {
	generationCallsTotal.WithLabelValues(step, status).Inc()
	generationDurationSeconds.WithLabelValues(step).Observe(float64(durationMS) / 1000.0)
}

// RecordFallbackSelection records which approach a selector settled on.
func RecordFallbackSelection(selector string, approach string) {
	fallbackSelectionsTotal.WithLabelValues(selector, approach).Inc()
}
