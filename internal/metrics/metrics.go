package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Dispatch metrics
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_dispatch_total",
			Help: "Total number of task dispatches",
		},
		[]string{"agent_type", "status"}, // status: success|error
	)

	DispatchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quorum_dispatch_latency_seconds",
			Help:    "Task dispatch latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"agent_type"},
	)

	// Workflow metrics
	StageExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_stage_executions_total",
			Help: "Total number of workflow stage executions",
		},
		[]string{"stage", "status"}, // status: success|error
	)

	WorkflowRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_workflow_runs_total",
			Help: "Total number of workflow runs",
		},
		[]string{"status"}, // status: success|error|cancelled
	)

	WorkflowDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quorum_workflow_duration_seconds",
			Help:    "End-to-end workflow duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	// Registry metrics
	RegisteredAgents = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quorum_registered_agents",
			Help: "Number of registered agents by type",
		},
		[]string{"agent_type"},
	)

	// Health metrics
	SystemHealthRatio = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quorum_system_health_ratio",
			Help: "Fraction of registered agents passing health checks",
		},
	)

	HealthCheckFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_health_check_failures_total",
			Help: "Total number of failed agent health probes",
		},
		[]string{"agent_type"},
	)
)

// Register registers all collectors with the default registry
func Register() {
	prometheus.MustRegister(
		DispatchTotal,
		DispatchLatency,
		StageExecutions,
		WorkflowRuns,
		WorkflowDuration,
		RegisteredAgents,
		SystemHealthRatio,
		HealthCheckFailures,
	)
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
