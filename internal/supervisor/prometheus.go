package supervisor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetricsCollector implements MetricsCollector using Prometheus metrics
type PrometheusMetricsCollector struct {
	stateTransitions *prometheus.CounterVec
	restarts         *prometheus.CounterVec
	spawnFailures    *prometheus.CounterVec
	treeKillDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewPrometheusMetricsCollector creates a collector with its own registry
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	if namespace == "" {
		namespace = "relic"
	}

	pmc := &PrometheusMetricsCollector{
		registry: prometheus.NewRegistry(),
	}

	pmc.stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_state_transitions_total",
			Help:      "Total number of process state transitions",
		},
		[]string{"process_id", "from_state", "to_state"},
	)

	pmc.restarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_restarts_total",
			Help:      "Total number of automatic restarts after a crash",
		},
		[]string{"process_id"},
	)

	pmc.spawnFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_spawn_failures_total",
			Help:      "Total number of failed process starts",
		},
		[]string{"process_id"},
	)

	pmc.treeKillDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_tree_kill_duration_seconds",
			Help:      "Duration of process tree terminations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"process_id", "status"},
	)

	pmc.registry.MustRegister(
		pmc.stateTransitions,
		pmc.restarts,
		pmc.spawnFailures,
		pmc.treeKillDuration,
	)

	return pmc
}

// StateTransition records a state transition
func (pmc *PrometheusMetricsCollector) StateTransition(id string, from, to State) {
	pmc.stateTransitions.WithLabelValues(id, from.String(), to.String()).Inc()
}

// Restart records an automatic restart
func (pmc *PrometheusMetricsCollector) Restart(id string) {
	pmc.restarts.WithLabelValues(id).Inc()
}

// SpawnFailure records a failed start
func (pmc *PrometheusMetricsCollector) SpawnFailure(id string) {
	pmc.spawnFailures.WithLabelValues(id).Inc()
}

// TreeKill records the duration of a tree kill
func (pmc *PrometheusMetricsCollector) TreeKill(id string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	pmc.treeKillDuration.WithLabelValues(id, status).Observe(duration.Seconds())
}

// Registry returns the Prometheus registry for HTTP handler setup
func (pmc *PrometheusMetricsCollector) Registry() *prometheus.Registry {
	return pmc.registry
}

// Handler serves the collected metrics
func (pmc *PrometheusMetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(pmc.registry, promhttp.HandlerOpts{})
}

var _ MetricsCollector = (*PrometheusMetricsCollector)(nil)
