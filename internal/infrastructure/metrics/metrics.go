// Package metrics exposes Prometheus metrics for workflow runs, node
// executions, cache traffic and backend requests. Each Collector owns its
// registry so tests and multiple runtimes never collide on registration.
// All methods are safe on a nil *Collector.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the engine
type Collector struct {
	registry *prometheus.Registry

	// Scheduler metrics
	Runs         *prometheus.CounterVec
	NodeExecs    *prometheus.CounterVec
	NodeDuration *prometheus.HistogramVec
	ActiveRuns   prometheus.Gauge

	// Store metrics
	GraphMutations *prometheus.CounterVec
	HistoryDepth   prometheus.Gauge

	// Cache metrics
	CacheOps      *prometheus.CounterVec
	CacheDuration *prometheus.HistogramVec

	// Backend metrics
	BackendRequests *prometheus.CounterVec
	BreakerState    *prometheus.GaugeVec
}

// NewCollector creates a collector with the given namespace
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "Workflow runs by terminal status",
		}, []string{"status"}),
		NodeExecs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_executions_total",
			Help:      "Node executions by node type and outcome",
		}, []string{"type", "status"}),
		NodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_execution_duration_seconds",
			Help:      "Node execution duration in seconds",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"type"}),
		ActiveRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workflow_runs_active",
			Help:      "Whether a run is in progress",
		}),
		GraphMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_mutations_total",
			Help:      "Graph store mutations by operation",
		}, []string{"op"}),
		HistoryDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_depth",
			Help:      "Number of snapshots on the undo stack",
		}),
		CacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Image cache operations by operation and outcome",
		}, []string{"op", "status"}),
		CacheDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_operation_duration_seconds",
			Help:      "Image cache operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Generation backend requests by provider, kind and outcome",
		}, []string{"provider", "kind", "status"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"name"}),
	}
	c.registry.MustRegister(
		c.Runs, c.NodeExecs, c.NodeDuration, c.ActiveRuns,
		c.GraphMutations, c.HistoryDepth,
		c.CacheOps, c.CacheDuration,
		c.BackendRequests, c.BreakerState,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// RecordRun counts a finished run.
func (c *Collector) RecordRun(status string) {
	if c == nil {
		return
	}
	c.Runs.WithLabelValues(status).Inc()
}

// SetRunning flips the active-run gauge.
func (c *Collector) SetRunning(running bool) {
	if c == nil {
		return
	}
	if running {
		c.ActiveRuns.Set(1)
	} else {
		c.ActiveRuns.Set(0)
	}
}

// RecordNode counts one node execution.
func (c *Collector) RecordNode(nodeType, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.NodeExecs.WithLabelValues(nodeType, status).Inc()
	c.NodeDuration.WithLabelValues(nodeType).Observe(d.Seconds())
}

// RecordMutation counts one store mutation.
func (c *Collector) RecordMutation(op string) {
	if c == nil {
		return
	}
	c.GraphMutations.WithLabelValues(op).Inc()
}

// SetHistoryDepth reports the undo stack size.
func (c *Collector) SetHistoryDepth(n int) {
	if c == nil {
		return
	}
	c.HistoryDepth.Set(float64(n))
}

// RecordCache counts one cache operation.
func (c *Collector) RecordCache(op string, err error, d time.Duration) {
	if c == nil {
		return
	}
	c.CacheOps.WithLabelValues(op, outcome(err)).Inc()
	c.CacheDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordBackend counts one backend request.
func (c *Collector) RecordBackend(provider, kind string, success bool) {
	if c == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	c.BackendRequests.WithLabelValues(provider, kind, status).Inc()
}

// SetBreakerState reports a breaker state as 0, 1 or 2.
func (c *Collector) SetBreakerState(name string, state int) {
	if c == nil {
		return
	}
	c.BreakerState.WithLabelValues(name).Set(float64(state))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
