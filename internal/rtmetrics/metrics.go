// Package rtmetrics instruments the in-scope core (request queue depth,
// tasks analyzed, tasks in flight) for the harness/tests to assert on. It is
// not the out-of-scope REST control plane — nothing here is served over
// HTTP by this module.
package rtmetrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the collectors one RuntimeContext needs. Each
// RuntimeContext owns its own Registry (no package-level singleton), so
// that multiple runtimes in one process (as in tests) don't collide.
type Registry struct {
	QueueDepth    prometheus.Gauge
	TasksAnalyzed prometheus.Counter
	TasksInFlight prometheus.Gauge
	TasksFailed   prometheus.Counter
	registry      *prometheus.Registry
}

// NewRegistry constructs and registers a fresh set of collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskrt_request_queue_depth",
			Help: "Number of requests currently buffered ahead of the analyzer.",
		}),
		TasksAnalyzed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskrt_tasks_analyzed_total",
			Help: "Number of NEW_TASK requests fully processed by the analyzer.",
		}),
		TasksInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskrt_tasks_in_flight",
			Help: "Number of task executions currently running in the dispatcher harness.",
		}),
		TasksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskrt_tasks_failed_total",
			Help: "Number of tasks that reached FAILED, including cascade failures.",
		}),
		registry: reg,
	}
	reg.MustRegister(r.QueueDepth, r.TasksAnalyzed, r.TasksInFlight, r.TasksFailed)
	return r
}

// Gatherer exposes the underlying prometheus.Gatherer for an embedding
// process's own /metrics endpoint (out of scope here to serve directly).
func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }
