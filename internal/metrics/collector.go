// Package metrics provides Prometheus instrumentation for the scheduler,
// runner, and scaling controller. Unlike a package-level metrics singleton,
// the Collector is an explicit instance constructed once at startup and
// passed by reference to every component that needs it, so tests can use
// isolated registries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all swarm metrics, registered against a single registry.
type Collector struct {
	registry *prometheus.Registry

	// Scheduler
	QueueDepth     prometheus.Gauge
	ActiveWorkers  prometheus.Gauge
	PoolSize       prometheus.Gauge
	TasksCompleted prometheus.Counter
	TasksFailed    prometheus.Counter
	TasksStolen    prometheus.Counter
	TaskDuration   prometheus.Histogram

	// Scaling
	ScalingDecisions *prometheus.CounterVec
}

// NewCollector creates a Collector backed by its own registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := newCollector(reg)
	c.registry = reg
	return c
}

// NewCollectorWith registers the metrics against an existing registerer,
// for hosts that already run a Prometheus registry.
func NewCollectorWith(reg prometheus.Registerer) *Collector {
	return newCollector(reg)
}

func newCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "swarm",
			Name:      "queue_depth",
			Help:      "Number of pending plus ready tasks in the queue.",
		}),
		ActiveWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "swarm",
			Name:      "active_workers",
			Help:      "Number of workers with an in-flight task.",
		}),
		PoolSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "swarm",
			Name:      "pool_size",
			Help:      "Current desired worker pool size.",
		}),
		TasksCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "tasks_completed_total",
			Help:      "Total tasks completed successfully.",
		}),
		TasksFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "tasks_failed_total",
			Help:      "Total tasks that finished with an error.",
		}),
		TasksStolen: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "tasks_stolen_total",
			Help:      "Total tasks stolen across worker sub-queues.",
		}),
		TaskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "swarm",
			Name:      "task_duration_seconds",
			Help:      "Task execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		ScalingDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "scaling_decisions_total",
			Help:      "Total applied scaling decisions by direction.",
		}, []string{"direction"}),
	}
}

// Registry returns the collector's own registry, or nil when the collector
// was built against an external registerer.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
