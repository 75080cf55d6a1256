package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRegistersAndCounts(t *testing.T) {
	c := NewCollector()

	c.TasksCompleted.Inc()
	c.TasksCompleted.Inc()
	c.TasksFailed.Inc()
	c.QueueDepth.Set(5)
	c.ScalingDecisions.WithLabelValues("scale-up").Inc()

	if got := testutil.ToFloat64(c.TasksCompleted); got != 2 {
		t.Errorf("tasks_completed_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.TasksFailed); got != 1 {
		t.Errorf("tasks_failed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.QueueDepth); got != 5 {
		t.Errorf("queue_depth = %v, want 5", got)
	}
	if got := testutil.ToFloat64(c.ScalingDecisions.WithLabelValues("scale-up")); got != 1 {
		t.Errorf("scaling_decisions_total{direction=scale-up} = %v, want 1", got)
	}
}

// TestCollectorsAreIsolated verifies two collectors never share counters,
// the reason the package avoids a global registry.
func TestCollectorsAreIsolated(t *testing.T) {
	a := NewCollector()
	b := NewCollector()

	a.TasksCompleted.Inc()

	if got := testutil.ToFloat64(b.TasksCompleted); got != 0 {
		t.Errorf("second collector tasks_completed_total = %v, want 0", got)
	}
}

func TestCollectorWithExternalRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectorWith(reg)

	c.PoolSize.Set(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "swarm_pool_size" {
			found = true
		}
	}
	if !found {
		t.Error("swarm_pool_size not registered with external registry")
	}

	if c.Registry() != nil {
		t.Error("Registry() non-nil for externally registered collector")
	}
}
