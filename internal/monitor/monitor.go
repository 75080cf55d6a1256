// Package monitor samples runtime and scheduler load on an interval and
// feeds the scaling controller. It is the glue between the scheduler's load
// snapshot and the controller's decision loop.
package monitor

import (
	"context"
	"runtime"
	"time"

	"github.com/aristath/swarm/internal/scaling"
	"github.com/aristath/swarm/internal/scheduler"
)

// CPUProbe returns CPU utilization in [0, 1]. The default probe approximates
// it from pool saturation; hosts with a real measurement source can inject
// their own.
type CPUProbe func() float64

// SnapshotFunc returns the current scheduler load view.
type SnapshotFunc func() scheduler.Snapshot

// Sampler produces SystemMetrics samples from the Go runtime and the
// scheduler.
type Sampler struct {
	snapshot SnapshotFunc
	cpuProbe CPUProbe
}

// NewSampler creates a Sampler over the given snapshot source. A nil probe
// uses the saturation approximation.
func NewSampler(snapshot SnapshotFunc, probe CPUProbe) *Sampler {
	s := &Sampler{
		snapshot: snapshot,
		cpuProbe: probe,
	}
	if s.cpuProbe == nil {
		s.cpuProbe = s.saturationProbe
	}
	return s
}

// Sample takes one metrics sample.
func (s *Sampler) Sample() scaling.SystemMetrics {
	snap := s.snapshot()

	return scaling.SystemMetrics{
		CPUUtilization:    s.cpuProbe(),
		MemoryUtilization: memoryUtilization(),
		QueueLength:       snap.QueueDepth,
		ActiveWorkers:     snap.ActiveWorkers,
	}
}

// saturationProbe approximates CPU load as the fraction of logical CPUs kept
// busy by active workers.
func (s *Sampler) saturationProbe() float64 {
	snap := s.snapshot()
	procs := runtime.GOMAXPROCS(0)
	if procs == 0 {
		return 0
	}
	util := float64(snap.ActiveWorkers) / float64(procs)
	if util > 1 {
		util = 1
	}
	return util
}

// memoryUtilization reports heap in-use relative to the runtime's current
// heap goal. This tracks GC pressure rather than OS-level memory.
func memoryUtilization() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	if ms.NextGC == 0 {
		return 0
	}
	util := float64(ms.HeapInuse) / float64(ms.NextGC)
	if util > 1 {
		util = 1
	}
	return util
}

// Loop ties the sampler to a scaling controller.
type Loop struct {
	sampler    *Sampler
	controller *scaling.Controller
	interval   time.Duration
}

// NewLoop creates a monitoring loop. Interval defaults to 5s.
func NewLoop(sampler *Sampler, controller *scaling.Controller, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Loop{
		sampler:    sampler,
		controller: controller,
		interval:   interval,
	}
}

// Run samples on each tick, records the sample, and applies any scaling
// decision. Blocks until the context is cancelled.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		l.Tick()
	}
}

// Tick performs one sample-decide-apply cycle. The decision sees the sample
// as the newest window entry; recording happens after, so the sample is not
// counted twice.
func (l *Loop) Tick() {
	sample := l.sampler.Sample()
	d := l.controller.ShouldScale(sample)
	l.controller.RecordMetrics(sample)

	if d.Action != scaling.ActionNone {
		l.controller.ApplyScaling(d)
	}
}
