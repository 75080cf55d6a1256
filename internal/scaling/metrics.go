package scaling

// SystemMetrics is a point-in-time sample of utilization signals, produced
// by an external monitor and fed into the Controller. Samples are immutable;
// the controller timestamps them implicitly by arrival order.
type SystemMetrics struct {
	CPUUtilization    float64 `json:"cpu_utilization"`    // 0.0 to 1.0
	MemoryUtilization float64 `json:"memory_utilization"` // 0.0 to 1.0
	QueueLength       int     `json:"queue_length"`       // Pending + Ready entries
	ActiveWorkers     int     `json:"active_workers"`     // Slots currently assigned
}

// Weights for the blended load score. CPU dominates, queue pressure is a
// strong secondary signal, memory and pool saturation round it out.
const (
	cpuWeight    = 0.4
	memoryWeight = 0.2
	queueWeight  = 0.3
	workerWeight = 0.1
)

// LoadScore blends the sample into a single 0.0-1.0+ pressure value.
// Queue pressure is queue length normalized against the active worker count.
func (m SystemMetrics) LoadScore() float64 {
	queuePressure := 1.0
	if m.ActiveWorkers > 0 {
		queuePressure = float64(m.QueueLength) / float64(m.ActiveWorkers)
		if queuePressure > 1.0 {
			queuePressure = 1.0
		}
	} else if m.QueueLength == 0 {
		queuePressure = 0.0
	}

	workerPressure := clamp01(float64(m.ActiveWorkers) / float64(maxProcs()))

	return m.CPUUtilization*cpuWeight +
		m.MemoryUtilization*memoryWeight +
		queuePressure*queueWeight +
		workerPressure*workerWeight
}

// clamped returns a copy with utilization values clamped to [0, 1].
// Out-of-range values from upstream measurement glitches are corrected
// rather than rejected.
func (m SystemMetrics) clamped() SystemMetrics {
	m.CPUUtilization = clamp01(m.CPUUtilization)
	m.MemoryUtilization = clamp01(m.MemoryUtilization)
	if m.QueueLength < 0 {
		m.QueueLength = 0
	}
	if m.ActiveWorkers < 0 {
		m.ActiveWorkers = 0
	}
	return m
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
