package config

// SchedulerConfig selects the queue discipline and the initial pool size.
type SchedulerConfig struct {
	Discipline string `json:"discipline,omitempty"` // "fifo", "priority", "work-stealing"
	Workers    int    `json:"workers,omitempty"`    // Initial pool size (0 = CPU count)
}

// ScalingConfig tunes the dynamic scaling controller. Zero values fall back
// to the policy defaults.
type ScalingConfig struct {
	Enabled            bool    `json:"enabled"`
	Policy             string  `json:"policy,omitempty"` // "conservative", "aggressive", "adaptive"
	MinWorkers         int     `json:"min_workers,omitempty"`
	MaxWorkers         int     `json:"max_workers,omitempty"`
	ScaleUpThreshold   float64 `json:"scale_up_threshold,omitempty"`
	ScaleDownThreshold float64 `json:"scale_down_threshold,omitempty"`
	CooldownSecs       int     `json:"cooldown_secs,omitempty"`
}

// DecomposeConfig selects the goal decomposition strategy.
type DecomposeConfig struct {
	Strategy    string `json:"strategy,omitempty"` // "by-file", "by-feature", "by-layer", "hybrid", "auto"
	MaxSubtasks int    `json:"max_subtasks,omitempty"`
}

// MonitorConfig tunes the metrics sampler and the optional HTTP endpoint.
type MonitorConfig struct {
	IntervalSecs int    `json:"interval_secs,omitempty"` // Sampling interval
	MetricsAddr  string `json:"metrics_addr,omitempty"`  // Prometheus listen address ("" disables)
}

// HistoryConfig controls run persistence.
type HistoryConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"` // SQLite file path (default ~/.swarm/history.db)
}

// SwarmConfig is the top-level configuration.
type SwarmConfig struct {
	Scheduler SchedulerConfig `json:"scheduler"`
	Scaling   ScalingConfig   `json:"scaling"`
	Decompose DecomposeConfig `json:"decompose"`
	Monitor   MonitorConfig   `json:"monitor"`
	History   HistoryConfig   `json:"history"`
}
