package config

import (
	"time"

	"github.com/aristath/swarm/internal/decompose"
	"github.com/aristath/swarm/internal/scaling"
	"github.com/aristath/swarm/internal/scheduler"
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *SwarmConfig {
	return &SwarmConfig{
		Scheduler: SchedulerConfig{
			Discipline: "work-stealing",
			Workers:    0, // CPU count
		},
		Scaling: ScalingConfig{
			Enabled: true,
			Policy:  "adaptive",
		},
		Decompose: DecomposeConfig{
			Strategy:    "auto",
			MaxSubtasks: 10,
		},
		Monitor: MonitorConfig{
			IntervalSecs: 5,
			MetricsAddr:  "",
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// SchedulerDiscipline resolves the configured discipline name.
func (c *SwarmConfig) SchedulerDiscipline() (scheduler.Discipline, error) {
	if c.Scheduler.Discipline == "" {
		return scheduler.DisciplineWorkStealing, nil
	}
	return scheduler.ParseDiscipline(c.Scheduler.Discipline)
}

// DecomposeStrategy resolves the configured strategy name.
func (c *SwarmConfig) DecomposeStrategy() (decompose.Strategy, error) {
	return decompose.ParseStrategy(c.Decompose.Strategy)
}

// ScalingConfig builds a scaling.Config from the policy defaults plus any
// explicit overrides in the file.
func (c *SwarmConfig) ScalingConfig() (scaling.Config, error) {
	policy := scaling.PolicyAdaptive
	if c.Scaling.Policy != "" {
		var err error
		policy, err = scaling.ParsePolicy(c.Scaling.Policy)
		if err != nil {
			return scaling.Config{}, err
		}
	}

	cfg := scaling.DefaultConfig(policy)
	if c.Scaling.MinWorkers > 0 {
		cfg.MinWorkers = c.Scaling.MinWorkers
	}
	if c.Scaling.MaxWorkers > 0 {
		cfg.MaxWorkers = c.Scaling.MaxWorkers
	}
	if c.Scaling.ScaleUpThreshold > 0 {
		cfg.ScaleUpThreshold = c.Scaling.ScaleUpThreshold
	}
	if c.Scaling.ScaleDownThreshold > 0 {
		cfg.ScaleDownThreshold = c.Scaling.ScaleDownThreshold
	}
	if c.Scaling.CooldownSecs > 0 {
		cfg.CooldownPeriod = time.Duration(c.Scaling.CooldownSecs) * time.Second
	}

	if err := cfg.Validate(); err != nil {
		return scaling.Config{}, err
	}
	return cfg, nil
}
