package scaling

import (
	"fmt"
	"runtime"
	"time"
)

// Policy selects the scaling strategy.
type Policy int

const (
	// PolicyConservative scales slowly and only on sustained pressure.
	PolicyConservative Policy = iota
	// PolicyAggressive reacts to the latest sample alone with larger steps.
	PolicyAggressive
	// PolicyAdaptive follows the utilization trend across the window.
	PolicyAdaptive
)

// String returns the config-file name of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyConservative:
		return "conservative"
	case PolicyAggressive:
		return "aggressive"
	case PolicyAdaptive:
		return "adaptive"
	}
	return "unknown"
}

// ParsePolicy converts a config-file name into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "conservative":
		return PolicyConservative, nil
	case "aggressive":
		return PolicyAggressive, nil
	case "adaptive":
		return PolicyAdaptive, nil
	}
	return 0, fmt.Errorf("unknown scaling policy %q", s)
}

// Config holds the scaling policy plus its thresholds and bounds. Threshold
// values are configuration, not constants: the defaults below are
// representative, not authoritative.
type Config struct {
	Policy             Policy
	MinWorkers         int
	MaxWorkers         int
	ScaleUpThreshold   float64       // Utilization above this favors scaling up
	ScaleDownThreshold float64       // Utilization below this favors scaling down
	MidThreshold       float64       // Adaptive: trend decisions need utilization past this
	CooldownPeriod     time.Duration // Minimum time between non-NoOp decisions
	ScaleUpStep        int
	ScaleDownStep      int
	WindowSize         int // Retained metrics samples (rolling)
	MinSamples         int // Samples required before window-based policies act
}

// DefaultConfig returns the default configuration for a policy.
func DefaultConfig(policy Policy) Config {
	base := Config{
		Policy:       policy,
		MinWorkers:   2,
		MaxWorkers:   maxProcs(),
		MidThreshold: 0.6,
		WindowSize:   100,
		MinSamples:   3,
	}

	switch policy {
	case PolicyAggressive:
		base.MinWorkers = 1
		base.MaxWorkers = maxProcs() * 2
		base.ScaleUpThreshold = 0.7
		base.ScaleDownThreshold = 0.4
		base.CooldownPeriod = 10 * time.Second
		base.ScaleUpStep = 2
		base.ScaleDownStep = 1
	case PolicyAdaptive:
		base.MinWorkers = 1
		base.MaxWorkers = maxProcs() * 2
		base.ScaleUpThreshold = 0.85
		base.ScaleDownThreshold = 0.3
		base.CooldownPeriod = 30 * time.Second
		base.ScaleUpStep = 1
		base.ScaleDownStep = 1
	default: // PolicyConservative
		base.ScaleUpThreshold = 0.85
		base.ScaleDownThreshold = 0.3
		base.CooldownPeriod = 60 * time.Second
		base.ScaleUpStep = 1
		base.ScaleDownStep = 1
	}

	return base
}

// Validate rejects misconfiguration at construction time, failing fast
// rather than producing silently-clamped decisions later.
func (c Config) Validate() error {
	if c.MinWorkers < 1 {
		return fmt.Errorf("min_workers must be at least 1, got %d", c.MinWorkers)
	}
	if c.MaxWorkers < c.MinWorkers {
		return fmt.Errorf("max_workers (%d) must be >= min_workers (%d)", c.MaxWorkers, c.MinWorkers)
	}
	if c.ScaleUpThreshold <= c.ScaleDownThreshold {
		return fmt.Errorf("scale_up_threshold (%.2f) must exceed scale_down_threshold (%.2f)",
			c.ScaleUpThreshold, c.ScaleDownThreshold)
	}
	if c.ScaleUpStep < 1 || c.ScaleDownStep < 1 {
		return fmt.Errorf("scaling steps must be at least 1")
	}
	if c.CooldownPeriod < 0 {
		return fmt.Errorf("cooldown_period must not be negative")
	}
	if c.WindowSize < 1 {
		return fmt.Errorf("window_size must be at least 1, got %d", c.WindowSize)
	}
	return nil
}

func maxProcs() int {
	return runtime.GOMAXPROCS(0)
}
