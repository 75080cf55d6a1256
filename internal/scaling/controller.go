package scaling

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/aristath/swarm/internal/events"
	"github.com/aristath/swarm/internal/metrics"
)

// Action is the direction of a scaling decision.
type Action int

const (
	ActionNone Action = iota
	ActionScaleUp
	ActionScaleDown
)

// String returns a human-readable action name.
func (a Action) String() string {
	switch a {
	case ActionScaleUp:
		return "scale-up"
	case ActionScaleDown:
		return "scale-down"
	}
	return "no-op"
}

// Decision is a scaling recommendation. Delta is zero iff Action is ActionNone.
type Decision struct {
	Action Action
	Delta  int
}

// NoOp is the decision that changes nothing.
var NoOp = Decision{Action: ActionNone}

// ScaleUp returns a decision to add n workers.
func ScaleUp(n int) Decision { return Decision{Action: ActionScaleUp, Delta: n} }

// ScaleDown returns a decision to remove n workers.
func ScaleDown(n int) Decision { return Decision{Action: ActionScaleDown, Delta: n} }

// Resizer is invoked with the new pool size after a decision is applied.
// In an integrated deployment this is Scheduler.ResizePool.
type Resizer func(workers int)

// Deps carries the controller's optional collaborators.
type Deps struct {
	Resizer Resizer
	Bus     *events.Bus
	Metrics *metrics.Collector
	Clock   func() time.Time // Overridable for tests; defaults to time.Now
}

// Controller consumes metrics history and the current worker count, applies
// the configured policy plus cooldown rules, and emits scaling decisions.
//
// The controller is a two-state machine: it is eligible to decide (idle)
// until a non-NoOp decision is applied, after which it suppresses decisions
// (cooldown) until CooldownPeriod has elapsed.
//
// ShouldScale and ApplyScaling are deliberately separate so hosts can log or
// veto a decision before applying it.
type Controller struct {
	mu         sync.Mutex
	cfg        Config
	workers    int
	lastAction time.Time // Zero until the first non-NoOp decision
	history    []SystemMetrics
	now        func() time.Time
	deps       Deps
}

// New creates a Controller. The configuration is validated up front; the
// initial worker count is MinWorkers.
func New(cfg Config, deps Deps) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	return &Controller{
		cfg:     cfg,
		workers: cfg.MinWorkers,
		now:     now,
		deps:    deps,
	}, nil
}

// SetWorkerCount overrides the controller's view of the pool size, for hosts
// whose scheduler starts with a different count than MinWorkers.
func (c *Controller) SetWorkerCount(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n < c.cfg.MinWorkers {
		n = c.cfg.MinWorkers
	}
	if n > c.cfg.MaxWorkers {
		n = c.cfg.MaxWorkers
	}
	c.workers = n
}

// WorkerCount returns the controller's current worker count.
func (c *Controller) WorkerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workers
}

// RecordMetrics appends a sample to the rolling history, evicting the oldest
// once the window is full. Utilization values are clamped to [0, 1].
func (c *Controller) RecordMetrics(sample SystemMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, sample.clamped())
	if len(c.history) > c.cfg.WindowSize {
		c.history = c.history[len(c.history)-c.cfg.WindowSize:]
	}
}

// History returns a copy of the retained samples, oldest first.
func (c *Controller) History() []SystemMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SystemMetrics(nil), c.history...)
}

// InCooldown reports whether decisions are currently suppressed.
func (c *Controller) InCooldown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inCooldownLocked()
}

func (c *Controller) inCooldownLocked() bool {
	if c.lastAction.IsZero() {
		return false
	}
	return c.now().Sub(c.lastAction) < c.cfg.CooldownPeriod
}

// ShouldScale evaluates the policy against the current sample and the
// retained history. Returns NoOp immediately during cooldown. Decisions are
// clamped to [MinWorkers, MaxWorkers]; a step that cannot move collapses to
// NoOp.
func (c *Controller) ShouldScale(current SystemMetrics) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inCooldownLocked() {
		return NoOp
	}

	current = current.clamped()

	var d Decision
	switch c.cfg.Policy {
	case PolicyAggressive:
		d = c.aggressiveLocked(current)
	case PolicyAdaptive:
		d = c.adaptiveLocked(current)
	default:
		d = c.conservativeLocked(current)
	}

	return c.clampLocked(d)
}

// conservativeLocked scales only when both CPU and memory are past the
// threshold across the whole retained window, preventing single-spike
// overreaction.
func (c *Controller) conservativeLocked(current SystemMetrics) Decision {
	window := append(append([]SystemMetrics(nil), c.history...), current)
	if len(window) < c.cfg.MinSamples {
		return NoOp
	}

	sustainedHigh, sustainedLow := true, true
	for _, m := range window {
		if m.CPUUtilization <= c.cfg.ScaleUpThreshold || m.MemoryUtilization <= c.cfg.ScaleUpThreshold {
			sustainedHigh = false
		}
		if m.CPUUtilization >= c.cfg.ScaleDownThreshold || m.MemoryUtilization >= c.cfg.ScaleDownThreshold {
			sustainedLow = false
		}
	}

	if sustainedHigh {
		return ScaleUp(c.cfg.ScaleUpStep)
	}
	if sustainedLow {
		return ScaleDown(c.cfg.ScaleDownStep)
	}
	return NoOp
}

// aggressiveLocked reacts to the latest sample alone, trading stability for
// responsiveness.
func (c *Controller) aggressiveLocked(current SystemMetrics) Decision {
	peak := math.Max(current.CPUUtilization, current.MemoryUtilization)

	if peak >= c.cfg.ScaleUpThreshold {
		return ScaleUp(c.cfg.ScaleUpStep)
	}
	if peak <= c.cfg.ScaleDownThreshold {
		return ScaleDown(c.cfg.ScaleDownStep)
	}
	return NoOp
}

// adaptiveLocked computes a least-squares slope of the load score over the
// window. A rising trend above the mid threshold scales up proportionally to
// the steepness; a falling trend below it scales down. A flat trend falls
// back to conservative evaluation.
func (c *Controller) adaptiveLocked(current SystemMetrics) Decision {
	const flatSlope = 0.01

	window := append(append([]SystemMetrics(nil), c.history...), current)
	if len(window) < c.cfg.MinSamples {
		return c.conservativeLocked(current)
	}

	slope := loadTrend(window)
	score := current.LoadScore()

	switch {
	case slope > flatSlope && score > c.cfg.MidThreshold:
		// Steeper trends take bigger steps, capped at twice the configured step.
		steps := int(math.Ceil(slope / 0.05))
		if steps < 1 {
			steps = 1
		}
		if max := c.cfg.ScaleUpStep * 2; steps > max {
			steps = max
		}
		return ScaleUp(steps)
	case slope < -flatSlope && score < c.cfg.MidThreshold:
		return ScaleDown(c.cfg.ScaleDownStep)
	default:
		return c.conservativeLocked(current)
	}
}

// loadTrend returns the least-squares slope of LoadScore per sample index.
func loadTrend(window []SystemMetrics) float64 {
	n := float64(len(window))
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, m := range window {
		x := float64(i)
		y := m.LoadScore()
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// clampLocked bounds a decision to [MinWorkers, MaxWorkers], reducing the
// delta to fit and collapsing to NoOp when no movement is possible.
func (c *Controller) clampLocked(d Decision) Decision {
	switch d.Action {
	case ActionScaleUp:
		room := c.cfg.MaxWorkers - c.workers
		if room <= 0 {
			return NoOp
		}
		if d.Delta > room {
			d.Delta = room
		}
	case ActionScaleDown:
		room := c.workers - c.cfg.MinWorkers
		if room <= 0 {
			return NoOp
		}
		if d.Delta > room {
			d.Delta = room
		}
	default:
		return NoOp
	}
	return d
}

// ApplyScaling applies a decision: updates the worker count, records the
// decision timestamp (entering cooldown), invokes the resizer, and publishes
// an event. NoOp decisions change nothing. Returns the resulting worker
// count.
func (c *Controller) ApplyScaling(d Decision) int {
	c.mu.Lock()

	d = c.clampLocked(d)
	if d.Action == ActionNone {
		workers := c.workers
		c.mu.Unlock()
		return workers
	}

	old := c.workers
	switch d.Action {
	case ActionScaleUp:
		c.workers += d.Delta
	case ActionScaleDown:
		c.workers -= d.Delta
	}
	workers := c.workers
	c.lastAction = c.now()
	deps := c.deps
	c.mu.Unlock()

	log.Printf("Scaling %s: %d -> %d workers", d.Action, old, workers)

	if deps.Resizer != nil {
		deps.Resizer(workers)
	}
	if deps.Metrics != nil {
		deps.Metrics.ScalingDecisions.WithLabelValues(d.Action.String()).Inc()
	}
	if deps.Bus != nil {
		deps.Bus.Publish(events.TopicScaling, events.ScalingDecidedEvent{
			Action:    d.Action.String(),
			Delta:     d.Delta,
			Workers:   workers,
			Timestamp: time.Now(),
		})
	}

	return workers
}

// PredictLoad extrapolates the load score over the given lookahead using a
// moving average of recent samples plus their trend. Returns a value clamped
// to [0, 1]; 0.5 when there is not enough history.
func (c *Controller) PredictLoad(lookahead time.Duration) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.history) < 2 {
		return 0.5
	}

	recent := c.history
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}

	var avg float64
	for _, m := range recent {
		avg += m.LoadScore()
	}
	avg /= float64(len(recent))

	trend := recent[len(recent)-1].LoadScore() - recent[0].LoadScore()
	predicted := avg + trend*lookahead.Seconds()/60.0
	return clamp01(predicted)
}
