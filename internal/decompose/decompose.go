// Package decompose turns a free-form goal into a batch of dependency-ordered
// subtasks suitable for parallel execution. Decomposition is heuristic: it
// inspects the goal text for signals (multiple actions, file operations) and
// shapes the task graph accordingly.
package decompose

import (
	"fmt"
	"strings"

	"github.com/aristath/swarm/internal/scheduler"
)

// Strategy selects how a goal is split into subtasks.
type Strategy int

const (
	// StrategyByFile splits along file/module boundaries.
	StrategyByFile Strategy = iota
	// StrategyByFeature splits along functional requirements.
	StrategyByFeature
	// StrategyByLayer splits along architectural layers.
	StrategyByLayer
	// StrategyHybrid combines analysis, parallel implementation, and testing
	// phases based on the goal's complexity.
	StrategyHybrid
	// StrategyAuto picks one of the above from the complexity analysis.
	StrategyAuto
)

// String returns the config-file name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyByFile:
		return "by-file"
	case StrategyByFeature:
		return "by-feature"
	case StrategyByLayer:
		return "by-layer"
	case StrategyHybrid:
		return "hybrid"
	case StrategyAuto:
		return "auto"
	}
	return "unknown"
}

// ParseStrategy converts a config-file name into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "by-file":
		return StrategyByFile, nil
	case "by-feature":
		return StrategyByFeature, nil
	case "by-layer":
		return StrategyByLayer, nil
	case "hybrid":
		return StrategyHybrid, nil
	case "auto", "":
		return StrategyAuto, nil
	}
	return 0, fmt.Errorf("unknown decomposition strategy %q", s)
}

// Complexity is a heuristic estimate of how large and parallelizable a goal
// is. All signals come from the goal text alone.
type Complexity struct {
	EstimatedLines    int     `json:"estimated_lines_of_code"`
	FileCount         int     `json:"file_count"`
	DependencyDepth   int     `json:"dependency_depth"`
	RiskLevel         float64 `json:"risk_level"`        // 0.0 to 1.0
	Parallelizability float64 `json:"parallelizability"` // 0.0 to 1.0
}

// Decomposer splits goals into subtask batches.
type Decomposer struct {
	strategy    Strategy
	maxSubtasks int
}

// New creates a Decomposer with a cap of 10 subtasks.
func New(strategy Strategy) *Decomposer {
	return &Decomposer{
		strategy:    strategy,
		maxSubtasks: 10,
	}
}

// WithMaxSubtasks caps the number of generated subtasks.
func (d *Decomposer) WithMaxSubtasks(max int) *Decomposer {
	if max > 0 {
		d.maxSubtasks = max
	}
	return d
}

// AnalyzeComplexity estimates the goal's complexity from textual signals.
func (d *Decomposer) AnalyzeComplexity(goal string) Complexity {
	words := len(strings.Fields(goal))
	lower := strings.ToLower(goal)

	multipleActions := strings.Contains(goal, " and ") || strings.Contains(goal, ",")
	fileOperations := strings.Contains(lower, "file") ||
		strings.Contains(lower, "create") ||
		strings.Contains(lower, "modify")

	lines := 50
	switch {
	case words >= 20:
		lines = 300
	case words >= 10:
		lines = 150
	}

	files := 1
	if multipleActions {
		files = 3
	}

	parallelizability := 0.3
	if multipleActions {
		parallelizability = 0.8
	}

	depth, risk := 1, 0.3
	if fileOperations {
		depth, risk = 2, 0.6
	}

	return Complexity{
		EstimatedLines:    lines,
		FileCount:         files,
		DependencyDepth:   depth,
		RiskLevel:         risk,
		Parallelizability: parallelizability,
	}
}

// Decompose splits a goal into subtasks using the configured strategy. The
// result is always a valid batch: unique IDs, no cycles, dependencies on
// earlier tasks only.
func (d *Decomposer) Decompose(goal string) []scheduler.SubTask {
	c := d.AnalyzeComplexity(goal)

	strategy := d.strategy
	if strategy == StrategyAuto {
		strategy = d.pick(c)
	}

	switch strategy {
	case StrategyByFile:
		return d.byFile(goal, c)
	case StrategyByFeature:
		return d.byFeature(goal)
	case StrategyByLayer:
		return d.byLayer(goal)
	default:
		return d.hybrid(goal, c)
	}
}

// pick chooses a concrete strategy from the complexity signals.
func (d *Decomposer) pick(c Complexity) Strategy {
	switch {
	case c.Parallelizability > 0.7:
		return StrategyByFeature
	case c.FileCount > 2:
		return StrategyByFile
	default:
		return StrategyByLayer
	}
}

func (d *Decomposer) byFile(goal string, c Complexity) []scheduler.SubTask {
	tasks := []scheduler.SubTask{{
		ID:                  "file_analysis",
		Description:         fmt.Sprintf("Analyze files affected by: %s", goal),
		Priority:            10,
		EstimatedComplexity: 0.2,
	}}

	files := c.FileCount
	if limit := d.maxSubtasks - 2; files > limit {
		files = limit
	}

	var modifyIDs []string
	for i := 0; i < files; i++ {
		id := fmt.Sprintf("modify_file_%d", i+1)
		modifyIDs = append(modifyIDs, id)
		tasks = append(tasks, scheduler.SubTask{
			ID:                  id,
			Description:         fmt.Sprintf("Modify file %d for: %s", i+1, goal),
			Priority:            uint8(8 - i),
			Dependencies:        []string{"file_analysis"},
			EstimatedComplexity: 0.5,
		})
	}

	tasks = append(tasks, scheduler.SubTask{
		ID:                  "integration",
		Description:         "Integrate all file changes",
		Priority:            5,
		Dependencies:        modifyIDs,
		EstimatedComplexity: 0.3,
	})

	return tasks
}

func (d *Decomposer) byFeature(goal string) []scheduler.SubTask {
	return []scheduler.SubTask{
		{
			ID:                  "requirements",
			Description:         fmt.Sprintf("Analyze requirements for: %s", goal),
			Priority:            10,
			EstimatedComplexity: 0.2,
		},
		{
			ID:                  "core_logic",
			Description:         "Implement core business logic",
			Priority:            9,
			Dependencies:        []string{"requirements"},
			EstimatedComplexity: 0.6,
		},
		{
			ID:                  "ui_layer",
			Description:         "Implement user interface layer",
			Priority:            7,
			Dependencies:        []string{"requirements"},
			EstimatedComplexity: 0.4,
		},
		{
			ID:                  "integration",
			Description:         "Integrate UI with core logic",
			Priority:            6,
			Dependencies:        []string{"core_logic", "ui_layer"},
			EstimatedComplexity: 0.3,
		},
		{
			ID:                  "testing",
			Description:         "Write tests for new functionality",
			Priority:            8,
			Dependencies:        []string{"integration"},
			EstimatedComplexity: 0.4,
		},
	}
}

func (d *Decomposer) byLayer(goal string) []scheduler.SubTask {
	return []scheduler.SubTask{
		{
			ID:                  "domain_layer",
			Description:         fmt.Sprintf("Implement domain models for: %s", goal),
			Priority:            10,
			EstimatedComplexity: 0.4,
		},
		{
			ID:                  "application_layer",
			Description:         "Implement application services",
			Priority:            9,
			Dependencies:        []string{"domain_layer"},
			EstimatedComplexity: 0.5,
		},
		{
			ID:                  "infrastructure_layer",
			Description:         "Implement infrastructure components",
			Priority:            8,
			Dependencies:        []string{"domain_layer"},
			EstimatedComplexity: 0.5,
		},
		{
			ID:                  "presentation_layer",
			Description:         "Implement presentation/CLI layer",
			Priority:            7,
			Dependencies:        []string{"application_layer"},
			EstimatedComplexity: 0.4,
		},
	}
}

func (d *Decomposer) hybrid(goal string, c Complexity) []scheduler.SubTask {
	tasks := []scheduler.SubTask{{
		ID:                  "analysis",
		Description:         fmt.Sprintf("Comprehensive analysis of: %s", goal),
		Priority:            10,
		EstimatedComplexity: 0.2,
	}}

	var implIDs []string
	if c.FileCount > 1 {
		files := c.FileCount
		if files > 3 {
			files = 3
		}
		for i := 0; i < files; i++ {
			id := fmt.Sprintf("impl_file_%d", i+1)
			implIDs = append(implIDs, id)
			tasks = append(tasks, scheduler.SubTask{
				ID:                  id,
				Description:         fmt.Sprintf("Implement changes in file group %d", i+1),
				Priority:            uint8(9 - i),
				Dependencies:        []string{"analysis"},
				EstimatedComplexity: 0.5,
			})
		}
	} else {
		implIDs = []string{"impl_core"}
		tasks = append(tasks, scheduler.SubTask{
			ID:                  "impl_core",
			Description:         "Implement core functionality",
			Priority:            9,
			Dependencies:        []string{"analysis"},
			EstimatedComplexity: 0.6,
		})
	}

	tasks = append(tasks, scheduler.SubTask{
		ID:                  "integration",
		Description:         "Integrate all components",
		Priority:            7,
		Dependencies:        implIDs,
		EstimatedComplexity: 0.3,
	},
		scheduler.SubTask{
			ID:                  "testing",
			Description:         "Comprehensive testing",
			Priority:            8,
			Dependencies:        []string{"integration"},
			EstimatedComplexity: 0.4,
		})

	if len(tasks) > d.maxSubtasks {
		tasks = tasks[:d.maxSubtasks]
	}

	return tasks
}

// OptimizeDependencies removes edges already implied transitively, so the
// scheduler sees the minimal graph and unlocks tasks as early as possible.
// Only one level of transitivity needs removing per pass on graphs produced
// by Decompose; arbitrary graphs may keep deeper redundancy.
func OptimizeDependencies(tasks []scheduler.SubTask) {
	deps := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		deps[t.ID] = t.Dependencies
	}

	for i := range tasks {
		redundant := make(map[string]bool)
		for _, dep := range tasks[i].Dependencies {
			for _, transitive := range deps[dep] {
				redundant[transitive] = true
			}
		}
		if len(redundant) == 0 {
			continue
		}

		kept := tasks[i].Dependencies[:0]
		for _, dep := range tasks[i].Dependencies {
			if !redundant[dep] {
				kept = append(kept, dep)
			}
		}
		tasks[i].Dependencies = kept
	}
}

// CriticalPath walks the graph from the root tasks, following the highest
// priority task at each step, and returns the IDs visited in order.
func CriticalPath(tasks []scheduler.SubTask) []string {
	var path []string

	current := make([]*scheduler.SubTask, 0, len(tasks))
	for i := range tasks {
		if len(tasks[i].Dependencies) == 0 {
			current = append(current, &tasks[i])
		}
	}

	for len(current) > 0 {
		best := current[0]
		for _, t := range current[1:] {
			if t.Priority > best.Priority {
				best = t
			}
		}
		path = append(path, best.ID)

		var next []*scheduler.SubTask
		for i := range tasks {
			for _, dep := range tasks[i].Dependencies {
				if dep == best.ID {
					next = append(next, &tasks[i])
					break
				}
			}
		}
		current = next
	}

	return path
}
