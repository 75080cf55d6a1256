package scheduler

// TaskState represents a task's position in the queue lifecycle.
// Transitions happen only inside TaskQueue; callers observe, never mutate.
type TaskState int

const (
	StatePending   TaskState = iota // Waiting for dependencies
	StateReady                      // All dependencies completed, eligible for assignment
	StateAssigned                   // Handed to a worker, execution in progress
	StateCompleted                  // Finished successfully
	StateFailed                     // Finished with error
)

// String returns a human-readable state name.
func (s TaskState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateAssigned:
		return "assigned"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// SubTask is a unit of work produced by a decomposition collaborator.
// The scheduler does not interpret Description or EstimatedComplexity;
// it only validates and sequences tasks by ID, Priority, and Dependencies.
type SubTask struct {
	ID                  string   `json:"id"`
	Description         string   `json:"description"`
	Priority            uint8    `json:"priority"`             // 0-10, higher = scheduled earlier under Priority discipline
	Dependencies        []string `json:"dependencies"`         // Task IDs that must complete successfully first
	EstimatedComplexity float64  `json:"estimated_complexity"` // 0.0-1.0, advisory only
}

// SubTaskResult is the immutable outcome of executing one SubTask.
type SubTaskResult struct {
	TaskID          string `json:"task_id"`
	Success         bool   `json:"success"`
	Output          string `json:"output"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
	Error           string `json:"error,omitempty"` // Present iff Success is false
}

// cloneSubTask returns a deep copy so callers can't mutate queue-owned state.
func cloneSubTask(t *SubTask) *SubTask {
	if t == nil {
		return nil
	}

	cp := *t
	if t.Dependencies != nil {
		cp.Dependencies = append([]string(nil), t.Dependencies...)
	}
	return &cp
}
