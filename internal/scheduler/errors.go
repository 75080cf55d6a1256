package scheduler

import "fmt"

// DuplicateTaskIDError is returned when a submitted task's ID collides with
// an already-queued task or another task in the same batch.
type DuplicateTaskIDError struct {
	ID string
}

func (e *DuplicateTaskIDError) Error() string {
	return fmt.Sprintf("duplicate task ID %q", e.ID)
}

// UnknownDependencyError is returned when a task lists a dependency that is
// neither already queued nor part of the same batch.
type UnknownDependencyError struct {
	TaskID       string
	DependencyID string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on unknown task %q", e.TaskID, e.DependencyID)
}

// DependencyCycleError is returned when the dependency graph reachable from a
// submitted batch contains a cycle (including self-dependencies).
type DependencyCycleError struct {
	Detail string
}

func (e *DependencyCycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", e.Detail)
}

// UnknownTaskError is returned when a completion is reported for a task ID
// the queue has never seen.
type UnknownTaskError struct {
	ID string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("unknown task %q", e.ID)
}
