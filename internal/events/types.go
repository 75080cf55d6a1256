package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
}

// Topic constants
const (
	TopicTask    = "task"
	TopicScaling = "scaling"
)

// Event type constants
const (
	EventTypeTaskStarted    = "task.started"
	EventTypeTaskCompleted  = "task.completed"
	EventTypeTaskFailed     = "task.failed"
	EventTypeBatchProgress  = "batch.progress"
	EventTypeScalingDecided = "scaling.decided"
	EventTypePoolResized    = "scaling.pool_resized"
)

// TaskStartedEvent is published when a task is assigned to a worker.
type TaskStartedEvent struct {
	ID        string
	Worker    int
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }

// TaskCompletedEvent is published when a task completes successfully.
type TaskCompletedEvent struct {
	ID        string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }

// TaskFailedEvent is published when a task finishes with an error.
type TaskFailedEvent struct {
	ID        string
	Reason    string
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }

// BatchProgressEvent is published by the parallel runner as a batch advances.
type BatchProgressEvent struct {
	Completed int
	Failed    int
	Remaining int
	Timestamp time.Time
}

func (e BatchProgressEvent) EventType() string { return EventTypeBatchProgress }

// ScalingDecidedEvent is published when the scaling controller applies a
// non-NoOp decision.
type ScalingDecidedEvent struct {
	Action    string // "scale-up" or "scale-down"
	Delta     int
	Workers   int // Pool size after the decision
	Timestamp time.Time
}

func (e ScalingDecidedEvent) EventType() string { return EventTypeScalingDecided }

// PoolResizedEvent is published when the scheduler's pool size changes.
type PoolResizedEvent struct {
	Workers   int
	Timestamp time.Time
}

func (e PoolResizedEvent) EventType() string { return EventTypePoolResized }
