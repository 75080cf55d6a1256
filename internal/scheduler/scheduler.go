package scheduler

import (
	"time"

	"github.com/aristath/swarm/internal/events"
	"github.com/aristath/swarm/internal/metrics"
)

// Config configures a Scheduler.
type Config struct {
	Workers    int                // Initial pool size (default 4)
	Discipline Discipline         // Task selection discipline
	Bus        *events.Bus        // Optional event bus (nil disables)
	Metrics    *metrics.Collector // Optional metrics collector (nil disables)
}

// Scheduler composes the TaskQueue with a resizable worker pool behind a
// unified submit/fetch contract. It is the integration point for both the
// parallel runner (which polls GetNextTask) and the scaling controller
// (which calls ResizePool).
type Scheduler struct {
	cfg      Config
	queue    *TaskQueue
	registry *WorkerRegistry
}

// New creates a Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	s := &Scheduler{
		cfg:      cfg,
		queue:    NewTaskQueue(cfg.Discipline, cfg.Workers),
		registry: NewWorkerRegistry(cfg.Workers),
	}

	if cfg.Metrics != nil {
		s.queue.OnSteal(cfg.Metrics.TasksStolen.Inc)
		cfg.Metrics.PoolSize.Set(float64(cfg.Workers))
	}

	return s
}

// SubmitTask validates and enqueues a single task.
func (s *Scheduler) SubmitTask(task SubTask) error {
	return s.SubmitBatch([]SubTask{task})
}

// SubmitBatch validates and enqueues a batch atomically; see
// TaskQueue.SubmitBatch for the validation rules.
func (s *Scheduler) SubmitBatch(batch []SubTask) error {
	if err := s.queue.SubmitBatch(batch); err != nil {
		return err
	}
	s.updateGauges()
	return nil
}

// GetNextTask returns at most one ready task for the given worker,
// or nil when no work is eligible. A workerID outside the current pool
// returns nil rather than an error: pool resizing races with worker
// polling under normal operation.
func (s *Scheduler) GetNextTask(workerID int) *SubTask {
	if !s.registry.Valid(workerID) {
		return nil
	}

	task := s.queue.NextReady(workerID)
	if task == nil {
		return nil
	}

	s.registry.Assign(workerID, task.ID)
	s.updateGauges()

	if s.cfg.Bus != nil {
		s.cfg.Bus.Publish(events.TopicTask, events.TaskStartedEvent{
			ID:        task.ID,
			Worker:    workerID,
			Timestamp: time.Now(),
		})
	}

	return task
}

// CompleteTask records the result for an assigned task, transitioning it to
// Completed or Failed and unblocking dependents whose dependencies are now
// all completed.
func (s *Scheduler) CompleteTask(taskID string, result SubTaskResult) error {
	if err := s.queue.MarkCompleted(taskID, result); err != nil {
		return err
	}

	execTime := time.Duration(result.ExecutionTimeMS) * time.Millisecond
	s.registry.Finish(taskID, execTime)
	s.updateGauges()

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.TaskDuration.Observe(execTime.Seconds())
		if result.Success {
			s.cfg.Metrics.TasksCompleted.Inc()
		} else {
			s.cfg.Metrics.TasksFailed.Inc()
		}
	}

	if s.cfg.Bus != nil {
		if result.Success {
			s.cfg.Bus.Publish(events.TopicTask, events.TaskCompletedEvent{
				ID:        taskID,
				Duration:  execTime,
				Timestamp: time.Now(),
			})
		} else {
			s.cfg.Bus.Publish(events.TopicTask, events.TaskFailedEvent{
				ID:        taskID,
				Reason:    result.Error,
				Timestamp: time.Now(),
			})
		}
	}

	return nil
}

// ResizePool sets the worker pool size. Growing makes more worker IDs valid
// for GetNextTask immediately; shrinking is a graceful drain that never
// evicts in-flight assignments.
func (s *Scheduler) ResizePool(n int) {
	if n <= 0 {
		n = 1
	}

	s.registry.Resize(n)
	s.queue.SetWorkers(n)

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.PoolSize.Set(float64(n))
	}
	if s.cfg.Bus != nil {
		s.cfg.Bus.Publish(events.TopicScaling, events.PoolResizedEvent{
			Workers:   n,
			Timestamp: time.Now(),
		})
	}
}

// PoolSize returns the current desired worker count.
func (s *Scheduler) PoolSize() int {
	return s.registry.Size()
}

// Blocked returns IDs of tasks that can never become ready because a
// dependency failed.
func (s *Scheduler) Blocked() []string {
	return s.queue.Blocked()
}

// Snapshot is a point-in-time view of scheduler load, consumed by the
// metrics sampler that feeds the scaling controller.
type Snapshot struct {
	QueueDepth    int // Pending + Ready
	Remaining     int // Pending + Ready + Assigned
	ActiveWorkers int // Slots with an in-flight task
	PoolSize      int
}

// Snapshot returns the current load view.
func (s *Scheduler) Snapshot() Snapshot {
	return Snapshot{
		QueueDepth:    s.queue.Depth(),
		Remaining:     s.queue.Remaining(),
		ActiveWorkers: s.registry.ActiveCount(),
		PoolSize:      s.registry.Size(),
	}
}

// Stalled reports whether unfinished tasks remain but none are ready or
// running, meaning every remaining task is permanently blocked behind a
// failed dependency.
func (s *Scheduler) Stalled() bool {
	c := s.queue.Counts()
	return c.Ready == 0 && c.Assigned == 0 && c.Pending > 0
}

// Workers returns a snapshot of worker slot statistics.
func (s *Scheduler) Workers() []WorkerSlot {
	return s.registry.Slots()
}

func (s *Scheduler) updateGauges() {
	if s.cfg.Metrics == nil {
		return
	}
	s.cfg.Metrics.QueueDepth.Set(float64(s.queue.Depth()))
	s.cfg.Metrics.ActiveWorkers.Set(float64(s.registry.ActiveCount()))
}
