package orchestrator

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/swarm/internal/events"
	"github.com/aristath/swarm/internal/metrics"
	"github.com/aristath/swarm/internal/scheduler"
)

// ExecutorFunc performs one task and returns its result. Returning an error
// is equivalent to returning a result with Success false; the runner treats
// both as a task failure, never as a run failure.
type ExecutorFunc func(ctx context.Context, task scheduler.SubTask) (scheduler.SubTaskResult, error)

// Config configures a ParallelRunner.
type Config struct {
	Workers      int                  // Concurrency cap (default runtime.NumCPU)
	Discipline   scheduler.Discipline // Task selection discipline
	PollInterval time.Duration        // Idle worker poll interval (default 2ms)
	Bus          *events.Bus          // Optional event bus (nil disables)
	Metrics      *metrics.Collector   // Optional metrics collector (nil disables)
}

// ParallelRunner drains a batch of dependency-ordered tasks through a pool
// of worker goroutines, each polling the scheduler for its next eligible
// task. One failing task never aborts the run: its result is recorded, its
// transitive dependents are failed synthetically, and independent tasks
// proceed.
type ParallelRunner struct {
	cfg   Config
	sched *scheduler.Scheduler

	mu        sync.Mutex
	results   []scheduler.SubTaskResult
	completed int
	failed    int

	spawned int // Worker goroutines started so far
}

// NewParallelRunner creates a runner with its own scheduler.
func NewParallelRunner(cfg Config) *ParallelRunner {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Millisecond
	}

	return &ParallelRunner{
		cfg: cfg,
		sched: scheduler.New(scheduler.Config{
			Workers:    cfg.Workers,
			Discipline: cfg.Discipline,
			Bus:        cfg.Bus,
			Metrics:    cfg.Metrics,
		}),
	}
}

// Scheduler exposes the underlying scheduler, so hosts can wire the scaling
// controller's resizer to it or read load snapshots.
func (r *ParallelRunner) Scheduler() *scheduler.Scheduler {
	return r.sched
}

// ExecuteParallel validates and runs the batch, blocking until every task
// has a result or the context is cancelled. The returned slice holds one
// result per submitted task in completion order; tasks permanently blocked
// by a failed dependency receive a synthesized failure result. The error is
// non-nil only for batch validation failures and context cancellation.
func (r *ParallelRunner) ExecuteParallel(ctx context.Context, tasks []scheduler.SubTask, exec ExecutorFunc) ([]scheduler.SubTaskResult, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	if err := r.sched.SubmitBatch(tasks); err != nil {
		return nil, fmt.Errorf("invalid batch: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < r.sched.PoolSize(); i++ {
		id := i
		r.spawned++
		g.Go(func() error {
			return r.workerLoop(gctx, id, exec)
		})
	}

	// The pool can grow mid-run via ResizePool; the supervisor spawns worker
	// goroutines for the new slot IDs.
	g.Go(func() error {
		return r.superviseLoop(gctx, g, exec)
	})

	if err := g.Wait(); err != nil {
		return r.Results(), err
	}

	r.failBlocked()

	return r.Results(), nil
}

// workerLoop polls the scheduler until the batch is drained or the context
// is cancelled.
func (r *ParallelRunner) workerLoop(ctx context.Context, workerID int, exec ExecutorFunc) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.drained() {
			return nil
		}

		task := r.sched.GetNextTask(workerID)
		if task == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.cfg.PollInterval):
			}
			continue
		}

		r.runOne(ctx, *task, exec)
	}
}

// runOne executes a single task and records its outcome with the scheduler.
func (r *ParallelRunner) runOne(ctx context.Context, task scheduler.SubTask, exec ExecutorFunc) {
	start := time.Now()
	result, err := exec(ctx, task)
	elapsed := time.Since(start)

	if err != nil {
		result = scheduler.SubTaskResult{
			Success: false,
			Error:   err.Error(),
		}
	}
	result.TaskID = task.ID
	if result.ExecutionTimeMS == 0 {
		result.ExecutionTimeMS = elapsed.Milliseconds()
	}

	if err := r.sched.CompleteTask(task.ID, result); err != nil {
		log.Printf("ERROR: failed to record result for task %q: %v", task.ID, err)
		return
	}

	r.record(result)
}

// superviseLoop watches the pool size and spawns worker goroutines for slots
// added by ResizePool. Shrinking needs no action here: workers whose IDs
// become invalid simply stop receiving tasks and exit when the batch drains.
func (r *ParallelRunner) superviseLoop(ctx context.Context, g *errgroup.Group, exec ExecutorFunc) error {
	ticker := time.NewTicker(10 * r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if r.drained() {
			return nil
		}

		size := r.sched.PoolSize()
		r.mu.Lock()
		for r.spawned < size {
			id := r.spawned
			r.spawned++
			g.Go(func() error {
				return r.workerLoop(ctx, id, exec)
			})
		}
		r.mu.Unlock()
	}
}

// drained reports whether the batch is finished: nothing remains, or the
// only remaining tasks are permanently blocked behind failed dependencies.
func (r *ParallelRunner) drained() bool {
	snap := r.sched.Snapshot()
	if snap.Remaining == 0 {
		return true
	}
	return r.sched.Stalled()
}

// failBlocked synthesizes failure results for tasks that can never run
// because a dependency failed, so every submitted task ends with a result.
func (r *ParallelRunner) failBlocked() {
	for _, id := range r.sched.Blocked() {
		result := scheduler.SubTaskResult{
			TaskID:  id,
			Success: false,
			Error:   "unsatisfied dependency: upstream task failed",
		}
		if err := r.sched.CompleteTask(id, result); err != nil {
			log.Printf("ERROR: failed to record blocked task %q: %v", id, err)
			continue
		}
		r.record(result)
	}
}

// record appends a result and publishes batch progress.
func (r *ParallelRunner) record(result scheduler.SubTaskResult) {
	r.mu.Lock()
	r.results = append(r.results, result)
	if result.Success {
		r.completed++
	} else {
		r.failed++
	}
	completed, failed := r.completed, r.failed
	r.mu.Unlock()

	if r.cfg.Bus != nil {
		r.cfg.Bus.Publish(events.TopicTask, events.BatchProgressEvent{
			Completed: completed,
			Failed:    failed,
			Remaining: r.sched.Snapshot().Remaining,
			Timestamp: time.Now(),
		})
	}
}

// Results returns a copy of the results recorded so far.
func (r *ParallelRunner) Results() []scheduler.SubTaskResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]scheduler.SubTaskResult(nil), r.results...)
}
