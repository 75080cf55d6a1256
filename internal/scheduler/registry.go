package scheduler

import (
	"sync"
	"time"
)

// WorkerSlot tracks one worker's in-flight assignment and completion history.
type WorkerSlot struct {
	ID             int
	InFlight       string // Current task ID, empty when idle
	Completed      int
	TotalExecTime  time.Duration
	LastCompletion time.Time
}

// AvgExecTime returns the mean execution time across completed tasks.
func (s WorkerSlot) AvgExecTime() time.Duration {
	if s.Completed == 0 {
		return 0
	}
	return s.TotalExecTime / time.Duration(s.Completed)
}

// WorkerRegistry tracks per-worker assignment state and the desired pool
// size. Written only by the Scheduler during assignment, completion, and
// resize; read by the scaling controller through Scheduler.Snapshot.
type WorkerRegistry struct {
	mu     sync.RWMutex
	slots  map[int]*WorkerSlot
	byTask map[string]int // taskID -> worker holding it
	size   int            // desired pool size
}

// NewWorkerRegistry creates a registry for n workers (minimum 1).
func NewWorkerRegistry(n int) *WorkerRegistry {
	if n <= 0 {
		n = 1
	}
	return &WorkerRegistry{
		slots:  make(map[int]*WorkerSlot),
		byTask: make(map[string]int),
		size:   n,
	}
}

// Size returns the desired pool size.
func (r *WorkerRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Valid reports whether workerID addresses a slot inside the current pool.
func (r *WorkerRegistry) Valid(workerID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return workerID >= 0 && workerID < r.size
}

// Resize sets the desired pool size. Shrinking is a graceful drain: slots
// beyond the new size that still hold an in-flight task are kept until
// Finish clears them; idle removed slots are dropped immediately.
func (r *WorkerRegistry) Resize(n int) {
	if n <= 0 {
		n = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.size = n
	for id, slot := range r.slots {
		if id >= n && slot.InFlight == "" {
			delete(r.slots, id)
		}
	}
}

// Assign records taskID as in flight on the given worker.
func (r *WorkerRegistry) Assign(workerID int, taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[workerID]
	if !ok {
		slot = &WorkerSlot{ID: workerID}
		r.slots[workerID] = slot
	}
	slot.InFlight = taskID
	r.byTask[taskID] = workerID
}

// Finish clears the in-flight assignment for taskID and credits the worker
// with the execution time. Returns the worker ID and whether the task was
// tracked. Drained slots (beyond the pool size) are removed once idle.
func (r *WorkerRegistry) Finish(taskID string, execTime time.Duration) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	workerID, ok := r.byTask[taskID]
	if !ok {
		return 0, false
	}
	delete(r.byTask, taskID)

	slot, ok := r.slots[workerID]
	if !ok {
		return workerID, true
	}
	slot.InFlight = ""
	slot.Completed++
	slot.TotalExecTime += execTime
	slot.LastCompletion = time.Now()

	if workerID >= r.size {
		delete(r.slots, workerID)
	}
	return workerID, true
}

// ActiveCount returns the number of slots with an in-flight task.
func (r *WorkerRegistry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := 0
	for _, slot := range r.slots {
		if slot.InFlight != "" {
			active++
		}
	}
	return active
}

// Slots returns a snapshot of all tracked slots.
func (r *WorkerRegistry) Slots() []WorkerSlot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]WorkerSlot, 0, len(r.slots))
	for _, slot := range r.slots {
		out = append(out, *slot)
	}
	return out
}
