package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/toposort"
)

// Discipline selects how NextReady picks among ready tasks.
type Discipline int

const (
	// DisciplineFIFO returns ready tasks in submission order.
	DisciplineFIFO Discipline = iota
	// DisciplinePriority returns the highest-priority ready task, FIFO on ties.
	DisciplinePriority
	// DisciplineWorkStealing gives each worker a local sub-queue and lets idle
	// workers steal the oldest ready task from others.
	DisciplineWorkStealing
)

// String returns the config-file name of the discipline.
func (d Discipline) String() string {
	switch d {
	case DisciplineFIFO:
		return "fifo"
	case DisciplinePriority:
		return "priority"
	case DisciplineWorkStealing:
		return "work-stealing"
	}
	return "unknown"
}

// ParseDiscipline converts a config-file name into a Discipline.
func ParseDiscipline(s string) (Discipline, error) {
	switch s {
	case "fifo":
		return DisciplineFIFO, nil
	case "priority":
		return DisciplinePriority, nil
	case "work-stealing", "workstealing":
		return DisciplineWorkStealing, nil
	}
	return 0, fmt.Errorf("unknown scheduling discipline %q", s)
}

// queueEntry pairs a SubTask with scheduling metadata. Owned exclusively by
// TaskQueue; mutated only through its transition methods.
type queueEntry struct {
	task     SubTask
	state    TaskState
	seq      uint64 // submission order, FIFO key and priority tiebreak
	enqueued time.Time
	home     int // preferred worker sub-queue under work stealing
}

// workerDeque is one worker's local sub-queue of ready task IDs.
// The owning worker pops the front; thieves also take the front (oldest),
// which bounds how long a ready task can sit on a busy worker's queue.
type workerDeque struct {
	mu  sync.Mutex
	ids []string
}

func (d *workerDeque) push(id string) {
	d.mu.Lock()
	d.ids = append(d.ids, id)
	d.mu.Unlock()
}

func (d *workerDeque) pop() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.ids) == 0 {
		return "", false
	}
	id := d.ids[0]
	d.ids = d.ids[1:]
	return id, true
}

func (d *workerDeque) drain() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	ids := d.ids
	d.ids = nil
	return ids
}

// TaskQueue is the single source of truth for task state. It holds all
// submitted tasks and hands out at most one ready task per NextReady call,
// honoring the configured discipline. No task is ever handed to two workers.
//
// Lock order: q.mu may be held while taking a deque's mutex, never the
// reverse. NextReady releases the deque mutex before touching q.mu.
type TaskQueue struct {
	mu         sync.Mutex
	discipline Discipline
	entries    map[string]*queueEntry
	dependents map[string][]string // taskID -> tasks that depend on it
	seq        uint64
	deques     []*workerDeque // work-stealing only, len == worker count
	nextHome   int            // round-robin cursor for sub-queue placement
	steals     atomic.Uint64
	onSteal    func() // optional metrics hook
}

// NewTaskQueue creates an empty queue for the given discipline and worker count.
func NewTaskQueue(discipline Discipline, workers int) *TaskQueue {
	if workers <= 0 {
		workers = 1
	}

	q := &TaskQueue{
		discipline: discipline,
		entries:    make(map[string]*queueEntry),
		dependents: make(map[string][]string),
	}

	if discipline == DisciplineWorkStealing {
		q.deques = make([]*workerDeque, workers)
		for i := range q.deques {
			q.deques[i] = &workerDeque{}
		}
	}

	return q
}

// OnSteal registers a hook invoked each time a task is stolen across workers.
func (q *TaskQueue) OnSteal(f func()) {
	q.mu.Lock()
	q.onSteal = f
	q.mu.Unlock()
}

// Submit validates and enqueues a single task. Equivalent to a one-task batch.
func (q *TaskQueue) Submit(task SubTask) error {
	return q.SubmitBatch([]SubTask{task})
}

// SubmitBatch validates and enqueues a batch of tasks atomically: if any task
// fails validation (duplicate ID, unknown dependency, dependency cycle), the
// whole batch is rejected and the queue is left unchanged. Forward references
// between tasks in the same batch are allowed.
func (q *TaskQueue) SubmitBatch(batch []SubTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	inBatch := make(map[string]bool, len(batch))
	for i := range batch {
		t := &batch[i]
		if t.ID == "" {
			return fmt.Errorf("task at batch index %d has empty ID", i)
		}
		if _, exists := q.entries[t.ID]; exists {
			return &DuplicateTaskIDError{ID: t.ID}
		}
		if inBatch[t.ID] {
			return &DuplicateTaskIDError{ID: t.ID}
		}
		inBatch[t.ID] = true
	}

	for i := range batch {
		t := &batch[i]
		for _, depID := range t.Dependencies {
			if depID == t.ID {
				return &DependencyCycleError{Detail: fmt.Sprintf("task %q depends on itself", t.ID)}
			}
			if _, exists := q.entries[depID]; !exists && !inBatch[depID] {
				return &UnknownDependencyError{TaskID: t.ID, DependencyID: depID}
			}
		}
	}

	if err := q.checkCyclesLocked(batch); err != nil {
		return err
	}

	// Validation passed; insert the whole batch.
	now := time.Now()
	for i := range batch {
		t := batch[i]
		q.seq++
		e := &queueEntry{
			task:     t,
			state:    StatePending,
			seq:      q.seq,
			enqueued: now,
		}
		q.entries[t.ID] = e
		for _, depID := range t.Dependencies {
			q.dependents[depID] = append(q.dependents[depID], t.ID)
		}
	}
	// Readiness pass after all inserts so forward references resolve.
	for i := range batch {
		e := q.entries[batch[i].ID]
		if q.depsCompletedLocked(e) {
			q.markReadyLocked(e)
		}
	}

	return nil
}

// checkCyclesLocked runs a topological sort over the full graph (existing
// entries plus the candidate batch) and reports any cycle.
func (q *TaskQueue) checkCyclesLocked(batch []SubTask) error {
	var edges []toposort.Edge
	addTask := func(id string, deps []string) {
		if len(deps) == 0 {
			edges = append(edges, toposort.Edge{nil, id})
			return
		}
		for _, depID := range deps {
			edges = append(edges, toposort.Edge{depID, id})
		}
	}

	for id, e := range q.entries {
		addTask(id, e.task.Dependencies)
	}
	for i := range batch {
		addTask(batch[i].ID, batch[i].Dependencies)
	}

	if _, err := toposort.Toposort(edges); err != nil {
		return &DependencyCycleError{Detail: err.Error()}
	}
	return nil
}

// depsCompletedLocked reports whether every dependency is in StateCompleted.
// A Failed dependency withholds readiness permanently; the queue never
// auto-propagates failure to dependents.
func (q *TaskQueue) depsCompletedLocked(e *queueEntry) bool {
	for _, depID := range e.task.Dependencies {
		dep, exists := q.entries[depID]
		if !exists || dep.state != StateCompleted {
			return false
		}
	}
	return true
}

// markReadyLocked transitions Pending -> Ready and, under work stealing,
// places the task on a worker sub-queue round-robin.
func (q *TaskQueue) markReadyLocked(e *queueEntry) {
	e.state = StateReady

	if q.discipline == DisciplineWorkStealing && len(q.deques) > 0 {
		e.home = q.nextHome % len(q.deques)
		q.nextHome++
		q.deques[e.home].push(e.task.ID)
	}
}

// NextReady returns at most one ready task, transitioning it to StateAssigned
// atomically with the return. Returns nil when nothing is eligible; it never
// blocks. Callers wanting blocking semantics poll with backoff.
func (q *TaskQueue) NextReady(workerID int) *SubTask {
	if q.discipline == DisciplineWorkStealing {
		return q.nextStealing(workerID)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var best *queueEntry
	for _, e := range q.entries {
		if e.state != StateReady {
			continue
		}
		if best == nil || q.preferLocked(e, best) {
			best = e
		}
	}
	if best == nil {
		return nil
	}

	best.state = StateAssigned
	return cloneSubTask(&best.task)
}

// preferLocked reports whether a should be scheduled before b.
func (q *TaskQueue) preferLocked(a, b *queueEntry) bool {
	if q.discipline == DisciplinePriority {
		if a.task.Priority != b.task.Priority {
			return a.task.Priority > b.task.Priority
		}
	}
	return a.seq < b.seq
}

// nextStealing checks the calling worker's own sub-queue first, then scans
// the other sub-queues in a fixed rotation and steals the oldest ready task.
func (q *TaskQueue) nextStealing(workerID int) *SubTask {
	q.mu.Lock()
	deques := q.deques
	onSteal := q.onSteal
	q.mu.Unlock()

	n := len(deques)
	if n == 0 || workerID < 0 || workerID >= n {
		return nil
	}

	if id, ok := deques[workerID].pop(); ok {
		if t := q.assignByID(id); t != nil {
			return t
		}
	}

	for i := 1; i < n; i++ {
		victim := (workerID + i) % n
		if id, ok := deques[victim].pop(); ok {
			if t := q.assignByID(id); t != nil {
				q.steals.Add(1)
				if onSteal != nil {
					onSteal()
				}
				return t
			}
		}
	}

	return nil
}

// assignByID transitions a popped sub-queue entry to StateAssigned. A popped
// ID is exclusively owned by the popper, so the transition cannot race.
func (q *TaskQueue) assignByID(id string) *SubTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, exists := q.entries[id]
	if !exists || e.state != StateReady {
		return nil
	}
	e.state = StateAssigned
	return cloneSubTask(&e.task)
}

// MarkCompleted transitions the task to Completed or Failed based on
// result.Success and recomputes readiness for its dependents. A dependent
// becomes Ready only when ALL of its dependencies are Completed.
func (q *TaskQueue) MarkCompleted(taskID string, result SubTaskResult) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, exists := q.entries[taskID]
	if !exists {
		return &UnknownTaskError{ID: taskID}
	}
	if e.state == StateCompleted || e.state == StateFailed {
		return fmt.Errorf("task %q is already in terminal state %s", taskID, e.state)
	}

	if result.Success {
		e.state = StateCompleted
	} else {
		e.state = StateFailed
		return nil // Failed tasks never unblock dependents
	}

	for _, depID := range q.dependents[taskID] {
		dep, ok := q.entries[depID]
		if !ok || dep.state != StatePending {
			continue
		}
		if q.depsCompletedLocked(dep) {
			q.markReadyLocked(dep)
		}
	}

	return nil
}

// SetWorkers adjusts the number of worker sub-queues. Shrinking redistributes
// any queued ready tasks from removed sub-queues onto the remaining ones.
// No-op for FIFO and Priority disciplines.
func (q *TaskQueue) SetWorkers(n int) {
	if q.discipline != DisciplineWorkStealing || n <= 0 {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	cur := len(q.deques)
	if n == cur {
		return
	}

	if n > cur {
		for i := cur; i < n; i++ {
			q.deques = append(q.deques, &workerDeque{})
		}
		return
	}

	var orphans []string
	for _, d := range q.deques[n:] {
		orphans = append(orphans, d.drain()...)
	}
	q.deques = q.deques[:n]

	for _, id := range orphans {
		e, ok := q.entries[id]
		if !ok {
			continue
		}
		e.home = q.nextHome % n
		q.nextHome++
		q.deques[e.home].push(id)
	}
}

// Counts is a snapshot of entry counts by state.
type Counts struct {
	Pending   int
	Ready     int
	Assigned  int
	Completed int
	Failed    int
}

// Counts returns the per-state entry counts.
func (q *TaskQueue) Counts() Counts {
	q.mu.Lock()
	defer q.mu.Unlock()

	var c Counts
	for _, e := range q.entries {
		switch e.state {
		case StatePending:
			c.Pending++
		case StateReady:
			c.Ready++
		case StateAssigned:
			c.Assigned++
		case StateCompleted:
			c.Completed++
		case StateFailed:
			c.Failed++
		}
	}
	return c
}

// Depth returns the number of Pending plus Ready entries (queue pressure).
func (q *TaskQueue) Depth() int {
	c := q.Counts()
	return c.Pending + c.Ready
}

// Remaining returns the number of entries not yet in a terminal state.
func (q *TaskQueue) Remaining() int {
	c := q.Counts()
	return c.Pending + c.Ready + c.Assigned
}

// State reports the queue state of a task.
func (q *TaskQueue) State(taskID string) (TaskState, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, exists := q.entries[taskID]
	if !exists {
		return 0, false
	}
	return e.state, true
}

// Steals returns the cumulative number of cross-worker steals.
func (q *TaskQueue) Steals() uint64 {
	return q.steals.Load()
}

// Blocked returns the IDs of Pending tasks that can never become ready
// because their dependency chain terminates in a Failed task. Computed as a
// fixpoint so transitively blocked tasks are included.
func (q *TaskQueue) Blocked() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	blocked := make(map[string]bool)
	for changed := true; changed; {
		changed = false
		for id, e := range q.entries {
			if e.state != StatePending || blocked[id] {
				continue
			}
			for _, depID := range e.task.Dependencies {
				dep, ok := q.entries[depID]
				if !ok {
					continue
				}
				if dep.state == StateFailed || blocked[depID] {
					blocked[id] = true
					changed = true
					break
				}
			}
		}
	}

	ids := make([]string, 0, len(blocked))
	for id := range blocked {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
