package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func mkTask(id string, priority uint8, deps ...string) SubTask {
	return SubTask{
		ID:           id,
		Description:  "task " + id,
		Priority:     priority,
		Dependencies: deps,
	}
}

func mustComplete(t *testing.T, q *TaskQueue, id string) {
	t.Helper()
	if err := q.MarkCompleted(id, SubTaskResult{TaskID: id, Success: true}); err != nil {
		t.Fatalf("MarkCompleted(%q): %v", id, err)
	}
}

// TestSubmitBatchValidation tests atomic batch validation with various
// graph structures.
func TestSubmitBatchValidation(t *testing.T) {
	tests := []struct {
		name    string
		pre     []SubTask // submitted before the batch under test
		batch   []SubTask
		wantErr error // matched with errors.As against the concrete types
	}{
		{
			name:  "valid linear chain",
			batch: []SubTask{mkTask("a", 5), mkTask("b", 5, "a"), mkTask("c", 5, "b")},
		},
		{
			name:  "forward reference within batch",
			batch: []SubTask{mkTask("b", 5, "a"), mkTask("a", 5)},
		},
		{
			name:    "duplicate within batch",
			batch:   []SubTask{mkTask("a", 5), mkTask("a", 5)},
			wantErr: &DuplicateTaskIDError{},
		},
		{
			name:    "duplicate against existing entry",
			pre:     []SubTask{mkTask("a", 5)},
			batch:   []SubTask{mkTask("a", 5)},
			wantErr: &DuplicateTaskIDError{},
		},
		{
			name:    "unknown dependency",
			batch:   []SubTask{mkTask("a", 5, "ghost")},
			wantErr: &UnknownDependencyError{},
		},
		{
			name:    "self dependency",
			batch:   []SubTask{mkTask("a", 5, "a")},
			wantErr: &DependencyCycleError{},
		},
		{
			name:    "direct cycle",
			batch:   []SubTask{mkTask("a", 5, "b"), mkTask("b", 5, "a")},
			wantErr: &DependencyCycleError{},
		},
		{
			name:    "transitive cycle",
			batch:   []SubTask{mkTask("a", 5, "c"), mkTask("b", 5, "a"), mkTask("c", 5, "b")},
			wantErr: &DependencyCycleError{},
		},
		{
			name:  "dependency on completed existing task",
			pre:   []SubTask{mkTask("done", 5)},
			batch: []SubTask{mkTask("next", 5, "done")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewTaskQueue(DisciplineFIFO, 1)
			if len(tt.pre) > 0 {
				if err := q.SubmitBatch(tt.pre); err != nil {
					t.Fatalf("pre-submit: %v", err)
				}
			}

			err := q.SubmitBatch(tt.batch)

			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("SubmitBatch() error = %v, want nil", err)
				}
				return
			}

			if err == nil {
				t.Fatal("SubmitBatch() succeeded, want error")
			}
			switch tt.wantErr.(type) {
			case *DuplicateTaskIDError:
				var e *DuplicateTaskIDError
				if !errors.As(err, &e) {
					t.Errorf("error = %v, want DuplicateTaskIDError", err)
				}
			case *UnknownDependencyError:
				var e *UnknownDependencyError
				if !errors.As(err, &e) {
					t.Errorf("error = %v, want UnknownDependencyError", err)
				}
			case *DependencyCycleError:
				var e *DependencyCycleError
				if !errors.As(err, &e) {
					t.Errorf("error = %v, want DependencyCycleError", err)
				}
			}
		})
	}
}

// TestSubmitBatchAtomicity verifies a rejected batch leaves the queue
// unchanged, including when only the last task is invalid.
func TestSubmitBatchAtomicity(t *testing.T) {
	q := NewTaskQueue(DisciplineFIFO, 1)

	batch := []SubTask{
		mkTask("a", 5),
		mkTask("b", 5, "a"),
		mkTask("c", 5, "ghost"), // invalid
	}
	if err := q.SubmitBatch(batch); err == nil {
		t.Fatal("SubmitBatch() succeeded, want error")
	}

	if got := q.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d after rejected batch, want 0", got)
	}
	if _, ok := q.State("a"); ok {
		t.Error("task from rejected batch was inserted")
	}

	// The same IDs must be submittable afterwards.
	if err := q.SubmitBatch([]SubTask{mkTask("a", 5), mkTask("b", 5, "a")}); err != nil {
		t.Fatalf("resubmit after rejection: %v", err)
	}
}

func TestFIFOOrder(t *testing.T) {
	q := NewTaskQueue(DisciplineFIFO, 1)
	batch := []SubTask{
		mkTask("first", 1),
		mkTask("second", 9),
		mkTask("third", 5),
	}
	if err := q.SubmitBatch(batch); err != nil {
		t.Fatal(err)
	}

	want := []string{"first", "second", "third"}
	for _, id := range want {
		task := q.NextReady(0)
		if task == nil {
			t.Fatalf("NextReady() = nil, want %q", id)
		}
		if task.ID != id {
			t.Errorf("NextReady() = %q, want %q", task.ID, id)
		}
	}
	if task := q.NextReady(0); task != nil {
		t.Errorf("NextReady() on drained queue = %q, want nil", task.ID)
	}
}

func TestPriorityOrder(t *testing.T) {
	q := NewTaskQueue(DisciplinePriority, 1)
	batch := []SubTask{
		mkTask("low", 1),
		mkTask("high-a", 9),
		mkTask("mid", 5),
		mkTask("high-b", 9), // same priority as high-a, later submission
	}
	if err := q.SubmitBatch(batch); err != nil {
		t.Fatal(err)
	}

	want := []string{"high-a", "high-b", "mid", "low"}
	for _, id := range want {
		task := q.NextReady(0)
		if task == nil || task.ID != id {
			got := "<nil>"
			if task != nil {
				got = task.ID
			}
			t.Fatalf("NextReady() = %s, want %q", got, id)
		}
	}
}

func TestDependencyGating(t *testing.T) {
	q := NewTaskQueue(DisciplineFIFO, 1)
	batch := []SubTask{
		mkTask("a", 5),
		mkTask("b", 5),
		mkTask("join", 5, "a", "b"),
	}
	if err := q.SubmitBatch(batch); err != nil {
		t.Fatal(err)
	}

	// Drain a and b; join must not appear until both complete.
	for i := 0; i < 2; i++ {
		task := q.NextReady(0)
		if task == nil || task.ID == "join" {
			t.Fatalf("iteration %d: got %v, want a or b", i, task)
		}
		mustComplete(t, q, task.ID)

		if i == 0 {
			if state, _ := q.State("join"); state != StatePending {
				t.Errorf("join state after one dependency = %s, want pending", state)
			}
		}
	}

	task := q.NextReady(0)
	if task == nil || task.ID != "join" {
		t.Fatalf("NextReady() after deps complete = %v, want join", task)
	}
}

func TestFailedDependencyWithholdsReadiness(t *testing.T) {
	q := NewTaskQueue(DisciplineFIFO, 1)
	batch := []SubTask{
		mkTask("root", 5),
		mkTask("child", 5, "root"),
		mkTask("grandchild", 5, "child"),
		mkTask("free", 5),
	}
	if err := q.SubmitBatch(batch); err != nil {
		t.Fatal(err)
	}

	// Fail the root.
	root := q.NextReady(0)
	if root == nil {
		t.Fatal("no ready task")
	}
	if err := q.MarkCompleted(root.ID, SubTaskResult{TaskID: root.ID, Success: false, Error: "boom"}); err != nil {
		t.Fatal(err)
	}

	// Independent work still flows.
	free := q.NextReady(0)
	if free == nil || free.ID != "free" {
		t.Fatalf("NextReady() = %v, want free", free)
	}
	mustComplete(t, q, "free")

	if task := q.NextReady(0); task != nil {
		t.Errorf("NextReady() = %q, want nil (remaining tasks blocked)", task.ID)
	}

	got := q.Blocked()
	want := []string{"child", "grandchild"}
	if len(got) != len(want) {
		t.Fatalf("Blocked() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Blocked()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMarkCompletedErrors(t *testing.T) {
	q := NewTaskQueue(DisciplineFIFO, 1)
	if err := q.Submit(mkTask("a", 5)); err != nil {
		t.Fatal(err)
	}

	var unknown *UnknownTaskError
	err := q.MarkCompleted("ghost", SubTaskResult{Success: true})
	if !errors.As(err, &unknown) {
		t.Errorf("MarkCompleted(unknown) error = %v, want UnknownTaskError", err)
	}

	mustComplete(t, q, "a")
	if err := q.MarkCompleted("a", SubTaskResult{Success: true}); err == nil {
		t.Error("MarkCompleted() on terminal task succeeded, want error")
	}
}

// TestNoDoubleAssignment hammers NextReady from many goroutines and checks
// each task is handed out exactly once.
func TestNoDoubleAssignment(t *testing.T) {
	for _, discipline := range []Discipline{DisciplineFIFO, DisciplinePriority, DisciplineWorkStealing} {
		t.Run(discipline.String(), func(t *testing.T) {
			const workers = 8
			const tasks = 200

			q := NewTaskQueue(discipline, workers)
			batch := make([]SubTask, tasks)
			for i := range batch {
				batch[i] = mkTask(fmt.Sprintf("t%03d", i), uint8(i%10))
			}
			if err := q.SubmitBatch(batch); err != nil {
				t.Fatal(err)
			}

			var mu sync.Mutex
			seen := make(map[string]int, tasks)
			var completeErr error

			var wg sync.WaitGroup
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					for {
						task := q.NextReady(id)
						if task == nil {
							return
						}
						err := q.MarkCompleted(task.ID, SubTaskResult{TaskID: task.ID, Success: true})
						mu.Lock()
						seen[task.ID]++
						if err != nil && completeErr == nil {
							completeErr = err
						}
						mu.Unlock()
					}
				}(w)
			}
			wg.Wait()

			if completeErr != nil {
				t.Fatalf("MarkCompleted: %v", completeErr)
			}

			if len(seen) != tasks {
				t.Errorf("assigned %d distinct tasks, want %d", len(seen), tasks)
			}
			for id, n := range seen {
				if n != 1 {
					t.Errorf("task %q assigned %d times", id, n)
				}
			}
		})
	}
}

// TestWorkStealing gives all work to one home sub-queue's worker and has a
// second worker drain via steals.
func TestWorkStealing(t *testing.T) {
	q := NewTaskQueue(DisciplineWorkStealing, 2)

	batch := make([]SubTask, 10)
	for i := range batch {
		batch[i] = mkTask(fmt.Sprintf("t%d", i), 5)
	}
	if err := q.SubmitBatch(batch); err != nil {
		t.Fatal(err)
	}

	// Round-robin placement means worker 0 and 1 each hold 5 tasks. Worker 1
	// drains everything: 5 local pops plus 5 steals from worker 0.
	var drained int
	for {
		task := q.NextReady(1)
		if task == nil {
			break
		}
		drained++
		mustComplete(t, q, task.ID)
	}

	if drained != 10 {
		t.Errorf("worker 1 drained %d tasks, want 10", drained)
	}
	if got := q.Steals(); got != 5 {
		t.Errorf("Steals() = %d, want 5", got)
	}
}

func TestSetWorkersRedistributesOrphans(t *testing.T) {
	q := NewTaskQueue(DisciplineWorkStealing, 4)

	batch := make([]SubTask, 8)
	for i := range batch {
		batch[i] = mkTask(fmt.Sprintf("t%d", i), 5)
	}
	if err := q.SubmitBatch(batch); err != nil {
		t.Fatal(err)
	}

	// Shrink to 1 worker; tasks parked on removed sub-queues must remain
	// reachable from worker 0.
	q.SetWorkers(1)

	var drained int
	for {
		task := q.NextReady(0)
		if task == nil {
			break
		}
		drained++
		mustComplete(t, q, task.ID)
	}
	if drained != 8 {
		t.Errorf("drained %d tasks after shrink, want 8", drained)
	}
}

func TestParseDiscipline(t *testing.T) {
	tests := []struct {
		in      string
		want    Discipline
		wantErr bool
	}{
		{"fifo", DisciplineFIFO, false},
		{"priority", DisciplinePriority, false},
		{"work-stealing", DisciplineWorkStealing, false},
		{"workstealing", DisciplineWorkStealing, false},
		{"lifo", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDiscipline(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDiscipline(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseDiscipline(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
