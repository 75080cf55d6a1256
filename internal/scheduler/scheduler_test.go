package scheduler

import (
	"testing"

	"github.com/aristath/swarm/internal/events"
)

func newTestScheduler(t *testing.T, workers int, d Discipline) *Scheduler {
	t.Helper()
	return New(Config{Workers: workers, Discipline: d})
}

func TestSchedulerLifecycle(t *testing.T) {
	s := newTestScheduler(t, 2, DisciplineFIFO)

	batch := []SubTask{
		mkTask("build", 5),
		mkTask("test", 5, "build"),
	}
	if err := s.SubmitBatch(batch); err != nil {
		t.Fatal(err)
	}

	task := s.GetNextTask(0)
	if task == nil || task.ID != "build" {
		t.Fatalf("GetNextTask(0) = %v, want build", task)
	}

	// "test" is gated on "build"; no worker can fetch it yet.
	if task := s.GetNextTask(1); task != nil {
		t.Errorf("GetNextTask(1) = %q, want nil", task.ID)
	}

	if err := s.CompleteTask("build", SubTaskResult{TaskID: "build", Success: true, ExecutionTimeMS: 10}); err != nil {
		t.Fatal(err)
	}

	task = s.GetNextTask(1)
	if task == nil || task.ID != "test" {
		t.Fatalf("GetNextTask(1) after completion = %v, want test", task)
	}

	if err := s.CompleteTask("test", SubTaskResult{TaskID: "test", Success: true}); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if snap.Remaining != 0 {
		t.Errorf("Snapshot().Remaining = %d, want 0", snap.Remaining)
	}
}

func TestSchedulerInvalidWorkerID(t *testing.T) {
	s := newTestScheduler(t, 2, DisciplineFIFO)
	if err := s.SubmitTask(mkTask("a", 5)); err != nil {
		t.Fatal(err)
	}

	if task := s.GetNextTask(7); task != nil {
		t.Errorf("GetNextTask(7) = %q, want nil for out-of-pool worker", task.ID)
	}
	if task := s.GetNextTask(-1); task != nil {
		t.Errorf("GetNextTask(-1) = %q, want nil", task.ID)
	}
}

func TestSchedulerResizePool(t *testing.T) {
	s := newTestScheduler(t, 1, DisciplineWorkStealing)

	batch := make([]SubTask, 4)
	for i := range batch {
		batch[i] = mkTask(string(rune('a'+i)), 5)
	}
	if err := s.SubmitBatch(batch); err != nil {
		t.Fatal(err)
	}

	// Worker 1 is outside the pool until we grow.
	if task := s.GetNextTask(1); task != nil {
		t.Fatalf("GetNextTask(1) before grow = %q, want nil", task.ID)
	}

	s.ResizePool(2)
	if s.PoolSize() != 2 {
		t.Errorf("PoolSize() = %d, want 2", s.PoolSize())
	}

	task := s.GetNextTask(1)
	if task == nil {
		t.Fatal("GetNextTask(1) after grow = nil, want a task")
	}
	if err := s.CompleteTask(task.ID, SubTaskResult{TaskID: task.ID, Success: true}); err != nil {
		t.Fatal(err)
	}

	// Shrink back; worker 1 stops receiving work.
	s.ResizePool(1)
	if task := s.GetNextTask(1); task != nil {
		t.Errorf("GetNextTask(1) after shrink = %q, want nil", task.ID)
	}
}

func TestSchedulerStalled(t *testing.T) {
	s := newTestScheduler(t, 1, DisciplineFIFO)

	batch := []SubTask{
		mkTask("root", 5),
		mkTask("child", 5, "root"),
	}
	if err := s.SubmitBatch(batch); err != nil {
		t.Fatal(err)
	}
	if s.Stalled() {
		t.Error("Stalled() = true with ready work")
	}

	task := s.GetNextTask(0)
	if task == nil {
		t.Fatal("no ready task")
	}
	if err := s.CompleteTask(task.ID, SubTaskResult{TaskID: task.ID, Success: false, Error: "boom"}); err != nil {
		t.Fatal(err)
	}

	if !s.Stalled() {
		t.Error("Stalled() = false, want true (child blocked behind failed root)")
	}
	if got := s.Blocked(); len(got) != 1 || got[0] != "child" {
		t.Errorf("Blocked() = %v, want [child]", got)
	}
}

func TestSchedulerPublishesEvents(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	sub := bus.Subscribe(events.TopicTask, 16)

	s := New(Config{Workers: 1, Discipline: DisciplineFIFO, Bus: bus})
	if err := s.SubmitTask(mkTask("a", 5)); err != nil {
		t.Fatal(err)
	}

	task := s.GetNextTask(0)
	if task == nil {
		t.Fatal("no ready task")
	}
	if err := s.CompleteTask("a", SubTaskResult{TaskID: "a", Success: true}); err != nil {
		t.Fatal(err)
	}

	started := <-sub
	if _, ok := started.(events.TaskStartedEvent); !ok {
		t.Errorf("first event = %T, want TaskStartedEvent", started)
	}
	completed := <-sub
	if _, ok := completed.(events.TaskCompletedEvent); !ok {
		t.Errorf("second event = %T, want TaskCompletedEvent", completed)
	}
}
