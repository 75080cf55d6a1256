package scheduler

import (
	"testing"
	"time"
)

func TestRegistryAssignFinish(t *testing.T) {
	r := NewWorkerRegistry(2)

	r.Assign(0, "t1")
	r.Assign(1, "t2")

	if got := r.ActiveCount(); got != 2 {
		t.Errorf("ActiveCount() = %d, want 2", got)
	}

	workerID, ok := r.Finish("t1", 100*time.Millisecond)
	if !ok || workerID != 0 {
		t.Errorf("Finish(t1) = (%d, %v), want (0, true)", workerID, ok)
	}
	if got := r.ActiveCount(); got != 1 {
		t.Errorf("ActiveCount() after finish = %d, want 1", got)
	}

	if _, ok := r.Finish("ghost", 0); ok {
		t.Error("Finish(ghost) = true, want false")
	}
}

func TestRegistryGracefulShrink(t *testing.T) {
	r := NewWorkerRegistry(4)

	r.Assign(3, "busy")
	r.Assign(2, "idle-soon")
	wid, ok := r.Finish("idle-soon", time.Millisecond)
	if !ok || wid != 2 {
		t.Fatalf("Finish(idle-soon) = (%d, %v)", wid, ok)
	}

	r.Resize(2)

	if r.Size() != 2 {
		t.Errorf("Size() = %d, want 2", r.Size())
	}
	if r.Valid(3) {
		t.Error("Valid(3) = true after shrink, want false")
	}

	// Worker 3 still holds its in-flight task until it finishes.
	if got := r.ActiveCount(); got != 1 {
		t.Errorf("ActiveCount() = %d, want 1 (drained slot keeps in-flight task)", got)
	}

	wid, ok = r.Finish("busy", time.Millisecond)
	if !ok || wid != 3 {
		t.Errorf("Finish(busy) = (%d, %v), want (3, true)", wid, ok)
	}

	// Once idle, the drained slot is gone.
	for _, slot := range r.Slots() {
		if slot.ID == 3 {
			t.Error("slot 3 still tracked after drain completed")
		}
	}
}

func TestRegistryGrow(t *testing.T) {
	r := NewWorkerRegistry(1)
	if r.Valid(2) {
		t.Error("Valid(2) = true before grow")
	}

	r.Resize(4)
	if !r.Valid(2) {
		t.Error("Valid(2) = false after grow")
	}
	if !r.Valid(3) || r.Valid(4) {
		t.Error("pool bounds wrong after grow")
	}
}

func TestWorkerSlotAvgExecTime(t *testing.T) {
	slot := WorkerSlot{Completed: 4, TotalExecTime: 2 * time.Second}
	if got := slot.AvgExecTime(); got != 500*time.Millisecond {
		t.Errorf("AvgExecTime() = %v, want 500ms", got)
	}

	var empty WorkerSlot
	if got := empty.AvgExecTime(); got != 0 {
		t.Errorf("AvgExecTime() on empty slot = %v, want 0", got)
	}
}
