package store

import (
	"testing"
	"time"

	"engram/internal/types"
)

func TestWorkerLifecycle(t *testing.T) {
	s := newTestStore(t)

	w := &types.Worker{
		ID:        types.NewID(types.PrefixWorker),
		TaskID:    "task_1",
		Role:      "implementer",
		Status:    types.WorkerActive,
		StartedAt: time.Now().UTC(),
	}
	if err := s.RegisterWorker(w); err != nil {
		t.Fatalf("Failed to register worker: %v", err)
	}

	got, err := s.GetWorker(w.ID)
	if err != nil {
		t.Fatalf("Failed to get worker: %v", err)
	}
	if got.Role != "implementer" || got.Status != types.WorkerActive {
		t.Errorf("Worker fields lost: %+v", got)
	}

	if err := s.UpdateWorkerStatus(w.ID, types.WorkerCompleted, "task finished"); err != nil {
		t.Fatalf("Failed to update status: %v", err)
	}
	got, _ = s.GetWorker(w.ID)
	if got.Status != types.WorkerCompleted || got.Reason != "task finished" {
		t.Errorf("Status update lost: %+v", got)
	}
}

func TestListWorkersStatusFilter(t *testing.T) {
	s := newTestStore(t)

	for i, status := range []types.WorkerStatus{types.WorkerActive, types.WorkerActive, types.WorkerFailed} {
		w := &types.Worker{
			ID:        types.NewID(types.PrefixWorker),
			Role:      "reviewer",
			Status:    status,
			StartedAt: time.Now().UTC().Add(time.Duration(i) * time.Millisecond),
		}
		if err := s.RegisterWorker(w); err != nil {
			t.Fatalf("Failed to register worker %d: %v", i, err)
		}
	}

	active, err := s.ListWorkers(types.WorkerActive)
	if err != nil {
		t.Fatalf("Failed to list active workers: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("len(active) = %d, want 2", len(active))
	}

	all, err := s.ListWorkers("")
	if err != nil {
		t.Fatalf("Failed to list all workers: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}
}

func TestSweepStaleWorkers(t *testing.T) {
	s := newTestStore(t)

	stale := &types.Worker{
		ID:        types.NewID(types.PrefixWorker),
		Role:      "implementer",
		Status:    types.WorkerActive,
		StartedAt: time.Now().UTC().Add(-3 * time.Hour),
	}
	fresh := &types.Worker{
		ID:        types.NewID(types.PrefixWorker),
		Role:      "implementer",
		Status:    types.WorkerActive,
		StartedAt: time.Now().UTC(),
	}
	done := &types.Worker{
		ID:        types.NewID(types.PrefixWorker),
		Role:      "reviewer",
		Status:    types.WorkerCompleted,
		StartedAt: time.Now().UTC().Add(-5 * time.Hour),
	}
	for _, w := range []*types.Worker{stale, fresh, done} {
		if err := s.RegisterWorker(w); err != nil {
			t.Fatalf("Failed to register worker: %v", err)
		}
	}

	swept, err := s.SweepStaleWorkers(2 * time.Hour)
	if err != nil {
		t.Fatalf("Failed to sweep: %v", err)
	}
	if swept != 1 {
		t.Errorf("swept = %d, want 1", swept)
	}

	got, _ := s.GetWorker(stale.ID)
	if got.Status != types.WorkerSessionEnded {
		t.Errorf("Stale worker status = %s, want session_ended", got.Status)
	}
	got, _ = s.GetWorker(fresh.ID)
	if got.Status != types.WorkerActive {
		t.Errorf("Fresh worker swept: %s", got.Status)
	}
	got, _ = s.GetWorker(done.ID)
	if got.Status != types.WorkerCompleted {
		t.Errorf("Completed worker touched by sweep: %s", got.Status)
	}
}
