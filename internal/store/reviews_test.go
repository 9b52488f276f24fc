package store

import (
	"errors"
	"testing"
	"time"

	"engram/internal/types"
)

func newTestReview(taskID string, result types.ReviewResult, worker string) *types.Review {
	return &types.Review{
		ID:         types.NewID(types.PrefixReview),
		TaskID:     taskID,
		ReviewType: types.ReviewTypeCode,
		Result:     result,
		WorkerID:   worker,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestReviewQuorum(t *testing.T) {
	s := newTestStore(t)

	task := newTestTask("quorum target")
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	if err := s.RecordReview(newTestReview(task.ID, types.ReviewApproved, "wrk_a")); err != nil {
		t.Fatalf("Failed to record first review: %v", err)
	}
	passed, count, err := s.CheckReviews(task.ID, types.ReviewTypeCode)
	if err != nil {
		t.Fatalf("Failed to check reviews: %v", err)
	}
	if passed || count != 1 {
		t.Errorf("After one approval: passed=%v count=%d, want false/1", passed, count)
	}

	if err := s.RecordReview(newTestReview(task.ID, types.ReviewApproved, "wrk_b")); err != nil {
		t.Fatalf("Failed to record second review: %v", err)
	}
	passed, count, err = s.CheckReviews(task.ID, types.ReviewTypeCode)
	if err != nil {
		t.Fatalf("Failed to check reviews: %v", err)
	}
	if !passed || count != 2 {
		t.Errorf("After two distinct approvals: passed=%v count=%d, want true/2", passed, count)
	}
}

func TestChangesRequestedClearsQuorum(t *testing.T) {
	s := newTestStore(t)

	task := newTestTask("cleared target")
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	for _, worker := range []string{"wrk_a", "wrk_b"} {
		if err := s.RecordReview(newTestReview(task.ID, types.ReviewApproved, worker)); err != nil {
			t.Fatalf("Failed to record approval: %v", err)
		}
	}
	if err := s.RecordReview(newTestReview(task.ID, types.ReviewChangesRequested, "wrk_c")); err != nil {
		t.Fatalf("Failed to record changes_requested: %v", err)
	}

	passed, count, err := s.CheckReviews(task.ID, types.ReviewTypeCode)
	if err != nil {
		t.Fatalf("Failed to check reviews: %v", err)
	}
	if passed || count != 0 {
		t.Errorf("After changes_requested: passed=%v count=%d, want false/0", passed, count)
	}

	// Only the clearing verdict remains on the record.
	reviews, err := s.ListReviews(task.ID, types.ReviewTypeCode)
	if err != nil {
		t.Fatalf("Failed to list reviews: %v", err)
	}
	if len(reviews) != 1 || reviews[0].Result != types.ReviewChangesRequested {
		t.Errorf("Reviews after clear = %v, want just the changes_requested row", reviews)
	}
}

func TestChangesRequestedScopedToType(t *testing.T) {
	s := newTestStore(t)

	task := newTestTask("scoped clear")
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	spec := newTestReview(task.ID, types.ReviewApproved, "wrk_a")
	spec.ReviewType = types.ReviewTypeSpec
	if err := s.RecordReview(spec); err != nil {
		t.Fatalf("Failed to record spec review: %v", err)
	}
	if err := s.RecordReview(newTestReview(task.ID, types.ReviewChangesRequested, "wrk_b")); err != nil {
		t.Fatalf("Failed to record code changes_requested: %v", err)
	}

	_, specCount, err := s.CheckReviews(task.ID, types.ReviewTypeSpec)
	if err != nil {
		t.Fatalf("Failed to check spec reviews: %v", err)
	}
	if specCount != 1 {
		t.Errorf("Spec approvals cleared by code changes_requested: count=%d", specCount)
	}
}

func TestSameWorkerApprovalCountsOnce(t *testing.T) {
	s := newTestStore(t)

	task := newTestTask("double vote")
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := s.RecordReview(newTestReview(task.ID, types.ReviewApproved, "wrk_same")); err != nil {
			t.Fatalf("Failed to record approval %d: %v", i, err)
		}
	}

	passed, count, err := s.CheckReviews(task.ID, types.ReviewTypeCode)
	if err != nil {
		t.Fatalf("Failed to check reviews: %v", err)
	}
	if passed || count != 1 {
		t.Errorf("Same worker twice: passed=%v count=%d, want false/1", passed, count)
	}
}

func TestReviewRequiresTask(t *testing.T) {
	s := newTestStore(t)

	err := s.RecordReview(newTestReview("task_missing", types.ReviewApproved, "wrk_a"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing task, got %v", err)
	}
}

func TestDeleteTaskCascadesReviews(t *testing.T) {
	s := newTestStore(t)

	task := newTestTask("cascade")
	if err := s.CreateTask(task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	if err := s.RecordReview(newTestReview(task.ID, types.ReviewApproved, "wrk_a")); err != nil {
		t.Fatalf("Failed to record review: %v", err)
	}

	if err := s.DeleteTask(task.ID); err != nil {
		t.Fatalf("Failed to delete task: %v", err)
	}

	reviews, err := s.ListReviews(task.ID, "")
	if err != nil {
		t.Fatalf("Failed to list reviews: %v", err)
	}
	if len(reviews) != 0 {
		t.Errorf("Reviews survived task deletion: %v", reviews)
	}
}
