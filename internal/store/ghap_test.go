package store

import (
	"errors"
	"strings"
	"testing"
	"time"

	"engram/internal/types"
)

func TestStartEntrySingleActive(t *testing.T) {
	s := newTestStore(t)

	first := newTestEntry()
	if err := s.StartEntry(first); err != nil {
		t.Fatalf("Failed to start first entry: %v", err)
	}

	second := newTestEntry()
	err := s.StartEntry(second)
	if err == nil {
		t.Fatal("Second start should fail while first is active")
	}

	var activeErr *ActiveEntryError
	if !errors.As(err, &activeErr) {
		t.Fatalf("Expected ActiveEntryError, got %T: %v", err, err)
	}
	if activeErr.ActiveID != first.ID {
		t.Errorf("ActiveID = %s, want %s", activeErr.ActiveID, first.ID)
	}
	if !strings.Contains(err.Error(), first.ID) {
		t.Errorf("Error message should name the active id: %s", err.Error())
	}
	if !strings.Contains(err.Error(), "resolve_ghap") || !strings.Contains(err.Error(), "update_ghap") {
		t.Errorf("Error message should suggest resolve_ghap and update_ghap: %s", err.Error())
	}
}

func TestStartAfterResolveSucceeds(t *testing.T) {
	s := newTestStore(t)

	if err := s.StartEntry(newTestEntry()); err != nil {
		t.Fatalf("Failed to start entry: %v", err)
	}
	if _, err := s.ResolveActive(Resolution{
		Status:        types.OutcomeConfirmed,
		OutcomeResult: "build passed",
	}); err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}

	if err := s.StartEntry(newTestEntry()); err != nil {
		t.Fatalf("Start after resolve should succeed: %v", err)
	}
}

func TestUpdateActiveIncrementsIteration(t *testing.T) {
	s := newTestStore(t)

	entry := newTestEntry()
	if err := s.StartEntry(entry); err != nil {
		t.Fatalf("Failed to start entry: %v", err)
	}

	hyp := "the lockfile is stale, not the import"
	updated, err := s.UpdateActive(ActiveUpdate{Hypothesis: &hyp})
	if err != nil {
		t.Fatalf("Failed to update: %v", err)
	}
	if updated.IterationCount != 2 {
		t.Errorf("IterationCount = %d, want 2", updated.IterationCount)
	}
	if updated.Hypothesis != hyp {
		t.Errorf("Hypothesis = %q, want %q", updated.Hypothesis, hyp)
	}
	if updated.Prediction != entry.Prediction {
		t.Errorf("Prediction changed without being set: %q", updated.Prediction)
	}

	pred := "lockfile regen fixes it"
	updated, err = s.UpdateActive(ActiveUpdate{Prediction: &pred})
	if err != nil {
		t.Fatalf("Failed to update again: %v", err)
	}
	if updated.IterationCount != 3 {
		t.Errorf("IterationCount = %d, want 3", updated.IterationCount)
	}
}

func TestUpdateWithoutActiveEntry(t *testing.T) {
	s := newTestStore(t)

	hyp := "anything"
	_, err := s.UpdateActive(ActiveUpdate{Hypothesis: &hyp})
	if !errors.Is(err, ErrNoActiveEntry) {
		t.Errorf("Expected ErrNoActiveEntry, got %v", err)
	}
}

func TestResolveDerivesTier(t *testing.T) {
	tests := []struct {
		name string
		res  Resolution
		want types.ConfidenceTier
	}{
		{
			name: "confirmed is gold",
			res:  Resolution{Status: types.OutcomeConfirmed, OutcomeResult: "worked"},
			want: types.TierGold,
		},
		{
			name: "falsified with takeaway is silver",
			res: Resolution{
				Status:        types.OutcomeFalsified,
				OutcomeResult: "did not work",
				RootCause: &types.RootCause{
					Category:    types.RootCauseWrongAssumption,
					Description: "config was loaded from another path",
				},
				Lesson: &types.Lesson{Takeaway: "check config provenance first"},
			},
			want: types.TierSilver,
		},
		{
			name: "falsified without takeaway is bronze",
			res: Resolution{
				Status:        types.OutcomeFalsified,
				OutcomeResult: "did not work",
				RootCause: &types.RootCause{
					Category:    types.RootCauseOversight,
					Description: "missed a second call site",
				},
			},
			want: types.TierBronze,
		},
		{
			name: "abandoned keeps its own tier",
			res:  Resolution{Status: types.OutcomeAbandoned, OutcomeResult: "descoped"},
			want: types.TierAbandoned,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			if err := s.StartEntry(newTestEntry()); err != nil {
				t.Fatalf("Failed to start entry: %v", err)
			}
			resolved, err := s.ResolveActive(tt.res)
			if err != nil {
				t.Fatalf("Failed to resolve: %v", err)
			}
			if resolved.ConfidenceTier != tt.want {
				t.Errorf("ConfidenceTier = %s, want %s", resolved.ConfidenceTier, tt.want)
			}
			if resolved.ResolvedAt == nil {
				t.Error("ResolvedAt not stamped")
			}

			// The stored row must match what resolve returned.
			stored, err := s.GetEntry(resolved.ID)
			if err != nil {
				t.Fatalf("Failed to reload entry: %v", err)
			}
			if stored.ConfidenceTier != tt.want || stored.Status != string(tt.res.Status) {
				t.Errorf("Stored entry = (%s, %s), want (%s, %s)",
					stored.Status, stored.ConfidenceTier, tt.res.Status, tt.want)
			}
		})
	}
}

func TestResolveWithoutActiveEntry(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ResolveActive(Resolution{Status: types.OutcomeConfirmed})
	if !errors.Is(err, ErrNoActiveEntry) {
		t.Errorf("Expected ErrNoActiveEntry, got %v", err)
	}
}

func TestGetActiveReturnsNilWhenNone(t *testing.T) {
	s := newTestStore(t)

	active, err := s.GetActive()
	if err != nil {
		t.Fatalf("GetActive error: %v", err)
	}
	if active != nil {
		t.Errorf("GetActive = %+v, want nil", active)
	}
}

func TestGetEntryNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetEntry("ghap_missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRootCauseAndLessonRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if err := s.StartEntry(newTestEntry()); err != nil {
		t.Fatalf("Failed to start entry: %v", err)
	}
	resolved, err := s.ResolveActive(Resolution{
		Status:        types.OutcomeFalsified,
		OutcomeResult: "tests still failed",
		Surprise:      "failure moved to a different test",
		RootCause: &types.RootCause{
			Category:    types.RootCauseTestIsolation,
			Description: "shared fixture leaked state",
		},
		Lesson: &types.Lesson{
			WhatWorked: "isolating the fixture",
			Takeaway:   "never share mutable fixtures across tests",
		},
	})
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}

	stored, err := s.GetEntry(resolved.ID)
	if err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	if stored.RootCause == nil || stored.RootCause.Category != types.RootCauseTestIsolation {
		t.Errorf("RootCause lost in round trip: %+v", stored.RootCause)
	}
	if stored.Lesson == nil || stored.Lesson.Takeaway != "never share mutable fixtures across tests" {
		t.Errorf("Lesson lost in round trip: %+v", stored.Lesson)
	}
	if stored.Surprise != "failure moved to a different test" {
		t.Errorf("Surprise = %q", stored.Surprise)
	}
}

func TestListResolvedOrdering(t *testing.T) {
	s := newTestStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		e := newTestEntry()
		if err := s.StartEntry(e); err != nil {
			t.Fatalf("Failed to start entry %d: %v", i, err)
		}
		if _, err := s.ResolveActive(Resolution{
			Status:        types.OutcomeConfirmed,
			OutcomeResult: "ok",
		}); err != nil {
			t.Fatalf("Failed to resolve entry %d: %v", i, err)
		}
		ids = append(ids, e.ID)
		time.Sleep(2 * time.Millisecond)
	}

	resolved, err := s.ListResolved(10, 0)
	if err != nil {
		t.Fatalf("Failed to list resolved: %v", err)
	}
	if len(resolved) != 3 {
		t.Fatalf("len(resolved) = %d, want 3", len(resolved))
	}
	// Most recently resolved first.
	for i, want := range []string{ids[2], ids[1], ids[0]} {
		if resolved[i].ID != want {
			t.Errorf("resolved[%d].ID = %s, want %s", i, resolved[i].ID, want)
		}
	}

	page, err := s.ListResolved(2, 1)
	if err != nil {
		t.Fatalf("Failed to page: %v", err)
	}
	if len(page) != 2 || page[0].ID != ids[1] {
		t.Errorf("Paging broken: got %d entries, first %s", len(page), page[0].ID)
	}
}
