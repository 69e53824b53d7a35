package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/occupation"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

func TestMutate_RetriesOnConflict(t *testing.T) {
	repo := newMockOccupationRepository(&secondary.OccupationRecord{ExternalCode: "M1805", Status: occupation.StatusDraft})
	repo.conflicts = 2
	applied := 0

	rec, err := Mutate(context.Background(), repo, "M1805", func(r *secondary.OccupationRecord) error {
		applied++
		r.Description = "ok"
		return nil
	})

	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}
	if applied != 3 {
		t.Errorf("expected fn applied 3 times, got %d", applied)
	}
	if rec.Description != "ok" || repo.get("M1805").Description != "ok" {
		t.Error("expected description persisted")
	}
}

func TestMutate_GivesUpAfterMaxConflicts(t *testing.T) {
	repo := newMockOccupationRepository(&secondary.OccupationRecord{ExternalCode: "M1805"})
	repo.conflicts = MaxConflictRetries + 10

	_, err := Mutate(context.Background(), repo, "M1805", func(r *secondary.OccupationRecord) error { return nil })

	if !errors.Is(err, secondary.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	if repo.updates != MaxConflictRetries+1 {
		t.Errorf("expected %d attempts, got %d", MaxConflictRetries+1, repo.updates)
	}
}

func TestMutate_FnErrorAborts(t *testing.T) {
	repo := newMockOccupationRepository(&secondary.OccupationRecord{ExternalCode: "M1805"})
	stop := errors.New("stop")

	_, err := Mutate(context.Background(), repo, "M1805", func(r *secondary.OccupationRecord) error { return stop })

	if !errors.Is(err, stop) || repo.updates != 0 {
		t.Errorf("expected abort without update, got %v after %d updates", err, repo.updates)
	}
}

func TestMutate_NotFound(t *testing.T) {
	repo := newMockOccupationRepository()
	_, err := Mutate(context.Background(), repo, "X0000", func(r *secondary.OccupationRecord) error { return nil })
	if !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
