package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/adapters/sqlite"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/detection"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

func seedChange(t *testing.T, writer *sqlite.DetectionWriter, code string) *secondary.ChangeRecord {
	t.Helper()
	f := detection.NewFingerprinter(nil)
	plan := f.PlanEntity(detection.Entity{Code: code, Fields: map[string]string{"title": code}}, nil)
	change, err := writer.Apply(context.Background(), plan, "run-1", testTime)
	if err != nil {
		t.Fatalf("failed to seed change: %v", err)
	}
	return change
}

func TestChangeRepository_MarkReviewedOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewChangeRepository(db)
	ctx := context.Background()

	change := seedChange(t, sqlite.NewDetectionWriter(db), "X0001")

	if err := repo.MarkReviewed(ctx, change.ID, "alice", "acknowledge", testTime); err != nil {
		t.Fatalf("MarkReviewed failed: %v", err)
	}
	got, err := repo.GetByID(ctx, change.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Reviewed || got.ReviewedBy != "alice" || got.ReviewAction != "acknowledge" || !got.ReviewedAt.Equal(testTime) {
		t.Errorf("review fields not set: %+v", got)
	}
	if got.ChangeType != detection.ChangeNew || got.ExternalCode != "X0001" {
		t.Errorf("non-review fields must not change: %+v", got)
	}

	err = repo.MarkReviewed(ctx, change.ID, "bob", "re-enrich", testTime)
	if !errors.Is(err, secondary.ErrVersionConflict) {
		t.Errorf("second review should conflict, got %v", err)
	}

	err = repo.MarkReviewed(ctx, "missing", "bob", "acknowledge", testTime)
	if !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestChangeRepository_ListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewChangeRepository(db)
	writer := sqlite.NewDetectionWriter(db)
	ctx := context.Background()

	a := seedChange(t, writer, "A1")
	seedChange(t, writer, "B2")
	if err := repo.MarkReviewed(ctx, a.ID, "alice", "acknowledge", testTime); err != nil {
		t.Fatal(err)
	}

	all, err := repo.List(ctx, secondary.ChangeFilters{})
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 changes, got %d (%v)", len(all), err)
	}
	unreviewed, _ := repo.List(ctx, secondary.ChangeFilters{UnreviewedOnly: true})
	if len(unreviewed) != 1 || unreviewed[0].ExternalCode != "B2" {
		t.Errorf("unexpected unreviewed list: %+v", unreviewed)
	}
	byCode, _ := repo.List(ctx, secondary.ChangeFilters{ExternalCode: "A1"})
	if len(byCode) != 1 || byCode[0].ID != a.ID {
		t.Errorf("unexpected list by code: %+v", byCode)
	}
	byRun, _ := repo.List(ctx, secondary.ChangeFilters{RunID: "run-1", ChangeType: detection.ChangeNew})
	if len(byRun) != 2 {
		t.Errorf("expected 2 changes for run-1, got %d", len(byRun))
	}

	if _, err := repo.Latest(ctx, "ZZ"); !errors.Is(err, secondary.ErrNotFound) {
		t.Errorf("expected ErrNotFound for Latest without changes, got %v", err)
	}
}
