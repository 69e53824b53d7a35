package primary

import (
	"context"
	"time"
)

// DetectionService defines the primary port for referential change detection.
type DetectionService interface {
	// RunCycle fetches the referential and applies one detection cycle.
	// A cycle already in progress yields an error.
	RunCycle(ctx context.Context) (*DetectionReport, error)

	// ListRuns returns run history, newest first.
	ListRuns(ctx context.Context, limit int) ([]*DetectionRunSummary, error)
}

// DetectionReport is the result of one cycle.
type DetectionReport struct {
	Run     DetectionRunSummary
	Changes []*Change
	// DeletionsSkipped is set when a page failed, so absence proved nothing.
	DeletionsSkipped bool
}

// DetectionRunSummary is one run-history row.
type DetectionRunSummary struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	New          int
	Modified     int
	Deleted      int
	Unchanged    int
	Errors       int
	SkippedPages int
	Success      bool
}
