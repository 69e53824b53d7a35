package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/db"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// DetectionRunRepository implements secondary.DetectionRunRepository with SQLite.
type DetectionRunRepository struct {
	db *sql.DB
}

// NewDetectionRunRepository creates a new SQLite detection run repository.
func NewDetectionRunRepository(db *sql.DB) *DetectionRunRepository {
	return &DetectionRunRepository{db: db}
}

// Create persists a finished run.
func (r *DetectionRunRepository) Create(ctx context.Context, run *secondary.DetectionRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO detection_runs (id, started_at, finished_at, new_count, modified_count, deleted_count,
			unchanged_count, error_count, skipped_pages, success)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, db.FormatTime(run.StartedAt), db.FormatTime(run.FinishedAt),
		run.New, run.Modified, run.Deleted, run.Unchanged, run.Errors, run.SkippedPages, boolInt(run.Success),
	)
	if err != nil {
		return fmt.Errorf("failed to create detection run: %w", err)
	}
	return nil
}

// List returns runs newest first.
func (r *DetectionRunRepository) List(ctx context.Context, limit int) ([]*secondary.DetectionRun, error) {
	query := `SELECT id, started_at, finished_at, new_count, modified_count, deleted_count,
		unchanged_count, error_count, skipped_pages, success
		FROM detection_runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list detection runs: %w", err)
	}
	defer rows.Close()

	var runs []*secondary.DetectionRun
	for rows.Next() {
		var (
			startedAt, finishedAt string
			success               int
		)
		run := &secondary.DetectionRun{}
		if err := rows.Scan(&run.ID, &startedAt, &finishedAt, &run.New, &run.Modified, &run.Deleted,
			&run.Unchanged, &run.Errors, &run.SkippedPages, &success); err != nil {
			return nil, fmt.Errorf("failed to scan detection run: %w", err)
		}
		run.Success = success != 0
		if run.StartedAt, err = db.ParseTime(startedAt); err != nil {
			return nil, err
		}
		if run.FinishedAt, err = db.ParseTime(finishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Latest returns the most recent run.
func (r *DetectionRunRepository) Latest(ctx context.Context) (*secondary.DetectionRun, error) {
	runs, err := r.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("detection run: %w", secondary.ErrNotFound)
	}
	return runs[0], nil
}

// Ensure DetectionRunRepository implements the interface
var _ secondary.DetectionRunRepository = (*DetectionRunRepository)(nil)
