package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/db"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// ValidationRepository implements secondary.ValidationRepository with SQLite.
type ValidationRepository struct {
	db *sql.DB
}

// NewValidationRepository creates a new SQLite validation workflow repository.
func NewValidationRepository(db *sql.DB) *ValidationRepository {
	return &ValidationRepository{db: db}
}

// Open persists a new open workflow.
func (r *ValidationRepository) Open(ctx context.Context, wf *secondary.ValidationWorkflow) error {
	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}
	if wf.OpenedAt.IsZero() {
		wf.OpenedAt = time.Now()
	}
	wf.Status = secondary.WorkflowOpen

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO validation_workflows (id, external_code, status, opened_at) VALUES (?, ?, ?, ?)",
		wf.ID, wf.ExternalCode, wf.Status, db.FormatTime(wf.OpenedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to open validation workflow: %w", err)
	}
	return nil
}

// GetOpen returns the open workflow of an occupation.
func (r *ValidationRepository) GetOpen(ctx context.Context, code string) (*secondary.ValidationWorkflow, error) {
	var (
		openedAt                    string
		closedAt, reviewer, comment sql.NullString
	)
	wf := &secondary.ValidationWorkflow{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, external_code, status, opened_at, closed_at, reviewer, comment
		 FROM validation_workflows WHERE external_code = ? AND status = 'open'`,
		code,
	).Scan(&wf.ID, &wf.ExternalCode, &wf.Status, &openedAt, &closedAt, &reviewer, &comment)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("open validation for %s: %w", code, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get validation workflow: %w", err)
	}

	wf.Reviewer = reviewer.String
	wf.Comment = comment.String
	if wf.OpenedAt, err = db.ParseTime(openedAt); err != nil {
		return nil, err
	}
	if wf.ClosedAt, err = parseNullTime(closedAt); err != nil {
		return nil, err
	}
	return wf, nil
}

// Close moves an open workflow to approved or rejected.
func (r *ValidationRepository) Close(ctx context.Context, id, status, reviewer, comment string, at time.Time) error {
	if status != secondary.WorkflowApproved && status != secondary.WorkflowRejected {
		return fmt.Errorf("invalid workflow status %q", status)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE validation_workflows SET status = ?, closed_at = ?, reviewer = ?, comment = ?
		 WHERE id = ? AND status = 'open'`,
		status, db.FormatTime(at), nullString(reviewer), nullString(comment), id,
	)
	if err != nil {
		return fmt.Errorf("failed to close validation workflow: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("open validation workflow %s: %w", id, secondary.ErrNotFound)
	}
	return nil
}

// CountOpen returns the number of open workflows.
func (r *ValidationRepository) CountOpen(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM validation_workflows WHERE status = 'open'").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count validation workflows: %w", err)
	}
	return n, nil
}

// Ensure ValidationRepository implements the interface
var _ secondary.ValidationRepository = (*ValidationRepository)(nil)
