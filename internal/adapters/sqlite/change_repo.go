package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/detection"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/db"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

const changeColumns = `id, run_id, external_code, detected_at, change_type, changed_fields,
	old_hash, new_hash, reviewed, reviewed_by, reviewed_at, review_action`

// ChangeRepository implements secondary.ChangeRepository with SQLite.
type ChangeRepository struct {
	db *sql.DB
}

// NewChangeRepository creates a new SQLite change record repository.
func NewChangeRepository(db *sql.DB) *ChangeRepository {
	return &ChangeRepository{db: db}
}

func insertChange(ctx context.Context, q dbtx, c *secondary.ChangeRecord) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	var fields sql.NullString
	if len(c.ChangedFields) > 0 {
		var err error
		if fields, err = encodeJSON(c.ChangedFields); err != nil {
			return err
		}
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO change_records (id, run_id, external_code, detected_at, change_type, changed_fields, old_hash, new_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, nullString(c.RunID), c.ExternalCode, db.FormatTime(c.DetectedAt), string(c.ChangeType),
		fields, nullString(c.OldHash), nullString(c.NewHash),
	)
	if err != nil {
		return fmt.Errorf("failed to create change record: %w", err)
	}
	return nil
}

// GetByID retrieves a change record by its ID.
func (r *ChangeRepository) GetByID(ctx context.Context, id string) (*secondary.ChangeRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+changeColumns+` FROM change_records WHERE id = ?`, id)
	c, err := scanChange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("change %s: %w", id, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get change record: %w", err)
	}
	return c, nil
}

// List retrieves change records matching the given filters, newest first.
func (r *ChangeRepository) List(ctx context.Context, filters secondary.ChangeFilters) ([]*secondary.ChangeRecord, error) {
	query := `SELECT ` + changeColumns + ` FROM change_records WHERE 1=1`
	args := []any{}

	if filters.ExternalCode != "" {
		query += " AND external_code = ?"
		args = append(args, filters.ExternalCode)
	}
	if filters.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filters.RunID)
	}
	if filters.ChangeType != "" {
		query += " AND change_type = ?"
		args = append(args, string(filters.ChangeType))
	}
	if filters.UnreviewedOnly {
		query += " AND reviewed = 0"
	}
	query += " ORDER BY detected_at DESC, rowid DESC"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list change records: %w", err)
	}
	defer rows.Close()

	var changes []*secondary.ChangeRecord
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan change record: %w", err)
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// Latest returns the most recent change record of an entity.
func (r *ChangeRepository) Latest(ctx context.Context, code string) (*secondary.ChangeRecord, error) {
	changes, err := r.List(ctx, secondary.ChangeFilters{ExternalCode: code, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, fmt.Errorf("no change for %s: %w", code, secondary.ErrNotFound)
	}
	return changes[0], nil
}

// MarkReviewed sets the review fields of an unreviewed change.
func (r *ChangeRepository) MarkReviewed(ctx context.Context, id, reviewer, action string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE change_records SET reviewed = 1, reviewed_by = ?, reviewed_at = ?, review_action = ?
		 WHERE id = ? AND reviewed = 0`,
		reviewer, db.FormatTime(at), action, id,
	)
	if err != nil {
		return fmt.Errorf("failed to review change record: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("change %s already reviewed: %w", id, secondary.ErrVersionConflict)
	}
	return nil
}

func scanChange(s scanner) (*secondary.ChangeRecord, error) {
	var (
		runID, fields      sql.NullString
		oldHash, newHash   sql.NullString
		reviewedBy, action sql.NullString
		reviewedAt         sql.NullString
		detectedAt, ctype  string
		reviewed           int
	)
	c := &secondary.ChangeRecord{}
	err := s.Scan(&c.ID, &runID, &c.ExternalCode, &detectedAt, &ctype, &fields,
		&oldHash, &newHash, &reviewed, &reviewedBy, &reviewedAt, &action)
	if err != nil {
		return nil, err
	}

	c.RunID = runID.String
	c.ChangeType = detection.ChangeType(ctype)
	c.OldHash = oldHash.String
	c.NewHash = newHash.String
	c.Reviewed = reviewed != 0
	c.ReviewedBy = reviewedBy.String
	c.ReviewAction = action.String
	if c.DetectedAt, err = db.ParseTime(detectedAt); err != nil {
		return nil, err
	}
	if c.ReviewedAt, err = parseNullTime(reviewedAt); err != nil {
		return nil, err
	}
	if err := decodeJSON(fields, &c.ChangedFields); err != nil {
		return nil, err
	}
	return c, nil
}

// Ensure ChangeRepository implements the interface
var _ secondary.ChangeRepository = (*ChangeRepository)(nil)
