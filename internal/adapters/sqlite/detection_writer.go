package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/detection"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/occupation"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/db"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// DetectionWriter implements secondary.DetectionWriter. Each plan is applied
// in its own transaction so an interrupted cycle never leaves a snapshot
// ahead of its occupation flag or change record.
type DetectionWriter struct {
	db *sql.DB
}

// NewDetectionWriter creates a new SQLite detection writer.
func NewDetectionWriter(db *sql.DB) *DetectionWriter {
	return &DetectionWriter{db: db}
}

// Apply persists plan and returns the change record it wrote, if any.
func (w *DetectionWriter) Apply(ctx context.Context, plan detection.EntityPlan, runID string, at time.Time) (*secondary.ChangeRecord, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts := db.FormatTime(at)

	switch plan.Change {
	case detection.ChangeUnchanged:
		if _, err := tx.ExecContext(ctx, "UPDATE snapshots SET last_checked = ? WHERE external_code = ?", ts, plan.Code); err != nil {
			return nil, fmt.Errorf("failed to touch snapshot %s: %w", plan.Code, err)
		}

	case detection.ChangeNew, detection.ChangeModified:
		payload, err := encodeJSON(plan.Fields)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO snapshots (external_code, content_hash, payload, last_checked, last_changed, deleted_at)
			 VALUES (?, ?, ?, ?, ?, NULL)
			 ON CONFLICT(external_code) DO UPDATE SET
				content_hash = excluded.content_hash,
				payload = excluded.payload,
				last_checked = excluded.last_checked,
				last_changed = excluded.last_changed,
				deleted_at = NULL`,
			plan.Code, plan.NewHash, payload.String, ts, ts,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to write snapshot %s: %w", plan.Code, err)
		}

	case detection.ChangeDeleted:
		if _, err := tx.ExecContext(ctx,
			"UPDATE snapshots SET deleted_at = ?, last_checked = ? WHERE external_code = ?",
			ts, ts, plan.Code,
		); err != nil {
			return nil, fmt.Errorf("failed to tombstone snapshot %s: %w", plan.Code, err)
		}

	default:
		return nil, fmt.Errorf("unknown change type %q", plan.Change)
	}

	if plan.EnsureRecord {
		title := plan.Fields[detection.FieldTitle]
		if title == "" {
			title = plan.Code
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO occupations (external_code, title, status, version, pending_referential_update, created_at, updated_at)
			 VALUES (?, ?, ?, 1, 0, ?, ?)
			 ON CONFLICT(external_code) DO NOTHING`,
			plan.Code, title, string(occupation.InitialStatus()), ts, ts,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create occupation %s: %w", plan.Code, err)
		}
	}

	if plan.FlagPending {
		if _, err := tx.ExecContext(ctx,
			`UPDATE occupations SET pending_referential_update = 1, version = version + 1, updated_at = ?
			 WHERE external_code = ?`,
			ts, plan.Code,
		); err != nil {
			return nil, fmt.Errorf("failed to flag occupation %s: %w", plan.Code, err)
		}
	}

	var change *secondary.ChangeRecord
	if plan.WritesChange() {
		change = &secondary.ChangeRecord{
			RunID:         runID,
			ExternalCode:  plan.Code,
			DetectedAt:    at,
			ChangeType:    plan.Change,
			ChangedFields: plan.ChangedFields,
			OldHash:       plan.OldHash,
			NewHash:       plan.NewHash,
		}
		if err := insertChange(ctx, tx, change); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit detection for %s: %w", plan.Code, err)
	}
	return change, nil
}

// Ensure DetectionWriter implements the interface
var _ secondary.DetectionWriter = (*DetectionWriter)(nil)
