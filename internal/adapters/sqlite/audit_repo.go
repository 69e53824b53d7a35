package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ctxutil"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/db"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// AuditRepository implements secondary.AuditRepository with SQLite.
// Entries are only ever inserted; seq gives per-database append order.
type AuditRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewAuditRepository creates a new SQLite audit repository.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db, now: time.Now}
}

// Append persists entry. Missing ID, agent and timestamp are filled in;
// the agent defaults to the actor carried by ctx.
func (r *AuditRepository) Append(ctx context.Context, entry *secondary.AuditEntry) error {
	if entry.Kind == "" {
		return fmt.Errorf("audit entry kind must be set")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Agent == "" {
		entry.Agent = ctxutil.ActorFromContext(ctx)
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = r.now()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_entries (id, kind, agent, entity_id, description, before_snippet, after_snippet, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Kind, entry.Agent, nullString(entry.EntityID), entry.Description,
		nullString(entry.Before), nullString(entry.After), db.FormatTime(entry.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get audit seq: %w", err)
	}
	entry.Seq = seq
	return nil
}

// List retrieves entries matching the filters in append order. With a
// limit, the most recent entries are returned.
func (r *AuditRepository) List(ctx context.Context, filters secondary.AuditFilters) ([]*secondary.AuditEntry, error) {
	inner := `SELECT seq, id, kind, agent, entity_id, description, before_snippet, after_snippet, occurred_at
		FROM audit_entries WHERE 1=1`
	args := []any{}

	if !filters.Since.IsZero() {
		inner += " AND occurred_at >= ?"
		args = append(args, db.FormatTime(filters.Since))
	}
	if !filters.Until.IsZero() {
		inner += " AND occurred_at < ?"
		args = append(args, db.FormatTime(filters.Until))
	}
	if filters.EntityID != "" {
		inner += " AND entity_id = ?"
		args = append(args, filters.EntityID)
	}
	if filters.Kind != "" {
		inner += " AND kind = ?"
		args = append(args, filters.Kind)
	}
	if filters.Agent != "" {
		inner += " AND agent = ?"
		args = append(args, filters.Agent)
	}
	inner += " ORDER BY seq DESC"
	if filters.Limit > 0 {
		inner += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, "SELECT * FROM ("+inner+") ORDER BY seq ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*secondary.AuditEntry
	for rows.Next() {
		var (
			entityID, before, after sql.NullString
			occurredAt              string
		)
		e := &secondary.AuditEntry{}
		if err := rows.Scan(&e.Seq, &e.ID, &e.Kind, &e.Agent, &entityID, &e.Description, &before, &after, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.EntityID = entityID.String
		e.Before = before.String
		e.After = after.String
		if e.OccurredAt, err = db.ParseTime(occurredAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Ensure AuditRepository implements the interface
var _ secondary.AuditRepository = (*AuditRepository)(nil)
