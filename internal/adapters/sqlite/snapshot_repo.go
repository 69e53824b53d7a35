package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/db"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// SnapshotRepository implements secondary.SnapshotRepository with SQLite.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new SQLite snapshot repository.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Get retrieves a snapshot, tombstoned or not.
func (r *SnapshotRepository) Get(ctx context.Context, code string) (*secondary.Snapshot, error) {
	return getSnapshot(ctx, r.db, code)
}

func getSnapshot(ctx context.Context, q dbtx, code string) (*secondary.Snapshot, error) {
	var (
		payload                  string
		lastChecked, lastChanged string
		deletedAt                sql.NullString
	)
	snap := &secondary.Snapshot{}
	err := q.QueryRowContext(ctx,
		"SELECT external_code, content_hash, payload, last_checked, last_changed, deleted_at FROM snapshots WHERE external_code = ?",
		code,
	).Scan(&snap.ExternalCode, &snap.ContentHash, &payload, &lastChecked, &lastChanged, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s: %w", code, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	if err := decodeJSON(sql.NullString{String: payload, Valid: true}, &snap.Payload); err != nil {
		return nil, err
	}
	if snap.LastChecked, err = db.ParseTime(lastChecked); err != nil {
		return nil, err
	}
	if snap.LastChanged, err = db.ParseTime(lastChanged); err != nil {
		return nil, err
	}
	if snap.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return nil, err
	}
	return snap, nil
}

// ListLive returns code -> content hash for every snapshot not tombstoned.
func (r *SnapshotRepository) ListLive(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT external_code, content_hash FROM snapshots WHERE deleted_at IS NULL")
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	live := make(map[string]string)
	for rows.Next() {
		var code, hash string
		if err := rows.Scan(&code, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		live[code] = hash
	}
	return live, rows.Err()
}

// Ensure SnapshotRepository implements the interface
var _ secondary.SnapshotRepository = (*SnapshotRepository)(nil)
