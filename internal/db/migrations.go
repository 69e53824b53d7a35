package db

import (
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_occupation_schema",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_deleted_at_to_snapshots",
		Up:      migrationV2,
	},
}

// LatestVersion returns the schema version SchemaSQL corresponds to.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// InitSchema brings the database to the latest schema version.
// A fresh database gets SchemaSQL directly with every migration marked as
// applied; an existing one runs whatever migrations are pending.
func InitSchema(db *sql.DB) error {
	if err := ensureVersionTable(db); err != nil {
		return err
	}

	var tableCount int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='occupations'").Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}

	if tableCount == 0 {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.Exec(SchemaSQL); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		for _, m := range migrations {
			if err := markApplied(tx, m); err != nil {
				return err
			}
		}
		return tx.Commit()
	}

	return RunMigrations(db)
}

// RunMigrations applies every migration newer than the recorded version,
// each in its own transaction.
func RunMigrations(db *sql.DB) error {
	if err := ensureVersionTable(db); err != nil {
		return err
	}

	var currentVersion int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func ensureVersionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

func applyMigration(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.Up(tx); err != nil {
		return err
	}
	if err := markApplied(tx, m); err != nil {
		return err
	}
	return tx.Commit()
}

func markApplied(tx *sql.Tx, m Migration) error {
	if _, err := tx.Exec("INSERT INTO schema_version (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}
	return nil
}

// migrationV1 creates the original tables. Snapshots had no tombstone column
// yet; deleted entities were re-reported on every cycle.
func migrationV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS occupations (
			external_code TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			title_masculine TEXT,
			title_feminine TEXT,
			title_epicene TEXT,
			description TEXT,
			outlook TEXT,
			outlook_updated_at TEXT,
			salaries TEXT,
			salaries_updated_at TEXT,
			status TEXT NOT NULL CHECK(status IN ('draft', 'enriched', 'pending_validation', 'validated', 'published', 'archived')) DEFAULT 'draft',
			version INTEGER NOT NULL DEFAULT 1,
			pending_referential_update INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_occupations_status ON occupations(status);
		CREATE INDEX IF NOT EXISTS idx_occupations_pending ON occupations(pending_referential_update);

		CREATE TABLE IF NOT EXISTS snapshots (
			external_code TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			payload TEXT NOT NULL,
			last_checked TEXT NOT NULL,
			last_changed TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS change_records (
			id TEXT PRIMARY KEY,
			run_id TEXT,
			external_code TEXT NOT NULL,
			detected_at TEXT NOT NULL,
			change_type TEXT NOT NULL CHECK(change_type IN ('new', 'modified', 'deleted')),
			changed_fields TEXT,
			old_hash TEXT,
			new_hash TEXT,
			reviewed INTEGER NOT NULL DEFAULT 0,
			reviewed_by TEXT,
			reviewed_at TEXT,
			review_action TEXT CHECK(review_action IS NULL OR review_action IN ('acknowledge', 're-enrich'))
		);
		CREATE INDEX IF NOT EXISTS idx_change_records_code ON change_records(external_code, detected_at);
		CREATE INDEX IF NOT EXISTS idx_change_records_reviewed ON change_records(reviewed);

		CREATE TABLE IF NOT EXISTS audit_entries (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			agent TEXT NOT NULL,
			entity_id TEXT,
			description TEXT NOT NULL,
			before_snippet TEXT,
			after_snippet TEXT,
			occurred_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_audit_entries_entity ON audit_entries(entity_id);
		CREATE INDEX IF NOT EXISTS idx_audit_entries_kind ON audit_entries(kind);
		CREATE INDEX IF NOT EXISTS idx_audit_entries_occurred ON audit_entries(occurred_at);

		CREATE TABLE IF NOT EXISTS detection_runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			new_count INTEGER NOT NULL DEFAULT 0,
			modified_count INTEGER NOT NULL DEFAULT 0,
			deleted_count INTEGER NOT NULL DEFAULT 0,
			unchanged_count INTEGER NOT NULL DEFAULT 0,
			error_count INTEGER NOT NULL DEFAULT 0,
			skipped_pages INTEGER NOT NULL DEFAULT 0,
			success INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS validation_workflows (
			id TEXT PRIMARY KEY,
			external_code TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('open', 'approved', 'rejected')) DEFAULT 'open',
			opened_at TEXT NOT NULL,
			closed_at TEXT,
			reviewer TEXT,
			comment TEXT,
			FOREIGN KEY (external_code) REFERENCES occupations(external_code) ON DELETE CASCADE
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_validation_workflows_open ON validation_workflows(external_code) WHERE status = 'open';
	`)
	if err != nil {
		return fmt.Errorf("failed to create initial tables: %w", err)
	}
	return nil
}

func migrationV2(tx *sql.Tx) error {
	if _, err := tx.Exec(`ALTER TABLE snapshots ADD COLUMN deleted_at TEXT`); err != nil {
		return fmt.Errorf("failed to add snapshots.deleted_at: %w", err)
	}
	return nil
}
