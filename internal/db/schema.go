package db

// SchemaSQL is the complete schema for fresh installs.
// It reflects the current state after all migrations.
//
// # Schema Drift Protection
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. Repository tests
// load it through GetSchemaSQL() instead of hardcoding CREATE TABLE statements,
// so a column referenced by an adapter but missing here fails immediately with
// "no such column".
//
// When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
//  3. Run the sqlite adapter tests
//
// Timestamps are stored as fixed-width UTC TEXT (see adapters/sqlite) so both
// sqlite drivers read them back identically and they sort lexicographically.
const SchemaSQL = `
-- Occupation records (one per referential entity)
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

-- Snapshots (last-seen referential content, owned by the change detector)
CREATE TABLE IF NOT EXISTS snapshots (
	external_code TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL,
	payload TEXT NOT NULL,
	last_checked TEXT NOT NULL,
	last_changed TEXT NOT NULL,
	deleted_at TEXT
);

-- Change records (append-only; only review columns are ever updated)
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

-- Audit trail (append-only; seq preserves per-entity causal order)
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

-- Detection run history (one row per change-detection cycle)
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

-- Validation workflows (at most one open workflow per occupation)
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
`

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
