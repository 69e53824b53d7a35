// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() so tests run against the
// authoritative schema. Do not hardcode CREATE TABLE statements in test files;
// use setupTestDB() and the seed* helpers.
package sqlite_test

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// Every pooled connection to :memory: is a separate database.
	testDB.SetMaxOpenConns(1)

	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

var testTime = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

// seedOccupation inserts a draft occupation at version 1.
func seedOccupation(t *testing.T, conn *sql.DB, code, title string) {
	t.Helper()
	ts := db.FormatTime(testTime)
	_, err := conn.Exec(
		"INSERT INTO occupations (external_code, title, status, version, created_at, updated_at) VALUES (?, ?, 'draft', 1, ?, ?)",
		code, title, ts, ts,
	)
	if err != nil {
		t.Fatalf("failed to seed occupation: %v", err)
	}
}

// seedSnapshot inserts a live snapshot.
func seedSnapshot(t *testing.T, conn *sql.DB, code, hash, payload string) {
	t.Helper()
	ts := db.FormatTime(testTime)
	_, err := conn.Exec(
		"INSERT INTO snapshots (external_code, content_hash, payload, last_checked, last_changed) VALUES (?, ?, ?, ?, ?)",
		code, hash, payload, ts, ts,
	)
	if err != nil {
		t.Fatalf("failed to seed snapshot: %v", err)
	}
}

func countRows(t *testing.T, conn *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := conn.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
