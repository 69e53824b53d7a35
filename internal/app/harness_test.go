package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/adapters/sqlite"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/agent"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/detection"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/occupation"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/db"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// Ensure fakes implement the interfaces
var (
	_ secondary.ReferentialClient = (*fakeReferential)(nil)
	_ secondary.TextGenerator     = (*scriptedGenerator)(nil)
)

// fakeReferential pages through a fixed entity list.
type fakeReferential struct {
	mu       sync.Mutex
	entities []detection.Entity
	// failOffsets makes FetchPage fail for these offsets.
	failOffsets map[int]error
	calls       int
	// block, when set, is waited on before answering.
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeReferential) set(entities ...detection.Entity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entities = entities
}

func (f *fakeReferential) FetchPage(ctx context.Context, offset, limit int) (*secondary.ReferentialPage, error) {
	f.mu.Lock()
	f.calls++
	block, entered := f.block, f.entered
	err := f.failOffsets[offset]
	entities := f.entities
	f.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}

	if offset >= len(entities) {
		return &secondary.ReferentialPage{}, nil
	}
	end := offset + limit
	if end > len(entities) {
		end = len(entities)
	}
	page := entities[offset:end]
	return &secondary.ReferentialPage{Entities: page, Count: len(page)}, nil
}

// scriptedGenerator answers by prompt kind and fails prompts containing
// any of failOn.
type scriptedGenerator struct {
	mu     sync.Mutex
	failOn []string
	calls  int
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	for _, f := range g.failOn {
		if strings.Contains(prompt, f) {
			return "", errors.New("generation refused")
		}
	}
	switch {
	case strings.Contains(prompt, "masculin"):
		return `{"masculin": "Boulanger", "feminin": "Boulangère", "epicene": "Artisan boulanger"}`, nil
	case strings.Contains(prompt, "perspectives"):
		return "Recrutement tendu.", nil
	default:
		return "Description corrigée.", nil
	}
}

// fakeClock advances by one second per reading.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type harness struct {
	db          *sql.DB
	occupations *sqlite.OccupationRepository
	snapshots   *sqlite.SnapshotRepository
	changes     *sqlite.ChangeRepository
	audit       *sqlite.AuditRepository
	runs        *sqlite.DetectionRunRepository
	validations *sqlite.ValidationRepository
	ref         *fakeReferential
	gen         *scriptedGenerator
	detector    *DetectionServiceImpl
	orch        *OrchestratorServiceImpl
	records     *RecordServiceImpl
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	testDB.SetMaxOpenConns(1)
	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	t.Cleanup(func() { testDB.Close() })
	return testDB
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := setupTestDB(t)

	h := &harness{
		db:          conn,
		occupations: sqlite.NewOccupationRepository(conn),
		snapshots:   sqlite.NewSnapshotRepository(conn),
		changes:     sqlite.NewChangeRepository(conn),
		audit:       sqlite.NewAuditRepository(conn),
		runs:        sqlite.NewDetectionRunRepository(conn),
		validations: sqlite.NewValidationRepository(conn),
		ref:         &fakeReferential{},
		gen:         &scriptedGenerator{},
	}

	retrier := agent.NewRetrier(agent.RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond}, nil).
		WithSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() })

	clock := &fakeClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	h.detector = NewDetectionService(h.ref, h.snapshots, sqlite.NewDetectionWriter(conn), h.runs, h.audit, retrier,
		DetectionConfig{PageSize: 2, MaxPages: 10, VolatileFields: []string{detection.FieldUpdatedAt}}, nil)
	h.detector.now = clock.now

	agents := []*agent.Agent{
		agent.New(agent.NewCorrector(h.occupations, h.snapshots, h.audit, h.gen, retrier, 512, 10, nil), h.audit, nil),
		agent.New(agent.NewVariantGenerator(h.occupations, h.audit, h.gen, retrier, 256, 10, nil), h.audit, nil),
		agent.New(agent.NewTrendMonitor(h.occupations, h.gen, retrier, 256, 24*time.Hour, 10, nil), h.audit, nil),
		agent.New(agent.NewSalaryCollector(h.occupations, nil, h.audit, retrier, agent.SalaryCollectorConfig{BatchLimit: 10}, nil), h.audit, nil),
	}
	h.orch = NewOrchestratorService(OrchestratorDeps{
		Agents:      agents,
		Occupations: h.occupations,
		Changes:     h.changes,
		Validations: h.validations,
		Runs:        h.runs,
		Audit:       h.audit,
		Detector:    h.detector,
	}, ScheduleConfig{
		SalaryCollection:    7 * 24 * time.Hour,
		TrendMonitoring:     24 * time.Hour,
		Correction:          30 * 24 * time.Hour,
		ChangeDetection:     7 * 24 * time.Hour,
		PendingReenrichment: 0,
	}, 10, nil)
	h.records = NewRecordService(h.occupations, h.changes, h.audit)
	return h
}

func (h *harness) createRecord(t *testing.T, rec *secondary.OccupationRecord) {
	t.Helper()
	if rec.Status == "" {
		rec.Status = occupation.StatusDraft
	}
	if err := h.occupations.Create(context.Background(), rec); err != nil {
		t.Fatalf("create %s: %v", rec.ExternalCode, err)
	}
}

func (h *harness) get(t *testing.T, code string) *secondary.OccupationRecord {
	t.Helper()
	rec, err := h.occupations.GetByCode(context.Background(), code)
	if err != nil {
		t.Fatalf("get %s: %v", code, err)
	}
	return rec
}

func (h *harness) auditKinds(t *testing.T, code string) []string {
	t.Helper()
	entries, err := h.audit.List(context.Background(), secondary.AuditFilters{EntityID: code})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	kinds := make([]string, len(entries))
	for i, e := range entries {
		kinds[i] = e.Kind
	}
	return kinds
}

func entity(code, title, definition string) detection.Entity {
	return detection.Entity{Code: code, Fields: map[string]string{
		detection.FieldTitle:      title,
		detection.FieldDefinition: definition,
		detection.FieldUpdatedAt:  "2026-01-01",
	}}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
