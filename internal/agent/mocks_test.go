package agent

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/aggregate"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/occupation"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// mockOccupationRepository is an in-memory OccupationRepository with
// optimistic versioning.
type mockOccupationRepository struct {
	mu      sync.Mutex
	records map[string]*secondary.OccupationRecord
	// conflicts forces the next N updates to fail with ErrVersionConflict.
	conflicts int
	updates   int
	updateErr error
	// tombstoned codes match the tombstone filters.
	tombstoned map[string]bool
}

func newMockOccupationRepository(records ...*secondary.OccupationRecord) *mockOccupationRepository {
	m := &mockOccupationRepository{records: make(map[string]*secondary.OccupationRecord)}
	for _, r := range records {
		if r.Version == 0 {
			r.Version = 1
		}
		m.records[r.ExternalCode] = r
	}
	return m
}

func (m *mockOccupationRepository) Create(ctx context.Context, record *secondary.OccupationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.Version = 1
	cp := *record
	m.records[record.ExternalCode] = &cp
	return nil
}

func (m *mockOccupationRepository) GetByCode(ctx context.Context, code string) (*secondary.OccupationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[code]
	if !ok {
		return nil, secondary.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockOccupationRepository) Update(ctx context.Context, record *secondary.OccupationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.records[record.ExternalCode]
	if !ok {
		return secondary.ErrNotFound
	}
	if m.conflicts > 0 {
		m.conflicts--
		stored.Version++
		return secondary.ErrVersionConflict
	}
	if stored.Version != record.Version {
		return secondary.ErrVersionConflict
	}
	record.Version++
	cp := *record
	m.records[record.ExternalCode] = &cp
	return nil
}

func (m *mockOccupationRepository) List(ctx context.Context, filters secondary.OccupationFilters) ([]*secondary.OccupationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	codes := make(map[string]bool, len(filters.Codes))
	for _, c := range filters.Codes {
		codes[c] = true
	}
	var out []*secondary.OccupationRecord
	for _, r := range m.records {
		if len(codes) > 0 && !codes[r.ExternalCode] {
			continue
		}
		if filters.Status != "" && r.Status != filters.Status {
			continue
		}
		if filters.ExcludeStatus != "" && r.Status == filters.ExcludeStatus {
			continue
		}
		if filters.PendingOnly && !r.PendingReferentialUpdate {
			continue
		}
		if filters.ExcludeTombstoned && m.tombstoned[r.ExternalCode] {
			continue
		}
		if filters.TombstonedOnly && !m.tombstoned[r.ExternalCode] {
			continue
		}
		if !filters.OutlookBefore.IsZero() && !r.OutlookUpdatedAt.IsZero() && !r.OutlookUpdatedAt.Before(filters.OutlookBefore) {
			continue
		}
		if !filters.SalariesBefore.IsZero() && !r.SalariesUpdatedAt.IsZero() && !r.SalariesUpdatedAt.Before(filters.SalariesBefore) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalCode < out[j].ExternalCode })
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func (m *mockOccupationRepository) CountByStatus(ctx context.Context) (map[occupation.Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[occupation.Status]int)
	for _, r := range m.records {
		counts[r.Status]++
	}
	return counts, nil
}

func (m *mockOccupationRepository) get(code string) *secondary.OccupationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[code]
}

// mockSnapshotRepository serves fixed snapshots.
type mockSnapshotRepository struct {
	snapshots map[string]*secondary.Snapshot
}

func (m *mockSnapshotRepository) Get(ctx context.Context, code string) (*secondary.Snapshot, error) {
	s, ok := m.snapshots[code]
	if !ok {
		return nil, secondary.ErrNotFound
	}
	return s, nil
}

func (m *mockSnapshotRepository) ListLive(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string)
	for code, s := range m.snapshots {
		if !s.IsDeleted() {
			out[code] = s.ContentHash
		}
	}
	return out, nil
}

// mockAuditRepository records appended entries.
type mockAuditRepository struct {
	mu      sync.Mutex
	entries []*secondary.AuditEntry
}

func (m *mockAuditRepository) Append(ctx context.Context, entry *secondary.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.Seq = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepository) List(ctx context.Context, filters secondary.AuditFilters) ([]*secondary.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*secondary.AuditEntry
	for _, e := range m.entries {
		if filters.Kind != "" && e.Kind != filters.Kind {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *mockAuditRepository) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Kind
	}
	return out
}

// mockTextGenerator answers with fixed text, or with errs in order first.
type mockTextGenerator struct {
	mu      sync.Mutex
	answer  string
	errs    []error
	calls   int
	prompts []string
	// failFor fails prompts containing any of these substrings.
	failFor []string
	// after runs once the answer is produced, before the caller persists it.
	after func()
}

func (m *mockTextGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return "", err
	}
	for _, s := range m.failFor {
		if strings.Contains(prompt, s) {
			return "", errors.New("content refused")
		}
	}
	if m.after != nil {
		m.after()
	}
	return m.answer, nil
}

// mockSalarySource returns fixed data or a fixed error.
type mockSalarySource struct {
	name  string
	data  map[aggregate.Level]aggregate.Value
	err   error
	calls int
	mu    sync.Mutex
}

func (m *mockSalarySource) Name() string { return m.name }

func (m *mockSalarySource) FetchSalaryData(ctx context.Context, code string) (map[aggregate.Level]aggregate.Value, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.data, m.err
}

// noSleep records requested delays without waiting.
type noSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (n *noSleep) sleep(ctx context.Context, d time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delays = append(n.delays, d)
	return ctx.Err()
}

func testRetrier(maxRetries int) (*Retrier, *noSleep) {
	ns := &noSleep{}
	r := NewRetrier(RetryPolicy{MaxRetries: maxRetries, BaseDelay: time.Second, MaxDelay: 5 * time.Second}, nil).WithSleep(ns.sleep)
	return r, ns
}
