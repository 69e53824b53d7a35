package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ctxutil"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

type funcExecutor struct {
	name string
	fn   func(ctx context.Context, p Params) (Outcome, error)
}

func (f *funcExecutor) Name() string { return f.name }

func (f *funcExecutor) Execute(ctx context.Context, p Params) (Outcome, error) {
	return f.fn(ctx, p)
}

func TestRun_Success(t *testing.T) {
	audit := &mockAuditRepository{}
	var actor string
	a := New(&funcExecutor{name: "demo", fn: func(ctx context.Context, p Params) (Outcome, error) {
		actor = ctxutil.ActorFromContext(ctx)
		return Outcome{Items: 3, Output: map[string]int{"n": 3}}, nil
	}}, audit, nil)

	res := a.Run(context.Background(), Params{Codes: []string{"M1805"}})

	if res.Status != StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", res.Status, res.Error)
	}
	if res.Items != 3 {
		t.Errorf("expected 3 items, got %d", res.Items)
	}
	if actor != "demo" {
		t.Errorf("expected actor demo in context, got %q", actor)
	}

	stats := a.Stats()
	if stats.Executions != 1 || stats.Successes != 1 || stats.Errors != 0 || stats.ItemsProcessed != 3 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.LastRun.IsZero() {
		t.Error("expected LastRun to be set")
	}

	if len(audit.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(audit.entries))
	}
	e := audit.entries[0]
	if e.Kind != secondary.AuditSuccess || e.Agent != "demo" || e.EntityID != "M1805" {
		t.Errorf("unexpected audit entry: %+v", e)
	}
	if e.After != `{"n":3}` {
		t.Errorf("expected serialized output, got %q", e.After)
	}
}

func TestRun_ErrorIsReportedNotReturned(t *testing.T) {
	audit := &mockAuditRepository{}
	a := New(&funcExecutor{name: "demo", fn: func(ctx context.Context, p Params) (Outcome, error) {
		return Outcome{}, errors.New("boom")
	}}, audit, nil)

	res := a.Run(context.Background(), Params{})

	if res.Status != StatusError || res.Error != "boom" {
		t.Errorf("expected error result, got %+v", res)
	}
	stats := a.Stats()
	if stats.Executions != 1 || stats.Errors != 1 || stats.Successes != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if !stats.LastRun.IsZero() {
		t.Error("LastRun must only move on success")
	}
	if got := audit.kinds(); len(got) != 1 || got[0] != secondary.AuditError {
		t.Errorf("expected one error entry, got %v", got)
	}
}

func TestRun_PanicIsRecovered(t *testing.T) {
	a := New(&funcExecutor{name: "demo", fn: func(ctx context.Context, p Params) (Outcome, error) {
		panic("kaboom")
	}}, &mockAuditRepository{}, nil)

	res := a.Run(context.Background(), Params{})

	if res.Status != StatusError || !strings.Contains(res.Error, "kaboom") {
		t.Errorf("expected recovered panic as error, got %+v", res)
	}
	if a.Running() {
		t.Error("agent must not stay running after a panic")
	}
}

func TestRun_SingleFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex

	a := New(&funcExecutor{name: "demo", fn: func(ctx context.Context, p Params) (Outcome, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(started)
		<-release
		return Outcome{Items: 1}, nil
	}}, &mockAuditRepository{}, nil)

	var first Result
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = a.Run(context.Background(), Params{})
	}()

	<-started
	if !a.Running() {
		t.Fatal("expected agent to report running")
	}
	second := a.Run(context.Background(), Params{})
	close(release)
	wg.Wait()

	if second.Status != StatusSkipped {
		t.Errorf("expected concurrent run to be skipped, got %s", second.Status)
	}
	if first.Status != StatusSuccess {
		t.Errorf("expected first run to succeed, got %s", first.Status)
	}
	if calls != 1 {
		t.Errorf("expected executor to run once, ran %d times", calls)
	}
	stats := a.Stats()
	if stats.Executions != 2 || stats.Successes != 1 || stats.Errors != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestResetStats(t *testing.T) {
	a := New(&funcExecutor{name: "demo", fn: func(ctx context.Context, p Params) (Outcome, error) {
		return Outcome{Items: 2}, nil
	}}, nil, nil)

	a.Run(context.Background(), Params{})
	a.Run(context.Background(), Params{})
	if a.Stats().Executions != 2 {
		t.Fatalf("expected 2 executions, got %d", a.Stats().Executions)
	}

	a.ResetStats()
	if got := a.Stats(); got != (Stats{}) {
		t.Errorf("expected zeroed stats, got %+v", got)
	}
}

func TestRun_TruncatesAuditPayload(t *testing.T) {
	audit := &mockAuditRepository{}
	long := strings.Repeat("é", MaxAuditPayload*2)
	a := New(&funcExecutor{name: "demo", fn: func(ctx context.Context, p Params) (Outcome, error) {
		return Outcome{Output: long}, nil
	}}, audit, nil)

	a.Run(context.Background(), Params{})

	got := []rune(audit.entries[0].After)
	if len(got) != MaxAuditPayload {
		t.Errorf("expected %d runes, got %d", MaxAuditPayload, len(got))
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"abc", 5, "abc"},
		{"abcdef", 3, "abc"},
		{"métier", 2, "mé"},
		{"", 3, ""},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
