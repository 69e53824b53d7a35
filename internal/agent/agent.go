// Package agent implements the uniform agent contract: every externally
// dependent unit of work runs behind a single-flight guard, keeps execution
// statistics and leaves one audit entry per run.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ctxutil"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/logbook"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// MaxAuditPayload bounds the serialized result stored with a success entry.
const MaxAuditPayload = 2000

// Status is the outcome class of one run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// Params narrows a run to specific records. Empty Codes means batch mode,
// bounded by Limit (or the agent's default).
type Params struct {
	Codes []string
	Limit int
}

// Outcome is what an Executor reports on success.
type Outcome struct {
	Items  int
	Output any
}

// Executor is the domain-specific unit of work behind an Agent.
type Executor interface {
	Name() string
	Execute(ctx context.Context, p Params) (Outcome, error)
}

// Result is the immutable outcome of one Run.
type Result struct {
	Agent    string
	Status   Status
	Duration time.Duration
	Items    int
	Output   any
	Error    string
}

// Stats are the counters of one agent.
type Stats struct {
	Executions     int64
	Successes      int64
	Errors         int64
	ItemsProcessed int64
	LastRun        time.Time
}

// Agent wraps an Executor with the run contract.
type Agent struct {
	exec  Executor
	audit secondary.AuditRepository
	log   *logbook.Logbook
	now   func() time.Time

	running atomic.Bool

	mu    sync.Mutex
	stats Stats
}

// New wraps exec.
func New(exec Executor, audit secondary.AuditRepository, log *logbook.Logbook) *Agent {
	return &Agent{
		exec:  exec,
		audit: audit,
		log:   log.With("agent:" + exec.Name()),
		now:   time.Now,
	}
}

// Name returns the executor name.
func (a *Agent) Name() string {
	return a.exec.Name()
}

// Running reports whether a run is in flight.
func (a *Agent) Running() bool {
	return a.running.Load()
}

// Run executes the agent once. It never returns an error: failures are
// reported through Result.Status. A call made while another run of the same
// agent is in flight returns StatusSkipped without executing.
func (a *Agent) Run(ctx context.Context, p Params) Result {
	a.mu.Lock()
	a.stats.Executions++
	a.mu.Unlock()

	name := a.Name()
	if !a.running.CompareAndSwap(false, true) {
		a.log.Info("already running, skipped")
		return Result{Agent: name, Status: StatusSkipped}
	}
	defer a.running.Store(false)

	ctx = ctxutil.WithActorID(ctx, name)
	start := a.now()
	out, err := a.execute(ctx, p)
	duration := a.now().Sub(start)

	if err != nil {
		a.mu.Lock()
		a.stats.Errors++
		a.mu.Unlock()

		a.log.Error("run failed after %s: %v", duration, err)
		a.appendAudit(ctx, &secondary.AuditEntry{
			Kind:        secondary.AuditError,
			Agent:       name,
			EntityID:    singleCode(p),
			Description: fmt.Sprintf("%s failed: %v", name, err),
		})
		return Result{Agent: name, Status: StatusError, Duration: duration, Error: err.Error()}
	}

	a.mu.Lock()
	a.stats.Successes++
	a.stats.ItemsProcessed += int64(out.Items)
	a.stats.LastRun = a.now()
	a.mu.Unlock()

	a.log.Info("run succeeded in %s (%d items)", duration, out.Items)
	a.appendAudit(ctx, &secondary.AuditEntry{
		Kind:        secondary.AuditSuccess,
		Agent:       name,
		EntityID:    singleCode(p),
		Description: fmt.Sprintf("%s succeeded (%d items)", name, out.Items),
		After:       serializeOutput(out.Output),
	})
	return Result{Agent: name, Status: StatusSuccess, Duration: duration, Items: out.Items, Output: out.Output}
}

func (a *Agent) execute(ctx context.Context, p Params) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("panic: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.exec.Execute(ctx, p)
}

func (a *Agent) appendAudit(ctx context.Context, entry *secondary.AuditEntry) {
	if a.audit == nil {
		return
	}
	if err := a.audit.Append(ctx, entry); err != nil {
		a.log.Warn("audit append failed: %v", err)
	}
}

// Stats returns a copy of the counters.
func (a *Agent) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// ResetStats zeroes the counters.
func (a *Agent) ResetStats() {
	a.mu.Lock()
	a.stats = Stats{}
	a.mu.Unlock()
}

func singleCode(p Params) string {
	if len(p.Codes) == 1 {
		return p.Codes[0]
	}
	return ""
}

func serializeOutput(v any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Truncate(fmt.Sprintf("%+v", v), MaxAuditPayload)
	}
	return Truncate(string(data), MaxAuditPayload)
}

// Truncate shortens s to at most max runes.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
