package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/logbook"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// NameTrendMonitoring is the trend monitoring agent name.
const NameTrendMonitoring = "trend_monitoring"

// TrendMonitor refreshes the labour-market outlook of records, oldest first.
type TrendMonitor struct {
	repo       secondary.OccupationRepository
	gen        secondary.TextGenerator
	retrier    *Retrier
	maxTokens  int
	maxAge     time.Duration
	batchLimit int
	now        func() time.Time
	log        *logbook.Logbook
}

// NewTrendMonitor creates the trend monitoring executor. Records whose
// outlook is missing or older than maxAge are refreshed in batch mode.
func NewTrendMonitor(repo secondary.OccupationRepository, gen secondary.TextGenerator, retrier *Retrier, maxTokens int, maxAge time.Duration, batchLimit int, log *logbook.Logbook) *TrendMonitor {
	return &TrendMonitor{
		repo:       repo,
		gen:        gen,
		retrier:    retrier,
		maxTokens:  maxTokens,
		maxAge:     maxAge,
		batchLimit: batchLimit,
		now:        time.Now,
		log:        log.With("agent:" + NameTrendMonitoring),
	}
}

// Name implements Executor.
func (m *TrendMonitor) Name() string { return NameTrendMonitoring }

// Execute implements Executor. A record whose outlook cannot be generated
// or stored is reported as failed; the others are still refreshed.
func (m *TrendMonitor) Execute(ctx context.Context, p Params) (Outcome, error) {
	targets, err := selectTargets(ctx, m.repo, p, m.batchLimit, secondary.OccupationFilters{
		OutlookBefore: m.now().Add(-m.maxAge),
	})
	if err != nil {
		return Outcome{}, err
	}

	report, err := forEachRecord(ctx, m.log, "outlook", targets, m.refresh)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Items: len(report.Done), Output: report}, nil
}

func (m *TrendMonitor) refresh(ctx context.Context, rec *secondary.OccupationRecord) error {
	text, err := Call(ctx, m.retrier, "outlook "+rec.ExternalCode, func(ctx context.Context) (string, error) {
		return m.gen.Generate(ctx, outlookPrompt(rec), m.maxTokens)
	})
	if err != nil {
		return err
	}

	at := m.now()
	if _, err := Mutate(ctx, m.repo, rec.ExternalCode, func(r *secondary.OccupationRecord) error {
		r.Outlook = text
		r.OutlookUpdatedAt = at
		return nil
	}); err != nil {
		return fmt.Errorf("store outlook: %w", err)
	}
	return nil
}
