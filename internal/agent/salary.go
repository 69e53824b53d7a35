package agent

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/aggregate"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/logbook"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// NameSalaryCollection is the salary collection agent name.
const NameSalaryCollection = "salary_collection"

// SalaryCollector queries every salary source per record, aggregates what
// came back by trust weight and stores the result.
type SalaryCollector struct {
	repo          secondary.OccupationRepository
	sources       []secondary.SalarySource
	audit         secondary.AuditRepository
	weights       map[string]float64
	retrier       *Retrier
	maxConcurrent int
	batchLimit    int
	staleAfter    time.Duration
	now           func() time.Time
	log           *logbook.Logbook
}

// SalaryCollectorConfig configures a SalaryCollector.
type SalaryCollectorConfig struct {
	Weights       map[string]float64
	MaxConcurrent int
	BatchLimit    int
	// StaleAfter selects, in batch mode, records whose salaries are older.
	StaleAfter time.Duration
}

// NewSalaryCollector creates the salary collection executor.
func NewSalaryCollector(repo secondary.OccupationRepository, sources []secondary.SalarySource, audit secondary.AuditRepository, retrier *Retrier, cfg SalaryCollectorConfig, log *logbook.Logbook) *SalaryCollector {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &SalaryCollector{
		repo:          repo,
		sources:       sources,
		audit:         audit,
		weights:       cfg.Weights,
		retrier:       retrier,
		maxConcurrent: cfg.MaxConcurrent,
		batchLimit:    cfg.BatchLimit,
		staleAfter:    cfg.StaleAfter,
		now:           time.Now,
		log:           log.With("agent:" + NameSalaryCollection),
	}
}

// Name implements Executor.
func (c *SalaryCollector) Name() string { return NameSalaryCollection }

// SalaryReport is the output of one salary collection run.
type SalaryReport struct {
	Updated        []string `json:"updated"`
	NoData         []string `json:"no_data,omitempty"`
	Failed         []string `json:"failed,omitempty"`
	SourceFailures int      `json:"source_failures"`
}

// Execute implements Executor.
func (c *SalaryCollector) Execute(ctx context.Context, p Params) (Outcome, error) {
	batch := secondary.OccupationFilters{}
	if c.staleAfter > 0 {
		batch.SalariesBefore = c.now().Add(-c.staleAfter)
	}
	targets, err := selectTargets(ctx, c.repo, p, c.batchLimit, batch)
	if err != nil {
		return Outcome{}, err
	}

	report := &SalaryReport{}
	for _, rec := range targets {
		obs, failures := c.collect(ctx, rec.ExternalCode)
		report.SourceFailures += failures

		levels := aggregate.Aggregate(obs)
		if len(levels) == 0 {
			report.NoData = append(report.NoData, rec.ExternalCode)
			continue
		}

		at := c.now()
		var before map[aggregate.Level]aggregate.Value
		updated, err := Mutate(ctx, c.repo, rec.ExternalCode, func(r *secondary.OccupationRecord) error {
			before = r.Salaries
			r.Salaries = levels
			r.SalariesUpdatedAt = at
			return nil
		})
		if err != nil {
			c.log.Warn("%s: persist salaries: %v", rec.ExternalCode, err)
			report.Failed = append(report.Failed, rec.ExternalCode)
			continue
		}
		report.Updated = append(report.Updated, rec.ExternalCode)
		c.appendAudit(ctx, updated, before)
	}

	if len(targets) > 0 && len(report.Failed) == len(targets) {
		return Outcome{}, fmt.Errorf("salaries could not be stored for any of %d records", len(targets))
	}
	return Outcome{Items: len(report.Updated), Output: report}, nil
}

// collect queries every source concurrently, bounded by maxConcurrent.
// A failed or empty source is dropped; the others still count.
func (c *SalaryCollector) collect(ctx context.Context, code string) ([]aggregate.Observation, int) {
	results := make([]map[aggregate.Level]aggregate.Value, len(c.sources))
	errs := make([]error, len(c.sources))

	var g errgroup.Group
	g.SetLimit(c.maxConcurrent)
	for i, src := range c.sources {
		i, src := i, src
		g.Go(func() error {
			results[i], errs[i] = Call(ctx, c.retrier, "salary "+src.Name(), func(ctx context.Context) (map[aggregate.Level]aggregate.Value, error) {
				return src.FetchSalaryData(ctx, code)
			})
			return nil
		})
	}
	_ = g.Wait()

	var (
		obs      []aggregate.Observation
		failures int
	)
	for i, src := range c.sources {
		if errs[i] != nil {
			failures++
			c.log.Warn("%s: source %s failed: %v", code, src.Name(), errs[i])
			continue
		}
		weight, ok := c.weights[src.Name()]
		if !ok || !aggregate.ValidWeight(weight) {
			c.log.Warn("%s: source %s has no valid weight, ignored", code, src.Name())
			continue
		}
		for level, v := range results[i] {
			obs = append(obs, aggregate.Observation{Source: src.Name(), Weight: weight, Level: level, Value: v})
		}
	}
	return obs, failures
}

func (c *SalaryCollector) appendAudit(ctx context.Context, rec *secondary.OccupationRecord, before map[aggregate.Level]aggregate.Value) {
	if c.audit == nil {
		return
	}
	entry := &secondary.AuditEntry{
		Kind:        secondary.AuditUpdate,
		Agent:       NameSalaryCollection,
		EntityID:    rec.ExternalCode,
		Description: fmt.Sprintf("salaries updated (v%d, %d levels)", rec.Version, len(rec.Salaries)),
		After:       Truncate(serializeOutput(rec.Salaries), MaxAuditPayload),
	}
	if len(before) > 0 {
		entry.Before = Truncate(serializeOutput(before), MaxAuditPayload)
	}
	if err := c.audit.Append(ctx, entry); err != nil {
		c.log.Warn("%s: audit append failed: %v", rec.ExternalCode, err)
	}
}
