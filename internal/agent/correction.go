package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/detection"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/occupation"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/logbook"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// NameCorrection is the correction agent name.
const NameCorrection = "correction"

// ErrReferentialDeleted is returned when a record's entity has left the
// referential; only a human review can settle it.
var ErrReferentialDeleted = errors.New("entity deleted from referential")

// ErrSnapshotChanged is returned when change detection stored newer
// referential content while a correction was being generated. The record
// keeps its pending flag for the next run.
var ErrSnapshotChanged = errors.New("referential snapshot changed during correction")

// Corrector rewrites record descriptions. A record flagged by change
// detection is rebuilt from its latest snapshot; success clears the flag
// and promotes drafts to enriched.
type Corrector struct {
	repo       secondary.OccupationRepository
	snapshots  secondary.SnapshotRepository
	audit      secondary.AuditRepository
	gen        secondary.TextGenerator
	retrier    *Retrier
	maxTokens  int
	batchLimit int
	log        *logbook.Logbook
}

// NewCorrector creates the correction executor.
func NewCorrector(repo secondary.OccupationRepository, snapshots secondary.SnapshotRepository, audit secondary.AuditRepository, gen secondary.TextGenerator, retrier *Retrier, maxTokens, batchLimit int, log *logbook.Logbook) *Corrector {
	return &Corrector{
		repo:       repo,
		snapshots:  snapshots,
		audit:      audit,
		gen:        gen,
		retrier:    retrier,
		maxTokens:  maxTokens,
		batchLimit: batchLimit,
		log:        log.With("agent:" + NameCorrection),
	}
}

// Name implements Executor.
func (c *Corrector) Name() string { return NameCorrection }

// Execute implements Executor. Batch mode takes flagged records first,
// then drafts, leaving out records whose entity left the referential.
func (c *Corrector) Execute(ctx context.Context, p Params) (Outcome, error) {
	targets, err := c.targets(ctx, p)
	if err != nil {
		return Outcome{}, err
	}

	report, err := forEachRecord(ctx, c.log, "correct", targets, c.correct)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Items: len(report.Done), Output: report}, nil
}

func (c *Corrector) targets(ctx context.Context, p Params) ([]*secondary.OccupationRecord, error) {
	if len(p.Codes) > 0 {
		return selectTargets(ctx, c.repo, p, c.batchLimit, secondary.OccupationFilters{})
	}
	pending, err := selectTargets(ctx, c.repo, p, c.batchLimit, secondary.OccupationFilters{PendingOnly: true, ExcludeTombstoned: true})
	if err != nil {
		return nil, err
	}
	limit := p.Limit
	if limit <= 0 {
		limit = c.batchLimit
	}
	if len(pending) >= limit {
		return pending, nil
	}
	drafts, err := selectTargets(ctx, c.repo, Params{Limit: limit}, c.batchLimit, secondary.OccupationFilters{Status: occupation.StatusDraft, ExcludeTombstoned: true})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(pending))
	for _, r := range pending {
		seen[r.ExternalCode] = true
	}
	for _, r := range drafts {
		if len(pending) >= limit {
			break
		}
		if !seen[r.ExternalCode] {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

func (c *Corrector) correct(ctx context.Context, rec *secondary.OccupationRecord) error {
	title, source := rec.Title, rec.Description

	var used *secondary.Snapshot
	if rec.PendingReferentialUpdate || source == "" {
		snap, err := c.snapshots.Get(ctx, rec.ExternalCode)
		switch {
		case errors.Is(err, secondary.ErrNotFound):
		case err != nil:
			return err
		case snap.IsDeleted():
			return ErrReferentialDeleted
		default:
			used = snap
			if t := snap.Payload[detection.FieldTitle]; t != "" {
				title = t
			}
			if d := snap.Payload[detection.FieldDefinition]; d != "" {
				source = d
			}
		}
	}
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("no description to correct")
	}

	text, err := Call(ctx, c.retrier, "correction "+rec.ExternalCode, func(ctx context.Context) (string, error) {
		return c.gen.Generate(ctx, correctionPrompt(rec.ExternalCode, title, source), c.maxTokens)
	})
	if err != nil {
		return err
	}

	before := rec.Description
	updated, err := Mutate(ctx, c.repo, rec.ExternalCode, func(r *secondary.OccupationRecord) error {
		if r.PendingReferentialUpdate {
			if err := c.checkSnapshot(ctx, r.ExternalCode, used); err != nil {
				return err
			}
		}
		r.Title = title
		r.Description = text
		r.Status = occupation.PromoteAfterEnrichment(r.Status)
		r.PendingReferentialUpdate = false
		return nil
	})
	if err != nil {
		return err
	}

	if c.audit != nil {
		if err := c.audit.Append(ctx, &secondary.AuditEntry{
			Kind:        secondary.AuditUpdate,
			Agent:       NameCorrection,
			EntityID:    rec.ExternalCode,
			Description: fmt.Sprintf("description corrected (v%d, %s)", updated.Version, updated.Status),
			Before:      Truncate(before, MaxAuditPayload),
			After:       Truncate(text, MaxAuditPayload),
		}); err != nil {
			c.log.Warn("%s: audit append failed: %v", rec.ExternalCode, err)
		}
	}
	return nil
}

// checkSnapshot fails unless the stored snapshot is still the one the
// correction was built from.
func (c *Corrector) checkSnapshot(ctx context.Context, code string, used *secondary.Snapshot) error {
	cur, err := c.snapshots.Get(ctx, code)
	switch {
	case errors.Is(err, secondary.ErrNotFound):
		if used == nil {
			return nil
		}
		return ErrSnapshotChanged
	case err != nil:
		return err
	case cur.IsDeleted():
		return ErrReferentialDeleted
	case used == nil || cur.ContentHash != used.ContentHash:
		return ErrSnapshotChanged
	}
	return nil
}
