package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/agent"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/detection"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/logbook"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/primary"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// ErrCycleInProgress is returned when a detection cycle is already running.
var ErrCycleInProgress = errors.New("detection cycle already in progress")

// maxConsecutivePageFailures stops pagination when the referential looks down.
const maxConsecutivePageFailures = 3

// DetectionConfig bounds one detection cycle.
type DetectionConfig struct {
	PageSize       int
	MaxPages       int // 0 means unbounded
	VolatileFields []string
}

// DetectionServiceImpl implements the DetectionService interface.
type DetectionServiceImpl struct {
	client    secondary.ReferentialClient
	snapshots secondary.SnapshotRepository
	writer    secondary.DetectionWriter
	runs      secondary.DetectionRunRepository
	audit     secondary.AuditRepository
	retrier   *agent.Retrier
	fp        detection.Fingerprinter
	cfg       DetectionConfig
	now       func() time.Time
	log       *logbook.Logbook

	cycle sync.Mutex
}

// NewDetectionService creates a new DetectionService with injected dependencies.
func NewDetectionService(
	client secondary.ReferentialClient,
	snapshots secondary.SnapshotRepository,
	writer secondary.DetectionWriter,
	runs secondary.DetectionRunRepository,
	audit secondary.AuditRepository,
	retrier *agent.Retrier,
	cfg DetectionConfig,
	log *logbook.Logbook,
) *DetectionServiceImpl {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	return &DetectionServiceImpl{
		client:    client,
		snapshots: snapshots,
		writer:    writer,
		runs:      runs,
		audit:     audit,
		retrier:   retrier,
		fp:        detection.NewFingerprinter(cfg.VolatileFields),
		cfg:       cfg,
		now:       time.Now,
		log:       log.With("detector"),
	}
}

// cycleState accumulates the outcome of one cycle.
type cycleState struct {
	runID   string
	summary detection.Summary
	errors  int
	skipped int
	changes []*primary.Change
	seen    map[string]struct{}
}

// RunCycle fetches the referential and applies one detection cycle.
// Page and entity failures are counted, never fatal. Deletions are only
// classified when every page was fetched.
func (s *DetectionServiceImpl) RunCycle(ctx context.Context) (*primary.DetectionReport, error) {
	if !s.cycle.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer s.cycle.Unlock()

	started := s.now()
	st := &cycleState{runID: uuid.New().String(), seen: make(map[string]struct{})}
	s.log.Info("cycle %s started", st.runID)

	complete := s.fetchAll(ctx, st)

	if complete {
		s.applyDeletions(ctx, st)
	} else {
		s.log.Warn("cycle %s: referential fetch incomplete, deletions not classified", st.runID)
	}

	run := &secondary.DetectionRun{
		ID:           st.runID,
		StartedAt:    started,
		FinishedAt:   s.now(),
		New:          st.summary.New,
		Modified:     st.summary.Modified,
		Deleted:      st.summary.Deleted,
		Unchanged:    st.summary.Unchanged,
		Errors:       st.errors,
		SkippedPages: st.skipped,
		Success:      st.errors == 0,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record detection run: %w", err)
	}

	summary, _ := json.Marshal(st.summary)
	if err := s.audit.Append(ctx, &secondary.AuditEntry{
		Kind:        secondary.AuditDetection,
		Agent:       "detector",
		Description: fmt.Sprintf("detection cycle %s: %d changes, %d errors", st.runID, st.summary.Changes(), st.errors),
		After:       string(summary),
	}); err != nil {
		s.log.Warn("cycle %s: audit append failed: %v", st.runID, err)
	}

	s.log.Info("cycle %s finished: new=%d modified=%d deleted=%d unchanged=%d errors=%d skipped_pages=%d",
		st.runID, run.New, run.Modified, run.Deleted, run.Unchanged, run.Errors, run.SkippedPages)

	return &primary.DetectionReport{
		Run:              runToPrimary(run),
		Changes:          st.changes,
		DeletionsSkipped: !complete,
	}, nil
}

// fetchAll walks the referential page by page, applying each entity as it
// arrives. It reports whether the whole referential was seen.
func (s *DetectionServiceImpl) fetchAll(ctx context.Context, st *cycleState) bool {
	consecutive := 0
	for page := 0; s.cfg.MaxPages <= 0 || page < s.cfg.MaxPages; page++ {
		offset := page * s.cfg.PageSize
		result, err := agent.Call(ctx, s.retrier, fmt.Sprintf("referential page %d", page), func(ctx context.Context) (*secondary.ReferentialPage, error) {
			return s.client.FetchPage(ctx, offset, s.cfg.PageSize)
		})
		if err != nil {
			st.errors++
			st.skipped++
			consecutive++
			s.log.Error("page %d (offset %d) skipped: %v", page, offset, err)
			if consecutive >= maxConsecutivePageFailures || ctx.Err() != nil {
				s.log.Error("giving up after %d consecutive page failures", consecutive)
				return false
			}
			continue
		}
		consecutive = 0

		if result.Invalid > 0 {
			st.errors += result.Invalid
			s.log.Warn("page %d: %d malformed entities skipped", page, result.Invalid)
		}
		for _, e := range result.Entities {
			s.applyEntity(ctx, st, e)
		}

		if result.Count < s.cfg.PageSize {
			return st.skipped == 0
		}
	}
	s.log.Warn("page cap %d reached before the end of the referential", s.cfg.MaxPages)
	return false
}

func (s *DetectionServiceImpl) applyEntity(ctx context.Context, st *cycleState, e detection.Entity) {
	if _, dup := st.seen[e.Code]; dup {
		s.log.Warn("entity %s seen twice in one cycle, keeping the first", e.Code)
		return
	}
	st.seen[e.Code] = struct{}{}

	var prior *detection.Prior
	snap, err := s.snapshots.Get(ctx, e.Code)
	switch {
	case errors.Is(err, secondary.ErrNotFound):
	case err != nil:
		st.errors++
		s.log.Error("entity %s: load snapshot: %v", e.Code, err)
		return
	default:
		prior = &detection.Prior{Hash: snap.ContentHash, Fields: snap.Payload, Deleted: snap.IsDeleted()}
	}

	s.apply(ctx, st, s.fp.PlanEntity(e, prior))
}

func (s *DetectionServiceImpl) applyDeletions(ctx context.Context, st *cycleState) {
	live, err := s.snapshots.ListLive(ctx)
	if err != nil {
		st.errors++
		s.log.Error("list live snapshots: %v", err)
		return
	}
	for _, plan := range detection.PlanDeletions(live, st.seen) {
		s.apply(ctx, st, plan)
	}
}

func (s *DetectionServiceImpl) apply(ctx context.Context, st *cycleState, plan detection.EntityPlan) {
	change, err := s.writer.Apply(ctx, plan, st.runID, s.now())
	if err != nil {
		st.errors++
		s.log.Error("entity %s (%s): %v", plan.Code, plan.Change, err)
		return
	}
	st.summary.Add(plan.Change)
	if change != nil {
		st.changes = append(st.changes, changeToPrimary(change))
	}
}

// ListRuns returns run history, newest first.
func (s *DetectionServiceImpl) ListRuns(ctx context.Context, limit int) ([]*primary.DetectionRunSummary, error) {
	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list detection runs: %w", err)
	}
	out := make([]*primary.DetectionRunSummary, len(runs))
	for i, r := range runs {
		summary := runToPrimary(r)
		out[i] = &summary
	}
	return out, nil
}

// Ensure DetectionServiceImpl implements the interface
var _ primary.DetectionService = (*DetectionServiceImpl)(nil)
