package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/agent"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/occupation"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ctxutil"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/logbook"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/primary"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// Orchestrator states.
const (
	StateStopped = "stopped"
	StateRunning = "running"
)

// Scheduled job ids that are not agent tasks.
const (
	JobChangeDetection     = "change_detection"
	JobPendingReenrichment = "pending_reenrichment"
)

// Process outcomes.
const (
	ProcessSuccess = "success"
	ProcessPartial = "partial"
	ProcessError   = "error"
)

// ScheduleConfig holds the interval of each periodic job. A non-positive
// interval disables the job.
type ScheduleConfig struct {
	SalaryCollection    time.Duration
	TrendMonitoring     time.Duration
	Correction          time.Duration
	ChangeDetection     time.Duration
	PendingReenrichment time.Duration
}

// OrchestratorDeps are the collaborators of the orchestrator.
type OrchestratorDeps struct {
	Agents      []*agent.Agent
	Occupations secondary.OccupationRepository
	Changes     secondary.ChangeRepository
	Validations secondary.ValidationRepository
	Runs        secondary.DetectionRunRepository
	Audit       secondary.AuditRepository
	Detector    primary.DetectionService
}

// OrchestratorServiceImpl implements the OrchestratorService interface.
type OrchestratorServiceImpl struct {
	agents      map[string]*agent.Agent
	occupations secondary.OccupationRepository
	changes     secondary.ChangeRepository
	validations secondary.ValidationRepository
	runs        secondary.DetectionRunRepository
	audit       secondary.AuditRepository
	detector    primary.DetectionService
	scheduler   *Scheduler
	schedule    ScheduleConfig
	batchLimit  int
	now         func() time.Time
	log         *logbook.Logbook

	startMu    sync.Mutex
	registered bool
}

// NewOrchestratorService creates a new OrchestratorService with injected dependencies.
func NewOrchestratorService(deps OrchestratorDeps, schedule ScheduleConfig, batchLimit int, log *logbook.Logbook) *OrchestratorServiceImpl {
	agents := make(map[string]*agent.Agent, len(deps.Agents))
	for _, a := range deps.Agents {
		agents[a.Name()] = a
	}
	return &OrchestratorServiceImpl{
		agents:      agents,
		occupations: deps.Occupations,
		changes:     deps.Changes,
		validations: deps.Validations,
		runs:        deps.Runs,
		audit:       deps.Audit,
		detector:    deps.Detector,
		scheduler:   NewScheduler(log),
		schedule:    schedule,
		batchLimit:  batchLimit,
		now:         time.Now,
		log:         log.With("orchestrator"),
	}
}

// Start registers the scheduled jobs, first runs one interval from now, and
// starts the scheduler.
func (o *OrchestratorServiceImpl) Start(ctx context.Context) error {
	o.startMu.Lock()
	defer o.startMu.Unlock()

	if !o.registered {
		for _, job := range o.jobs() {
			if err := o.scheduler.Add(job); err != nil {
				return err
			}
		}
		o.registered = true
	}
	return o.scheduler.Start(ctx)
}

func (o *OrchestratorServiceImpl) jobs() []Job {
	task := func(name string) func(ctx context.Context) {
		return func(ctx context.Context) {
			res, err := o.ExecuteTask(ctx, name, primary.TaskParams{})
			if err != nil {
				o.log.Error("scheduled %s: %v", name, err)
				return
			}
			o.log.Info("scheduled %s: %s (%d items)", name, res.Status, res.Items)
		}
	}

	var jobs []Job
	if _, ok := o.agents[primary.TaskSalaryCollection]; ok {
		jobs = append(jobs, Job{ID: primary.TaskSalaryCollection, Interval: o.schedule.SalaryCollection, Run: task(primary.TaskSalaryCollection)})
	}
	if _, ok := o.agents[primary.TaskTrendMonitoring]; ok {
		jobs = append(jobs, Job{ID: primary.TaskTrendMonitoring, Interval: o.schedule.TrendMonitoring, Run: task(primary.TaskTrendMonitoring)})
	}
	if _, ok := o.agents[primary.TaskCorrection]; ok {
		jobs = append(jobs, Job{ID: primary.TaskCorrection, Interval: o.schedule.Correction, Run: task(primary.TaskCorrection)})
	}
	if o.detector != nil {
		jobs = append(jobs, Job{ID: JobChangeDetection, Interval: o.schedule.ChangeDetection, Run: func(ctx context.Context) {
			if _, err := o.detector.RunCycle(ctx); err != nil {
				o.log.Error("scheduled detection: %v", err)
			}
		}})
	}
	jobs = append(jobs, Job{ID: JobPendingReenrichment, Interval: o.schedule.PendingReenrichment, Run: func(ctx context.Context) {
		res, err := o.ProcessPending(ctx, 0)
		if err != nil {
			o.log.Error("scheduled re-enrichment: %v", err)
			return
		}
		o.log.Info("scheduled re-enrichment: %d processed, %d left for review", len(res.Processed), len(res.Skipped))
	}})
	return jobs
}

// Stop stops the scheduler, waiting for in-flight jobs, and removes the
// scheduled jobs.
func (o *OrchestratorServiceImpl) Stop() {
	o.startMu.Lock()
	defer o.startMu.Unlock()

	o.scheduler.Stop()
	o.scheduler.RemoveAll()
	o.registered = false
}

// State returns "running" or "stopped".
func (o *OrchestratorServiceImpl) State() string {
	if o.scheduler.Running() {
		return StateRunning
	}
	return StateStopped
}

// ExecuteTask synchronously runs the agent for taskType.
func (o *OrchestratorServiceImpl) ExecuteTask(ctx context.Context, taskType string, params primary.TaskParams) (*primary.AgentResult, error) {
	a, ok := o.agents[taskType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", primary.ErrUnknownTask, taskType)
	}
	res := a.Run(ctx, agent.Params{Codes: params.Codes, Limit: params.Limit})
	return agentResultToPrimary(res), nil
}

// ProcessRecord runs steps, in order, against one record. A failed step does
// not stop the following ones. The result is an error only when the record
// cannot be loaded.
func (o *OrchestratorServiceImpl) ProcessRecord(ctx context.Context, code string, steps []string) (*primary.ProcessResult, error) {
	if len(steps) == 0 {
		steps = primary.DefaultSteps
	}
	for _, step := range steps {
		switch step {
		case primary.StepCorrection, primary.StepVariants, primary.StepValidation:
		default:
			return nil, fmt.Errorf("%w: %q", primary.ErrUnknownStep, step)
		}
	}

	result := &primary.ProcessResult{ExternalCode: code}
	if _, err := o.occupations.GetByCode(ctx, code); err != nil {
		result.Status = ProcessError
		result.Error = err.Error()
		return result, nil
	}

	failed := 0
	for _, step := range steps {
		sr := o.runStep(ctx, code, step)
		if sr.Status != string(agent.StatusSuccess) {
			failed++
		}
		result.Steps = append(result.Steps, sr)
	}

	result.Status = ProcessSuccess
	if failed > 0 {
		result.Status = ProcessPartial
	}
	if rec, err := o.occupations.GetByCode(ctx, code); err == nil {
		result.FinalStatus = string(rec.Status)
	}
	return result, nil
}

func (o *OrchestratorServiceImpl) runStep(ctx context.Context, code, step string) primary.StepResult {
	var name string
	switch step {
	case primary.StepCorrection:
		name = primary.TaskCorrection
	case primary.StepVariants:
		name = primary.TaskVariantGeneration
	case primary.StepValidation:
		if err := o.enterValidation(ctx, code); err != nil {
			o.log.Warn("%s: validation step: %v", code, err)
			return primary.StepResult{Step: step, Status: string(agent.StatusError), Error: err.Error()}
		}
		return primary.StepResult{Step: step, Status: string(agent.StatusSuccess)}
	}

	a, ok := o.agents[name]
	if !ok {
		return primary.StepResult{Step: step, Status: string(agent.StatusError), Error: fmt.Sprintf("no %s agent configured", name)}
	}
	res := a.Run(ctx, agent.Params{Codes: []string{code}})
	return primary.StepResult{Step: step, Status: string(res.Status), Error: res.Error}
}

// enterValidation hands a fully enriched record to reviewers. The open
// workflow is created first; storage allows one per record.
func (o *OrchestratorServiceImpl) enterValidation(ctx context.Context, code string) error {
	rec, err := o.occupations.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	hasOpen, err := o.hasOpenWorkflow(ctx, code)
	if err != nil {
		return err
	}
	guard := occupation.CanEnterValidation(occupation.ValidationContext{
		ExternalCode:       code,
		Status:             rec.Status,
		HasOpenWorkflow:    hasOpen,
		HasDescription:     rec.Description != "",
		HasGenderedVariant: rec.HasGenderedVariant(),
	})
	if err := guard.Error(); err != nil {
		return err
	}

	wf := &secondary.ValidationWorkflow{ExternalCode: code, Status: secondary.WorkflowOpen, OpenedAt: o.now()}
	if err := o.validations.Open(ctx, wf); err != nil {
		return err
	}

	updated, err := agent.Mutate(ctx, o.occupations, code, func(r *secondary.OccupationRecord) error {
		if !occupation.CanTransition(r.Status, occupation.StatusPendingValidation) {
			return fmt.Errorf("occupation %s moved to %s meanwhile", code, r.Status)
		}
		r.Status = occupation.StatusPendingValidation
		return nil
	})
	if err != nil {
		if cerr := o.validations.Close(ctx, wf.ID, secondary.WorkflowRejected, ctxutil.ActorFromContext(ctx), "aborted: "+err.Error(), o.now()); cerr != nil {
			o.log.Error("%s: close aborted workflow %s: %v", code, wf.ID, cerr)
		}
		return err
	}

	o.appendAudit(ctx, &secondary.AuditEntry{
		Kind:        secondary.AuditValidation,
		EntityID:    code,
		Description: fmt.Sprintf("queued for validation (workflow %s, v%d)", wf.ID, updated.Version),
		Before:      string(rec.Status),
		After:       string(updated.Status),
	})
	return nil
}

func (o *OrchestratorServiceImpl) hasOpenWorkflow(ctx context.Context, code string) (bool, error) {
	_, err := o.validations.GetOpen(ctx, code)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, secondary.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// ReviewRecord applies a human review decision. Repeating a decision the
// record already reflects is a successful no-op.
func (o *OrchestratorServiceImpl) ReviewRecord(ctx context.Context, req primary.ReviewRequest) (*primary.ReviewResult, error) {
	if req.ExternalCode == "" || req.Reviewer == "" {
		return nil, fmt.Errorf("%w: review needs an occupation code and a reviewer", primary.ErrInvalidArgument)
	}
	ctx = ctxutil.WithActorID(ctx, req.Reviewer)

	rec, err := o.occupations.GetByCode(ctx, req.ExternalCode)
	if err != nil {
		return nil, fmt.Errorf("failed to get occupation %s: %w", req.ExternalCode, err)
	}
	outcome, guard := occupation.CanReview(occupation.ReviewContext{
		ExternalCode: req.ExternalCode,
		Status:       rec.Status,
		Approved:     req.Approved,
	})
	if err := guard.Error(); err != nil {
		return nil, err
	}
	if outcome == occupation.ReviewNoop {
		return &primary.ReviewResult{ExternalCode: req.ExternalCode, Status: string(rec.Status), Noop: true}, nil
	}

	updated, err := agent.Mutate(ctx, o.occupations, req.ExternalCode, func(r *secondary.OccupationRecord) error {
		if r.Status != occupation.StatusPendingValidation {
			return fmt.Errorf("occupation %s moved to %s meanwhile", req.ExternalCode, r.Status)
		}
		for _, next := range occupation.ReviewPath(req.Approved) {
			if !occupation.CanTransition(r.Status, next) {
				return fmt.Errorf("invalid transition %s -> %s", r.Status, next)
			}
			r.Status = next
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply review: %w", err)
	}

	wfStatus := secondary.WorkflowRejected
	if req.Approved {
		wfStatus = secondary.WorkflowApproved
	}
	if wf, err := o.validations.GetOpen(ctx, req.ExternalCode); err == nil {
		if err := o.validations.Close(ctx, wf.ID, wfStatus, req.Reviewer, req.Comment, o.now()); err != nil {
			o.log.Error("%s: close workflow %s: %v", req.ExternalCode, wf.ID, err)
		}
	} else if !errors.Is(err, secondary.ErrNotFound) {
		o.log.Error("%s: load open workflow: %v", req.ExternalCode, err)
	}

	description := fmt.Sprintf("review %s", wfStatus)
	if req.Comment != "" {
		description += ": " + req.Comment
	}
	o.appendAudit(ctx, &secondary.AuditEntry{
		Kind:        secondary.AuditReview,
		Agent:       req.Reviewer,
		EntityID:    req.ExternalCode,
		Description: description,
		Before:      string(rec.Status),
		After:       string(updated.Status),
	})
	return &primary.ReviewResult{ExternalCode: req.ExternalCode, Status: string(updated.Status)}, nil
}

// ReviewChange acknowledges a change record or re-enriches its occupation.
func (o *OrchestratorServiceImpl) ReviewChange(ctx context.Context, req primary.ReviewChangeRequest) (*primary.ReviewChangeResult, error) {
	if req.Action != occupation.ActionAcknowledge && req.Action != occupation.ActionReEnrich {
		return nil, fmt.Errorf("%w: unknown change review action %q", primary.ErrInvalidArgument, req.Action)
	}
	if req.ChangeID == "" || req.Reviewer == "" {
		return nil, fmt.Errorf("%w: change review needs a change id and a reviewer", primary.ErrInvalidArgument)
	}
	ctx = ctxutil.WithActorID(ctx, req.Reviewer)

	change, err := o.changes.GetByID(ctx, req.ChangeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get change %s: %w", req.ChangeID, err)
	}
	guard := occupation.CanReviewChange(occupation.ChangeReviewContext{
		ChangeID:   change.ID,
		ChangeType: change.ChangeType,
		Reviewed:   change.Reviewed,
		Action:     req.Action,
	})
	if err := guard.Error(); err != nil {
		return nil, err
	}

	// The change is marked reviewed only once its action went through, so a
	// failed action can be reviewed again.
	result := &primary.ReviewChangeResult{ChangeID: change.ID, ExternalCode: change.ExternalCode, Action: req.Action}
	switch req.Action {
	case occupation.ActionAcknowledge:
		// An older change leaves the flag to the newer one.
		latest, err := o.changes.Latest(ctx, change.ExternalCode)
		if err != nil {
			return nil, fmt.Errorf("failed to get latest change of %s: %w", change.ExternalCode, err)
		}
		if latest.ID == change.ID {
			if _, err := agent.Mutate(ctx, o.occupations, change.ExternalCode, func(r *secondary.OccupationRecord) error {
				r.PendingReferentialUpdate = false
				return nil
			}); err != nil {
				return nil, fmt.Errorf("failed to clear pending flag on %s: %w", change.ExternalCode, err)
			}
		}
	case occupation.ActionReEnrich:
		process, err := o.ProcessRecord(ctx, change.ExternalCode, []string{primary.StepCorrection, primary.StepVariants})
		if err != nil {
			return nil, err
		}
		result.Process = process
		if process.Status != ProcessSuccess {
			return result, fmt.Errorf("re-enrichment of %s ended %s; change %s left unreviewed", change.ExternalCode, process.Status, change.ID)
		}
	}

	if err := o.changes.MarkReviewed(ctx, change.ID, req.Reviewer, req.Action, o.now()); err != nil {
		return nil, fmt.Errorf("failed to mark change %s reviewed: %w", change.ID, err)
	}

	o.appendAudit(ctx, &secondary.AuditEntry{
		Kind:        secondary.AuditChangeReview,
		Agent:       req.Reviewer,
		EntityID:    change.ExternalCode,
		Description: fmt.Sprintf("change %s (%s) reviewed: %s", change.ID, change.ChangeType, req.Action),
	})
	return result, nil
}

// ArchiveRecord archives a published record.
func (o *OrchestratorServiceImpl) ArchiveRecord(ctx context.Context, code string) error {
	var before occupation.Status
	_, err := agent.Mutate(ctx, o.occupations, code, func(r *secondary.OccupationRecord) error {
		if err := occupation.CanArchive(code, r.Status).Error(); err != nil {
			return err
		}
		before = r.Status
		r.Status = occupation.StatusArchived
		return nil
	})
	if err != nil {
		return err
	}
	o.appendAudit(ctx, &secondary.AuditEntry{
		Kind:        secondary.AuditArchive,
		EntityID:    code,
		Description: "occupation archived",
		Before:      string(before),
		After:       string(occupation.StatusArchived),
	})
	return nil
}

// ProcessPending re-enriches records flagged by change detection. Records
// whose entity left the referential are left for human review and do not
// count against limit.
func (o *OrchestratorServiceImpl) ProcessPending(ctx context.Context, limit int) (*primary.PendingResult, error) {
	if limit <= 0 {
		limit = o.batchLimit
	}
	records, err := o.occupations.List(ctx, secondary.OccupationFilters{
		PendingOnly:       true,
		ExcludeStatus:     occupation.StatusArchived,
		ExcludeTombstoned: true,
		Limit:             limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending occupations: %w", err)
	}
	deleted, err := o.occupations.List(ctx, secondary.OccupationFilters{
		PendingOnly:    true,
		ExcludeStatus:  occupation.StatusArchived,
		TombstonedOnly: true,
		Limit:          limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list deleted occupations: %w", err)
	}

	result := &primary.PendingResult{}
	for _, rec := range deleted {
		result.Skipped = append(result.Skipped, rec.ExternalCode)
	}
	for _, rec := range records {
		process, err := o.ProcessRecord(ctx, rec.ExternalCode, []string{primary.StepCorrection, primary.StepVariants})
		if err != nil {
			return nil, err
		}
		result.Processed = append(result.Processed, process)
	}
	return result, nil
}

// ResetAgentStats zeroes the statistics of one agent, or all when name is empty.
func (o *OrchestratorServiceImpl) ResetAgentStats(ctx context.Context, name string) error {
	var targets []*agent.Agent
	if name == "" {
		for _, n := range o.agentNames() {
			targets = append(targets, o.agents[n])
		}
	} else {
		a, ok := o.agents[name]
		if !ok {
			return fmt.Errorf("%w: %q", primary.ErrUnknownTask, name)
		}
		targets = append(targets, a)
	}

	for _, a := range targets {
		a.ResetStats()
		o.appendAudit(ctx, &secondary.AuditEntry{
			Kind:        secondary.AuditStatsReset,
			Description: fmt.Sprintf("statistics of %s reset", a.Name()),
		})
	}
	return nil
}

// Stats returns a read-only view of the orchestrator.
func (o *OrchestratorServiceImpl) Stats(ctx context.Context) (*primary.OrchestratorStats, error) {
	stats := &primary.OrchestratorStats{State: o.State(), NextRuns: o.NextRuns()}

	for _, n := range o.agentNames() {
		a := o.agents[n]
		s := a.Stats()
		stats.Agents = append(stats.Agents, primary.AgentStats{
			Name:           n,
			Executions:     s.Executions,
			Successes:      s.Successes,
			Errors:         s.Errors,
			ItemsProcessed: s.ItemsProcessed,
			LastRun:        s.LastRun,
			Running:        a.Running(),
		})
	}

	counts, err := countByStatus(ctx, o.occupations)
	if err != nil {
		return nil, err
	}
	stats.RecordsByStatus = counts

	if stats.OpenValidations, err = o.validations.CountOpen(ctx); err != nil {
		return nil, fmt.Errorf("failed to count open validations: %w", err)
	}

	if o.runs != nil {
		run, err := o.runs.Latest(ctx)
		switch {
		case err == nil:
			summary := runToPrimary(run)
			stats.LastDetectionRun = &summary
		case !errors.Is(err, secondary.ErrNotFound):
			return nil, fmt.Errorf("failed to load last detection run: %w", err)
		}
	}
	return stats, nil
}

// NextRuns lists scheduled jobs by next run time.
func (o *OrchestratorServiceImpl) NextRuns() []primary.ScheduledRun {
	jobs := o.scheduler.Jobs()
	out := make([]primary.ScheduledRun, len(jobs))
	for i, j := range jobs {
		out[i] = primary.ScheduledRun{JobID: j.ID, Interval: j.Interval, NextRun: j.NextRun}
	}
	return out
}

func (o *OrchestratorServiceImpl) agentNames() []string {
	names := make([]string, 0, len(o.agents))
	for n := range o.agents {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (o *OrchestratorServiceImpl) appendAudit(ctx context.Context, entry *secondary.AuditEntry) {
	if o.audit == nil {
		return
	}
	if err := o.audit.Append(ctx, entry); err != nil {
		o.log.Warn("audit append failed: %v", err)
	}
}

// Ensure OrchestratorServiceImpl implements the interface
var _ primary.OrchestratorService = (*OrchestratorServiceImpl)(nil)
