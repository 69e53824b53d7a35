// Package primary defines the primary ports (driving adapters) for the application.
// These are the interfaces through which the outside world drives the application.
package primary

import (
	"context"
	"time"
)

// Task types accepted by ExecuteTask.
const (
	TaskSalaryCollection  = "salary_collection"
	TaskTrendMonitoring   = "trend_monitoring"
	TaskCorrection        = "correction"
	TaskVariantGeneration = "variant_generation"
)

// Processing steps accepted by ProcessRecord, in execution order.
const (
	StepCorrection = "correction"
	StepVariants   = "variants"
	StepValidation = "validation"
)

// DefaultSteps is the full enrichment pipeline.
var DefaultSteps = []string{StepCorrection, StepVariants, StepValidation}

// OrchestratorService defines the primary port for agent orchestration and
// the record lifecycle workflow.
type OrchestratorService interface {
	// Start registers the scheduled jobs and starts the scheduler.
	Start(ctx context.Context) error

	// Stop stops the scheduler, waiting for in-flight jobs.
	Stop()

	// State returns "running" or "stopped".
	State() string

	// ExecuteTask synchronously runs the agent for taskType.
	// An unknown task type yields ErrUnknownTask.
	ExecuteTask(ctx context.Context, taskType string, params TaskParams) (*AgentResult, error)

	// ProcessRecord runs an ordered subset of the enrichment steps on one record.
	ProcessRecord(ctx context.Context, code string, steps []string) (*ProcessResult, error)

	// ReviewRecord applies a human review decision.
	ReviewRecord(ctx context.Context, req ReviewRequest) (*ReviewResult, error)

	// ReviewChange acknowledges a change record or triggers re-enrichment.
	ReviewChange(ctx context.Context, req ReviewChangeRequest) (*ReviewChangeResult, error)

	// ArchiveRecord archives a published record.
	ArchiveRecord(ctx context.Context, code string) error

	// ProcessPending re-enriches records flagged by change detection.
	ProcessPending(ctx context.Context, limit int) (*PendingResult, error)

	// ResetAgentStats zeroes the statistics of one agent, or all when name is empty.
	ResetAgentStats(ctx context.Context, name string) error

	// Stats returns a read-only view of the orchestrator.
	Stats(ctx context.Context) (*OrchestratorStats, error)

	// NextRuns lists scheduled jobs by next run time.
	NextRuns() []ScheduledRun
}

// TaskParams narrows an agent run. Empty Codes means batch mode.
type TaskParams struct {
	Codes []string
	Limit int
}

// AgentResult is the outcome of one agent run.
type AgentResult struct {
	Agent    string
	Status   string // success, error or skipped
	Duration time.Duration
	Items    int
	Result   any
	Error    string
}

// StepResult is the outcome of one processing step.
type StepResult struct {
	Step   string
	Status string // success, error or skipped
	Error  string
}

// ProcessResult is the outcome of ProcessRecord.
type ProcessResult struct {
	ExternalCode string
	Status       string // success, partial or error
	Steps        []StepResult
	Error        string
	FinalStatus  string
}

// ReviewRequest carries a human review decision.
type ReviewRequest struct {
	ExternalCode string
	Reviewer     string
	Approved     bool
	Comment      string
}

// ReviewResult reports what a review did.
type ReviewResult struct {
	ExternalCode string
	Status       string
	Noop         bool
}

// ReviewChangeRequest carries a change review.
type ReviewChangeRequest struct {
	ChangeID string
	Reviewer string
	Action   string // acknowledge or re-enrich
}

// ReviewChangeResult reports what a change review did.
type ReviewChangeResult struct {
	ChangeID     string
	ExternalCode string
	Action       string
	Process      *ProcessResult // set for re-enrich
}

// PendingResult summarises a ProcessPending pass.
type PendingResult struct {
	Processed []*ProcessResult
	Skipped   []string
}

// AgentStats are the counters of one agent.
type AgentStats struct {
	Name           string
	Executions     int64
	Successes      int64
	Errors         int64
	ItemsProcessed int64
	LastRun        time.Time
	Running        bool
}

// ScheduledRun describes one scheduled job.
type ScheduledRun struct {
	JobID    string
	Interval time.Duration
	NextRun  time.Time
}

// OrchestratorStats is the statistics view.
type OrchestratorStats struct {
	State            string
	Agents           []AgentStats
	RecordsByStatus  map[string]int
	OpenValidations  int
	NextRuns         []ScheduledRun
	LastDetectionRun *DetectionRunSummary
}
