package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/primary"
)

// OrchestratorAdapter translates CLI agent and detection operations.
type OrchestratorAdapter struct {
	orch     primary.OrchestratorService
	detector primary.DetectionService
	out      io.Writer
	format   string
}

// NewOrchestratorAdapter creates a new OrchestratorAdapter.
func NewOrchestratorAdapter(orch primary.OrchestratorService, detector primary.DetectionService, out io.Writer, format string) *OrchestratorAdapter {
	return &OrchestratorAdapter{orch: orch, detector: detector, out: out, format: format}
}

// RunTask runs one agent synchronously. A failed run is reported, not returned.
func (a *OrchestratorAdapter) RunTask(ctx context.Context, task string, params primary.TaskParams) (*primary.AgentResult, error) {
	res, err := a.orch.ExecuteTask(ctx, task, params)
	if err != nil {
		return nil, err
	}
	if a.format == FormatJSON {
		return res, writeJSON(a.out, res)
	}
	fmt.Fprintf(a.out, "%s: %s in %s (%d items)\n", res.Agent, statusColor(res.Status), res.Duration.Round(time.Millisecond), res.Items)
	if res.Error != "" {
		fmt.Fprintf(a.out, "  %s\n", res.Error)
	}
	return res, nil
}

// Detect runs one detection cycle.
func (a *OrchestratorAdapter) Detect(ctx context.Context) (*primary.DetectionReport, error) {
	report, err := a.detector.RunCycle(ctx)
	if err != nil {
		return nil, err
	}
	if a.format == FormatJSON {
		return report, writeJSON(a.out, report)
	}

	r := report.Run
	status := "success"
	if !r.Success {
		status = "error"
	}
	fmt.Fprintf(a.out, "Detection %s: %s\n", r.ID, statusColor(status))
	fmt.Fprintf(a.out, "  new %d, modified %d, deleted %d, unchanged %d, errors %d\n", r.New, r.Modified, r.Deleted, r.Unchanged, r.Errors)
	if report.DeletionsSkipped {
		fmt.Fprintf(a.out, "  %d pages skipped; deletions not evaluated this cycle\n", r.SkippedPages)
	}
	for _, c := range report.Changes {
		fmt.Fprintf(a.out, "  %-9s %s %v\n", c.ChangeType, c.ExternalCode, c.ChangedFields)
	}
	return report, nil
}

// Stats displays orchestrator statistics.
func (a *OrchestratorAdapter) Stats(ctx context.Context) (*primary.OrchestratorStats, error) {
	stats, err := a.orch.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	if a.format == FormatJSON {
		return stats, writeJSON(a.out, stats)
	}

	fmt.Fprintf(a.out, "Orchestrator: %s\n\n", stats.State)

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "AGENT\tRUNS\tOK\tERRORS\tITEMS\tLAST RUN")
	for _, ag := range stats.Agents {
		name := ag.Name
		if ag.Running {
			name += " (running)"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n", name, ag.Executions, ag.Successes, ag.Errors, ag.ItemsProcessed, formatTime(ag.LastRun))
	}
	w.Flush()

	fmt.Fprintln(a.out, "\nRecords:")
	for _, st := range []string{"draft", "enriched", "pending_validation", "validated", "published", "archived"} {
		fmt.Fprintf(a.out, "  %-20s %d\n", st, stats.RecordsByStatus[st])
	}
	fmt.Fprintf(a.out, "Open validations: %d\n", stats.OpenValidations)

	if r := stats.LastDetectionRun; r != nil {
		fmt.Fprintf(a.out, "Last detection:   %s (+%d ~%d -%d, %d errors)\n", formatTime(r.FinishedAt), r.New, r.Modified, r.Deleted, r.Errors)
	}
	if len(stats.NextRuns) > 0 {
		fmt.Fprintln(a.out, "\nNext runs:")
		for _, run := range stats.NextRuns {
			fmt.Fprintf(a.out, "  %-22s %s (every %s)\n", run.JobID, formatTime(run.NextRun), run.Interval)
		}
	}
	return stats, nil
}

// ResetStats zeroes agent statistics.
func (a *OrchestratorAdapter) ResetStats(ctx context.Context, name string) error {
	if err := a.orch.ResetAgentStats(ctx, name); err != nil {
		return err
	}
	target := name
	if target == "" {
		target = "all agents"
	}
	fmt.Fprintf(a.out, "✓ statistics reset for %s\n", target)
	return nil
}

// Runs lists detection history.
func (a *OrchestratorAdapter) Runs(ctx context.Context, limit int) ([]*primary.DetectionRunSummary, error) {
	runs, err := a.detector.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	if a.format == FormatJSON {
		return runs, writeJSON(a.out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.out, "No detection runs yet.")
		return runs, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "STARTED\tNEW\tMODIFIED\tDELETED\tUNCHANGED\tERRORS\tSKIPPED PAGES\tOK")
	for _, r := range runs {
		ok := "yes"
		if !r.Success {
			ok = "no"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n", formatTime(r.StartedAt), r.New, r.Modified, r.Deleted, r.Unchanged, r.Errors, r.SkippedPages, ok)
	}
	w.Flush()
	return runs, nil
}
