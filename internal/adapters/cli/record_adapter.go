package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/primary"
)

// RecordAdapter is a thin adapter that translates CLI record operations to
// RecordService and OrchestratorService calls.
type RecordAdapter struct {
	records primary.RecordService
	orch    primary.OrchestratorService
	out     io.Writer
	format  string
}

// NewRecordAdapter creates a new RecordAdapter.
func NewRecordAdapter(records primary.RecordService, orch primary.OrchestratorService, out io.Writer, format string) *RecordAdapter {
	return &RecordAdapter{records: records, orch: orch, out: out, format: format}
}

// List lists records.
func (a *RecordAdapter) List(ctx context.Context, filters primary.RecordFilters) ([]*primary.Record, error) {
	records, err := a.records.ListRecords(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	if a.format == FormatJSON {
		return records, writeJSON(a.out, records)
	}

	if len(records) == 0 {
		fmt.Fprintln(a.out, "No records found.")
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "Import the referential first:")
		fmt.Fprintln(a.out, "  metiers detect")
		return records, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "CODE\tTITLE\tSTATUS\tVERSION\tPENDING")
	fmt.Fprintln(w, "----\t-----\t------\t-------\t-------")
	for _, r := range records {
		pending := ""
		if r.PendingReferentialUpdate {
			pending = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.ExternalCode, r.Title, statusColor(r.Status), r.Version, pending)
	}
	w.Flush()
	return records, nil
}

// Show displays one record.
func (a *RecordAdapter) Show(ctx context.Context, code string) (*primary.Record, error) {
	r, err := a.records.GetRecord(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	if a.format == FormatJSON {
		return r, writeJSON(a.out, r)
	}

	fmt.Fprintf(a.out, "\nRecord: %s\n", r.ExternalCode)
	fmt.Fprintf(a.out, "Title:     %s\n", r.Title)
	fmt.Fprintf(a.out, "Variants:  %s / %s / %s\n", orDash(r.TitleMasculine), orDash(r.TitleFeminine), orDash(r.TitleEpicene))
	fmt.Fprintf(a.out, "Status:    %s (v%d)\n", statusColor(r.Status), r.Version)
	if r.PendingReferentialUpdate {
		fmt.Fprintln(a.out, "Pending:   referential update awaiting review")
	}
	fmt.Fprintf(a.out, "Updated:   %s\n", formatTime(r.UpdatedAt))
	if r.Description != "" {
		fmt.Fprintf(a.out, "\n%s\n", r.Description)
	}
	if r.Outlook != "" {
		fmt.Fprintf(a.out, "\nOutlook: %s\n", r.Outlook)
	}
	if len(r.Salaries) > 0 {
		fmt.Fprintln(a.out)
		w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "LEVEL\tMIN\tMEDIAN\tMAX")
		for _, level := range []string{"junior", "confirmed", "senior"} {
			band, ok := r.Salaries[level]
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", level, intOrDash(band.Min), intOrDash(band.Median), intOrDash(band.Max))
		}
		w.Flush()
	}
	fmt.Fprintln(a.out)
	return r, nil
}

// Process runs enrichment steps on one record.
func (a *RecordAdapter) Process(ctx context.Context, code string, steps []string) (*primary.ProcessResult, error) {
	res, err := a.orch.ProcessRecord(ctx, code, steps)
	if err != nil {
		return nil, err
	}
	if a.format == FormatJSON {
		return res, writeJSON(a.out, res)
	}

	fmt.Fprintf(a.out, "%s: %s", res.ExternalCode, statusColor(res.Status))
	if res.FinalStatus != "" {
		fmt.Fprintf(a.out, " (now %s)", res.FinalStatus)
	}
	fmt.Fprintln(a.out)
	if res.Error != "" {
		fmt.Fprintf(a.out, "  %s\n", res.Error)
	}
	for _, s := range res.Steps {
		fmt.Fprintf(a.out, "  %-12s %s", s.Step, statusColor(s.Status))
		if s.Error != "" {
			fmt.Fprintf(a.out, "  %s", s.Error)
		}
		fmt.Fprintln(a.out)
	}
	return res, nil
}

// Review applies a review decision.
func (a *RecordAdapter) Review(ctx context.Context, req primary.ReviewRequest) (*primary.ReviewResult, error) {
	res, err := a.orch.ReviewRecord(ctx, req)
	if err != nil {
		return nil, err
	}
	if a.format == FormatJSON {
		return res, writeJSON(a.out, res)
	}
	if res.Noop {
		fmt.Fprintf(a.out, "%s is already %s, nothing to do\n", res.ExternalCode, res.Status)
		return res, nil
	}
	fmt.Fprintf(a.out, "✓ %s is now %s\n", res.ExternalCode, statusColor(res.Status))
	return res, nil
}

// Archive archives a published record.
func (a *RecordAdapter) Archive(ctx context.Context, code string) error {
	if err := a.orch.ArchiveRecord(ctx, code); err != nil {
		return err
	}
	if a.format == FormatJSON {
		return writeJSON(a.out, map[string]string{"external_code": code, "status": "archived"})
	}
	fmt.Fprintf(a.out, "✓ %s archived\n", code)
	return nil
}

// Changes lists change records.
func (a *RecordAdapter) Changes(ctx context.Context, filters primary.ChangeFilters) ([]*primary.Change, error) {
	changes, err := a.records.ListChanges(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list changes: %w", err)
	}
	if a.format == FormatJSON {
		return changes, writeJSON(a.out, changes)
	}
	if len(changes) == 0 {
		fmt.Fprintln(a.out, "No changes found.")
		return changes, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tCODE\tTYPE\tFIELDS\tDETECTED\tREVIEW")
	fmt.Fprintln(w, "--\t----\t----\t------\t--------\t------")
	for _, c := range changes {
		review := "-"
		if c.Reviewed {
			review = c.ReviewAction + " by " + c.ReviewedBy
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.ExternalCode, c.ChangeType, orDash(strings.Join(c.ChangedFields, ",")), formatTime(c.DetectedAt), review)
	}
	w.Flush()
	return changes, nil
}

// ReviewChange acknowledges or re-enriches a change.
func (a *RecordAdapter) ReviewChange(ctx context.Context, req primary.ReviewChangeRequest) (*primary.ReviewChangeResult, error) {
	res, err := a.orch.ReviewChange(ctx, req)
	if err != nil {
		return nil, err
	}
	if a.format == FormatJSON {
		return res, writeJSON(a.out, res)
	}
	fmt.Fprintf(a.out, "✓ change %s on %s reviewed: %s\n", res.ChangeID, res.ExternalCode, res.Action)
	if res.Process != nil {
		for _, s := range res.Process.Steps {
			fmt.Fprintf(a.out, "  %-12s %s\n", s.Step, statusColor(s.Status))
		}
	}
	return res, nil
}

// Audit lists audit entries.
func (a *RecordAdapter) Audit(ctx context.Context, filters primary.AuditFilters) ([]*primary.AuditEntry, error) {
	entries, err := a.records.ListAudit(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	if a.format == FormatJSON {
		return entries, writeJSON(a.out, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No audit entries found.")
		return entries, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "WHEN\tKIND\tACTOR\tENTITY\tDESCRIPTION")
	fmt.Fprintln(w, "----\t----\t-----\t------\t-----------")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", formatTime(e.OccurredAt), e.Kind, e.Agent, orDash(e.EntityID), e.Description)
	}
	w.Flush()
	return entries, nil
}
