package app

import (
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/agent"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/primary"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

func recordToPrimary(r *secondary.OccupationRecord) *primary.Record {
	out := &primary.Record{
		ExternalCode:             r.ExternalCode,
		Title:                    r.Title,
		TitleMasculine:           r.TitleMasculine,
		TitleFeminine:            r.TitleFeminine,
		TitleEpicene:             r.TitleEpicene,
		Description:              r.Description,
		Outlook:                  r.Outlook,
		Status:                   string(r.Status),
		Version:                  r.Version,
		PendingReferentialUpdate: r.PendingReferentialUpdate,
		UpdatedAt:                r.UpdatedAt,
	}
	if len(r.Salaries) > 0 {
		out.Salaries = make(map[string]primary.SalaryBand, len(r.Salaries))
		for level, v := range r.Salaries {
			out.Salaries[string(level)] = primary.SalaryBand{Min: v.Min, Max: v.Max, Median: v.Median}
		}
	}
	return out
}

func changeToPrimary(c *secondary.ChangeRecord) *primary.Change {
	return &primary.Change{
		ID:            c.ID,
		ExternalCode:  c.ExternalCode,
		DetectedAt:    c.DetectedAt,
		ChangeType:    string(c.ChangeType),
		ChangedFields: c.ChangedFields,
		Reviewed:      c.Reviewed,
		ReviewedBy:    c.ReviewedBy,
		ReviewAction:  c.ReviewAction,
	}
}

func auditToPrimary(e *secondary.AuditEntry) *primary.AuditEntry {
	return &primary.AuditEntry{
		ID:          e.ID,
		Kind:        e.Kind,
		Agent:       e.Agent,
		EntityID:    e.EntityID,
		Description: e.Description,
		Before:      e.Before,
		After:       e.After,
		OccurredAt:  e.OccurredAt,
	}
}

func runToPrimary(r *secondary.DetectionRun) primary.DetectionRunSummary {
	return primary.DetectionRunSummary{
		ID:           r.ID,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		New:          r.New,
		Modified:     r.Modified,
		Deleted:      r.Deleted,
		Unchanged:    r.Unchanged,
		Errors:       r.Errors,
		SkippedPages: r.SkippedPages,
		Success:      r.Success,
	}
}

func agentResultToPrimary(r agent.Result) *primary.AgentResult {
	return &primary.AgentResult{
		Agent:    r.Agent,
		Status:   string(r.Status),
		Duration: r.Duration,
		Items:    r.Items,
		Result:   r.Output,
		Error:    r.Error,
	}
}
