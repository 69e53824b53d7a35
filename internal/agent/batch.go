package agent

import (
	"context"
	"fmt"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/logbook"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// BatchReport is the output of a record-by-record run.
type BatchReport struct {
	Done   []string `json:"done"`
	Failed []string `json:"failed,omitempty"`
}

// forEachRecord applies fn to every target in order. A failing record is
// logged and reported, and the run moves on; the run fails only when
// every target failed or ctx is done.
func forEachRecord(ctx context.Context, log *logbook.Logbook, what string, targets []*secondary.OccupationRecord, fn func(ctx context.Context, rec *secondary.OccupationRecord) error) (*BatchReport, error) {
	report := &BatchReport{}
	var firstErr error
	for _, rec := range targets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := fn(ctx, rec); err != nil {
			log.Warn("%s %s: %v", what, rec.ExternalCode, err)
			report.Failed = append(report.Failed, rec.ExternalCode)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s %s: %w", what, rec.ExternalCode, err)
			}
			continue
		}
		report.Done = append(report.Done, rec.ExternalCode)
	}
	if len(targets) > 0 && len(report.Done) == 0 {
		return report, fmt.Errorf("%d of %d records failed, first: %w", len(report.Failed), len(targets), firstErr)
	}
	return report, nil
}
