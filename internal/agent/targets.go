package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/occupation"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// selectTargets resolves the records a run works on. Explicit codes must
// all exist; batch mode lists with filters, skipping archived records.
func selectTargets(ctx context.Context, repo secondary.OccupationRepository, p Params, defaultLimit int, batch secondary.OccupationFilters) ([]*secondary.OccupationRecord, error) {
	if len(p.Codes) > 0 {
		records, err := repo.List(ctx, secondary.OccupationFilters{Codes: p.Codes})
		if err != nil {
			return nil, err
		}
		found := make(map[string]bool, len(records))
		for _, r := range records {
			found[r.ExternalCode] = true
		}
		var missing []string
		for _, c := range p.Codes {
			if !found[c] {
				missing = append(missing, c)
			}
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("occupation %s: %w", strings.Join(missing, ", "), secondary.ErrNotFound)
		}
		return records, nil
	}

	batch.Limit = p.Limit
	if batch.Limit <= 0 {
		batch.Limit = defaultLimit
	}
	if batch.Status == "" {
		batch.ExcludeStatus = occupation.StatusArchived
	}
	return repo.List(ctx, batch)
}
