package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// MaxConflictRetries bounds how often Mutate re-fetches after a version conflict.
const MaxConflictRetries = 5

// Mutate loads the occupation, applies fn and persists it with the loaded
// version as the concurrency token. On a version conflict the record is
// re-fetched and fn re-applied, so fn must be safe to call more than once.
func Mutate(ctx context.Context, repo secondary.OccupationRepository, code string, fn func(*secondary.OccupationRecord) error) (*secondary.OccupationRecord, error) {
	var lastErr error
	for i := 0; i <= MaxConflictRetries; i++ {
		record, err := repo.GetByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if err := fn(record); err != nil {
			return nil, err
		}
		err = repo.Update(ctx, record)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, secondary.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("occupation %s: gave up after %d conflicts: %w", code, MaxConflictRetries+1, lastErr)
}
