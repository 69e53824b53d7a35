package app

import (
	"context"
	"fmt"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/occupation"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/primary"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// RecordServiceImpl implements the RecordService interface.
type RecordServiceImpl struct {
	occupations secondary.OccupationRepository
	changes     secondary.ChangeRepository
	audit       secondary.AuditRepository
}

// NewRecordService creates a new RecordService with injected dependencies.
func NewRecordService(occupations secondary.OccupationRepository, changes secondary.ChangeRepository, audit secondary.AuditRepository) *RecordServiceImpl {
	return &RecordServiceImpl{
		occupations: occupations,
		changes:     changes,
		audit:       audit,
	}
}

// GetRecord retrieves an occupation by external code.
func (s *RecordServiceImpl) GetRecord(ctx context.Context, code string) (*primary.Record, error) {
	rec, err := s.occupations.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get occupation %s: %w", code, err)
	}
	return recordToPrimary(rec), nil
}

// ListRecords lists occupations with optional filters.
func (s *RecordServiceImpl) ListRecords(ctx context.Context, filters primary.RecordFilters) ([]*primary.Record, error) {
	var status occupation.Status
	if filters.Status != "" {
		st, err := occupation.ParseStatus(filters.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", primary.ErrInvalidArgument, err)
		}
		status = st
	}

	records, err := s.occupations.List(ctx, secondary.OccupationFilters{
		Status:      status,
		PendingOnly: filters.PendingOnly,
		Limit:       filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list occupations: %w", err)
	}
	out := make([]*primary.Record, len(records))
	for i, r := range records {
		out[i] = recordToPrimary(r)
	}
	return out, nil
}

// CountByStatus returns the number of records per status, zero-filled.
func (s *RecordServiceImpl) CountByStatus(ctx context.Context) (map[string]int, error) {
	return countByStatus(ctx, s.occupations)
}

// ListChanges lists change records, newest first.
func (s *RecordServiceImpl) ListChanges(ctx context.Context, filters primary.ChangeFilters) ([]*primary.Change, error) {
	changes, err := s.changes.List(ctx, secondary.ChangeFilters{
		ExternalCode:   filters.ExternalCode,
		UnreviewedOnly: filters.UnreviewedOnly,
		Limit:          filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list changes: %w", err)
	}
	out := make([]*primary.Change, len(changes))
	for i, c := range changes {
		out[i] = changeToPrimary(c)
	}
	return out, nil
}

// ListAudit queries the audit trail.
func (s *RecordServiceImpl) ListAudit(ctx context.Context, filters primary.AuditFilters) ([]*primary.AuditEntry, error) {
	entries, err := s.audit.List(ctx, secondary.AuditFilters{
		Since:    filters.Since,
		Until:    filters.Until,
		EntityID: filters.EntityID,
		Kind:     filters.Kind,
		Agent:    filters.Agent,
		Limit:    filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	out := make([]*primary.AuditEntry, len(entries))
	for i, e := range entries {
		out[i] = auditToPrimary(e)
	}
	return out, nil
}

func countByStatus(ctx context.Context, repo secondary.OccupationRepository) (map[string]int, error) {
	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count occupations: %w", err)
	}
	out := make(map[string]int, len(occupation.Statuses))
	for _, st := range occupation.Statuses {
		out[string(st)] = counts[st]
	}
	return out, nil
}

// Ensure RecordServiceImpl implements the interface
var _ primary.RecordService = (*RecordServiceImpl)(nil)
