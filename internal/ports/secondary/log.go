package secondary

import (
	"context"
	"time"
)

// Audit entry kinds.
const (
	AuditSuccess      = "success"
	AuditError        = "error"
	AuditUpdate       = "update"
	AuditReview       = "review"
	AuditChangeReview = "change_review"
	AuditValidation   = "validation"
	AuditArchive      = "archive"
	AuditDetection    = "detection"
	AuditStatsReset   = "stats_reset"
)

// AuditRepository is the append-only audit trail.
type AuditRepository interface {
	// Append persists entry, assigning ID and Seq when unset.
	Append(ctx context.Context, entry *AuditEntry) error

	// List retrieves entries matching the filters in append order.
	List(ctx context.Context, filters AuditFilters) ([]*AuditEntry, error)
}

// AuditEntry is one immutable domain event.
type AuditEntry struct {
	Seq         int64
	ID          string
	Kind        string
	Agent       string
	EntityID    string
	Description string
	Before      string
	After       string
	OccurredAt  time.Time
}

// AuditFilters contains filter options for querying the audit trail.
// Since is inclusive, Until exclusive; zero values are unbounded.
type AuditFilters struct {
	Since    time.Time
	Until    time.Time
	EntityID string
	Kind     string
	Agent    string
	Limit    int
}
