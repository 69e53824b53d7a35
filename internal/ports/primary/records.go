package primary

import (
	"context"
	"time"
)

// RecordService defines the primary port for read-only record queries.
type RecordService interface {
	// GetRecord retrieves an occupation by external code.
	GetRecord(ctx context.Context, code string) (*Record, error)

	// ListRecords lists occupations with optional filters.
	ListRecords(ctx context.Context, filters RecordFilters) ([]*Record, error)

	// CountByStatus returns the number of records per status.
	CountByStatus(ctx context.Context) (map[string]int, error)

	// ListChanges lists change records, newest first.
	ListChanges(ctx context.Context, filters ChangeFilters) ([]*Change, error)

	// ListAudit queries the audit trail.
	ListAudit(ctx context.Context, filters AuditFilters) ([]*AuditEntry, error)
}

// Record is the caller-facing occupation view.
type Record struct {
	ExternalCode             string
	Title                    string
	TitleMasculine           string
	TitleFeminine            string
	TitleEpicene             string
	Description              string
	Outlook                  string
	Salaries                 map[string]SalaryBand
	Status                   string
	Version                  int
	PendingReferentialUpdate bool
	UpdatedAt                time.Time
}

// SalaryBand is one aggregated salary level. Nil fields are unknown.
type SalaryBand struct {
	Min    *int `json:"min,omitempty"`
	Max    *int `json:"max,omitempty"`
	Median *int `json:"median,omitempty"`
}

// RecordFilters contains filter options for listing records.
type RecordFilters struct {
	Status      string
	PendingOnly bool
	Limit       int
}

// Change is the caller-facing change record view.
type Change struct {
	ID            string
	ExternalCode  string
	DetectedAt    time.Time
	ChangeType    string
	ChangedFields []string
	Reviewed      bool
	ReviewedBy    string
	ReviewAction  string
}

// ChangeFilters contains filter options for listing changes.
type ChangeFilters struct {
	ExternalCode   string
	UnreviewedOnly bool
	Limit          int
}

// AuditEntry is the caller-facing audit view.
type AuditEntry struct {
	ID          string
	Kind        string
	Agent       string
	EntityID    string
	Description string
	Before      string
	After       string
	OccurredAt  time.Time
}

// AuditFilters contains filter options for the audit trail.
type AuditFilters struct {
	Since    time.Time
	Until    time.Time
	EntityID string
	Kind     string
	Agent    string
	Limit    int
}
