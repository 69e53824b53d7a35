// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"time"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/aggregate"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/detection"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/occupation"
)

// OccupationRepository defines the secondary port for occupation persistence.
type OccupationRepository interface {
	// Create persists a new occupation at version 1.
	Create(ctx context.Context, record *OccupationRecord) error

	// GetByCode retrieves an occupation by its external code.
	GetByCode(ctx context.Context, code string) (*OccupationRecord, error)

	// Update persists record if its Version still matches storage, then
	// increments record.Version. A stale version yields ErrVersionConflict.
	Update(ctx context.Context, record *OccupationRecord) error

	// List retrieves occupations matching the given filters, ordered by code.
	List(ctx context.Context, filters OccupationFilters) ([]*OccupationRecord, error)

	// CountByStatus returns the number of occupations per status.
	CountByStatus(ctx context.Context) (map[occupation.Status]int, error)
}

// OccupationRecord represents an occupation as stored in persistence.
type OccupationRecord struct {
	ExternalCode             string
	Title                    string
	TitleMasculine           string
	TitleFeminine            string
	TitleEpicene             string
	Description              string
	Outlook                  string
	OutlookUpdatedAt         time.Time
	Salaries                 map[aggregate.Level]aggregate.Value
	SalariesUpdatedAt        time.Time
	Status                   occupation.Status
	Version                  int
	PendingReferentialUpdate bool
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// HasGenderedVariant reports whether any gendered title is set.
func (r *OccupationRecord) HasGenderedVariant() bool {
	return r.TitleMasculine != "" || r.TitleFeminine != "" || r.TitleEpicene != ""
}

// OccupationFilters contains filter options for querying occupations.
type OccupationFilters struct {
	Status occupation.Status
	// ExcludeStatus drops records in this status.
	ExcludeStatus occupation.Status
	Codes         []string
	PendingOnly   bool
	// ExcludeTombstoned drops records whose snapshot is tombstoned;
	// TombstonedOnly keeps only those.
	ExcludeTombstoned bool
	TombstonedOnly    bool
	// OutlookBefore selects records with no outlook or one older than this.
	OutlookBefore time.Time
	// SalariesBefore selects records with no salaries or ones older than this.
	SalariesBefore time.Time
	Limit          int
}

// SnapshotRepository defines the secondary port for referential snapshots.
// Writes happen through DetectionWriter.
type SnapshotRepository interface {
	// Get retrieves a snapshot, tombstoned or not.
	Get(ctx context.Context, code string) (*Snapshot, error)

	// ListLive returns code -> content hash for every snapshot not tombstoned.
	ListLive(ctx context.Context) (map[string]string, error)
}

// Snapshot is the last-seen referential content of one entity.
type Snapshot struct {
	ExternalCode string
	ContentHash  string
	Payload      map[string]string
	LastChecked  time.Time
	LastChanged  time.Time
	DeletedAt    time.Time
}

// IsDeleted reports whether the snapshot is tombstoned.
func (s *Snapshot) IsDeleted() bool {
	return !s.DeletedAt.IsZero()
}

// ChangeRepository defines the secondary port for change records.
type ChangeRepository interface {
	// GetByID retrieves a change record by its ID.
	GetByID(ctx context.Context, id string) (*ChangeRecord, error)

	// List retrieves change records matching the given filters, newest first.
	List(ctx context.Context, filters ChangeFilters) ([]*ChangeRecord, error)

	// Latest returns the most recent change record of an entity.
	Latest(ctx context.Context, code string) (*ChangeRecord, error)

	// MarkReviewed sets the review fields of an unreviewed change.
	// An already reviewed change yields ErrVersionConflict.
	MarkReviewed(ctx context.Context, id, reviewer, action string, at time.Time) error
}

// ChangeRecord represents a detected referential delta.
type ChangeRecord struct {
	ID            string
	RunID         string
	ExternalCode  string
	DetectedAt    time.Time
	ChangeType    detection.ChangeType
	ChangedFields []string
	OldHash       string
	NewHash       string
	Reviewed      bool
	ReviewedBy    string
	ReviewedAt    time.Time
	ReviewAction  string
}

// ChangeFilters contains filter options for querying change records.
type ChangeFilters struct {
	ExternalCode   string
	RunID          string
	ChangeType     detection.ChangeType
	UnreviewedOnly bool
	Limit          int
}

// DetectionWriter applies one entity plan atomically: snapshot, occupation
// flag or creation, and change record commit together or not at all.
type DetectionWriter interface {
	// Apply persists plan and returns the change record it wrote, if any.
	Apply(ctx context.Context, plan detection.EntityPlan, runID string, at time.Time) (*ChangeRecord, error)
}

// DetectionRunRepository defines the secondary port for detection run history.
type DetectionRunRepository interface {
	// Create persists a finished run.
	Create(ctx context.Context, run *DetectionRun) error

	// List returns runs newest first.
	List(ctx context.Context, limit int) ([]*DetectionRun, error)

	// Latest returns the most recent run.
	Latest(ctx context.Context) (*DetectionRun, error)
}

// DetectionRun is the aggregate outcome of one detection cycle.
type DetectionRun struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	New          int
	Modified     int
	Deleted      int
	Unchanged    int
	Errors       int
	SkippedPages int
	Success      bool
}

// ValidationRepository defines the secondary port for validation workflows.
type ValidationRepository interface {
	// Open persists a new open workflow. A second open workflow for the
	// same occupation is rejected by storage.
	Open(ctx context.Context, wf *ValidationWorkflow) error

	// GetOpen returns the open workflow of an occupation.
	GetOpen(ctx context.Context, code string) (*ValidationWorkflow, error)

	// Close moves an open workflow to approved or rejected.
	Close(ctx context.Context, id, status, reviewer, comment string, at time.Time) error

	// CountOpen returns the number of open workflows.
	CountOpen(ctx context.Context) (int, error)
}

// Validation workflow statuses.
const (
	WorkflowOpen     = "open"
	WorkflowApproved = "approved"
	WorkflowRejected = "rejected"
)

// ValidationWorkflow tracks one hand-off of a record to human reviewers.
type ValidationWorkflow struct {
	ID           string
	ExternalCode string
	Status       string
	OpenedAt     time.Time
	ClosedAt     time.Time
	Reviewer     string
	Comment      string
}
