package detection

import "sort"

// ChangeType classifies an entity within one detection cycle.
type ChangeType string

const (
	ChangeNew       ChangeType = "new"
	ChangeModified  ChangeType = "modified"
	ChangeDeleted   ChangeType = "deleted"
	ChangeUnchanged ChangeType = "unchanged"
)

// Prior is the stored snapshot state of an entity, as loaded by the caller.
type Prior struct {
	Hash    string
	Fields  map[string]string
	Deleted bool // tombstoned by an earlier cycle
}

// EntityPlan describes every write the detector must perform for one entity.
// The caller applies it in a single transaction.
type EntityPlan struct {
	Code          string
	Change        ChangeType
	OldHash       string
	NewHash       string
	ChangedFields []string
	Fields        map[string]string // payload to store; nil for deletions

	// EnsureRecord creates a draft occupation when none exists yet.
	EnsureRecord bool
	// FlagPending sets pendingReferentialUpdate on the occupation.
	FlagPending bool
	// Tombstone marks the snapshot deleted instead of overwriting it.
	Tombstone bool
}

// WritesChange reports whether the plan produces a ChangeRecord.
func (p EntityPlan) WritesChange() bool {
	return p.Change != ChangeUnchanged
}

// Classify compares a freshly computed hash against the prior snapshot.
// A tombstoned prior is treated as absent: the entity reappeared.
func Classify(prior *Prior, hash string) ChangeType {
	switch {
	case prior == nil || prior.Deleted:
		return ChangeNew
	case prior.Hash != hash:
		return ChangeModified
	default:
		return ChangeUnchanged
	}
}

// PlanEntity builds the plan for one fetched entity.
func (f Fingerprinter) PlanEntity(e Entity, prior *Prior) EntityPlan {
	hash := f.Hash(e)
	plan := EntityPlan{
		Code:    e.Code,
		Change:  Classify(prior, hash),
		NewHash: hash,
		Fields:  e.Fields,
	}
	if prior != nil {
		plan.OldHash = prior.Hash
	}

	switch plan.Change {
	case ChangeNew:
		plan.EnsureRecord = true
		// A reappearing entity already has a record that may be stale.
		plan.FlagPending = prior != nil
	case ChangeModified:
		plan.ChangedFields = f.Diff(prior.Fields, e.Fields)
		plan.FlagPending = true
	}
	return plan
}

// PlanDeletions returns a deletion plan for every live snapshot code absent
// from seen, sorted by code.
func PlanDeletions(live map[string]string, seen map[string]struct{}) []EntityPlan {
	var plans []EntityPlan
	for code, hash := range live {
		if _, ok := seen[code]; ok {
			continue
		}
		plans = append(plans, EntityPlan{
			Code:        code,
			Change:      ChangeDeleted,
			OldHash:     hash,
			FlagPending: true,
			Tombstone:   true,
		})
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Code < plans[j].Code })
	return plans
}

// Summary counts classifications in one cycle.
type Summary struct {
	New       int
	Modified  int
	Deleted   int
	Unchanged int
}

// Add counts one classification.
func (s *Summary) Add(c ChangeType) {
	switch c {
	case ChangeNew:
		s.New++
	case ChangeModified:
		s.Modified++
	case ChangeDeleted:
		s.Deleted++
	case ChangeUnchanged:
		s.Unchanged++
	}
}

// Changes returns the number of classifications that produce a ChangeRecord.
func (s Summary) Changes() int {
	return s.New + s.Modified + s.Deleted
}
