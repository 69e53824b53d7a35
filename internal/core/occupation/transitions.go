// Package occupation contains the pure business logic for the occupation
// record lifecycle. This is part of the Functional Core - no I/O, only pure functions.
package occupation

import "fmt"

// Status represents the lifecycle state of an occupation record.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusEnriched          Status = "enriched"
	StatusPendingValidation Status = "pending_validation"
	StatusValidated         Status = "validated"
	StatusPublished         Status = "published"
	StatusArchived          Status = "archived"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusDraft,
	StatusEnriched,
	StatusPendingValidation,
	StatusValidated,
	StatusPublished,
	StatusArchived,
}

var allowedTransitions = map[Status]map[Status]struct{}{
	StatusDraft: {
		StatusEnriched: {},
	},
	StatusEnriched: {
		StatusPendingValidation: {},
	},
	StatusPendingValidation: {
		StatusValidated: {},
		StatusDraft:     {},
	},
	StatusValidated: {
		StatusPublished: {},
	},
	StatusPublished: {
		StatusArchived: {},
	},
}

// InitialStatus returns the status of a record first seen in the referential.
func InitialStatus() Status {
	return StatusDraft
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown occupation status %q", s)
}

// CanTransition reports whether from -> to is a lifecycle edge.
func CanTransition(from, to Status) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// PromoteAfterEnrichment returns the status an enrichment agent leaves a
// record in. Only drafts move; every later status is kept as is.
func PromoteAfterEnrichment(current Status) Status {
	if current == StatusDraft {
		return StatusEnriched
	}
	return current
}

// ReviewPath returns the ordered statuses a review decision walks the record
// through. Approval goes via validated to published; rejection returns to draft.
func ReviewPath(approved bool) []Status {
	if approved {
		return []Status{StatusValidated, StatusPublished}
	}
	return []Status{StatusDraft}
}
