package occupation

import (
	"fmt"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/detection"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string // Human-readable reason (populated when not allowed)
}

// Error returns the guard result as an error if not allowed, nil otherwise.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// ReviewContext provides context for review guards.
type ReviewContext struct {
	ExternalCode string
	Status       Status
	Approved     bool
}

// ReviewOutcome tells the caller what a review call should do.
type ReviewOutcome int

const (
	// ReviewApply walks the record along ReviewPath.
	ReviewApply ReviewOutcome = iota
	// ReviewNoop means the record already reflects the decision.
	ReviewNoop
)

// CanReview evaluates whether a review decision may be applied.
// Rules:
// - pending_validation accepts both decisions
// - approving a published record, or rejecting a draft, is a no-op
// - anything else is refused
func CanReview(ctx ReviewContext) (ReviewOutcome, GuardResult) {
	if ctx.Status == StatusPendingValidation {
		return ReviewApply, GuardResult{Allowed: true}
	}
	if ctx.Approved && ctx.Status == StatusPublished {
		return ReviewNoop, GuardResult{Allowed: true}
	}
	if !ctx.Approved && ctx.Status == StatusDraft {
		return ReviewNoop, GuardResult{Allowed: true}
	}
	decision := "reject"
	if ctx.Approved {
		decision = "approve"
	}
	return ReviewNoop, GuardResult{
		Allowed: false,
		Reason:  fmt.Sprintf("cannot %s occupation %s: status is %s (must be %s)", decision, ctx.ExternalCode, ctx.Status, StatusPendingValidation),
	}
}

// ValidationContext provides context for entering the validation queue.
type ValidationContext struct {
	ExternalCode       string
	Status             Status
	HasOpenWorkflow    bool
	HasDescription     bool
	HasGenderedVariant bool
}

// CanEnterValidation evaluates whether a record may be handed to reviewers.
// Rules:
// - record must be enriched
// - record must carry a description and at least one gendered title
// - at most one open validation workflow per record
func CanEnterValidation(ctx ValidationContext) GuardResult {
	if ctx.Status != StatusEnriched {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("cannot queue occupation %s for validation: status is %s (must be %s)", ctx.ExternalCode, ctx.Status, StatusEnriched),
		}
	}
	if !ctx.HasDescription || !ctx.HasGenderedVariant {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("cannot queue occupation %s for validation: enrichment incomplete", ctx.ExternalCode),
		}
	}
	if ctx.HasOpenWorkflow {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("occupation %s already has an open validation workflow", ctx.ExternalCode),
		}
	}
	return GuardResult{Allowed: true}
}

// CanArchive evaluates whether a record may be archived.
func CanArchive(code string, status Status) GuardResult {
	if !CanTransition(status, StatusArchived) {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("cannot archive occupation %s: status is %s (must be %s)", code, status, StatusPublished),
		}
	}
	return GuardResult{Allowed: true}
}

// ChangeReviewContext provides context for change-record review guards.
type ChangeReviewContext struct {
	ChangeID   string
	ChangeType detection.ChangeType
	Reviewed   bool
	Action     string
}

// Change review actions.
const (
	ActionAcknowledge = "acknowledge"
	ActionReEnrich    = "re-enrich"
)

// CanReviewChange evaluates whether a change record may be reviewed.
// Rules:
// - action must be acknowledge or re-enrich
// - a change record is reviewed at most once
// - a deletion cannot be re-enriched, only acknowledged
func CanReviewChange(ctx ChangeReviewContext) GuardResult {
	if ctx.Action != ActionAcknowledge && ctx.Action != ActionReEnrich {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("unknown review action %q (want %s or %s)", ctx.Action, ActionAcknowledge, ActionReEnrich),
		}
	}
	if ctx.Reviewed {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("change %s has already been reviewed", ctx.ChangeID),
		}
	}
	if ctx.Action == ActionReEnrich && ctx.ChangeType == detection.ChangeDeleted {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("change %s is a deletion from the referential: acknowledge it or archive the record", ctx.ChangeID),
		}
	}
	return GuardResult{Allowed: true}
}
