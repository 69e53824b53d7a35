package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/occupation"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/logbook"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// NameVariantGeneration is the gendered-variant agent name.
const NameVariantGeneration = "variant_generation"

// VariantGenerator produces masculine, feminine and epicene titles.
type VariantGenerator struct {
	repo       secondary.OccupationRepository
	audit      secondary.AuditRepository
	gen        secondary.TextGenerator
	retrier    *Retrier
	maxTokens  int
	batchLimit int
	log        *logbook.Logbook
}

// NewVariantGenerator creates the variant generation executor.
func NewVariantGenerator(repo secondary.OccupationRepository, audit secondary.AuditRepository, gen secondary.TextGenerator, retrier *Retrier, maxTokens, batchLimit int, log *logbook.Logbook) *VariantGenerator {
	return &VariantGenerator{
		repo:       repo,
		audit:      audit,
		gen:        gen,
		retrier:    retrier,
		maxTokens:  maxTokens,
		batchLimit: batchLimit,
		log:        log.With("agent:" + NameVariantGeneration),
	}
}

// Name implements Executor.
func (v *VariantGenerator) Name() string { return NameVariantGeneration }

// Variants are the gendered forms of a title.
type Variants struct {
	Masculine string `json:"masculin"`
	Feminine  string `json:"feminin"`
	Epicene   string `json:"epicene"`
}

// ParseVariants extracts the JSON object from a generated answer, tolerating
// surrounding prose or code fences.
func ParseVariants(text string) (Variants, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return Variants{}, fmt.Errorf("no JSON object in answer")
	}
	var v Variants
	if err := json.Unmarshal([]byte(text[start:end+1]), &v); err != nil {
		return Variants{}, fmt.Errorf("decode variants: %w", err)
	}
	v.Masculine = strings.TrimSpace(v.Masculine)
	v.Feminine = strings.TrimSpace(v.Feminine)
	v.Epicene = strings.TrimSpace(v.Epicene)
	if v.Masculine == "" && v.Feminine == "" && v.Epicene == "" {
		return Variants{}, fmt.Errorf("answer carries no variant")
	}
	return v, nil
}

// VariantReport is the output of a variant generation run.
type VariantReport struct {
	Generated map[string]Variants `json:"generated"`
	Failed    []string            `json:"failed,omitempty"`
}

// Execute implements Executor. Batch mode takes drafts.
func (v *VariantGenerator) Execute(ctx context.Context, p Params) (Outcome, error) {
	targets, err := selectTargets(ctx, v.repo, p, v.batchLimit, secondary.OccupationFilters{Status: occupation.StatusDraft})
	if err != nil {
		return Outcome{}, err
	}

	out := &VariantReport{Generated: make(map[string]Variants, len(targets))}
	report, err := forEachRecord(ctx, v.log, "variants", targets, func(ctx context.Context, rec *secondary.OccupationRecord) error {
		variants, err := v.generate(ctx, rec)
		if err != nil {
			return err
		}
		out.Generated[rec.ExternalCode] = variants
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	out.Failed = report.Failed
	return Outcome{Items: len(report.Done), Output: out}, nil
}

func (v *VariantGenerator) generate(ctx context.Context, rec *secondary.OccupationRecord) (Variants, error) {
	variants, err := Call(ctx, v.retrier, "variants "+rec.ExternalCode, func(ctx context.Context) (Variants, error) {
		text, err := v.gen.Generate(ctx, variantsPrompt(rec.ExternalCode, rec.Title), v.maxTokens)
		if err != nil {
			return Variants{}, err
		}
		return ParseVariants(text)
	})
	if err != nil {
		return Variants{}, err
	}

	updated, err := Mutate(ctx, v.repo, rec.ExternalCode, func(r *secondary.OccupationRecord) error {
		r.TitleMasculine = variants.Masculine
		r.TitleFeminine = variants.Feminine
		r.TitleEpicene = variants.Epicene
		r.Status = occupation.PromoteAfterEnrichment(r.Status)
		return nil
	})
	if err != nil {
		return Variants{}, fmt.Errorf("store variants: %w", err)
	}

	if v.audit != nil {
		after, _ := json.Marshal(variants)
		if err := v.audit.Append(ctx, &secondary.AuditEntry{
			Kind:        secondary.AuditUpdate,
			Agent:       NameVariantGeneration,
			EntityID:    rec.ExternalCode,
			Description: fmt.Sprintf("gendered titles generated (v%d, %s)", updated.Version, updated.Status),
			After:       string(after),
		}); err != nil {
			v.log.Warn("%s: audit append failed: %v", rec.ExternalCode, err)
		}
	}
	return variants, nil
}
