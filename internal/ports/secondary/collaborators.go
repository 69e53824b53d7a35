package secondary

import (
	"context"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/aggregate"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/detection"
)

// ReferentialClient fetches the external occupation referential page by page.
type ReferentialClient interface {
	FetchPage(ctx context.Context, offset, limit int) (*ReferentialPage, error)
}

// ReferentialPage is one decoded page.
type ReferentialPage struct {
	Entities []detection.Entity
	// Invalid counts items dropped for a malformed payload.
	Invalid int
	// Count is the number of raw items the page carried, valid or not.
	Count int
}

// TextGenerator is the generative-text collaborator.
// Overloaded or rate-limited failures are returned as TransientError.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// SalarySource is one salary data provider. A nil map with a nil error
// means the provider has no data for the code.
type SalarySource interface {
	Name() string
	FetchSalaryData(ctx context.Context, code string) (map[aggregate.Level]aggregate.Value, error)
}
