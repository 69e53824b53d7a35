// Package salary holds the salary data provider adapters. Each provider
// kind has its own payload schema; all of them decode eagerly into
// per-level aggregate values.
package salary

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/adapters/httpx"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/aggregate"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// Provider kinds.
const (
	KindINSEE   = "insee"
	KindAPEC    = "apec"
	KindGeneric = "generic"
)

// schema is one provider payload format.
type schema interface {
	path(code string) string
	decode(body []byte) (map[aggregate.Level]aggregate.Value, error)
}

// Source implements secondary.SalarySource for one configured provider.
type Source struct {
	name    string
	baseURL string
	apiKey  string
	schema  schema
	http    *http.Client
}

// NewSource creates a provider adapter. kind selects the payload schema.
func NewSource(name, kind, baseURL, apiKey string, timeout time.Duration) (*Source, error) {
	var s schema
	switch kind {
	case KindINSEE:
		s = inseeSchema{}
	case KindAPEC:
		s = apecSchema{}
	case KindGeneric, "":
		s = genericSchema{}
	default:
		return nil, fmt.Errorf("unknown salary source kind %q", kind)
	}
	return &Source{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		schema:  s,
		http:    httpx.NewClient(timeout),
	}, nil
}

// Name returns the configured source name.
func (s *Source) Name() string {
	return s.name
}

// FetchSalaryData returns the provider's figures for code, or nil when the
// provider has none (404 or an empty payload).
func (s *Source) FetchSalaryData(ctx context.Context, code string) (map[aggregate.Level]aggregate.Value, error) {
	op := "salary " + s.name

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+s.schema.path(code), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpx.SetCommonHeaders(req)
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, httpx.WrapTransportError(ctx, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err := httpx.CheckResponse(op, resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, httpx.WrapTransportError(ctx, op, err)
	}
	levels, err := s.schema.decode(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(levels) == 0 {
		return nil, nil
	}
	return levels, nil
}

func pathEscape(code string) string {
	return url.PathEscape(code)
}

// Ensure Source implements the interface
var _ secondary.SalarySource = (*Source)(nil)
