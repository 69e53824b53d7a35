// Package referential is the HTTP adapter for the external occupation
// referential. Payloads are decoded into a typed schema and flattened into
// detection entities at the boundary.
package referential

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/adapters/httpx"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/detection"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// ListSeparator joins list-valued fields after sorting.
const ListSeparator = " | "

// Client implements secondary.ReferentialClient over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a referential client.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpx.NewClient(timeout),
	}
}

type pageResponse struct {
	Total     int               `json:"total"`
	Resultats []json.RawMessage `json:"resultats"`
}

type labelled struct {
	Code    string `json:"code,omitempty"`
	Libelle string `json:"libelle"`
}

type metier struct {
	Code          string     `json:"code"`
	Libelle       string     `json:"libelle"`
	Definition    string     `json:"definition"`
	Acces         string     `json:"acces"`
	Competences   []labelled `json:"competences"`
	Contextes     []labelled `json:"contextes"`
	Domaine       *labelled  `json:"domaine"`
	DateMiseAJour string     `json:"dateMiseAJour"`
}

// FetchPage fetches one page. Items that fail to decode or lack a code or
// title are counted in Invalid and left out of Entities.
func (c *Client) FetchPage(ctx context.Context, offset, limit int) (*secondary.ReferentialPage, error) {
	const op = "referential fetch"

	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	endpoint := c.baseURL + "/metiers?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpx.SetCommonHeaders(req)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, httpx.WrapTransportError(ctx, op, err)
	}
	defer resp.Body.Close()
	if err := httpx.CheckResponse(op, resp); err != nil {
		return nil, err
	}

	var decoded pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%s: decode page: %w", op, err)
	}
	return decodePage(decoded), nil
}

func decodePage(p pageResponse) *secondary.ReferentialPage {
	page := &secondary.ReferentialPage{Count: len(p.Resultats)}
	for _, raw := range p.Resultats {
		var m metier
		if err := json.Unmarshal(raw, &m); err != nil {
			page.Invalid++
			continue
		}
		entity, ok := toEntity(m)
		if !ok {
			page.Invalid++
			continue
		}
		page.Entities = append(page.Entities, entity)
	}
	return page
}

func toEntity(m metier) (detection.Entity, bool) {
	code := strings.TrimSpace(m.Code)
	title := strings.TrimSpace(m.Libelle)
	if code == "" || title == "" {
		return detection.Entity{}, false
	}

	fields := map[string]string{
		detection.FieldTitle: title,
	}
	setIf(fields, detection.FieldDefinition, m.Definition)
	setIf(fields, detection.FieldAccess, m.Acces)
	setIf(fields, detection.FieldSkills, joinLabels(m.Competences))
	setIf(fields, detection.FieldContexts, joinLabels(m.Contextes))
	if m.Domaine != nil {
		setIf(fields, detection.FieldDomain, m.Domaine.Code)
	}
	setIf(fields, detection.FieldUpdatedAt, m.DateMiseAJour)

	return detection.Entity{Code: code, Fields: fields}, true
}

func setIf(fields map[string]string, name, value string) {
	if v := strings.TrimSpace(value); v != "" {
		fields[name] = v
	}
}

// joinLabels canonicalises a list: trimmed, deduplicated, sorted.
func joinLabels(items []labelled) string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		l := strings.TrimSpace(it.Libelle)
		if l == "" {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)
	return strings.Join(out, ListSeparator)
}

// Ensure Client implements the interface
var _ secondary.ReferentialClient = (*Client)(nil)
