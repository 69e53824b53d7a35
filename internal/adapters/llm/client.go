// Package llm is the HTTP adapter for the generative-text service.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/adapters/httpx"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

// APIVersion is sent in the anthropic-version header.
const APIVersion = "2023-06-01"

// Client implements secondary.TextGenerator against a messages-style API.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewClient creates a generative-text client.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    httpx.NewClient(timeout),
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends prompt as a single user message and returns the text blocks
// of the answer concatenated. Overloaded and rate-limited answers are
// returned as secondary.TransientError.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	const op = "llm generate"

	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%s: empty prompt", op)
	}
	if c.apiKey == "" {
		return "", fmt.Errorf("%s: api key is not configured", op)
	}

	payload, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpx.SetCommonHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", APIVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", httpx.WrapTransportError(ctx, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error.Type == "overloaded_error" {
			return "", secondary.Transient(op, fmt.Errorf("%s", apiErr.Error.Message))
		}
		err := fmt.Errorf("status %s: %s %s", resp.Status, apiErr.Error.Type, apiErr.Error.Message)
		if httpx.IsTransientStatus(resp.StatusCode) {
			return "", secondary.Transient(op, err)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var decoded messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", op, err)
	}
	var b strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("%s: response empty", op)
	}
	return text, nil
}

// Ensure Client implements the interface
var _ secondary.TextGenerator = (*Client)(nil)
