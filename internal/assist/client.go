// Package assist is the thin proxy client for the third-party
// text-generation API.
package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// MaxPromptLen caps forwarded prompts.
const MaxPromptLen = 2000

// Client forwards prompts to the generation API. No retries; a failed call
// is surfaced immediately.
type Client struct {
	http     *resty.Client
	model    string
	preamble string
}

// NewClient creates a client for the API at baseURL. preamble, if
// non-empty, is sent as the system prompt on every request.
func NewClient(baseURL, apiKey, model, preamble string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", apiKey)
	return &Client{http: c, model: model, preamble: preamble}
}

type generateRequest struct {
	Model     string    `json:"model"`
	System    string    `json:"system,omitempty"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type generateResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// Generate forwards prompt and returns the generated text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body := generateRequest{
		Model:     c.model,
		System:    c.preamble,
		MaxTokens: 1024,
		Messages:  []message{{Role: "user", Content: prompt}},
	}

	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post("/v1/messages")
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("generate: api returned status %d", resp.StatusCode())
	}

	var out generateResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("generate: decode response: %w", err)
	}
	if len(out.Content) == 0 {
		return "", fmt.Errorf("generate: empty response")
	}
	return out.Content[0].Text, nil
}
