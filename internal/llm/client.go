// Package llm provides the reasoning provider for actor decisions: an Anthropic
// Messages client with credential fallback, a Reasoner that adds timeouts and a
// circuit breaker, and the prompt builders and parsers for each decision.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	apiURL       = "https://api.anthropic.com/v1/messages"
	apiVersion   = "2023-06-01"
	defaultModel = "claude-haiku-4-5-20251001"
	maxTokens    = 300
)

// ErrDisabled is returned when no provider is configured.
var ErrDisabled = errors.New("LLM client not configured")

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is an external reasoning service.
type Provider interface {
	Chat(ctx context.Context, messages []Message, system string) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, messages []Message, system string) (string, error)

// Chat calls f.
func (f ProviderFunc) Chat(ctx context.Context, messages []Message, system string) (string, error) {
	return f(ctx, messages, system)
}

// Client wraps the Anthropic Messages API. Each configured key is tried in order
// before a call is reported as failed.
type Client struct {
	apiKeys    []string
	model      string
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client for the given keys.
// Returns nil if no key is given (LLM features disabled).
func NewClient(apiKeys []string, model string, perMinute, burst int) *Client {
	var keys []string
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if model == "" {
		model = defaultModel
	}
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		apiKeys: keys,
		model:   model,
		url:     apiURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
	}
}

// Enabled returns true if the client has at least one API key.
func (c *Client) Enabled() bool {
	return c != nil && len(c.apiKeys) > 0
}

// request is the API request body.
type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
}

// response is the API response body.
type response struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Chat sends messages to the model and returns the response text. Keys are
// attempted in sequence; the last error is returned when all fail.
func (c *Client) Chat(ctx context.Context, messages []Message, system string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	body, err := json.Marshal(request{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  messages,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for i, key := range c.apiKeys {
		text, err := c.send(ctx, key, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		slog.Debug("llm credential failed, trying next", "index", i, "error", err)
	}
	return "", lastErr
}

func (c *Client) send(ctx context.Context, key string, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", key)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("API call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if len(apiResp.Content) == 0 {
		return "", fmt.Errorf("empty response")
	}

	slog.Debug("llm call",
		"input_tokens", apiResp.Usage.InputTokens,
		"output_tokens", apiResp.Usage.OutputTokens,
	)

	return apiResp.Content[0].Text, nil
}
