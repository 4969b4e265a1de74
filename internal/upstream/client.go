// Package upstream provides the HTTP client for the external
// OpenAI-compatible chat-completions API.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL points at the Groq completions API.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// DefaultModel is used when neither the request nor the environment
// names one.
const DefaultModel = "llama-3.3-70b-versatile"

// maxDetailLen bounds the diagnostic body carried in errors. Upstream
// failure pages can be arbitrarily large HTML; callers only ever see
// this much.
const maxDetailLen = 2000

// ErrNoCredential is returned when the client has no API key.
var ErrNoCredential = errors.New("upstream: missing API credential")

// APIError is a non-OK or non-JSON response from the completions API.
type APIError struct {
	StatusCode int
	Detail     string // truncated raw body or decoded error payload
	NonJSON    bool
}

func (e *APIError) Error() string {
	if e.NonJSON {
		return fmt.Sprintf("upstream: non-JSON response (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("upstream: API error (status %d)", e.StatusCode)
}

// Message mirrors the wire shape of one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one completion call.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// Completion is the extracted result of a successful call.
type Completion struct {
	Content string          `json:"content"`
	Model   string          `json:"model"`
	Usage   json.RawMessage `json:"usage"`
}

// ClientConfig holds client options.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	// Timeout bounds each completion call wall-clock. Default 30s.
	Timeout time.Duration
}

// Client talks to the completions API. Safe for concurrent use.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewClient creates a client. Zero-value fields get defaults.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.config.APIKey != ""
}

// completionResponse is the subset of the upstream reply we read.
type completionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage json.RawMessage `json:"usage"`
}

// Complete performs one chat completion. Non-OK and non-JSON responses
// come back as *APIError with the upstream status and a truncated
// diagnostic; the raw body is never returned whole.
func (c *Client) Complete(ctx context.Context, req Request) (*Completion, error) {
	if !c.Configured() {
		return nil, ErrNoCredential
	}
	if req.Model == "" {
		req.Model = DefaultModel
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call completions API: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed completionResponse
	if jsonErr := json.Unmarshal(raw, &parsed); jsonErr != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Detail:     truncate(string(raw), maxDetailLen),
			NonJSON:    true,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Detail:     truncate(string(raw), maxDetailLen),
		}
	}

	content := ""
	if len(parsed.Choices) > 0 {
		content = strings.TrimSpace(parsed.Choices[0].Message.Content)
	}
	model := parsed.Model
	if model == "" {
		model = req.Model
	}
	return &Completion{Content: content, Model: model, Usage: parsed.Usage}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
