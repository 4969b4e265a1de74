// Package client is the HTTP client of the Grooky server endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/grookylabs/grooky/internal/chat"
	"github.com/grookylabs/grooky/internal/seed"
)

// requestTimeout bounds every call so the UI never hangs on a dead
// server.
const requestTimeout = 30 * time.Second

// ErrTimeout is returned when a call exceeds the request budget. It is
// distinct from other failures so the caller can word it differently.
var ErrTimeout = errors.New("client: request timed out")

// Client calls the chat proxy and handoff endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Health is the chat endpoint's health report.
type Health struct {
	OK    bool   `json:"ok"`
	EnvOK bool   `json:"envOk"`
	Now   string `json:"now"`
}

// ChatReply is a successful proxy response.
type ChatReply struct {
	Response string          `json:"response"`
	Model    string          `json:"model"`
	Usage    json.RawMessage `json:"usage"`
}

// errorBody is the server's structured error shape.
type errorBody struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

// PostChat sends the sanitized thread to the proxy and returns the
// reply text.
func (c *Client) PostChat(ctx context.Context, model string, msgs []chat.Message, temperature float64) (*ChatReply, error) {
	msgs = chat.SanitizeMessages(msgs)
	if len(msgs) == 0 {
		return nil, errors.New("client: no valid messages to send")
	}

	payload, err := json.Marshal(map[string]any{
		"model":       model,
		"messages":    msgs,
		"temperature": temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	var reply ChatReply
	if err := c.do(ctx, http.MethodPost, "/api/chat", payload, &reply); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reply.Response) == "" {
		return nil, errors.New("client: empty response from proxy")
	}
	return &reply, nil
}

// PingHealth checks the deployment and its upstream credential.
func (c *Client) PingHealth(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/api/chat", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// TakeSeed consumes a handoff token.
func (c *Client) TakeSeed(ctx context.Context, token string) (*seed.Record, error) {
	var rec seed.Record
	path := "/api/seed?token=" + url.QueryEscape(token)
	if err := c.do(ctx, http.MethodGet, path, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutSeed stores a handoff record and returns its token.
func (c *Client) PutSeed(ctx context.Context, rec seed.Record, ttl time.Duration) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"id":  rec.ID,
		"u":   rec.U,
		"a":   rec.A,
		"ttl": int(ttl / time.Second),
	})
	if err != nil {
		return "", fmt.Errorf("encode seed request: %w", err)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/seed", payload, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// do performs one JSON request/response cycle. Non-2xx responses are
// surfaced with the server's error field; non-JSON bodies never leak
// past this point.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			return ErrTimeout
		}
		return fmt.Errorf("call server: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorBody
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			if len(e.Details) > 0 {
				return fmt.Errorf("server error (%d): %s · %s", resp.StatusCode, e.Error, string(e.Details))
			}
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("server error (%d)", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("non-JSON response from server (%d)", resp.StatusCode)
	}
	return nil
}

// isClientTimeout detects the net/http client timeout, which arrives as
// a url.Error with Timeout() true rather than a context error.
func isClientTimeout(err error) bool {
	var uerr interface{ Timeout() bool }
	return errors.As(err, &uerr) && uerr.Timeout()
}
