package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// RESTStore talks to a Redis-compatible REST endpoint (Upstash style):
// each call POSTs a JSON command array and receives {"result": ...}.
// Only GET/SETEX/DEL are used.
type RESTStore struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewRESTStore creates a store against the given REST endpoint. Both
// values may be empty; operations then fail with ErrBackendUnavailable.
func NewRESTStore(baseURL, token string) *RESTStore {
	return &RESTStore{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether credentials are present.
func (s *RESTStore) Configured() bool {
	return s.baseURL != "" && s.token != ""
}

// Put implements Store.
func (s *RESTStore) Put(ctx context.Context, rec Record, ttl time.Duration) (string, time.Duration, error) {
	if err := rec.validate(); err != nil {
		return "", 0, err
	}
	ttl = ClampTTL(ttl)

	value, err := json.Marshal(rec)
	if err != nil {
		return "", 0, fmt.Errorf("encode record: %w", err)
	}

	token := newToken()
	seconds := strconv.Itoa(int(ttl / time.Second))
	if _, err := s.command(ctx, "SETEX", keyPrefix+token, seconds, string(value)); err != nil {
		return "", 0, err
	}
	return token, ttl, nil
}

// Take implements Store. The delete after a successful read is best
// effort: a failed DEL is logged and swallowed, so a concurrent reader
// racing the delete may observe the record twice. Acceptable for the
// single-consumer usage this store exists for.
func (s *RESTStore) Take(ctx context.Context, token string) (Record, error) {
	key := keyPrefix + token
	result, err := s.command(ctx, "GET", key)
	if err != nil {
		return Record{}, err
	}
	if result == nil {
		return Record{}, ErrNotFound
	}

	raw, ok := result.(string)
	if !ok {
		return Record{}, ErrInvalidPayload
	}

	if _, err := s.command(ctx, "DEL", key); err != nil {
		slog.Warn("seed: delete after read failed", "error", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.U == "" || rec.A == "" {
		return Record{}, ErrInvalidPayload
	}
	return rec, nil
}

// command executes one Redis command over REST and returns its result.
func (s *RESTStore) command(ctx context.Context, args ...string) (any, error) {
	if !s.Configured() {
		return nil, fmt.Errorf("%w: missing credentials", ErrBackendUnavailable)
	}

	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrBackendUnavailable, err)
	}

	var parsed struct {
		Result any    `json:"result"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: non-JSON response (status %d)", ErrBackendUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, parsed.Error)
		}
		return nil, fmt.Errorf("%w: status %d", ErrBackendUnavailable, resp.StatusCode)
	}
	return parsed.Result, nil
}
