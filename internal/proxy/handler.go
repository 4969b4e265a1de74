// Package proxy implements the stateless chat proxy endpoint: it
// validates an inbound message or message list, forwards it to the
// completions API and normalizes the response or error into JSON.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/grookylabs/grooky/internal/api"
	"github.com/grookylabs/grooky/internal/chat"
	"github.com/grookylabs/grooky/internal/upstream"
	"github.com/grookylabs/grooky/internal/xlog"
)

// maxBodySize caps chat request bodies at 1 MiB.
const maxBodySize = 1 << 20

// Temperature bounds forwarded upstream.
const (
	MinTemperature     = 0.0
	MaxTemperature     = 2.0
	DefaultTemperature = 0.4
)

// Completer is the slice of the upstream client the proxy needs.
type Completer interface {
	Complete(ctx context.Context, req upstream.Request) (*upstream.Completion, error)
	Configured() bool
}

// Handler serves the chat proxy endpoint.
type Handler struct {
	completer Completer
	model     string // default model override, may be empty
	timeout   time.Duration
	log       *xlog.Logger
}

// NewHandler creates a proxy handler. log may be nil to disable
// exchange logging.
func NewHandler(completer Completer, defaultModel string, log *xlog.Logger) *Handler {
	return &Handler{
		completer: completer,
		model:     defaultModel,
		timeout:   30 * time.Second,
		log:       log,
	}
}

// RegisterRoutes mounts the chat endpoints on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/chat", h.handleHealth)
	r.Post("/api/chat", h.handleChat)
}

// handleHealth reports whether the upstream credential is configured.
// Idempotent, no side effects; useful for checking deployments.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	api.JSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"envOk": h.completer.Configured(),
		"now":   time.Now().UTC().Format(time.RFC3339),
	})
}

// chatRequest is the decoded POST body. Temperature is a pointer so an
// explicit 0 is distinguishable from an absent field.
type chatRequest struct {
	Message     string         `json:"message"`
	Messages    []chat.Message `json:"messages"`
	Model       string         `json:"model"`
	Temperature *float64       `json:"temperature"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	req, err := decodeBody(r)
	if err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	msgs := h.buildMessages(req)
	if len(msgs) == 0 {
		api.Error(w, http.StatusBadRequest, "no valid messages to send")
		return
	}

	if !h.completer.Configured() {
		api.Error(w, http.StatusInternalServerError, "missing upstream API credential")
		return
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = h.model
	}
	temperature := DefaultTemperature
	if req.Temperature != nil {
		temperature = clampTemperature(*req.Temperature)
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	completion, err := h.completer.Complete(ctx, upstream.Request{
		Model:       model,
		Messages:    toWireMessages(msgs),
		Temperature: temperature,
	})
	if err != nil {
		h.writeUpstreamError(w, err)
		return
	}

	h.logExchange(msgs, completion)
	api.JSON(w, http.StatusOK, map[string]any{
		"response": completion.Content,
		"model":    completion.Model,
		"usage":    completion.Usage,
	})
}

// decodeBody tolerates JSON, form-encoded and plain-text bodies. A
// plain-text body becomes the single message; shortcut apps often send
// text/plain without asking.
func decodeBody(r *http.Request) (*chatRequest, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, errors.New("failed to read request body")
	}
	if len(raw) == 0 {
		return nil, errors.New("empty request body")
	}

	ct := strings.ToLower(r.Header.Get("Content-Type"))
	switch {
	case strings.Contains(ct, "application/json"):
		var req chatRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, errors.New("invalid JSON body")
		}
		return &req, nil
	case strings.Contains(ct, "application/x-www-form-urlencoded"):
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, errors.New("invalid form body")
		}
		return &chatRequest{
			Message: values.Get("message"),
			Model:   values.Get("model"),
		}, nil
	default:
		return &chatRequest{Message: string(raw)}, nil
	}
}

// buildMessages produces the sanitized message list. A bare message is
// expanded into a default-system + user pair.
func (h *Handler) buildMessages(req *chatRequest) []chat.Message {
	if len(req.Messages) > 0 {
		return chat.SanitizeMessages(req.Messages)
	}
	message := chat.SanitizeText(req.Message)
	if message == "" {
		return nil
	}
	return []chat.Message{
		{Role: chat.RoleSystem, Content: chat.DefaultSystemPrompt},
		{Role: chat.RoleUser, Content: message},
	}
}

func (h *Handler) writeUpstreamError(w http.ResponseWriter, err error) {
	var apiErr *upstream.APIError
	switch {
	case errors.Is(err, upstream.ErrNoCredential):
		api.Error(w, http.StatusInternalServerError, "missing upstream API credential")
	case errors.As(err, &apiErr):
		status := apiErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		message := "upstream API error"
		if apiErr.NonJSON {
			message = "non-JSON response from upstream"
		}
		api.ErrorWithDetails(w, status, message, apiErr.Detail)
	case errors.Is(err, context.DeadlineExceeded):
		api.Error(w, http.StatusGatewayTimeout, "upstream request timed out")
	default:
		slog.Error("chat proxy upstream call failed", "error", err)
		api.Error(w, http.StatusBadGateway, "failed to reach upstream API")
	}
}

// logExchange records the last user turn and the reply, if logging is on.
func (h *Handler) logExchange(msgs []chat.Message, completion *upstream.Completion) {
	if h.log == nil {
		return
	}
	lastUser := ""
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chat.RoleUser {
			lastUser = msgs[i].Content
			break
		}
	}
	h.log.Log(xlog.Event{
		Model:     completion.Model,
		UserText:  lastUser,
		ReplyText: completion.Content,
	})
}

func toWireMessages(msgs []chat.Message) []upstream.Message {
	out := make([]upstream.Message, len(msgs))
	for i, m := range msgs {
		out[i] = upstream.Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func clampTemperature(t float64) float64 {
	if t < MinTemperature {
		return MinTemperature
	}
	if t > MaxTemperature {
		return MaxTemperature
	}
	return t
}
