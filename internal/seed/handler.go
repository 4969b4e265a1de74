package seed

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/grookylabs/grooky/internal/api"
)

// maxBodySize caps handoff request bodies at 1 MiB.
const maxBodySize = 1 << 20

// Handler exposes the handoff store over HTTP.
type Handler struct {
	store Store
}

// NewHandler creates a handoff handler backed by store.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts the handoff endpoints on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/seed", h.handleTake)
	r.Post("/api/seed", h.handlePut)
}

type putRequest struct {
	ID  string `json:"id"`
	U   string `json:"u"`
	A   string `json:"a"`
	TTL int    `json:"ttl"`
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req putRequest
	if err := json.Unmarshal(body, &req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	token, ttl, err := h.store.Put(r.Context(), Record{ID: req.ID, U: req.U, A: req.A}, time.Duration(req.TTL)*time.Second)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyTurn):
			api.Error(w, http.StatusBadRequest, "missing u/a")
		default:
			slog.Error("handoff put failed", "error", err)
			api.Error(w, http.StatusInternalServerError, "handoff store error")
		}
		return
	}

	api.JSON(w, http.StatusOK, map[string]any{
		"token": token,
		"ttl":   int(ttl / time.Second),
	})
}

func (h *Handler) handleTake(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		api.Error(w, http.StatusBadRequest, "missing token")
		return
	}

	rec, err := h.store.Take(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			api.Error(w, http.StatusNotFound, "token not found or expired")
		case errors.Is(err, ErrInvalidPayload):
			api.Error(w, http.StatusInternalServerError, "invalid stored payload")
		default:
			slog.Error("handoff take failed", "error", err)
			api.Error(w, http.StatusInternalServerError, "handoff store error")
		}
		return
	}

	api.JSON(w, http.StatusOK, map[string]string{
		"id": rec.ID,
		"u":  rec.U,
		"a":  rec.A,
	})
}
