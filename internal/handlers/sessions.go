package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jwebster45206/story-arbiter/internal/engine"
	"github.com/jwebster45206/story-arbiter/pkg/memory"
	"github.com/jwebster45206/story-arbiter/pkg/session"
)

// SessionsHandler exposes session metadata and working memory
type SessionsHandler struct {
	memory        *memory.Manager
	sessions      session.Store
	defaultBudget int
	logger        *slog.Logger
}

func NewSessionsHandler(mem *memory.Manager, sessions session.Store, defaultBudget int, logger *slog.Logger) *SessionsHandler {
	return &SessionsHandler{
		memory:        mem,
		sessions:      sessions,
		defaultBudget: defaultBudget,
		logger:        logger,
	}
}

// Register adds the session routes to mux
func (h *SessionsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/sessions/{id}", h.GetSession)
	mux.HandleFunc("GET /v1/sessions/{id}/history", h.GetHistory)
	mux.HandleFunc("DELETE /v1/sessions/{id}/history", h.ClearHistory)
	mux.HandleFunc("POST /v1/sessions/{id}/compress", h.Compress)
}

type HistoryResponse struct {
	SessionID string          `json:"session_id"`
	Entries   []session.Entry `json:"entries"`
}

type CompressRequest struct {
	MaxTokens *int `json:"max_tokens,omitempty"`
	Commit    bool `json:"commit,omitempty"`
}

type CompressResponse struct {
	SessionID    string          `json:"session_id"`
	Strategy     string          `json:"strategy"`
	TokensBefore int             `json:"tokens_before"`
	TokensAfter  int             `json:"tokens_after"`
	Committed    bool            `json:"committed"`
	Entries      []session.Entry `json:"entries"`
}

func (h *SessionsHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		h.storeError(w, id, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, s)
}

// GetHistory returns the last ?limit= entries; no limit means the configured maximum
func (h *SessionsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, h.logger, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := h.memory.GetHistory(r.Context(), id, limit)
	if err != nil {
		h.storeError(w, id, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, HistoryResponse{SessionID: id, Entries: entries})
}

func (h *SessionsHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.memory.ClearHistory(r.Context(), id); err != nil {
		h.storeError(w, id, err)
		return
	}
	h.logger.Info("Session history cleared", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// Compress previews compression to max_tokens and persists it when commit is set
func (h *SessionsHandler) Compress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body CompressRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'max_tokens' and 'commit' fields.")
			return
		}
	}
	budget := h.defaultBudget
	if body.MaxTokens != nil {
		budget = *body.MaxTokens
	}

	compress := h.memory.Compress
	if body.Commit {
		compress = h.memory.CompressAndCommit
	}
	c, err := compress(r.Context(), id, budget)
	if err != nil {
		h.storeError(w, id, err)
		return
	}
	committed := body.Commit && c.Strategy != memory.StrategyNone

	writeJSON(w, h.logger, http.StatusOK, CompressResponse{
		SessionID:    id,
		Strategy:     c.Strategy,
		TokensBefore: c.TokensBefore,
		TokensAfter:  c.TokensAfter,
		Committed:    committed,
		Entries:      c.Entries,
	})
}

func (h *SessionsHandler) storeError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "Session not found.")
		return
	}
	h.logger.Error("Session store error", "session_id", id, "error", err)
	writeError(w, h.logger, http.StatusInternalServerError, engine.GenericFailureMessage)
}
