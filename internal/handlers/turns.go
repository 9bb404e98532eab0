package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jwebster45206/story-arbiter/internal/engine"
	"github.com/jwebster45206/story-arbiter/pkg/intent"
	"github.com/jwebster45206/story-arbiter/pkg/queue"
	"github.com/jwebster45206/story-arbiter/pkg/validation"
)

// DefaultTurnTimeout bounds an inline turn
const DefaultTurnTimeout = 60 * time.Second

// TurnRunner processes a turn synchronously
type TurnRunner interface {
	Process(ctx context.Context, req *queue.TurnRequest) (*engine.TurnResult, error)
}

// TurnEnqueuer hands a turn to the worker pool
type TurnEnqueuer interface {
	Enqueue(ctx context.Context, req *queue.TurnRequest) error
}

// QueuedNotifier announces that a turn is waiting
type QueuedNotifier interface {
	PublishTurnQueued(ctx context.Context, sessionID, requestID string) error
}

// TurnRequest is the body of POST /v1/turns
type TurnRequest struct {
	SessionID   string            `json:"session_id"`
	CharacterID string            `json:"character_id,omitempty"`
	Message     string            `json:"message"`
	Params      validation.Params `json:"params,omitempty"`
	MessageID   string            `json:"message_id,omitempty"`
}

// TurnResponse is the player-safe view of a processed turn. Internal
// diagnostics never appear in Message.
type TurnResponse struct {
	RequestID      string         `json:"request_id,omitempty"`
	SessionID      string         `json:"session_id"`
	Status         string         `json:"status"`
	Intent         intent.Intent  `json:"intent,omitempty"`
	Confidence     float64        `json:"confidence,omitempty"`
	FallbackReason string         `json:"fallback_reason,omitempty"`
	Kind           string         `json:"kind,omitempty"`
	Message        string         `json:"message,omitempty"`
	Narration      string         `json:"narration,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
	Story          string         `json:"story,omitempty"`
	Scene          string         `json:"scene,omitempty"`
	Compression    string         `json:"compression,omitempty"`
	DurationMS     int64          `json:"duration_ms,omitempty"`
}

// TurnsHandler handles POST /v1/turns. With ?async=true the turn is queued
// and 202 is returned; otherwise it is processed inline.
type TurnsHandler struct {
	runner   TurnRunner
	queue    TurnEnqueuer
	notifier QueuedNotifier
	timeout  time.Duration
	logger   *slog.Logger
}

// NewTurnsHandler creates a turns handler. A nil queue disables async mode.
func NewTurnsHandler(runner TurnRunner, q TurnEnqueuer, notifier QueuedNotifier, logger *slog.Logger) *TurnsHandler {
	return &TurnsHandler{
		runner:   runner,
		queue:    q,
		notifier: notifier,
		timeout:  DefaultTurnTimeout,
		logger:   logger,
	}
}

// SetTimeout bounds inline turns. Non-positive values are ignored.
func (h *TurnsHandler) SetTimeout(d time.Duration) {
	if d > 0 {
		h.timeout = d
	}
}

func (h *TurnsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.logger.Warn("Method not allowed for turns endpoint",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}

	var body TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'session_id' and 'message' fields.")
		return
	}

	req := queue.NewTurnRequest(body.SessionID, body.CharacterID, body.Message, body.Params)
	if body.MessageID != "" {
		req.MessageID = body.MessageID
	}
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async {
		h.enqueue(w, r, req)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.runner.Process(ctx, req)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidRequest) {
			writeError(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Error processing turn", "error", err, "session_id", req.SessionID, "request_id", req.RequestID)
		if result != nil {
			writeJSON(w, h.logger, http.StatusInternalServerError, toTurnResponse(result))
			return
		}
		writeError(w, h.logger, http.StatusInternalServerError, engine.GenericFailureMessage)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, toTurnResponse(result))
}

func (h *TurnsHandler) enqueue(w http.ResponseWriter, r *http.Request, req *queue.TurnRequest) {
	if h.queue == nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "Async processing is not available.")
		return
	}
	if err := h.queue.Enqueue(r.Context(), req); err != nil {
		h.logger.Error("Failed to enqueue turn", "error", err, "session_id", req.SessionID)
		writeError(w, h.logger, http.StatusInternalServerError, engine.GenericFailureMessage)
		return
	}
	if h.notifier != nil {
		if err := h.notifier.PublishTurnQueued(r.Context(), req.SessionID, req.RequestID); err != nil {
			h.logger.Error("Failed to publish queued event", "error", err)
		}
	}

	h.logger.Info("Turn queued", "session_id", req.SessionID, "request_id", req.RequestID)
	writeJSON(w, h.logger, http.StatusAccepted, TurnResponse{
		RequestID: req.RequestID,
		SessionID: req.SessionID,
		Status:    "queued",
	})
}

func toTurnResponse(result *engine.TurnResult) TurnResponse {
	resp := TurnResponse{
		RequestID:      result.RequestID,
		SessionID:      result.SessionID,
		Status:         string(result.Status),
		Intent:         result.Outcome.Intent,
		Confidence:     result.Outcome.Confidence,
		FallbackReason: result.Outcome.FallbackReason,
		Kind:           string(result.Outcome.Kind),
		Message:        result.PlayerMessage,
		Narration:      result.Narration,
		Story:          result.Story,
		Scene:          result.Scene,
		Compression:    result.Compression,
		DurationMS:     result.DurationMS,
	}
	// Details describe the validated entity; faults carry none worth showing
	if v := result.Outcome.Validation; v != nil && v.Kind != validation.KindInternalError {
		resp.Details = v.Details
	}
	return resp
}
