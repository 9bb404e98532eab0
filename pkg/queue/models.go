package queue

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/story-arbiter/pkg/validation"
)

// TurnRequest is one player turn waiting in the queue
type TurnRequest struct {
	RequestID   string            `json:"request_id"`
	SessionID   string            `json:"session_id"`
	CharacterID string            `json:"character_id,omitempty"`
	Message     string            `json:"message"`
	Params      validation.Params `json:"params,omitempty"`

	// MessageID makes retries of the same turn idempotent in history
	MessageID string `json:"message_id,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewTurnRequest stamps a request with fresh request and message ids
func NewTurnRequest(sessionID, characterID, message string, params validation.Params) *TurnRequest {
	return &TurnRequest{
		RequestID:   uuid.New().String(),
		SessionID:   sessionID,
		CharacterID: characterID,
		Message:     message,
		Params:      params,
		MessageID:   uuid.New().String(),
		EnqueuedAt:  time.Now().UTC(),
	}
}

// Validate checks the fields every turn needs
func (r *TurnRequest) Validate() error {
	if r.SessionID == "" {
		return errors.New("session_id is required")
	}
	if r.Message == "" {
		return errors.New("message cannot be empty")
	}
	return nil
}

// ToJSON converts the request to JSON bytes for Redis
func (r *TurnRequest) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*TurnRequest, error) {
	var req TurnRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
