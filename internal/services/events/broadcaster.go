package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeTurnQueued     EventType = "turn.queued"
	EventTypeTurnProcessing EventType = "turn.processing"
	EventTypeTurnCompleted  EventType = "turn.completed"
	EventTypeTurnRejected   EventType = "turn.rejected"
	EventTypeTurnFailed     EventType = "turn.failed"
)

// Event represents a generic event structure
type Event struct {
	Type      EventType      `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Channel returns the Pub/Sub channel for a session
func Channel(sessionID string) string {
	return fmt.Sprintf("session-events:%s", sessionID)
}

// Broadcaster publishes session events to Redis Pub/Sub
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishTurnQueued publishes a turn.queued event
func (b *Broadcaster) PublishTurnQueued(ctx context.Context, sessionID, requestID string) error {
	return b.publish(ctx, Event{
		Type:      EventTypeTurnQueued,
		RequestID: requestID,
		SessionID: sessionID,
		Data:      map[string]any{"status": "queued"},
	})
}

// PublishTurnProcessing publishes a turn.processing event
func (b *Broadcaster) PublishTurnProcessing(ctx context.Context, sessionID, requestID, userMessage string) error {
	return b.publish(ctx, Event{
		Type:      EventTypeTurnProcessing,
		RequestID: requestID,
		SessionID: sessionID,
		Data: map[string]any{
			"status":       "processing",
			"user_message": userMessage,
		},
	})
}

// PublishTurnCompleted publishes a turn.completed event
func (b *Broadcaster) PublishTurnCompleted(ctx context.Context, sessionID, requestID string, result map[string]any) error {
	return b.publish(ctx, Event{
		Type:      EventTypeTurnCompleted,
		RequestID: requestID,
		SessionID: sessionID,
		Data: map[string]any{
			"status": "completed",
			"result": result,
		},
	})
}

// PublishTurnRejected publishes a turn.rejected event carrying the player-facing reason
func (b *Broadcaster) PublishTurnRejected(ctx context.Context, sessionID, requestID, reason string) error {
	return b.publish(ctx, Event{
		Type:      EventTypeTurnRejected,
		RequestID: requestID,
		SessionID: sessionID,
		Data: map[string]any{
			"status": "rejected",
			"reason": reason,
		},
	})
}

// PublishTurnFailed publishes a turn.failed event
func (b *Broadcaster) PublishTurnFailed(ctx context.Context, sessionID, requestID, errorMsg string) error {
	return b.publish(ctx, Event{
		Type:      EventTypeTurnFailed,
		RequestID: requestID,
		SessionID: sessionID,
		Data: map[string]any{
			"status": "failed",
			"error":  errorMsg,
		},
	})
}

func (b *Broadcaster) publish(ctx context.Context, event Event) error {
	channel := Channel(event.SessionID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"request_id", event.RequestID,
	)
	return nil
}
