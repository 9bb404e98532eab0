package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExists   = errors.New("session already exists")
)

// Sender identifies who wrote a history entry. The values are the persisted labels.
type Sender string

const (
	SenderPlayer   Sender = "player"
	SenderNarrator Sender = "dm"
)

// ParseSender accepts the persisted labels and common aliases
func ParseSender(s string) (Sender, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "player", "user", "pc":
		return SenderPlayer, true
	case "dm", "narrator", "assistant", "gm":
		return SenderNarrator, true
	}
	return "", false
}

func (s Sender) String() string {
	return string(s)
}

// Entry is one turn of conversation history
type Entry struct {
	ID        string    `json:"id,omitempty"`
	Sender    Sender    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEntry stamps a new entry with an id and the current time
func NewEntry(sender Sender, message string) Entry {
	return Entry{
		ID:        uuid.New().String(),
		Sender:    sender,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// SameTurn reports whether two entries record the same write: equal ids when
// both have one, otherwise equal sender, message, and timestamp.
func (e Entry) SameTurn(other Entry) bool {
	if e.ID != "" && other.ID != "" {
		return e.ID == other.ID
	}
	return e.Sender == other.Sender && e.Message == other.Message && e.Timestamp.Equal(other.Timestamp)
}

// Session is the metadata for one conversation. History is stored separately.
// Story and Scene are advisory narrative tags; Scene doubles as the game-state
// tag handed to validators.
type Session struct {
	ID          string    `json:"id"`
	CharacterID string    `json:"character_id,omitempty"`
	Story       string    `json:"story,omitempty"`
	Scene       string    `json:"scene,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// New creates session metadata stamped with the current time
func New(id, characterID string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:          id,
		CharacterID: characterID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Store persists sessions and their ordered history.
// Every method except Create returns ErrNotFound for an unknown id.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	SetTags(ctx context.Context, id, story, scene string) error

	Append(ctx context.Context, id string, e Entry) error
	// History returns the last limit entries, oldest first. limit <= 0 means all.
	History(ctx context.Context, id string, limit int) ([]Entry, error)
	// SetHistory replaces the stored history and refreshes UpdatedAt
	SetHistory(ctx context.Context, id string, entries []Entry) error
	PopOldest(ctx context.Context, id string) error
	Len(ctx context.Context, id string) (int, error)
}
