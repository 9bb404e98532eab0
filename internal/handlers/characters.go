package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/story-arbiter/internal/engine"
	"github.com/jwebster45206/story-arbiter/pkg/character"
)

// CharacterLister lists the ids of available character sheets
type CharacterLister interface {
	ListCharacters(ctx context.Context) ([]string, error)
}

// CharacterSummary is one row of the character list
type CharacterSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Class    string `json:"class,omitempty"`
	Level    int    `json:"level,omitempty"`
	Race     string `json:"race,omitempty"`
	Pronouns string `json:"pronouns,omitempty"`
}

type CharacterHandler struct {
	log     *slog.Logger
	lister  CharacterLister
	gateway character.Gateway
}

func NewCharacterHandler(log *slog.Logger, lister CharacterLister, gateway character.Gateway) *CharacterHandler {
	return &CharacterHandler{
		log:     log,
		lister:  lister,
		gateway: gateway,
	}
}

// Register adds the character routes to mux
func (h *CharacterHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/characters", h.ListCharacters)
	mux.HandleFunc("GET /v1/characters/{id}", h.GetCharacter)
}

// ListCharacters lists all available character sheets
func (h *CharacterHandler) ListCharacters(w http.ResponseWriter, r *http.Request) {
	ids, err := h.lister.ListCharacters(r.Context())
	if err != nil {
		h.log.Error("Failed to list characters", "error", err)
		writeError(w, h.log, http.StatusInternalServerError, "Failed to list characters")
		return
	}

	// Initialize as empty slice instead of nil
	list := make([]CharacterSummary, 0, len(ids))
	for _, id := range ids {
		c, err := h.gateway.GetCharacter(r.Context(), id)
		if err != nil {
			h.log.Warn("Failed to load character", "error", err, "id", id)
			continue
		}
		list = append(list, CharacterSummary{
			ID:       c.ID,
			Name:     c.Name,
			Class:    c.Class,
			Level:    c.Level,
			Race:     c.Race,
			Pronouns: c.Pronouns,
		})
	}

	writeJSON(w, h.log, http.StatusOK, list)
}

// GetCharacter returns one normalized character sheet
func (h *CharacterHandler) GetCharacter(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := h.gateway.GetCharacter(r.Context(), id)
	if err != nil {
		if errors.Is(err, character.ErrNotFound) {
			writeError(w, h.log, http.StatusNotFound, "Character not found")
			return
		}
		h.log.Error("Failed to load character", "error", err, "id", id)
		writeError(w, h.log, http.StatusInternalServerError, engine.GenericFailureMessage)
		return
	}
	writeJSON(w, h.log, http.StatusOK, c)
}
