package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-arbiter/internal/handlers"
	"github.com/jwebster45206/story-arbiter/pkg/session"
	"github.com/jwebster45206/story-arbiter/pkg/validation"
)

func newTestAPI(t *testing.T, handler http.Handler) *apiClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &apiClient{http: server.Client(), baseURL: server.URL}
}

func TestAPIClient_SendTurn(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/turns", func(w http.ResponseWriter, r *http.Request) {
		var req handlers.TurnRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "s1", req.SessionID)
		assert.Equal(t, "Fireball", req.Params.Spell)
		_ = json.NewEncoder(w).Encode(handlers.TurnResponse{
			SessionID: req.SessionID,
			Status:    "rejected",
			Message:   "Your rogue cannot cast spells",
		})
	})
	api := newTestAPI(t, mux)

	resp, err := api.sendTurn("s1", "vex", "I cast fireball", validation.Params{Spell: "Fireball"})
	require.NoError(t, err)
	assert.Equal(t, "rejected", resp.Status)
	assert.Equal(t, "Your rogue cannot cast spells", resp.Message)
}

func TestAPIClient_Errors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(handlers.ErrorResponse{Error: "Session not found"})
	})
	mux.HandleFunc("GET /v1/characters", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	api := newTestAPI(t, mux)

	_, err := api.getSession("missing")
	require.Error(t, err)
	assert.True(t, isNotFound(err))
	assert.Equal(t, "Session not found", err.Error())

	_, err = api.listCharacters()
	require.Error(t, err)
	assert.False(t, isNotFound(err))
	assert.Contains(t, err.Error(), "502")
}

func TestAPIClient_History(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/sessions/{id}/history", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(handlers.HistoryResponse{
			SessionID: r.PathValue("id"),
			Entries: []session.Entry{
				{Sender: session.SenderPlayer, Message: "hello"},
				{Sender: session.SenderNarrator, Message: "The innkeeper nods."},
			},
		})
	})
	mux.HandleFunc("DELETE /v1/sessions/{id}/history", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	api := newTestAPI(t, mux)

	entries, err := api.getHistory("s1")
	require.NoError(t, err)
	lines := transcriptFrom(entries)
	require.Len(t, lines, 2)
	assert.Equal(t, linePlayer, lines[0].kind)
	assert.Equal(t, lineNarrator, lines[1].kind)

	assert.NoError(t, api.clearHistory("s1"))
}

func TestCharacterLabel(t *testing.T) {
	assert.Equal(t, "Vex (Level 3 Rogue)", characterLabel(handlers.CharacterSummary{ID: "vex", Name: "Vex", Class: "Rogue", Level: 3}))
	assert.Equal(t, "bram", characterLabel(handlers.CharacterSummary{ID: "bram"}))
}
