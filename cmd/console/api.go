package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/jwebster45206/story-arbiter/internal/handlers"
	"github.com/jwebster45206/story-arbiter/pkg/session"
	"github.com/jwebster45206/story-arbiter/pkg/validation"
)

// apiError is a non-success reply from the API
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	return e.message
}

func isNotFound(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.status == http.StatusNotFound
}

// apiClient talks to the Story Arbiter HTTP API
type apiClient struct {
	http    *http.Client
	baseURL string
}

func (c *apiClient) testConnection() bool {
	resp, err := c.http.Get(c.baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// do sends a request and decodes a JSON body into out when the status matches want
func (c *apiClient) do(method, path string, body any, want int, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != want {
		var errorResp handlers.ErrorResponse
		if err := json.Unmarshal(raw, &errorResp); err != nil || errorResp.Error == "" {
			return &apiError{status: resp.StatusCode, message: fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(raw))}
		}
		return &apiError{status: resp.StatusCode, message: errorResp.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *apiClient) listCharacters() ([]handlers.CharacterSummary, error) {
	var list []handlers.CharacterSummary
	if err := c.do(http.MethodGet, "/v1/characters", nil, http.StatusOK, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *apiClient) sendTurn(sessionID, characterID, message string, params validation.Params) (*handlers.TurnResponse, error) {
	req := handlers.TurnRequest{
		SessionID:   sessionID,
		CharacterID: characterID,
		Message:     message,
		Params:      params,
	}
	var resp handlers.TurnResponse
	if err := c.do(http.MethodPost, "/v1/turns", req, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) getSession(sessionID string) (*session.Session, error) {
	var s session.Session
	if err := c.do(http.MethodGet, "/v1/sessions/"+url.PathEscape(sessionID), nil, http.StatusOK, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *apiClient) getHistory(sessionID string) ([]session.Entry, error) {
	var resp handlers.HistoryResponse
	if err := c.do(http.MethodGet, "/v1/sessions/"+url.PathEscape(sessionID)+"/history", nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *apiClient) clearHistory(sessionID string) error {
	return c.do(http.MethodDelete, "/v1/sessions/"+url.PathEscape(sessionID)+"/history", nil, http.StatusNoContent, nil)
}

func (c *apiClient) compress(sessionID string) (*handlers.CompressResponse, error) {
	var resp handlers.CompressResponse
	body := handlers.CompressRequest{Commit: true}
	if err := c.do(http.MethodPost, "/v1/sessions/"+url.PathEscape(sessionID)+"/compress", body, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
