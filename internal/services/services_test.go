package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-arbiter/internal/config"
	"github.com/jwebster45206/story-arbiter/pkg/intent"
	"github.com/jwebster45206/story-arbiter/pkg/narrative"
)

func TestHTTPClassifier_Classify(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantIntent intent.Intent
		wantConf   float64
		wantErr    bool
	}{
		{"known label", http.StatusOK, `{"intent":"combat","confidence":0.95}`, intent.Combat, 0.95, false},
		{"dashed label", http.StatusOK, `{"intent":"ask-rule","confidence":0.9}`, intent.AskRule, 0.9, false},
		{"unknown label kept", http.StatusOK, `{"intent":"dance","confidence":0.9}`, intent.Intent("DANCE"), 0.9, false},
		{"confidence out of range", http.StatusOK, `{"intent":"combat","confidence":1.5}`, "", 0, true},
		{"server error", http.StatusInternalServerError, `boom`, "", 0, true},
		{"service reported error", http.StatusOK, `{"error":"model not loaded"}`, "", 0, true},
		{"malformed body", http.StatusOK, `{"intent":`, "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotText string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				var req classifyRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				gotText = req.Text
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewHTTPClassifier(server.URL)
			got, err := c.Classify(context.Background(), "I swing my sword")
			assert.Equal(t, "I swing my sword", gotText)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIntent, got.Intent)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
		})
	}
}

func TestHTTPClassifier_ConfidenceSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"intent":"general","confidence":-0.1}`))
	}))
	defer server.Close()

	_, err := NewHTTPClassifier(server.URL).Classify(context.Background(), "hello")
	assert.True(t, errors.Is(err, ErrInvalidConfidence))
}

// completionServer answers chat completions with content and records the request
func completionServer(t *testing.T, content string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if captured != nil {
			_ = json.NewDecoder(r.Body).Decode(captured)
		}
		w.Header().Set("Content-Type", "application/json")
		contentJSON, _ := json.Marshal(content)
		_, _ = fmt.Fprintf(w, `{"id":"chatcmpl-1","object":"chat.completion","model":"test-model",
			"choices":[{"index":0,"message":{"role":"assistant","content":%s},"finish_reason":"stop"}]}`, contentJSON)
	}))
}

func TestOpenAIClassifier_Classify(t *testing.T) {
	var captured map[string]any
	server := completionServer(t, "```json\n{\"intent\": \"RECALL\", \"confidence\": 0.82}\n```", &captured)
	defer server.Close()

	c := NewOpenAIClassifier("test-key", server.URL, "test-model")
	got, err := c.Classify(context.Background(), "What did the innkeeper say?")
	require.NoError(t, err)
	assert.Equal(t, intent.Recall, got.Intent)
	assert.InDelta(t, 0.82, got.Confidence, 1e-9)

	assert.Equal(t, "test-model", captured["model"])
	messages, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "What did the innkeeper say?", messages[1].(map[string]any)["content"])

	temperature, ok := captured["temperature"].(float64)
	require.True(t, ok, "temperature is sent explicitly")
	assert.Greater(t, temperature, 0.0)
	assert.InDelta(t, 0, temperature, 1e-6)
}

func TestOpenAIClassifier_BadReply(t *testing.T) {
	server := completionServer(t, "I think it is combat", nil)
	defer server.Close()

	_, err := NewOpenAIClassifier("test-key", server.URL, "test-model").Classify(context.Background(), "attack")
	assert.Error(t, err)
}

func TestOpenAINarrator_Narrate(t *testing.T) {
	var captured map[string]any
	server := completionServer(t, "  The goblin staggers back.  ", &captured)
	defer server.Close()

	n := NewOpenAINarrator("test-key", server.URL, "test-model")
	text, err := n.Narrate(context.Background(), []narrative.Message{
		{Role: narrative.RoleSystem, Content: "You are the narrator."},
		{Role: narrative.RoleUser, Content: "I attack the goblin"},
	})
	require.NoError(t, err)
	assert.Equal(t, "The goblin staggers back.", text)

	messages, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestOpenAINarrator_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
	}))
	defer server.Close()

	_, err := NewOpenAINarrator("test-key", server.URL, "test-model").Narrate(context.Background(), nil)
	assert.Error(t, err)
}

func TestMockNarrator(t *testing.T) {
	m := NewMockNarrator()
	text, err := m.Narrate(context.Background(), []narrative.Message{{Role: narrative.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "The story continues.", text)

	m.NarrateFunc = func(ctx context.Context, messages []narrative.Message) (string, error) {
		return "", errors.New("offline")
	}
	_, err = m.Narrate(context.Background(), nil)
	assert.EqualError(t, err, "offline")
	assert.Equal(t, 2, m.CallCount())
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`  {"a":1} `))
}

func TestNewClassifier(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		want    any
		wantErr bool
	}{
		{"keyword", config.Config{ClassifierProvider: config.ClassifierKeyword}, &intent.KeywordClassifier{}, false},
		{"http", config.Config{ClassifierProvider: config.ClassifierHTTP, ClassifierURL: "http://classifier"}, &HTTPClassifier{}, false},
		{"openai", config.Config{ClassifierProvider: config.ClassifierOpenAI, OpenAIAPIKey: "k"}, &OpenAIClassifier{}, false},
		{"unknown", config.Config{ClassifierProvider: "bert"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClassifier(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, c)
		})
	}
}
