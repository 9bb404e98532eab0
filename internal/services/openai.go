package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/jwebster45206/story-arbiter/pkg/intent"
	"github.com/jwebster45206/story-arbiter/pkg/narrative"
)

const (
	narratorTemperature   = 0.8
	narratorMaxTokens     = 600
	classifierMaxTokens   = 60
	// A zero temperature is dropped from the request body, so the smallest
	// non-zero value stands in for deterministic classification.
	classifierTemperature = math.SmallestNonzeroFloat32
)

var ErrNoChoices = errors.New("no choices in completion response")

// classifierSystemPrompt asks the model for a single JSON object
var classifierSystemPrompt = `You classify a tabletop role-playing player's message by intent.
Answer with a JSON object only: {"intent": "<LABEL>", "confidence": <number between 0 and 1>}.
Labels:
- COMBAT: attacking, casting a spell at someone, fighting
- ACTION: using an item or feature, resting, taking, dropping or equipping gear
- ASK_RULE: asking how a game rule works
- QUESTION: asking the narrator about the world or a character
- RECALL: asking what happened earlier in the story
- GENERAL: anything else`

func newOpenAIClient(apiKey, baseURL string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(config)
}

// OpenAIClassifier classifies intent with an OpenAI-compatible chat model
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

// Ensure OpenAIClassifier implements intent.Classifier interface
var _ intent.Classifier = (*OpenAIClassifier)(nil)

func NewOpenAIClassifier(apiKey, baseURL, model string) *OpenAIClassifier {
	return &OpenAIClassifier{client: newOpenAIClient(apiKey, baseURL), model: model}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, text string) (intent.Classification, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: classifierSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
		Temperature:    classifierTemperature,
		MaxTokens:      classifierMaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return intent.Classification{}, fmt.Errorf("classifier completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return intent.Classification{}, ErrNoChoices
	}

	var cr classifyResponse
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Choices[0].Message.Content)), &cr); err != nil {
		return intent.Classification{}, fmt.Errorf("failed to parse classifier reply: %w", err)
	}
	return toClassification(cr)
}

// stripCodeFence removes a ```json ... ``` wrapper some models add
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// OpenAINarrator generates narration with an OpenAI-compatible chat model
type OpenAINarrator struct {
	client *openai.Client
	model  string
}

// Ensure OpenAINarrator implements Narrator interface
var _ Narrator = (*OpenAINarrator)(nil)

func NewOpenAINarrator(apiKey, baseURL, model string) *OpenAINarrator {
	return &OpenAINarrator{client: newOpenAIClient(apiKey, baseURL), model: model}
}

func (n *OpenAINarrator) Narrate(ctx context.Context, messages []narrative.Message) (string, error) {
	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := n.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       n.model,
		Messages:    chatMessages,
		Temperature: narratorTemperature,
		MaxTokens:   narratorMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("narrator completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
