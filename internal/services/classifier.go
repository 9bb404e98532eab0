package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/story-arbiter/internal/config"
	"github.com/jwebster45206/story-arbiter/pkg/intent"
)

const defaultClassifierTimeout = 10 * time.Second

var ErrInvalidConfidence = errors.New("classifier confidence out of range")

// NewClassifier builds the classifier named by cfg.ClassifierProvider
func NewClassifier(cfg *config.Config) (intent.Classifier, error) {
	switch cfg.ClassifierProvider {
	case config.ClassifierKeyword, "":
		return intent.NewKeywordClassifier(), nil
	case config.ClassifierHTTP:
		return NewHTTPClassifier(cfg.ClassifierURL), nil
	case config.ClassifierOpenAI:
		return NewOpenAIClassifier(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ClassifierModel), nil
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.ClassifierProvider)
	}
}

// HTTPClassifier posts player text to an external intent model service
type HTTPClassifier struct {
	url        string
	httpClient *http.Client
}

// Ensure HTTPClassifier implements intent.Classifier interface
var _ intent.Classifier = (*HTTPClassifier)(nil)

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

// NewHTTPClassifier creates a classifier for the service at url
func NewHTTPClassifier(url string) *HTTPClassifier {
	return &HTTPClassifier{
		url: url,
		httpClient: &http.Client{
			Timeout: defaultClassifierTimeout,
		},
	}
}

// Classify sends {"text": ...} and expects {"intent": ..., "confidence": ...} back
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (intent.Classification, error) {
	reqBody, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return intent.Classification{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(reqBody))
	if err != nil {
		return intent.Classification{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return intent.Classification{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return intent.Classification{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return intent.Classification{}, fmt.Errorf("classifier request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var cr classifyResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return intent.Classification{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if cr.Error != "" {
		return intent.Classification{}, fmt.Errorf("classifier error: %s", cr.Error)
	}
	return toClassification(cr)
}

// toClassification keeps unrecognized labels as-is so the router can report them
func toClassification(cr classifyResponse) (intent.Classification, error) {
	if cr.Confidence < 0 || cr.Confidence > 1 {
		return intent.Classification{}, fmt.Errorf("%w: %v", ErrInvalidConfidence, cr.Confidence)
	}
	label, ok := intent.Parse(cr.Intent)
	if !ok {
		label = intent.Intent(strings.ToUpper(strings.TrimSpace(cr.Intent)))
	}
	return intent.Classification{Intent: label, Confidence: cr.Confidence}, nil
}
