package intent

import (
	"context"
	"sync"
)

// MockClassifier is a mock implementation of Classifier for testing
type MockClassifier struct {
	ClassifyFunc func(ctx context.Context, text string) (Classification, error)

	mu    sync.Mutex
	Calls []string
}

// Ensure MockClassifier implements Classifier interface
var _ Classifier = (*MockClassifier)(nil)

// NewMockClassifier returns a classifier that always answers with the given label and confidence
func NewMockClassifier(i Intent, confidence float64) *MockClassifier {
	return &MockClassifier{
		ClassifyFunc: func(ctx context.Context, text string) (Classification, error) {
			return Classification{Intent: i, Confidence: confidence}, nil
		},
	}
}

// Classify mocks classification
func (m *MockClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, text)
	m.mu.Unlock()

	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, text)
	}

	// Default behavior - confident GENERAL
	return Classification{Intent: General, Confidence: 1}, nil
}
