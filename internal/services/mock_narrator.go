package services

import (
	"context"
	"sync"

	"github.com/jwebster45206/story-arbiter/pkg/narrative"
)

// MockNarrator is a mock implementation of Narrator for testing
type MockNarrator struct {
	NarrateFunc func(ctx context.Context, messages []narrative.Message) (string, error)

	// Track calls for testing
	NarrateCalls [][]narrative.Message

	mu sync.Mutex // protects NarrateCalls
}

// Ensure MockNarrator implements Narrator interface
var _ Narrator = (*MockNarrator)(nil)

func NewMockNarrator() *MockNarrator {
	return &MockNarrator{NarrateCalls: make([][]narrative.Message, 0)}
}

// Narrate mocks narration
func (m *MockNarrator) Narrate(ctx context.Context, messages []narrative.Message) (string, error) {
	m.mu.Lock()
	m.NarrateCalls = append(m.NarrateCalls, messages)
	m.mu.Unlock()

	if m.NarrateFunc != nil {
		return m.NarrateFunc(ctx, messages)
	}

	// Default behavior - a fixed line of narration
	return "The story continues.", nil
}

// CallCount returns how many times Narrate was called
func (m *MockNarrator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.NarrateCalls)
}
