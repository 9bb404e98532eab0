package services

import (
	"context"
	"sync"
)

// MockHealthChecker is a mock implementation of HealthChecker for testing
type MockHealthChecker struct {
	PingFunc func(ctx context.Context) error

	// Track calls for testing
	PingCalls int

	mu sync.Mutex
}

// Ensure MockHealthChecker implements HealthChecker interface
var _ HealthChecker = (*MockHealthChecker)(nil)

func NewMockHealthChecker() *MockHealthChecker {
	return &MockHealthChecker{}
}

// SetPingSuccess makes Ping succeed
func (m *MockHealthChecker) SetPingSuccess() {
	m.PingFunc = func(ctx context.Context) error { return nil }
}

// SetPingError makes Ping fail with err
func (m *MockHealthChecker) SetPingError(err error) {
	m.PingFunc = func(ctx context.Context) error { return err }
}

// Ping mocks a health check
func (m *MockHealthChecker) Ping(ctx context.Context) error {
	m.mu.Lock()
	m.PingCalls++
	m.mu.Unlock()

	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}

	// Default behavior - success
	return nil
}
