package llm

import (
	"context"
	"sync"
	"time"
)

// MockClient implements Generator for testing purposes.
// It returns a fixed response or error, or delegates to a responder function,
// and tracks calls for verification. Safe for concurrent use.
type MockClient struct {
	mu sync.Mutex

	response  string
	err       error
	responder func(req Request) (string, error)
	delay     time.Duration
	available bool

	Calls []Request
}

// NewMockClient creates a new MockClient with default settings.
// By default, it is available and returns an empty string.
func NewMockClient() *MockClient {
	return &MockClient{
		available: true,
		Calls:     make([]Request, 0),
	}
}

// WithResponse configures the text returned by Generate.
func (m *MockClient) WithResponse(response string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithError configures the error returned by Generate.
func (m *MockClient) WithError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithResponder routes every call through fn, taking precedence over
// WithResponse and WithError.
func (m *MockClient) WithResponder(fn func(req Request) (string, error)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = fn
	return m
}

// WithDelay makes Generate wait before answering. The wait honors ctx.
func (m *MockClient) WithDelay(d time.Duration) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithAvailable configures whether Available() returns true or false.
func (m *MockClient) WithAvailable(available bool) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
	return m
}

// Generate implements Generator.Generate.
func (m *MockClient) Generate(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	response, err, responder, delay := m.response, m.err, m.responder, m.delay
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	if responder != nil {
		return responder(req)
	}
	if err != nil {
		return "", err
	}
	return response, nil
}

// Available implements Generator.Available.
func (m *MockClient) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// CallCount returns the number of times Generate was called.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Reset clears all call tracking and configured responses.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = ""
	m.err = nil
	m.responder = nil
	m.delay = 0
	m.available = true
	m.Calls = make([]Request, 0)
}
