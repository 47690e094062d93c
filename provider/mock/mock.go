// Package mock provides a scripted provider for testing.
package mock

import (
	"context"
	"sync"

	"github.com/GoCodeAlone/showroom/provider"
)

const defaultResponse = "Thanks again for stopping by the showroom!"

// MockProvider implements provider.Provider for testing. It returns scripted
// responses, cycling through the queue, and records every request it sees.
// It is safe for concurrent use.
type MockProvider struct {
	mu        sync.Mutex
	responses []string
	idx       int
	err       error
	calls     [][]provider.Message
	opts      []provider.Options
}

// New creates a MockProvider that cycles through the given responses.
func New(responses ...string) *MockProvider {
	return &MockProvider{responses: responses}
}

// Failing creates a MockProvider whose every Chat call returns err.
func Failing(err error) *MockProvider {
	return &MockProvider{err: err}
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string { return "mock" }

// Chat returns the next scripted response, cycling through the queue.
func (m *MockProvider) Chat(ctx context.Context, messages []provider.Message, opts provider.Options) (*provider.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, append([]provider.Message(nil), messages...))
	m.opts = append(m.opts, opts)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return &provider.Response{Content: defaultResponse}, nil
	}
	resp := m.responses[m.idx%len(m.responses)]
	m.idx++
	return &provider.Response{Content: resp}, nil
}

// Calls returns the messages of every Chat call so far.
func (m *MockProvider) Calls() [][]provider.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]provider.Message(nil), m.calls...)
}

// LastOptions returns the options of the most recent Chat call.
func (m *MockProvider) LastOptions() provider.Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.opts) == 0 {
		return provider.Options{}
	}
	return m.opts[len(m.opts)-1]
}
