package llm

import (
	"context"
	"sync"
)

// Mock is a scripted Client for tests and local runs without a model
// server. Responses are returned in order; the last one repeats.
type Mock struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Calls     []Request
}

func (m *Mock) Complete(_ context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	resp := m.Responses[0]
	if len(m.Responses) > 1 {
		m.Responses = m.Responses[1:]
	}
	return resp, nil
}
