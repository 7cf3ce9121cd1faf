package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockAnalyzer answers locally without a model. It backs development setups and tests.
type MockAnalyzer struct {
	mu       sync.Mutex
	err      error
	requests []Request
}

func NewMockAnalyzer() *MockAnalyzer { return &MockAnalyzer{} }

// FailWith makes every later call return err. Nil restores normal answers.
func (m *MockAnalyzer) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Requests returns the requests seen so far.
func (m *MockAnalyzer) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockAnalyzer) Analyze(ctx context.Context, req Request) (Result, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	err := m.err
	m.mu.Unlock()

	if err != nil {
		return Result{}, err
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s findings", req.Template.Name)
	if len(req.Attachments) > 0 {
		names := make([]string, len(req.Attachments))
		shots := 0
		for i, a := range req.Attachments {
			names[i] = a.Name
			shots += len(a.Screenshots)
		}
		fmt.Fprintf(&b, " for %s (%d screenshots)", strings.Join(names, ", "), shots)
	}
	b.WriteString(":\n1. Primary call to action lacks contrast against the background.\n")
	b.WriteString("2. Navigation labels are inconsistent between viewports.\n")
	if req.Text != "" {
		fmt.Fprintf(&b, "\nRequest: %s", req.Text)
	}
	return Result{Text: b.String(), Model: "mock"}, nil
}
