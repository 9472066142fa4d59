package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/poiesic/graphrag/ai"
)

// ErrNoModel is returned by MockQueryClassifier when no behavior is injected,
// standing in for an unreachable model.
var ErrNoModel = errors.New("mock: no classification model configured")

// MockQueryClassifier is a test double for ai.QueryClassifier.
type MockQueryClassifier struct {
	// ClassifyQueryFunc is called by ClassifyQuery if set.
	// If nil, ClassifyQuery returns ErrNoModel.
	ClassifyQueryFunc func(ctx context.Context, query string) (*ai.QueryClassification, error)

	mu        sync.Mutex
	callCount int
}

// NewMockQueryClassifier creates a mock classifier that has no model.
func NewMockQueryClassifier() *MockQueryClassifier {
	return &MockQueryClassifier{}
}

// ClassifyQuery returns the injected answer or ErrNoModel.
func (m *MockQueryClassifier) ClassifyQuery(ctx context.Context, query string) (*ai.QueryClassification, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.ClassifyQueryFunc != nil {
		return m.ClassifyQueryFunc(ctx, query)
	}
	return nil, ErrNoModel
}

// CallCount returns the number of times ClassifyQuery was called.
func (m *MockQueryClassifier) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockQueryClassifier) Reset() {
	m.mu.Lock()
	m.callCount = 0
	m.mu.Unlock()
	m.ClassifyQueryFunc = nil
}
