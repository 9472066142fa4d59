package mock

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/poiesic/graphrag/ai"
)

// MockEntityExtractor is a test double for ai.EntityExtractor.
// It allows custom behavior injection via function fields.
type MockEntityExtractor struct {
	// ExtractGraphFunc is called by ExtractGraph if set.
	// If nil, capitalized words become CONCEPT entities and no
	// relationships are returned.
	ExtractGraphFunc func(ctx context.Context, text string) (*ai.Extraction, error)

	mu        sync.Mutex
	callCount int
}

// NewMockEntityExtractor creates a mock extractor with default behavior.
func NewMockEntityExtractor() *MockEntityExtractor {
	return &MockEntityExtractor{}
}

// ExtractGraph extracts simple mock entities from text.
func (m *MockEntityExtractor) ExtractGraph(ctx context.Context, text string) (*ai.Extraction, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.ExtractGraphFunc != nil {
		return m.ExtractGraphFunc(ctx, text)
	}

	extraction := &ai.Extraction{}
	seen := make(map[string]bool)
	for _, word := range strings.Fields(text) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word == "" || !unicode.IsUpper([]rune(word)[0]) {
			continue
		}
		key := strings.ToLower(word)
		if seen[key] {
			continue
		}
		seen[key] = true
		extraction.Entities = append(extraction.Entities, ai.ExtractedEntity{
			Name: word,
			Type: "CONCEPT",
		})
	}
	return extraction, nil
}

// CallCount returns the number of times ExtractGraph was called.
func (m *MockEntityExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockEntityExtractor) Reset() {
	m.mu.Lock()
	m.callCount = 0
	m.mu.Unlock()
	m.ExtractGraphFunc = nil
}
