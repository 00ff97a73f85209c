package mock

import (
	"context"
	"strings"

	"github.com/poiesic/ronbun/ai"
	"github.com/poiesic/ronbun/core"
)

// MockExtractor is a test double for ai.KnowledgeExtractor.
// It allows custom behavior injection via function fields.
type MockExtractor struct {
	// ExtractKnowledgeFunc is called by ExtractKnowledge if set.
	// If nil, uses default simple word extraction.
	ExtractKnowledgeFunc func(ctx context.Context, text string) ([]ai.KnowledgeItem, error)

	callCount int
}

// NewMockExtractor creates a mock knowledge extractor with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockExtractor().
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{}
}

// ExtractKnowledge extracts simple mock knowledge items from text.
// Default behavior: builds a method item from the first word and a result
// item from the second word, giving tests a predictable typed mix.
func (m *MockExtractor) ExtractKnowledge(ctx context.Context, text string) ([]ai.KnowledgeItem, error) {
	m.callCount++

	if m.ExtractKnowledgeFunc != nil {
		return m.ExtractKnowledgeFunc(ctx, text)
	}

	words := strings.Fields(strings.ToLower(text))
	items := make([]ai.KnowledgeItem, 0, 2)

	types := []core.ExtractionType{core.ExtractionMethod, core.ExtractionResult}
	for i, t := range types {
		if i >= len(words) {
			break
		}
		word := strings.Trim(words[i], ".,!?;:\"'()[]{}")
		if word == "" {
			continue
		}
		items = append(items, ai.KnowledgeItem{
			Type:   t,
			Name:   word,
			Detail: "mock item for " + word,
		})
	}

	return items, nil
}

// CallCount returns the number of times ExtractKnowledge was called.
func (m *MockExtractor) CallCount() int {
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockExtractor) Reset() {
	m.callCount = 0
	m.ExtractKnowledgeFunc = nil
}
