package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/ledgersift/ledgersift/internal/model"
)

// EntityExtractor is a test double for ai.EntityExtractor. The default
// behavior labels capitalized tokens as ORG, which is enough structure for
// pass-through assertions.
type EntityExtractor struct {
	// ExtractEntitiesFunc is called by ExtractEntities if set.
	ExtractEntitiesFunc func(ctx context.Context, text string) ([]model.Entity, error)

	mu        sync.Mutex
	callCount int
}

// NewEntityExtractor creates a mock extractor with default behavior.
func NewEntityExtractor() *EntityExtractor {
	return &EntityExtractor{}
}

// ExtractEntities returns entities for the text.
func (m *EntityExtractor) ExtractEntities(ctx context.Context, text string) ([]model.Entity, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.ExtractEntitiesFunc != nil {
		return m.ExtractEntitiesFunc(ctx, text)
	}

	entities := []model.Entity{}
	for _, token := range strings.Fields(text) {
		if token != strings.ToLower(token) {
			entities = append(entities, model.Entity{Text: token, Label: "ORG"})
		}
	}
	return entities, nil
}

// CallCount returns the number of times ExtractEntities was called.
func (m *EntityExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
