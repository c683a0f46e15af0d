package openai

import (
	"github.com/ledgersift/ledgersift/internal/ai"
)

// Provider bundles the OpenAI-backed embedder and entity extractor.
type Provider struct {
	embedder  *Embedder
	extractor *EntityExtractor
}

// NewProvider creates both services from one configuration.
func NewProvider(config *ai.Config) (ai.Provider, error) {
	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	extractor, err := newEntityExtractor(config)
	if err != nil {
		return nil, err
	}

	return &Provider{embedder: embedder, extractor: extractor}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// EntityExtractor returns the entity extraction service.
func (p *Provider) EntityExtractor() ai.EntityExtractor {
	return p.extractor
}

// Close releases resources held by the provider.
func (p *Provider) Close() error {
	return nil
}
