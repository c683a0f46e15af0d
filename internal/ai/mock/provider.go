package mock

import (
	"github.com/ledgersift/ledgersift/internal/ai"
)

// Provider bundles the mock embedder and extractor behind the ai.Provider
// interface.
type Provider struct {
	Emb *Embedder
	Ext *EntityExtractor
}

// NewProvider creates a provider with default deterministic doubles.
func NewProvider() *Provider {
	return &Provider{
		Emb: NewEmbedder(),
		Ext: NewEntityExtractor(),
	}
}

// Embedder returns the mock embedder.
func (p *Provider) Embedder() ai.Embedder {
	return p.Emb
}

// EntityExtractor returns the mock extractor.
func (p *Provider) EntityExtractor() ai.EntityExtractor {
	return p.Ext
}

// Close is a no-op.
func (p *Provider) Close() error {
	return nil
}
