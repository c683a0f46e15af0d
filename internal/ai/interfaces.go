// Package ai defines the external model boundaries: text embedding and
// named-entity extraction. The core never reimplements either; it treats
// them as opaque functions behind these interfaces.
package ai

import (
	"context"

	"github.com/ledgersift/ledgersift/internal/model"
)

// Embedder generates fixed-dimensionality vector embeddings from text.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates embeddings for multiple texts in one batch call.
	// The returned slice is in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// EntityExtractor finds labeled spans in free text. Results are passed
// through to classification output untouched.
// Implementations must be safe for concurrent use.
type EntityExtractor interface {
	// ExtractEntities returns the entities found in text, in order of
	// appearance. An empty slice means no entities were found.
	ExtractEntities(ctx context.Context, text string) ([]model.Entity, error)
}

// Provider aggregates the AI services for convenient initialization and
// lifecycle management.
type Provider interface {
	Embedder() Embedder
	EntityExtractor() EntityExtractor
	Close() error
}
