package ai

import (
	"fmt"
	"strings"

	"github.com/ledgersift/ledgersift/internal/common"
)

// Config holds configuration for the AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for a local OpenAI-compatible server.
	EmbeddingHost string

	// ExtractorHost is the base URL for the entity-extraction service API.
	ExtractorHost string

	// EmbeddingModel is the model identifier used for text embeddings.
	EmbeddingModel string

	// ExtractorModel is the chat model identifier used for entity extraction.
	ExtractorModel string

	// APIToken is the bearer token for the services. "none" works for local
	// services that do not require authentication.
	APIToken string
}

// DefaultConfig returns a Config with defaults for local OpenAI-compatible services.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:  defaultHost,
		ExtractorHost:  defaultHost,
		EmbeddingModel: "all-mpnet-base-v2",
		ExtractorModel: "qwen2.5:3b",
		APIToken:       "none",
	}
}

// Normalize ensures hosts carry the /v1 suffix required by most
// OpenAI-compatible APIs (Ollama, LocalAI, vLLM).
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.ExtractorHost = normalizeHost(c.ExtractorHost)
	if c.APIToken == "" {
		c.APIToken = "none"
	}
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is complete, normalizing it first.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return fmt.Errorf("%w: ai embedding host", common.ErrMissingConfig)
	}
	if c.ExtractorHost == "" {
		return fmt.Errorf("%w: ai extractor host", common.ErrMissingConfig)
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("%w: ai embedding model", common.ErrMissingConfig)
	}
	if c.ExtractorModel == "" {
		return fmt.Errorf("%w: ai extractor model", common.ErrMissingConfig)
	}
	return nil
}
