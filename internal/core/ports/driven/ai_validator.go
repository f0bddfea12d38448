package driven

import "github.com/custodia-labs/docchat/internal/core/domain"

// AIConfigValidator checks provider settings by contacting the provider.
type AIConfigValidator interface {
	// ValidateEmbedding pings the configured embedding provider.
	// Returns nil when embeddings are not configured.
	ValidateEmbedding(config *domain.EmbeddingSettings) error

	// ValidateLLM pings the configured LLM provider.
	// Returns nil when the LLM is not configured.
	ValidateLLM(config *domain.LLMSettings) error
}
