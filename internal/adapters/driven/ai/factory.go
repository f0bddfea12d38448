// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"fmt"

	ollamaembed "github.com/custodia-labs/docchat/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/docchat/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/docchat/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/docchat/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/docchat/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// CreateEmbeddingService creates the embedding service selected by settings.
// Unconfigured settings are reported as domain.ErrConfiguration.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: embedding provider is not configured", domain.ErrConfiguration)
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider: %s", domain.ErrConfiguration, settings.Provider)
	}
}

// CreateLLMService creates the LLM service selected by settings.
// Unconfigured settings are reported as domain.ErrConfiguration.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: llm provider is not configured", domain.ErrConfiguration)
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		svc, err := openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	case domain.AIProviderAnthropic:
		svc, err := anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
		if err != nil {
			return nil, err
		}
		return svc, nil

	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider: %s", domain.ErrConfiguration, settings.Provider)
	}
}
