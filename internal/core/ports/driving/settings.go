package driving

import "github.com/custodia-labs/docchat/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get loads the current settings, with defaults applied.
	Get() (*domain.Settings, error)

	// Set parses and stores a single setting by dot-notation key.
	Set(key, value string) error

	// Keys returns every recognised setting key, sorted.
	Keys() []string

	// Validate checks the current settings.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.Settings

	// ValidateEmbeddingConfig pings the configured embedding provider.
	ValidateEmbeddingConfig() error

	// ValidateLLMConfig pings the configured LLM provider.
	ValidateLLMConfig() error
}
