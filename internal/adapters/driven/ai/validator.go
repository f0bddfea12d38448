package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// DefaultPingTimeout bounds a single provider check.
const DefaultPingTimeout = 5 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
	Close() error
}

// ConfigValidator checks provider settings by building the service and
// pinging it. Unconfigured settings pass, since both providers are
// optional until a command needs them.
type ConfigValidator struct {
	timeout time.Duration
}

// NewConfigValidator creates a validator using DefaultPingTimeout.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{timeout: DefaultPingTimeout}
}

// WithTimeout returns a copy of v that waits at most d per check.
func (v *ConfigValidator) WithTimeout(d time.Duration) *ConfigValidator {
	return &ConfigValidator{timeout: d}
}

// ValidateEmbedding pings the configured embedding provider.
func (v *ConfigValidator) ValidateEmbedding(settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	return v.ping(svc, domain.ErrEmbeddingService)
}

// ValidateLLM pings the configured LLM provider.
func (v *ConfigValidator) ValidateLLM(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}
	svc, err := CreateLLMService(settings)
	if err != nil {
		return err
	}
	return v.ping(svc, domain.ErrGenerationService)
}

func (v *ConfigValidator) ping(svc pinger, kind error) error {
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()
	if err := svc.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return nil
}
