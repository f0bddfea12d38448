package driven

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// LLMService generates answers from prompts.
//
// Implementations:
//   - OpenAI (gpt-4o-mini and compatible endpoints)
//   - Anthropic (Claude)
//   - Ollama (local models)
type LLMService interface {
	// Generate produces a completion for a single prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (*Completion, error)

	// Chat produces the next assistant message for a conversation.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (*Completion, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Completion is the text a model produced and the tokens it took.
type Completion struct {
	Text  string
	Usage domain.TokenUsage
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of RoleSystem, RoleUser or RoleAssistant.
	Role string

	// Content is the message text.
	Content string
}

// ChatOptions configures chat behaviour.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}
