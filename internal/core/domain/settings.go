package domain

import (
	"fmt"
	"strings"
)

const unknownDescription = "Unknown"

// SearchMode defines how retrieval combines different methods.
type SearchMode string

// Available search modes.
const (
	// SearchModeVector ranks chunks by embedding similarity.
	SearchModeVector SearchMode = "vector"

	// SearchModeKeyword ranks chunks by BM25 keyword relevance.
	SearchModeKeyword SearchMode = "keyword"

	// SearchModeHybrid fuses vector and keyword rankings.
	SearchModeHybrid SearchMode = "hybrid"
)

// IsValid returns true if the search mode is recognised.
func (m SearchMode) IsValid() bool {
	switch m {
	case SearchModeVector, SearchModeKeyword, SearchModeHybrid:
		return true
	default:
		return false
	}
}

// RequiresEmbedding returns true if this mode needs an embedding provider.
func (m SearchMode) RequiresEmbedding() bool {
	return m == SearchModeVector || m == SearchModeHybrid
}

// String returns the string representation.
func (m SearchMode) String() string {
	return string(m)
}

// Description returns a human-readable description of the mode.
func (m SearchMode) Description() string {
	switch m {
	case SearchModeVector:
		return "Vector (semantic similarity)"
	case SearchModeKeyword:
		return "Keyword (BM25)"
	case SearchModeHybrid:
		return "Hybrid (keyword + semantic)"
	default:
		return unknownDescription
	}
}

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// SessionBackend selects where conversation sessions are kept.
type SessionBackend string

// Available session backends.
const (
	// SessionBackendMemory keeps sessions for the process lifetime.
	SessionBackendMemory SessionBackend = "memory"

	// SessionBackendRedis keeps sessions in Redis.
	SessionBackendRedis SessionBackend = "redis"
)

// IsValid returns true if the backend is recognised.
func (b SessionBackend) IsValid() bool {
	return b == SessionBackendMemory || b == SessionBackendRedis
}

// CrawlSettings holds crawler configuration.
type CrawlSettings struct {
	Seeds             []string
	Domains           []string
	Prefixes          []string
	Workers           int
	MaxPages          int
	RequestsPerSecond float64
	Burst             int
	TimeoutSeconds    int
	UserAgent         string
	MaxBodyBytes      int64

	// ControlTokens are replaced with a single space in extracted text.
	ControlTokens []string
}

// ChunkSettings holds chunker configuration. Sizes are in characters.
type ChunkSettings struct {
	Size    int
	Overlap int
}

// Validate reports ErrConfiguration for unusable window parameters.
func (c ChunkSettings) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrConfiguration, c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", ErrConfiguration, c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("%w: chunk overlap %d must be less than chunk size %d",
			ErrConfiguration, c.Overlap, c.Size)
	}
	return nil
}

// StorageSettings holds corpus and index locations.
type StorageSettings struct {
	CorpusPath string
	IndexPath  string
}

// RetrievalSettings holds answer-time retrieval configuration.
type RetrievalSettings struct {
	// K is the number of chunks retrieved per question.
	K int

	// Mode is the default search mode.
	Mode SearchMode

	// MaxContextChars bounds the retrieved text folded into a prompt.
	// Zero is unbounded.
	MaxContextChars int
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint override.
	BaseURL string

	// APIKey is the API key (for OpenAI). Read from the environment.
	APIKey string

	// MaxRetries is how often a rate-limited call is retried.
	MaxRetries int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint override.
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic). Read from the environment.
	APIKey string

	// Temperature is the sampling temperature.
	Temperature float64

	// MaxTokens caps the generated answer length.
	MaxTokens int
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// MemorySettings bounds how much conversation history reaches the prompt.
type MemorySettings struct {
	// IncludeHistory folds prior turns into every prompt.
	IncludeHistory bool

	// MaxTurns limits the folded history to the most recent turns.
	// Zero keeps every turn.
	MaxTurns int

	// CondenseQuestion rewrites a follow-up question and the history into a
	// standalone question before retrieval.
	CondenseQuestion bool
}

// SessionSettings holds session store configuration.
type SessionSettings struct {
	Backend    SessionBackend
	RedisAddr  string
	RedisDB    int
	TTLSeconds int
}

// IngestSettings holds ingestion configuration.
type IngestSettings struct {
	// Concurrency bounds in-flight embedding calls.
	Concurrency int

	// BatchSize is the number of chunks sent in one embedding call.
	BatchSize int
}

// Settings holds all application settings.
type Settings struct {
	Crawl     CrawlSettings
	Chunk     ChunkSettings
	Storage   StorageSettings
	Retrieval RetrievalSettings
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Memory    MemorySettings
	Session   SessionSettings
	Ingest    IngestSettings
}

// DefaultSettings returns settings with sensible defaults.
// The crawl defaults target the diffusers documentation.
func DefaultSettings() Settings {
	return Settings{
		Crawl: CrawlSettings{
			Seeds:             []string{"https://huggingface.co/docs/diffusers/index"},
			Domains:           []string{"huggingface.co"},
			Prefixes:          []string{"/docs/diffusers"},
			Workers:           8,
			RequestsPerSecond: 4,
			Burst:             4,
			TimeoutSeconds:    30,
			UserAgent:         "docchat/1.0 (+https://github.com/custodia-labs/docchat)",
			MaxBodyBytes:      10 << 20,
			ControlTokens:     []string{"<|endoftext|>"},
		},
		Chunk: ChunkSettings{
			Size:    1024,
			Overlap: 128,
		},
		Storage: StorageSettings{
			CorpusPath: "corpus",
			IndexPath:  "db",
		},
		Retrieval: RetrievalSettings{
			K:               4,
			Mode:            SearchModeVector,
			MaxContextChars: 8000,
		},
		Embedding: EmbeddingSettings{
			Provider: AIProviderOpenAI,
			Model:    DefaultEmbeddingModels()[AIProviderOpenAI],
		},
		LLM: LLMSettings{
			Provider:    AIProviderOpenAI,
			Model:       DefaultLLMModels()[AIProviderOpenAI],
			Temperature: 0,
			MaxTokens:   1024,
		},
		Memory: MemorySettings{
			IncludeHistory: true,
			MaxTurns:       20,
		},
		Session: SessionSettings{
			Backend:   SessionBackendMemory,
			RedisAddr: "localhost:6379",
		},
		Ingest: IngestSettings{
			Concurrency: 4,
			BatchSize:   16,
		},
	}
}

// Validate checks settings that would otherwise fail deep inside a run.
func (s Settings) Validate() error {
	var problems []string

	if err := s.Chunk.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if s.Crawl.Workers <= 0 {
		problems = append(problems, "crawl workers must be positive")
	}
	if s.Crawl.RequestsPerSecond < 0 {
		problems = append(problems, "crawl requests per second must not be negative")
	}
	if s.Retrieval.K < 1 {
		problems = append(problems, "retrieval k must be at least 1")
	}
	if !s.Retrieval.Mode.IsValid() {
		problems = append(problems, fmt.Sprintf("unknown retrieval mode %q", s.Retrieval.Mode))
	}
	if s.Retrieval.MaxContextChars < 0 {
		problems = append(problems, "retrieval max context chars must not be negative")
	}
	if s.Memory.MaxTurns < 0 {
		problems = append(problems, "memory max turns must not be negative")
	}
	if !s.Session.Backend.IsValid() {
		problems = append(problems, fmt.Sprintf("unknown session backend %q", s.Session.Backend))
	}
	if s.Ingest.Concurrency <= 0 {
		problems = append(problems, "ingest concurrency must be positive")
	}
	if s.Ingest.BatchSize <= 0 {
		problems = append(problems, "ingest batch size must be positive")
	}
	if s.LLM.MaxTokens < 0 {
		problems = append(problems, "llm max tokens must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// AllSearchModes returns all available search modes.
func AllSearchModes() []SearchMode {
	return []SearchMode{
		SearchModeVector,
		SearchModeKeyword,
		SearchModeHybrid,
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
