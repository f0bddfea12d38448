package services

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyChunkSize         = "chunk.size"
	keyChunkOverlap      = "chunk.overlap"
	keyCrawlSeeds        = "crawl.seeds"
	keyCrawlDomains      = "crawl.domains"
	keyCrawlPrefixes     = "crawl.prefixes"
	keyCrawlWorkers      = "crawl.workers"
	keyCrawlMaxPages     = "crawl.max_pages"
	keyCrawlRPS          = "crawl.requests_per_second"
	keyCrawlBurst        = "crawl.burst"
	keyCrawlTimeout      = "crawl.timeout_seconds"
	keyCrawlUserAgent    = "crawl.user_agent"
	keyCrawlMaxBody      = "crawl.max_body_bytes"
	keyCrawlControl      = "crawl.control_tokens"
	keyCorpusPath        = "corpus.path"
	keyIndexPath         = "index.path"
	keyRetrievalK        = "retrieval.k"
	keyRetrievalMode     = "retrieval.mode"
	keyRetrievalMaxChars = "retrieval.max_context_chars"
	keyLLMProvider       = "llm.provider"
	keyLLMModel          = "llm.model"
	keyLLMBaseURL        = "llm.base_url"
	keyLLMAPIKey         = "llm.api_key"
	keyLLMTemperature    = "llm.temperature"
	keyLLMMaxTokens      = "llm.max_tokens"
	keyEmbedProvider     = "embedding.provider"
	keyEmbedModel        = "embedding.model"
	keyEmbedBaseURL      = "embedding.base_url"
	keyEmbedAPIKey       = "embedding.api_key"
	keyEmbedMaxRetries   = "embedding.max_retries"
	keyMemoryInclude     = "memory.include_history"
	keyMemoryMaxTurns    = "memory.max_turns"
	keyMemoryCondense    = "memory.condense_question"
	keySessionBackend    = "session.backend"
	keySessionRedisAddr  = "session.redis_addr"
	keySessionRedisDB    = "session.redis_db"
	keySessionTTL        = "session.ttl_seconds"
	keyIngestConcurrency = "ingest.concurrency"
	keyIngestBatchSize   = "ingest.batch_size"
)

// Environment variables holding provider API keys.
//
//nolint:gosec // G101: These are variable names, not credentials.
const (
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindBool
	kindList
)

// settingKinds lists every key Set accepts and how its value is parsed.
var settingKinds = map[string]valueKind{
	keyChunkSize:         kindInt,
	keyChunkOverlap:      kindInt,
	keyCrawlSeeds:        kindList,
	keyCrawlDomains:      kindList,
	keyCrawlPrefixes:     kindList,
	keyCrawlWorkers:      kindInt,
	keyCrawlMaxPages:     kindInt,
	keyCrawlRPS:          kindFloat,
	keyCrawlBurst:        kindInt,
	keyCrawlTimeout:      kindInt,
	keyCrawlUserAgent:    kindString,
	keyCrawlMaxBody:      kindInt,
	keyCrawlControl:      kindList,
	keyCorpusPath:        kindString,
	keyIndexPath:         kindString,
	keyRetrievalK:        kindInt,
	keyRetrievalMode:     kindString,
	keyRetrievalMaxChars: kindInt,
	keyLLMProvider:       kindString,
	keyLLMModel:          kindString,
	keyLLMBaseURL:        kindString,
	keyLLMAPIKey:         kindString,
	keyLLMTemperature:    kindFloat,
	keyLLMMaxTokens:      kindInt,
	keyEmbedProvider:     kindString,
	keyEmbedModel:        kindString,
	keyEmbedBaseURL:      kindString,
	keyEmbedAPIKey:       kindString,
	keyEmbedMaxRetries:   kindInt,
	keyMemoryInclude:     kindBool,
	keyMemoryMaxTurns:    kindInt,
	keyMemoryCondense:    kindBool,
	keySessionBackend:    kindString,
	keySessionRedisAddr:  kindString,
	keySessionRedisDB:    kindInt,
	keySessionTTL:        kindInt,
	keyIngestConcurrency: kindInt,
	keyIngestBatchSize:   kindInt,
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings. Missing keys take their
// default; unparseable enum values fall back to the default too.
func (s *SettingsService) Get() (*domain.Settings, error) {
	d := domain.DefaultSettings()

	settings := &domain.Settings{
		Crawl: domain.CrawlSettings{
			Seeds:             s.getList(keyCrawlSeeds, d.Crawl.Seeds),
			Domains:           s.getList(keyCrawlDomains, d.Crawl.Domains),
			Prefixes:          s.getList(keyCrawlPrefixes, d.Crawl.Prefixes),
			Workers:           s.getInt(keyCrawlWorkers, d.Crawl.Workers),
			MaxPages:          s.getInt(keyCrawlMaxPages, d.Crawl.MaxPages),
			RequestsPerSecond: s.getFloat(keyCrawlRPS, d.Crawl.RequestsPerSecond),
			Burst:             s.getInt(keyCrawlBurst, d.Crawl.Burst),
			TimeoutSeconds:    s.getInt(keyCrawlTimeout, d.Crawl.TimeoutSeconds),
			UserAgent:         s.getString(keyCrawlUserAgent, d.Crawl.UserAgent),
			MaxBodyBytes:      int64(s.getInt(keyCrawlMaxBody, int(d.Crawl.MaxBodyBytes))),
			ControlTokens:     s.getList(keyCrawlControl, d.Crawl.ControlTokens),
		},
		Chunk: domain.ChunkSettings{
			Size:    s.getInt(keyChunkSize, d.Chunk.Size),
			Overlap: s.getInt(keyChunkOverlap, d.Chunk.Overlap),
		},
		Storage: domain.StorageSettings{
			CorpusPath: s.getString(keyCorpusPath, d.Storage.CorpusPath),
			IndexPath:  s.getString(keyIndexPath, d.Storage.IndexPath),
		},
		Retrieval: domain.RetrievalSettings{
			K:               s.getInt(keyRetrievalK, d.Retrieval.K),
			Mode:            s.getSearchMode(d.Retrieval.Mode),
			MaxContextChars: s.getInt(keyRetrievalMaxChars, d.Retrieval.MaxContextChars),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:   s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			BaseURL:    s.configStore.GetString(keyEmbedBaseURL), // empty is valid for cloud providers
			MaxRetries: s.getInt(keyEmbedMaxRetries, d.Embedding.MaxRetries),
		},
		LLM: domain.LLMSettings{
			Provider:    s.getProvider(keyLLMProvider, d.LLM.Provider),
			BaseURL:     s.configStore.GetString(keyLLMBaseURL),
			Temperature: s.getFloat(keyLLMTemperature, d.LLM.Temperature),
			MaxTokens:   s.getInt(keyLLMMaxTokens, d.LLM.MaxTokens),
		},
		Memory: domain.MemorySettings{
			IncludeHistory:   s.getBool(keyMemoryInclude, d.Memory.IncludeHistory),
			MaxTurns:         s.getInt(keyMemoryMaxTurns, d.Memory.MaxTurns),
			CondenseQuestion: s.getBool(keyMemoryCondense, d.Memory.CondenseQuestion),
		},
		Session: domain.SessionSettings{
			Backend:    s.getSessionBackend(d.Session.Backend),
			RedisAddr:  s.getString(keySessionRedisAddr, d.Session.RedisAddr),
			RedisDB:    s.getInt(keySessionRedisDB, d.Session.RedisDB),
			TTLSeconds: s.getInt(keySessionTTL, d.Session.TTLSeconds),
		},
		Ingest: domain.IngestSettings{
			Concurrency: s.getInt(keyIngestConcurrency, d.Ingest.Concurrency),
			BatchSize:   s.getInt(keyIngestBatchSize, d.Ingest.BatchSize),
		},
	}

	// A model only makes sense for the provider it was chosen for, so an
	// unset model follows the provider's default.
	settings.Embedding.Model = s.getString(keyEmbedModel,
		domain.DefaultEmbeddingModels()[settings.Embedding.Provider])
	settings.LLM.Model = s.getString(keyLLMModel,
		domain.DefaultLLMModels()[settings.LLM.Provider])

	settings.Embedding.APIKey = s.apiKey(keyEmbedAPIKey, settings.Embedding.Provider)
	settings.LLM.APIKey = s.apiKey(keyLLMAPIKey, settings.LLM.Provider)

	return settings, nil
}

// Set parses value according to the key's type and stores it.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	parsed, err := parseValue(kind, value)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, key, err)
	}
	if err := validateEnum(key, value); err != nil {
		return err
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Keys returns every recognised setting key, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Validate checks that the current settings can drive a full run.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if err := settings.Validate(); err != nil {
		return err
	}

	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %q is not configured (check %s)",
			domain.ErrConfiguration, settings.Embedding.Provider, envKeyFor(settings.Embedding.Provider))
	}
	if !settings.LLM.IsConfigured() {
		return fmt.Errorf("%w: LLM provider %q is not configured (check %s)",
			domain.ErrConfiguration, settings.LLM.Provider, envKeyFor(settings.LLM.Provider))
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

func parseValue(kind valueKind, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch kind {
	case kindInt:
		return strconv.Atoi(value)
	case kindFloat:
		return strconv.ParseFloat(value, 64)
	case kindBool:
		return strconv.ParseBool(value)
	case kindList:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items, nil
	default:
		return value, nil
	}
}

func validateEnum(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case keyRetrievalMode:
		if !domain.SearchMode(value).IsValid() {
			return fmt.Errorf("%w: invalid retrieval mode %q", domain.ErrInvalidInput, value)
		}
	case keyEmbedProvider:
		if !slices.Contains(domain.AllEmbeddingProviders(), domain.AIProvider(value)) {
			return fmt.Errorf("%w: provider %q does not support embeddings", domain.ErrInvalidInput, value)
		}
	case keyLLMProvider:
		if !domain.AIProvider(value).IsValid() {
			return fmt.Errorf("%w: invalid LLM provider %q", domain.ErrInvalidInput, value)
		}
	case keySessionBackend:
		if !domain.SessionBackend(value).IsValid() {
			return fmt.Errorf("%w: invalid session backend %q", domain.ErrInvalidInput, value)
		}
	}
	return nil
}

func envKeyFor(provider domain.AIProvider) string {
	switch provider {
	case domain.AIProviderOpenAI:
		return EnvOpenAIAPIKey
	case domain.AIProviderAnthropic:
		return EnvAnthropicAPIKey
	default:
		return "provider settings"
	}
}

// apiKey prefers an explicit config value over the provider's environment variable.
func (s *SettingsService) apiKey(key string, provider domain.AIProvider) string {
	if val := s.configStore.GetString(key); val != "" {
		return val
	}
	if !provider.RequiresAPIKey() {
		return ""
	}
	return s.getenv(envKeyFor(provider))
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getList(key string, defaultVal []string) []string {
	if val := s.configStore.GetStringSlice(key); len(val) > 0 {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getSearchMode(defaultVal domain.SearchMode) domain.SearchMode {
	mode := domain.SearchMode(s.configStore.GetString(keyRetrievalMode))
	if !mode.IsValid() {
		return defaultVal
	}
	return mode
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(key))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getSessionBackend(defaultVal domain.SessionBackend) domain.SessionBackend {
	backend := domain.SessionBackend(s.configStore.GetString(keySessionBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
