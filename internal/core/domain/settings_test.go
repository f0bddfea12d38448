package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchMode_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		mode     SearchMode
		expected bool
	}{
		{"vector is valid", SearchModeVector, true},
		{"keyword is valid", SearchModeKeyword, true},
		{"hybrid is valid", SearchModeHybrid, true},
		{"empty string is invalid", SearchMode(""), false},
		{"unknown mode is invalid", SearchMode("full"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.mode.IsValid())
		})
	}
}

func TestSearchMode_RequiresEmbedding(t *testing.T) {
	assert.True(t, SearchModeVector.RequiresEmbedding())
	assert.True(t, SearchModeHybrid.RequiresEmbedding())
	assert.False(t, SearchModeKeyword.RequiresEmbedding())
}

func TestAIProvider_RequiresAPIKey(t *testing.T) {
	assert.True(t, AIProviderOpenAI.RequiresAPIKey())
	assert.True(t, AIProviderAnthropic.RequiresAPIKey())
	assert.False(t, AIProviderOllama.RequiresAPIKey())
}

func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	assert.True(t, EmbeddingSettings{Provider: AIProviderOllama}.IsConfigured())
	assert.False(t, EmbeddingSettings{Provider: AIProviderOpenAI}.IsConfigured())
	assert.True(t, EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "sk"}.IsConfigured())
	assert.False(t, EmbeddingSettings{Provider: AIProviderAnthropic, APIKey: "sk"}.IsConfigured())
}

func TestChunkSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		c       ChunkSettings
		wantErr bool
	}{
		{"defaults", ChunkSettings{Size: 1024, Overlap: 128}, false},
		{"zero overlap", ChunkSettings{Size: 10, Overlap: 0}, false},
		{"overlap equals size", ChunkSettings{Size: 100, Overlap: 100}, true},
		{"overlap exceeds size", ChunkSettings{Size: 100, Overlap: 150}, true},
		{"zero size", ChunkSettings{Size: 0, Overlap: 0}, true},
		{"negative overlap", ChunkSettings{Size: 10, Overlap: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrConfiguration))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultSettings_Valid(t *testing.T) {
	s := DefaultSettings()

	require.NoError(t, s.Validate())
	assert.Equal(t, 1024, s.Chunk.Size)
	assert.Equal(t, 128, s.Chunk.Overlap)
	assert.Equal(t, []string{"<|endoftext|>"}, s.Crawl.ControlTokens)
	assert.InDelta(t, 0.0, s.LLM.Temperature, 1e-9)
	assert.Equal(t, 1024, s.LLM.MaxTokens)
	assert.True(t, s.Memory.IncludeHistory)
	assert.Equal(t, SessionBackendMemory, s.Session.Backend)
}

func TestSettings_Validate_CollectsProblems(t *testing.T) {
	s := DefaultSettings()
	s.Chunk.Overlap = s.Chunk.Size
	s.Retrieval.K = 0
	s.Session.Backend = "etcd"

	err := s.Validate()

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), "retrieval k")
	assert.Contains(t, err.Error(), "etcd")
}
