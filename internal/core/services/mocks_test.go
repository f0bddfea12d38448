package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockVectorIndex implements driven.VectorIndex for testing.
type mockVectorIndex struct {
	mu         sync.Mutex
	hits       []driven.VectorHit
	chunks     map[string]domain.Chunk
	searchErr  error
	commitErr  error
	committed  []domain.Chunk
	commitOpts driven.CommitOptions
	lastK      int
}

func newMockVectorIndex(chunks ...domain.Chunk) *mockVectorIndex {
	m := &mockVectorIndex{chunks: make(map[string]domain.Chunk)}
	for _, c := range chunks {
		m.chunks[c.ID] = c
	}
	return m
}

func (m *mockVectorIndex) Commit(_ context.Context, entries []domain.Chunk, opts driven.CommitOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return m.commitErr
	}
	if opts.Reset {
		m.chunks = make(map[string]domain.Chunk)
	}
	for _, e := range entries {
		m.chunks[e.ID] = e
	}
	m.committed = entries
	m.commitOpts = opts
	return nil
}

func (m *mockVectorIndex) Search(_ context.Context, _ []float32, k int) ([]driven.VectorHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastK = k
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if k > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:k], nil
}

func (m *mockVectorIndex) GetChunks(_ context.Context, ids []string) ([]domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Chunk
	for _, id := range ids {
		if c, ok := m.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockVectorIndex) Stats(_ context.Context) (domain.IndexStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.IndexStats{Chunks: len(m.chunks), Model: m.commitOpts.Model}, nil
}

func (m *mockVectorIndex) Close() error { return nil }

// mockKeywordIndex implements driven.KeywordIndex for testing.
type mockKeywordIndex struct {
	hits       []driven.SearchHit
	searchErr  error
	stageErr   error
	publishErr error
	staged     *mockStagedIndex
}

func (m *mockKeywordIndex) Stage(_ context.Context, chunks []domain.Chunk, reset bool) (driven.StagedIndex, error) {
	if m.stageErr != nil {
		return nil, m.stageErr
	}
	m.staged = &mockStagedIndex{chunks: len(chunks), reset: reset, publishErr: m.publishErr}
	return m.staged, nil
}

func (m *mockKeywordIndex) Search(_ context.Context, _ string, limit int) ([]driven.SearchHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if limit > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:limit], nil
}

func (m *mockKeywordIndex) Close() error { return nil }

// mockStagedIndex records whether it was published or discarded.
type mockStagedIndex struct {
	chunks     int
	reset      bool
	published  bool
	discarded  bool
	publishErr error
}

func (m *mockStagedIndex) Publish() error {
	m.published = true
	return m.publishErr
}

func (m *mockStagedIndex) Discard() error {
	m.discarded = true
	return nil
}

// mockEmbeddingService implements driven.EmbeddingService for testing.
// It fails on the failOn-th call (1-based) when failOn is set.
type mockEmbeddingService struct {
	embedding []float32
	embedErr  error
	failOn    int64
	calls     atomic.Int64
	dims      int
	short     bool

	mu      sync.Mutex
	batches []int
}

func (m *mockEmbeddingService) Embed(_ context.Context, _ string) ([]float32, error) {
	n := m.calls.Add(1)
	if m.failOn > 0 && n == m.failOn {
		return nil, fmt.Errorf("%w: call %d refused", domain.ErrEmbeddingService, n)
	}
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.embedding != nil {
		return m.embedding, nil
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batches = append(m.batches, len(texts))
	m.mu.Unlock()
	if m.short && len(texts) > 0 {
		texts = texts[1:]
	}
	result := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}

func (m *mockEmbeddingService) batchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.batches...)
}

func (m *mockEmbeddingService) Dimensions() int {
	if m.dims > 0 {
		return m.dims
	}
	return 3
}

func (m *mockEmbeddingService) ModelName() string { return "mock-embed" }

func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }

func (m *mockEmbeddingService) Close() error { return nil }

// mockLLMService implements driven.LLMService and records every call.
type mockLLMService struct {
	mu       sync.Mutex
	response string
	chatErr  error
	usage    domain.TokenUsage
	requests [][]driven.ChatMessage
	opts     []driven.ChatOptions

	standalone  string
	generateErr error
	generated   []string
	genOpts     []driven.GenerateOptions
}

func (m *mockLLMService) Generate(_ context.Context, prompt string, opts driven.GenerateOptions) (*driven.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generated = append(m.generated, prompt)
	m.genOpts = append(m.genOpts, opts)
	if m.generateErr != nil {
		return nil, m.generateErr
	}
	return &driven.Completion{Text: m.standalone, Usage: m.usage}, nil
}

func (m *mockLLMService) Chat(_ context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (*driven.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, messages)
	m.opts = append(m.opts, opts)
	if m.chatErr != nil {
		return nil, m.chatErr
	}
	if m.response != "" {
		return &driven.Completion{Text: m.response, Usage: m.usage}, nil
	}
	return &driven.Completion{Text: fmt.Sprintf("answer %d", len(m.requests)), Usage: m.usage}, nil
}

func (m *mockLLMService) ModelName() string { return "mock-llm" }

func (m *mockLLMService) Ping(_ context.Context) error { return nil }

func (m *mockLLMService) Close() error { return nil }

// lastPrompt joins the messages of the most recent chat request.
func (m *mockLLMService) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return ""
	}
	var out string
	for _, msg := range m.requests[len(m.requests)-1] {
		out += msg.Content + "\n"
	}
	return out
}

// mockPromptStore implements driven.PromptStore with fixed templates.
type mockPromptStore struct {
	prompts map[string]string
	loadErr error
}

func newMockPromptStore() *mockPromptStore {
	return &mockPromptStore{prompts: map[string]string{
		driven.PromptAnswerSystem:     "SYSTEM",
		driven.PromptAnswerContext:    "CONTEXT:\n%s",
		driven.PromptAnswerHistory:    "HISTORY:\n%s",
		driven.PromptCondenseQuestion: "CONDENSE:\n%s",
	}}
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if m.loadErr != nil {
		return "", m.loadErr
	}
	p, ok := m.prompts[name]
	if !ok {
		return "", fmt.Errorf("prompt %q: %w", name, domain.ErrNotFound)
	}
	return p, nil
}

func (m *mockPromptStore) Reload() {}

// mockArtifactStore implements driven.ArtifactStore over a map.
type mockArtifactStore struct {
	artifacts map[string]*domain.TextArtifact
	listErr   error
}

func newMockArtifactStore(texts ...string) *mockArtifactStore {
	m := &mockArtifactStore{artifacts: make(map[string]*domain.TextArtifact)}
	for i, text := range texts {
		url := fmt.Sprintf("https://docs.example/guide/page-%d", i)
		id := domain.ArtifactID(url)
		m.artifacts[id] = &domain.TextArtifact{ID: id, URL: url, Text: text}
	}
	return m
}

func (m *mockArtifactStore) Save(_ context.Context, a *domain.TextArtifact) error {
	m.artifacts[a.ID] = a
	return nil
}

func (m *mockArtifactStore) Get(_ context.Context, id string) (*domain.TextArtifact, error) {
	a, ok := m.artifacts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (m *mockArtifactStore) List(_ context.Context) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	ids := make([]string, 0, len(m.artifacts))
	for id := range m.artifacts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockArtifactStore) Path() string { return "mem://corpus" }

// mockSearchService implements driving.SearchService for the answer engine.
type mockSearchService struct {
	mu        sync.Mutex
	results   []domain.SearchResult
	err       error
	lastOpts  domain.SearchOptions
	lastQuery string
}

func (m *mockSearchService) Search(_ context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = query
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}
