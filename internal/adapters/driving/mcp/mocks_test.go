package mcp

import (
	"context"
	"sync"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results  []domain.SearchResult
	err      error
	lastOpts domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	_ string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.lastOpts = opts
	return m.results, m.err
}

// mockAnswerService is a mock implementation of driving.AnswerService.
type mockAnswerService struct {
	mu       sync.Mutex
	answer   string
	sources  []domain.SearchResult
	usage    domain.TokenUsage
	turns    map[string][]domain.Turn
	err      error
	asked    []string
	sessions []string
}

func newMockAnswerService() *mockAnswerService {
	return &mockAnswerService{turns: make(map[string][]domain.Turn)}
}

func (m *mockAnswerService) Answer(_ context.Context, sessionID, question string) (*domain.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.asked = append(m.asked, sessionID)
	if m.err != nil {
		return nil, m.err
	}
	m.turns[sessionID] = append(m.turns[sessionID], domain.Turn{Question: question, Answer: m.answer})
	return &domain.Answer{SessionID: sessionID, Question: question, Text: m.answer, Sources: m.sources, Usage: m.usage}, nil
}

func (m *mockAnswerService) History(_ context.Context, sessionID string) ([]domain.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.turns[sessionID], nil
}

func (m *mockAnswerService) Sessions(_ context.Context) ([]string, error) {
	return m.sessions, m.err
}

func (m *mockAnswerService) Reset(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, sessionID)
	return m.err
}

// mockIngester is a mock implementation of driving.Ingester.
type mockIngester struct {
	stats domain.IndexStats
	err   error
}

func (m *mockIngester) Ingest(_ context.Context, _ domain.IngestOptions) (*domain.IngestReport, error) {
	return nil, m.err
}

func (m *mockIngester) Stats(_ context.Context) (domain.IndexStats, error) {
	return m.stats, m.err
}

func newTestServer(answer *mockAnswerService, search *mockSearchService) *Server {
	server, err := NewServer(&Ports{Answer: answer, Search: search})
	if err != nil {
		panic(err)
	}
	return server
}
