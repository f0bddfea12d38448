package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Ensure AnswerEngine implements the interface.
var _ driving.AnswerService = (*AnswerEngine)(nil)

// condenseMaxTokens bounds the rewritten question.
const condenseMaxTokens = 256

// condenseStopWords end a rewrite that runs on into an invented dialogue.
var condenseStopWords = []string{"\nHuman:", "\nFollow Up Input:"}

// AnswerConfig holds the settings the answering engine reads per question.
type AnswerConfig struct {
	Retrieval domain.RetrievalSettings
	LLM       domain.LLMSettings
	Memory    domain.MemorySettings
}

// AnswerEngine answers questions with retrieval-augmented generation.
// Questions within one session are serialised; sessions are independent.
type AnswerEngine struct {
	sessions driven.SessionStore
	search   driving.SearchService
	llm      driven.LLMService
	builder  *PromptBuilder
	config   AnswerConfig
	locks    *sessionLocks
	now      func() time.Time
}

// NewAnswerEngine creates an answering engine that owns the given session store.
func NewAnswerEngine(
	sessions driven.SessionStore,
	search driving.SearchService,
	llm driven.LLMService,
	prompts driven.PromptStore,
	config AnswerConfig,
) *AnswerEngine {
	if config.Retrieval.K <= 0 {
		config.Retrieval.K = domain.DefaultSettings().Retrieval.K
	}
	return &AnswerEngine{
		sessions: sessions,
		search:   search,
		llm:      llm,
		builder:  NewPromptBuilder(prompts, config.Retrieval.MaxContextChars, config.Memory),
		config:   config,
		locks:    newSessionLocks(),
		now:      time.Now,
	}
}

// Answer answers question in the given session. The turn is recorded only
// after generation succeeds; on any failure the session is unchanged.
func (e *AnswerEngine) Answer(ctx context.Context, sessionID, question string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is empty", domain.ErrInvalidInput)
	}
	if e.llm == nil {
		return nil, fmt.Errorf("%w: LLM not configured", domain.ErrGenerationService)
	}

	unlock := e.locks.lock(sessionID)
	defer unlock()

	logger.Section("Answer")

	session, err := e.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	logger.Debug("Session %s has %d turns", sessionID, session.Len())

	var usage domain.TokenUsage
	query, standalone := question, ""
	if e.config.Memory.CondenseQuestion && session.Len() > 0 {
		rewritten, used, err := e.condense(ctx, question, session.Turns)
		if err != nil {
			return nil, err
		}
		usage = usage.Add(used)
		if rewritten != "" {
			query, standalone = rewritten, rewritten
			logger.Debug("Condensed question to %q", rewritten)
		}
	}

	results, err := e.search.Search(ctx, query, domain.SearchOptions{
		Limit: e.config.Retrieval.K,
		Mode:  e.config.Retrieval.Mode,
	})
	if err != nil {
		return nil, err
	}

	messages, err := e.builder.Build(question, results, session.Turns)
	if err != nil {
		return nil, err
	}
	logger.Debug("Prompt has %d messages", len(messages))

	completion, err := e.llm.Chat(ctx, messages, driven.ChatOptions{
		MaxTokens:   e.config.LLM.MaxTokens,
		Temperature: e.config.LLM.Temperature,
	})
	if err != nil {
		return nil, generationError(err)
	}
	usage = usage.Add(completion.Usage)

	turn := domain.Turn{Question: question, Answer: completion.Text, AskedAt: e.now()}
	if err := e.sessions.Append(ctx, sessionID, turn); err != nil {
		return nil, fmt.Errorf("record turn: %w", err)
	}
	logger.Info("Answered in session %s using %d sources, %d tokens (%d prompt, %d completion) on %s",
		sessionID, len(results), usage.Total(), usage.PromptTokens, usage.CompletionTokens, e.llm.ModelName())

	return &domain.Answer{
		SessionID:          sessionID,
		Question:           question,
		Text:               completion.Text,
		Sources:            results,
		StandaloneQuestion: standalone,
		Usage:              usage,
	}, nil
}

// condense rewrites a follow-up question into a standalone question for
// retrieval. An empty rewrite means the question is used as asked.
func (e *AnswerEngine) condense(
	ctx context.Context, question string, history []domain.Turn,
) (string, domain.TokenUsage, error) {
	prompt, err := e.builder.CondensePrompt(question, history)
	if err != nil {
		return "", domain.TokenUsage{}, err
	}
	completion, err := e.llm.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   condenseMaxTokens,
		Temperature: 0,
		StopWords:   condenseStopWords,
	})
	if err != nil {
		return "", domain.TokenUsage{}, generationError(err)
	}
	return strings.TrimSpace(completion.Text), completion.Usage, nil
}

func generationError(err error) error {
	if errors.Is(err, domain.ErrGenerationService) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrGenerationService, err)
}

// History returns the session's turns, oldest first.
func (e *AnswerEngine) History(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	return e.sessions.History(ctx, sessionID)
}

// Sessions lists known session IDs.
func (e *AnswerEngine) Sessions(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Reset forgets a session. It waits for an in-flight question in that
// session to finish first.
func (e *AnswerEngine) Reset(ctx context.Context, sessionID string) error {
	unlock := e.locks.lock(sessionID)
	defer unlock()
	return e.sessions.Delete(ctx, sessionID)
}

// sessionLocks hands out one mutex per session ID.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sync.Mutex)}
}

// lock blocks until the session's mutex is held and returns its unlock func.
func (l *sessionLocks) lock(id string) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
