package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docchat/internal/core/domain"
)

func newTestAnswerEngine(llm *mockLLMService, search *mockSearchService, memorySettings domain.MemorySettings) (
	*AnswerEngine, *memory.SessionStore,
) {
	sessions := memory.NewSessionStore()
	engine := NewAnswerEngine(sessions, search, llm, newMockPromptStore(), AnswerConfig{
		Retrieval: domain.RetrievalSettings{K: 3, Mode: domain.SearchModeHybrid},
		LLM:       domain.LLMSettings{Temperature: 0, MaxTokens: 1024},
		Memory:    memorySettings,
	})
	return engine, sessions
}

func defaultSearch() *mockSearchService {
	return &mockSearchService{results: []domain.SearchResult{
		result("https://huggingface.co/docs/diffusers/using-diffusers/schedulers", "Schedulers are swappable."),
	}}
}

func TestAnswerEngine_Answer(t *testing.T) {
	llm := &mockLLMService{response: "Use DPMSolver."}
	search := defaultSearch()
	engine, _ := newTestAnswerEngine(llm, search, domain.MemorySettings{IncludeHistory: true})

	answer, err := engine.Answer(context.Background(), "chat-1", "  Which scheduler is fastest?  ")

	require.NoError(t, err)
	assert.Equal(t, "chat-1", answer.SessionID)
	assert.Equal(t, "Which scheduler is fastest?", answer.Question)
	assert.Equal(t, "Use DPMSolver.", answer.Text)
	require.Len(t, answer.Sources, 1)

	assert.Equal(t, "Which scheduler is fastest?", search.lastQuery)
	assert.Equal(t, 3, search.lastOpts.Limit)
	assert.Equal(t, domain.SearchModeHybrid, search.lastOpts.Mode)

	require.Len(t, llm.opts, 1)
	assert.Equal(t, 1024, llm.opts[0].MaxTokens)
	assert.Zero(t, llm.opts[0].Temperature)
	assert.Contains(t, llm.lastPrompt(), "Schedulers are swappable.")
}

func TestAnswerEngine_SecondPromptContainsFirstTurnVerbatim(t *testing.T) {
	llm := &mockLLMService{}
	engine, _ := newTestAnswerEngine(llm, defaultSearch(), domain.MemorySettings{IncludeHistory: true})
	ctx := context.Background()

	first, err := engine.Answer(ctx, "s", "What is the DDIM scheduler?")
	require.NoError(t, err)

	_, err = engine.Answer(ctx, "s", "How do I swap it into a pipeline?")
	require.NoError(t, err)

	prompt := llm.lastPrompt()
	assert.Contains(t, prompt, "Human: What is the DDIM scheduler?")
	assert.Contains(t, prompt, "Assistant: "+first.Text)
	assert.Contains(t, prompt, "How do I swap it into a pipeline?")
}

func TestAnswerEngine_HistoryLengthMatchesTurns(t *testing.T) {
	engine, _ := newTestAnswerEngine(&mockLLMService{}, defaultSearch(), domain.MemorySettings{IncludeHistory: true})
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := engine.Answer(ctx, "s", fmt.Sprintf("question %d", i))
		require.NoError(t, err)
	}

	history, err := engine.History(ctx, "s")
	require.NoError(t, err)
	require.Len(t, history, 7)
	for i, turn := range history {
		assert.Equal(t, fmt.Sprintf("question %d", i), turn.Question)
		assert.Equal(t, fmt.Sprintf("answer %d", i+1), turn.Answer)
		assert.False(t, turn.AskedAt.IsZero())
	}
}

func TestAnswerEngine_GenerationFailureLeavesSessionUnchanged(t *testing.T) {
	llm := &mockLLMService{}
	engine, sessions := newTestAnswerEngine(llm, defaultSearch(), domain.MemorySettings{IncludeHistory: true})
	ctx := context.Background()

	_, err := engine.Answer(ctx, "s", "first")
	require.NoError(t, err)

	llm.chatErr = errors.New("upstream 500")
	_, err = engine.Answer(ctx, "s", "second")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGenerationService))
	history, err := sessions.History(ctx, "s")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "first", history[0].Question)
}

func TestAnswerEngine_ReportsTokenUsage(t *testing.T) {
	llm := &mockLLMService{response: "Use fp16.", usage: domain.TokenUsage{PromptTokens: 412, CompletionTokens: 9}}
	engine, _ := newTestAnswerEngine(llm, defaultSearch(), domain.MemorySettings{IncludeHistory: true})

	answer, err := engine.Answer(context.Background(), "s", "How do I save memory?")

	require.NoError(t, err)
	assert.Equal(t, domain.TokenUsage{PromptTokens: 412, CompletionTokens: 9}, answer.Usage)
	assert.Equal(t, 421, answer.Usage.Total())
	assert.Empty(t, answer.StandaloneQuestion)
}

func TestAnswerEngine_CondenseOffByDefault(t *testing.T) {
	llm := &mockLLMService{standalone: "rewritten"}
	search := defaultSearch()
	engine, _ := newTestAnswerEngine(llm, search, domain.DefaultSettings().Memory)
	ctx := context.Background()

	_, err := engine.Answer(ctx, "s", "What is DDIM?")
	require.NoError(t, err)
	_, err = engine.Answer(ctx, "s", "How do I use it?")
	require.NoError(t, err)

	assert.Empty(t, llm.generated)
	assert.Equal(t, "How do I use it?", search.lastQuery)
}

func TestAnswerEngine_CondensesFollowUpForRetrieval(t *testing.T) {
	llm := &mockLLMService{
		standalone: "How do I use the DDIM scheduler in a pipeline?",
		usage:      domain.TokenUsage{PromptTokens: 10, CompletionTokens: 2},
	}
	search := defaultSearch()
	engine, sessions := newTestAnswerEngine(llm, search,
		domain.MemorySettings{IncludeHistory: true, CondenseQuestion: true})
	ctx := context.Background()

	first, err := engine.Answer(ctx, "s", "What is DDIM?")
	require.NoError(t, err)
	assert.Empty(t, llm.generated, "a first question has nothing to condense")
	assert.Equal(t, "What is DDIM?", search.lastQuery)

	second, err := engine.Answer(ctx, "s", "How do I use it?")
	require.NoError(t, err)

	require.Len(t, llm.generated, 1)
	assert.Equal(t, "CONDENSE:\nChat History:\nHuman: What is DDIM?\nAssistant: "+first.Text+
		"\nFollow Up Input: How do I use it?", llm.generated[0])
	assert.Equal(t, condenseStopWords, llm.genOpts[0].StopWords)
	assert.Zero(t, llm.genOpts[0].Temperature)

	assert.Equal(t, "How do I use the DDIM scheduler in a pipeline?", search.lastQuery)
	assert.Equal(t, "How do I use the DDIM scheduler in a pipeline?", second.StandaloneQuestion)
	assert.Equal(t, "How do I use it?", second.Question)
	assert.Equal(t, domain.TokenUsage{PromptTokens: 20, CompletionTokens: 4}, second.Usage, "condense and answer usage add up")

	history, err := sessions.History(ctx, "s")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "How do I use it?", history[1].Question, "the turn keeps the question as asked")
}

func TestAnswerEngine_EmptyRewriteUsesQuestion(t *testing.T) {
	llm := &mockLLMService{standalone: "   "}
	search := defaultSearch()
	engine, _ := newTestAnswerEngine(llm, search, domain.MemorySettings{CondenseQuestion: true})
	ctx := context.Background()

	_, err := engine.Answer(ctx, "s", "first")
	require.NoError(t, err)
	answer, err := engine.Answer(ctx, "s", "second")

	require.NoError(t, err)
	assert.Len(t, llm.generated, 1)
	assert.Equal(t, "second", search.lastQuery)
	assert.Empty(t, answer.StandaloneQuestion)
}

func TestAnswerEngine_CondenseFailureLeavesSessionUnchanged(t *testing.T) {
	llm := &mockLLMService{}
	engine, sessions := newTestAnswerEngine(llm, defaultSearch(), domain.MemorySettings{CondenseQuestion: true})
	ctx := context.Background()

	_, err := engine.Answer(ctx, "s", "first")
	require.NoError(t, err)

	llm.generateErr = errors.New("connection reset")
	_, err = engine.Answer(ctx, "s", "second")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGenerationService))
	assert.Len(t, llm.requests, 1, "no answer is generated after a failed rewrite")
	history, err := sessions.History(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestAnswerEngine_RetrievalFailurePropagates(t *testing.T) {
	search := &mockSearchService{err: fmt.Errorf("%w: index.db missing", domain.ErrIndexUnavailable)}
	llm := &mockLLMService{}
	engine, sessions := newTestAnswerEngine(llm, search, domain.MemorySettings{})

	_, err := engine.Answer(context.Background(), "s", "anything")

	assert.True(t, errors.Is(err, domain.ErrIndexUnavailable))
	assert.Empty(t, llm.requests, "generation is never attempted")
	history, _ := sessions.History(context.Background(), "s")
	assert.Empty(t, history)
}

func TestAnswerEngine_InvalidInput(t *testing.T) {
	engine, _ := newTestAnswerEngine(&mockLLMService{}, defaultSearch(), domain.MemorySettings{})

	_, err := engine.Answer(context.Background(), "s", "   ")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = engine.Answer(context.Background(), "", "question")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestAnswerEngine_NoLLM(t *testing.T) {
	engine := NewAnswerEngine(memory.NewSessionStore(), defaultSearch(), nil, newMockPromptStore(), AnswerConfig{})

	_, err := engine.Answer(context.Background(), "s", "question")

	assert.True(t, errors.Is(err, domain.ErrGenerationService))
}

func TestAnswerEngine_DefaultK(t *testing.T) {
	search := defaultSearch()
	engine := NewAnswerEngine(memory.NewSessionStore(), search, &mockLLMService{}, newMockPromptStore(), AnswerConfig{})

	_, err := engine.Answer(context.Background(), "s", "question")

	require.NoError(t, err)
	assert.Equal(t, 4, search.lastOpts.Limit)
}

func TestAnswerEngine_SessionsAreIsolated(t *testing.T) {
	llm := &mockLLMService{}
	engine, _ := newTestAnswerEngine(llm, defaultSearch(), domain.MemorySettings{IncludeHistory: true})
	ctx := context.Background()

	_, err := engine.Answer(ctx, "alice", "secret alice question")
	require.NoError(t, err)
	_, err = engine.Answer(ctx, "bob", "bob question")
	require.NoError(t, err)

	assert.NotContains(t, llm.lastPrompt(), "secret alice question")

	ids, err := engine.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, ids)
}

func TestAnswerEngine_Reset(t *testing.T) {
	engine, _ := newTestAnswerEngine(&mockLLMService{}, defaultSearch(), domain.MemorySettings{IncludeHistory: true})
	ctx := context.Background()
	_, err := engine.Answer(ctx, "s", "question")
	require.NoError(t, err)

	require.NoError(t, engine.Reset(ctx, "s"))

	history, err := engine.History(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAnswerEngine_SerialisesTurnsWithinSession(t *testing.T) {
	engine, _ := newTestAnswerEngine(&mockLLMService{}, defaultSearch(), domain.MemorySettings{IncludeHistory: true})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = engine.Answer(ctx, "shared", fmt.Sprintf("q%d", i))
		}()
	}
	wg.Wait()

	history, err := engine.History(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, history, 20)
	for i, turn := range history {
		assert.Equal(t, fmt.Sprintf("answer %d", i+1), turn.Answer, "turns are recorded in answer order")
	}
}

func TestSessionLocks_SameIDShareMutex(t *testing.T) {
	locks := newSessionLocks()

	unlock := locks.lock("a")
	acquired := make(chan struct{})
	go func() {
		u := locks.lock("a")
		close(acquired)
		u()
	}()

	other := locks.lock("b")
	other()

	select {
	case <-acquired:
		t.Fatal("second lock on the same session acquired while held")
	default:
	}
	unlock()
	<-acquired
}
