package search

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docchat/internal/core/domain"
)

// MockSearchService implements driving.SearchService for testing.
type MockSearchService struct {
	SearchFunc func(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}

func (m *MockSearchService) Search(
	ctx context.Context,
	query string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, opts)
	}
	return []domain.SearchResult{}, nil
}

func testSearchResults() []domain.SearchResult {
	return []domain.SearchResult{
		{
			Chunk: domain.Chunk{ID: "a-0", SourceURL: "https://docs.example.com/a", Content: "Runners execute jobs."},
			Score: 0.95,
		},
		{
			Chunk: domain.Chunk{ID: "b-1", SourceURL: "https://docs.example.com/b", Position: 1, Content: "Jobs belong to stages."},
			Score: 0.85,
		},
	}
}

func readyView(svc *MockSearchService) *View {
	var view *View
	if svc == nil {
		view = NewView(nil, nil, nil)
	} else {
		view = NewView(nil, nil, svc)
	}
	view.SetDimensions(100, 30)
	return view
}

func enter() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyEnter}
}

func TestNewView(t *testing.T) {
	view := NewView(styles.DefaultStyles(), keymap.DefaultKeyMap(), &MockSearchService{})

	require.NotNil(t, view)
	assert.False(t, view.Ready())
	assert.Equal(t, "", view.Query())
	assert.False(t, view.Searching())
}

func TestNewView_NilStyles(t *testing.T) {
	view := NewView(nil, nil, nil)

	require.NotNil(t, view)
	assert.NotNil(t, view.styles)
	assert.NotNil(t, view.keymap)
}

func TestView_WithContext(t *testing.T) {
	view := NewView(nil, nil, nil)
	type contextKey string
	ctx := context.WithValue(context.Background(), contextKey("key"), "value")

	result := view.WithContext(ctx)

	assert.Equal(t, view, result)
	assert.Equal(t, ctx, view.ctx)
}

func TestView_Init(t *testing.T) {
	view := NewView(nil, nil, nil)

	assert.NotNil(t, view.Init())
}

func TestView_Update_WindowSize(t *testing.T) {
	view := NewView(nil, nil, nil)

	view.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	assert.True(t, view.Ready())
	assert.Equal(t, 120, view.Width())
	assert.Equal(t, 40, view.Height())
}

func TestView_View_NotReady(t *testing.T) {
	view := NewView(nil, nil, nil)

	assert.Equal(t, "Initialising...", view.View())
}

func TestView_Typing(t *testing.T) {
	view := readyView(nil)

	view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("cache")})

	assert.Equal(t, "cache", view.Query())
}

func TestView_EnterEmptyQueryDoesNothing(t *testing.T) {
	view := readyView(&MockSearchService{})

	_, cmd := view.Update(enter())

	assert.Nil(t, cmd)
	assert.False(t, view.Searching())
}

func TestView_EnterRunsSearch(t *testing.T) {
	var gotQuery string
	var gotOpts domain.SearchOptions
	svc := &MockSearchService{
		SearchFunc: func(_ context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
			gotQuery = query
			gotOpts = opts
			return testSearchResults(), nil
		},
	}
	view := readyView(svc)
	view.SetQuery("runners")

	_, cmd := view.Update(enter())
	require.NotNil(t, cmd)
	assert.True(t, view.Searching())

	msg := cmd()
	completed, ok := msg.(messages.SearchCompleted)
	require.True(t, ok)
	assert.Equal(t, "runners", gotQuery)
	assert.Equal(t, domain.SearchOptions{}, gotOpts)
	assert.Equal(t, "runners", completed.Query)

	view.Update(completed)

	assert.False(t, view.Searching())
	assert.Len(t, view.Results(), 2)
	assert.Contains(t, view.View(), "https://docs.example.com/a")
	assert.Contains(t, view.View(), "2 results")
}

func TestView_SearchError(t *testing.T) {
	svc := &MockSearchService{
		SearchFunc: func(context.Context, string, domain.SearchOptions) ([]domain.SearchResult, error) {
			return nil, domain.ErrIndexUnavailable
		},
	}
	view := readyView(svc)
	view.SetQuery("anything")

	_, cmd := view.Update(enter())
	view.Update(cmd())

	require.Error(t, view.Err())
	assert.True(t, errors.Is(view.Err(), domain.ErrIndexUnavailable))
	assert.Contains(t, view.View(), "Error:")
}

func TestView_NoSearchService(t *testing.T) {
	view := readyView(nil)
	view.SetQuery("anything")

	_, cmd := view.Update(enter())
	view.Update(cmd())

	assert.ErrorIs(t, view.Err(), ErrNoSearchService)
	assert.False(t, view.Searching())
}

func TestView_StaleResultsIgnored(t *testing.T) {
	view := readyView(&MockSearchService{})
	view.SetQuery("second")
	view.Update(enter())

	view.Update(messages.SearchCompleted{Query: "first", Results: testSearchResults()})

	assert.Empty(t, view.Results())
	assert.True(t, view.Searching())
}

func TestView_Navigation(t *testing.T) {
	view := readyView(&MockSearchService{})
	view.SetQuery("q")
	view.Update(enter())
	view.Update(messages.SearchCompleted{Query: "q", Results: testSearchResults()})

	view.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, view.SelectedIndex())
	assert.Equal(t, "b-1", view.SelectedResult().Chunk.ID)

	view.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, view.SelectedIndex())
}

func TestView_ErrorOccurred(t *testing.T) {
	view := readyView(nil)

	view.Update(messages.ErrorOccurred{Err: errors.New("boom")})

	assert.EqualError(t, view.Err(), "boom")
}

func TestView_Reset(t *testing.T) {
	view := readyView(&MockSearchService{})
	view.SetQuery("q")
	view.Update(enter())
	view.Update(messages.SearchCompleted{Query: "q", Results: testSearchResults()})

	view.Reset()

	assert.Equal(t, "", view.Query())
	assert.Empty(t, view.Results())
	assert.NoError(t, view.Err())
}

func TestView_FocusBlur(t *testing.T) {
	view := readyView(nil)

	view.Blur()
	assert.False(t, view.input.Focused())

	view.Focus()
	assert.True(t, view.input.Focused())
}
