package list

import (
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

func sampleResults() []domain.SearchResult {
	return []domain.SearchResult{
		{
			Chunk: domain.Chunk{ID: "a:0", SourceURL: "https://docs.example.com/one", Content: "Pipelines run stages."},
			Score: 0.95,
		},
		{
			Chunk: domain.Chunk{ID: "a:2", SourceURL: "https://docs.example.com/one", Position: 2, Content: "Stages run jobs."},
			Score: 0.85,
		},
		{
			Chunk: domain.Chunk{ID: "c:1", SourceURL: "https://docs.example.com/three", Position: 1, Content: "Jobs run scripts."},
			Score: 0.75,
		},
	}
}

func manyResults(n int) []domain.SearchResult {
	out := make([]domain.SearchResult, n)
	for i := range out {
		out[i] = domain.SearchResult{
			Chunk: domain.Chunk{SourceURL: fmt.Sprintf("https://docs.example.com/p%d", i), Content: "text"},
			Score: 1 - float64(i)/100,
		}
	}
	return out
}

func TestNewResultList(t *testing.T) {
	list := NewResultList(nil)

	require.NotNil(t, list.styles)
	assert.True(t, list.IsEmpty())
	assert.Nil(t, list.SelectedResult())
	assert.Nil(t, list.Init())
	assert.Equal(t, 80, list.Width())
	assert.Equal(t, 10, list.Height())
}

func TestResultList_SetResultsResetsCursor(t *testing.T) {
	list := NewResultList(nil)
	list.SetResults(sampleResults())
	list.SetSelected(2)

	list.SetResults(sampleResults())

	assert.Equal(t, 3, list.Count())
	assert.Equal(t, 0, list.Selected())
	assert.Equal(t, 0, list.Offset())
	assert.Equal(t, "a:0", list.SelectedResult().Chunk.ID)
}

func TestResultList_SetSelectedIgnoresOutOfRange(t *testing.T) {
	list := NewResultList(nil)
	list.SetResults(sampleResults())

	list.SetSelected(99)
	assert.Equal(t, 0, list.Selected())
	list.SetSelected(-1)
	assert.Equal(t, 0, list.Selected())
	list.SetSelected(2)
	assert.Equal(t, 2, list.Selected())
}

func TestResultList_Keys(t *testing.T) {
	tests := []struct {
		name  string
		start int
		key   tea.KeyMsg
		want  int
	}{
		{"down", 0, tea.KeyMsg{Type: tea.KeyDown}, 1},
		{"down at bottom", 19, tea.KeyMsg{Type: tea.KeyDown}, 19},
		{"up", 5, tea.KeyMsg{Type: tea.KeyUp}, 4},
		{"up at top", 0, tea.KeyMsg{Type: tea.KeyUp}, 0},
		{"page down", 0, tea.KeyMsg{Type: tea.KeyPgDown}, 4},
		{"page up clamps", 2, tea.KeyMsg{Type: tea.KeyPgUp}, 0},
		{"home", 12, tea.KeyMsg{Type: tea.KeyHome}, 0},
		{"end", 0, tea.KeyMsg{Type: tea.KeyEnd}, 19},
		{"letters ignored", 3, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := NewResultList(nil)
			list.SetDimensions(80, 16) // four hits per page
			list.SetResults(manyResults(20))
			list.SetSelected(tt.start)

			updated, cmd := list.Update(tt.key)

			assert.Same(t, list, updated)
			assert.Nil(t, cmd)
			assert.Equal(t, tt.want, list.Selected())
		})
	}
}

func TestResultList_WindowFollowsCursor(t *testing.T) {
	list := NewResultList(nil)
	list.SetDimensions(80, 16)
	list.SetResults(manyResults(20))

	for range 5 {
		list.MoveDown()
	}
	assert.Equal(t, 5, list.Selected())
	assert.Equal(t, 2, list.Offset())

	list.MoveUp()
	assert.Equal(t, 2, list.Offset(), "window holds while the cursor is inside it")

	list.SetSelected(0)
	assert.Equal(t, 0, list.Offset())

	view := list.View()
	assert.Contains(t, view, "https://docs.example.com/p3")
	assert.NotContains(t, view, "https://docs.example.com/p4")
}

func TestResultList_ResizeKeepsCursorVisible(t *testing.T) {
	list := NewResultList(nil)
	list.SetDimensions(80, 40)
	list.SetResults(manyResults(20))
	list.SetSelected(9)
	require.Equal(t, 0, list.Offset())

	list.SetDimensions(80, 16)

	assert.Equal(t, 6, list.Offset())
	assert.Equal(t, 16, list.Height())
}

func TestResultList_View(t *testing.T) {
	list := NewResultList(nil)
	assert.Contains(t, list.View(), "No results")

	list.SetResults(sampleResults())
	view := list.View()

	assert.Contains(t, view, "3 hits from 2 pages")
	assert.Contains(t, view, "> 1. https://docs.example.com/one")
	assert.Contains(t, view, "0.95")
	assert.Contains(t, view, "chunk 2")
	assert.Contains(t, view, "Pipelines run stages.")
}

func TestResultList_ViewSingleHit(t *testing.T) {
	list := NewResultList(nil)
	list.SetResults([]domain.SearchResult{
		{Chunk: domain.Chunk{Content: "orphan   text\nhere"}, Score: 0.5},
	})

	view := list.View()

	assert.Contains(t, view, "1 hit from 1 page")
	assert.Contains(t, view, unknownSource)
	assert.Contains(t, view, "orphan text here")
}

func TestResultList_ViewPrefersHighlight(t *testing.T) {
	list := NewResultList(nil)
	list.SetResults([]domain.SearchResult{
		{
			Chunk:      domain.Chunk{SourceURL: "https://docs.example.com/a", Content: "full chunk text"},
			Highlights: []string{"matched fragment"},
			Score:      0.5,
		},
	})

	view := list.View()

	assert.Contains(t, view, "matched fragment")
	assert.NotContains(t, view, "full chunk text")
}

func TestResultList_ViewLongURL(t *testing.T) {
	list := NewResultList(nil)
	longURL := "https://docs.example.com/guide/very/deeply/nested/section/with/a/long/path/that/overflows/the/list/width"
	list.SetResults([]domain.SearchResult{{Chunk: domain.Chunk{SourceURL: longURL}, Score: 0.5}})

	view := list.View()

	assert.Contains(t, view, "...")
	assert.NotContains(t, view, "list/width")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd...", truncate("abcdefghijk", 7))
	assert.Equal(t, "héll...", truncate("héllo wörld", 7))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
