// Package list renders ranked search hits for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docchat/internal/core/domain"
)

const (
	// linesPerResult is the rendered height of one hit: URL, chunk, preview.
	linesPerResult = 3
	headerLines    = 2
	unknownSource  = "(unknown source)"
)

// ResultList shows search hits with a movable cursor. The visible window
// scrolls only when the cursor leaves it.
type ResultList struct {
	styles  *styles.Styles
	results []domain.SearchResult
	cursor  int
	offset  int
	width   int
	height  int
}

// NewResultList creates an empty list. A nil s uses the default styles.
func NewResultList(s *styles.Styles) *ResultList {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &ResultList{styles: s, width: 80, height: 10}
}

// Init implements tea.Model.
func (r *ResultList) Init() tea.Cmd {
	return nil
}

// Update moves the cursor on arrow, paging and home/end keys.
func (r *ResultList) Update(msg tea.Msg) (*ResultList, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return r, nil
	}
	//nolint:exhaustive // only navigation keys matter here
	switch km.Type {
	case tea.KeyUp:
		r.MoveUp()
	case tea.KeyDown:
		r.MoveDown()
	case tea.KeyPgUp:
		r.moveTo(r.cursor - r.pageSize())
	case tea.KeyPgDown:
		r.moveTo(r.cursor + r.pageSize())
	case tea.KeyHome:
		r.moveTo(0)
	case tea.KeyEnd:
		r.moveTo(len(r.results) - 1)
	}
	return r, nil
}

// View renders the header and the visible window of hits.
func (r *ResultList) View() string {
	if len(r.results) == 0 {
		return r.styles.Muted.Render("No results")
	}

	blocks := make([]string, 0, r.pageSize()+2)
	blocks = append(blocks, r.styles.Subtitle.Render(r.summary()), "")

	end := min(r.offset+r.pageSize(), len(r.results))
	for i := r.offset; i < end; i++ {
		blocks = append(blocks, r.renderResult(i))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

// summary counts hits and the distinct pages they come from.
func (r *ResultList) summary() string {
	pages := make(map[string]struct{}, len(r.results))
	for _, res := range r.results {
		pages[res.Chunk.SourceURL] = struct{}{}
	}
	hits := "hits"
	if len(r.results) == 1 {
		hits = "hit"
	}
	pageWord := "pages"
	if len(pages) == 1 {
		pageWord = "page"
	}
	return fmt.Sprintf("%d %s from %d %s", len(r.results), hits, len(pages), pageWord)
}

func (r *ResultList) renderResult(i int) string {
	res := r.results[i]
	selected := i == r.cursor

	source := res.Chunk.SourceURL
	if source == "" {
		source = unknownSource
	}
	urlWidth := max(r.width-20, 10)
	source = truncate(source, urlWidth)

	marker := "  "
	if selected {
		marker = "> "
	}
	score := fmt.Sprintf("%.2f", res.Score)
	label := fmt.Sprintf("%s%d. %-*s", marker, i+1, urlWidth, source)

	var head string
	if selected {
		head = r.styles.Selected.Render(label + "  " + score)
	} else {
		head = r.styles.Normal.Render(label+"  ") + r.styles.Muted.Render(score)
	}

	preview := res.Chunk.Content
	if len(res.Highlights) > 0 {
		preview = res.Highlights[0]
	}
	preview = truncate(strings.Join(strings.Fields(preview), " "), max(r.width-6, 20))

	return strings.Join([]string{
		head,
		r.styles.Source.Render(fmt.Sprintf("    chunk %d", res.Chunk.Position)),
		r.styles.Muted.Render("    " + preview),
	}, "\n")
}

// truncate shortens s to at most n runes, ending the cut with "...".
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// pageSize is how many hits fit in the current height.
func (r *ResultList) pageSize() int {
	return max((r.height-headerLines-2)/linesPerResult, 1)
}

// moveTo clamps i to the results and scrolls the window to show it.
func (r *ResultList) moveTo(i int) {
	if len(r.results) == 0 {
		return
	}
	r.cursor = min(max(i, 0), len(r.results)-1)
	size := r.pageSize()
	switch {
	case r.cursor < r.offset:
		r.offset = r.cursor
	case r.cursor >= r.offset+size:
		r.offset = r.cursor - size + 1
	}
}

// SetResults replaces the hits and moves the cursor to the first one.
func (r *ResultList) SetResults(results []domain.SearchResult) {
	r.results = results
	r.cursor = 0
	r.offset = 0
}

// Results returns the current hits.
func (r *ResultList) Results() []domain.SearchResult {
	return r.results
}

// Selected returns the cursor index.
func (r *ResultList) Selected() int {
	return r.cursor
}

// SetSelected moves the cursor; out-of-range indexes are ignored.
func (r *ResultList) SetSelected(i int) {
	if i >= 0 && i < len(r.results) {
		r.moveTo(i)
	}
}

// SelectedResult returns the hit under the cursor, or nil.
func (r *ResultList) SelectedResult() *domain.SearchResult {
	if r.cursor < 0 || r.cursor >= len(r.results) {
		return nil
	}
	return &r.results[r.cursor]
}

// Offset returns the index of the first visible hit.
func (r *ResultList) Offset() int {
	return r.offset
}

// MoveUp moves the cursor up one hit.
func (r *ResultList) MoveUp() {
	r.moveTo(r.cursor - 1)
}

// MoveDown moves the cursor down one hit.
func (r *ResultList) MoveDown() {
	r.moveTo(r.cursor + 1)
}

// SetDimensions resizes the list, keeping the cursor visible.
func (r *ResultList) SetDimensions(width, height int) {
	r.width = width
	r.height = height
	r.moveTo(r.cursor)
}

// Width returns the current width.
func (r *ResultList) Width() int {
	return r.width
}

// Height returns the current height.
func (r *ResultList) Height() int {
	return r.height
}

// Count returns the number of hits.
func (r *ResultList) Count() int {
	return len(r.results)
}

// IsEmpty reports whether there are no hits.
func (r *ResultList) IsEmpty() bool {
	return len(r.results) == 0
}
