// Package search provides the retrieval-only view for the TUI.
package search

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

// View shows the chunks a query retrieves, without generating an answer.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.Prompt
	list      *list.ResultList
	statusbar *status.Bar

	searchService driving.SearchService
	ctx           context.Context

	width   int
	height  int
	ready   bool
	err     error
	pending string // query awaiting results
}

// NewView creates a new search view.
func NewView(s *styles.Styles, km *keymap.KeyMap, searchService driving.SearchService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:        s,
		keymap:        km,
		input:         input.NewPrompt(s, "Search:", "Find passages in the docs..."),
		list:          list.NewResultList(s),
		statusbar:     status.NewBar(s, km.SearchHelp()),
		searchService: searchService,
		ctx:           context.Background(),
		width:         80,
		height:        24,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the search view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.SearchCompleted:
		v.handleSearchCompleted(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// handleKeyMsg processes keyboard input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keymap.Send):
		query := v.input.Value()
		if query == "" {
			return v, nil
		}
		v.pending = query
		v.statusbar.SetState(status.StateSearching)
		v.statusbar.SetMessage("")
		return v, v.performSearch(query)
	case key.Matches(msg, v.keymap.Up):
		v.list.MoveUp()
		return v, nil
	case key.Matches(msg, v.keymap.Down):
		v.list.MoveDown()
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// performSearch executes a search and returns results.
func (v *View) performSearch(query string) tea.Cmd {
	ctx := v.ctx
	svc := v.searchService
	return func() tea.Msg {
		if svc == nil {
			return messages.ErrorOccurred{Err: ErrNoSearchService}
		}

		results, err := svc.Search(ctx, query, domain.SearchOptions{})
		return messages.SearchCompleted{Query: query, Results: results, Err: err}
	}
}

// handleSearchCompleted processes search results. Results for a query
// other than the latest one are dropped.
func (v *View) handleSearchCompleted(msg messages.SearchCompleted) {
	if msg.Query != v.pending {
		return
	}
	v.pending = ""

	if msg.Err != nil {
		v.setError(msg.Err)
		return
	}

	v.err = nil
	v.list.SetResults(msg.Results)
	v.statusbar.SetState(status.StateReady)
	if len(msg.Results) == 1 {
		v.statusbar.SetMessage("1 result")
	} else {
		v.statusbar.SetMessage(fmt.Sprintf("%d results", len(msg.Results)))
	}
}

func (v *View) setError(err error) {
	v.pending = ""
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

// View renders the search view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 8)
	sections = append(sections, v.input.View(), "")

	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}

	sections = append(sections, v.list.View(), "", v.statusbar.View())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.input.SetWidth(width)
	v.list.SetDimensions(width, height-6) // input and status bar
	v.statusbar.SetWidth(width)
}

// Width returns the current width.
func (v *View) Width() int {
	return v.width
}

// Height returns the current height.
func (v *View) Height() int {
	return v.height
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}

// Query returns the current search query.
func (v *View) Query() string {
	return v.input.Value()
}

// SetQuery sets the search query.
func (v *View) SetQuery(query string) {
	v.input.SetValue(query)
}

// Results returns the current search results.
func (v *View) Results() []domain.SearchResult {
	return v.list.Results()
}

// SelectedIndex returns the index of the selected result.
func (v *View) SelectedIndex() int {
	return v.list.Selected()
}

// SelectedResult returns the currently selected result.
func (v *View) SelectedResult() *domain.SearchResult {
	return v.list.SelectedResult()
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// Searching reports whether a query is awaiting results.
func (v *View) Searching() bool {
	return v.pending != ""
}

// Focus gives the query input focus.
func (v *View) Focus() tea.Cmd {
	return v.input.Focus()
}

// Blur removes focus from the query input.
func (v *View) Blur() {
	v.input.Blur()
}

// Reset clears the query, results and any error.
func (v *View) Reset() {
	v.input.Reset()
	v.list.SetResults(nil)
	v.err = nil
	v.pending = ""
	v.statusbar.Clear()
}
