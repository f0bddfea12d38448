package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/views/chat"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/views/search"
)

// tabBarHeight is the number of lines taken by the view switcher.
const tabBarHeight = 2

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	// ports provides access to core services via driving ports.
	ports *Ports

	// ctx is the context for cancellation.
	ctx context.Context

	styles *styles.Styles
	keymap *keymap.KeyMap

	chatView   *chat.View
	searchView *search.View

	// currentView tracks which view is active.
	currentView messages.ViewType

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates if the app has received its first window size.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if ports == nil {
		return nil, fmt.Errorf("creating app: %w", ErrInvalidPorts)
	}
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	searchView := search.NewView(s, km, ports.Search)
	searchView.Blur()

	return &App{
		ports:       ports,
		ctx:         context.Background(),
		styles:      s,
		keymap:      km,
		chatView:    chat.NewView(s, km, ports.Answer, ports.SessionID),
		searchView:  searchView,
		currentView: messages.ViewChat,
	}, nil
}

// WithContext sets the context for the app and its views.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.chatView.WithContext(ctx)
	a.searchView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("docchat"),
		a.chatView.Init(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		inner := tea.WindowSizeMsg{Width: msg.Width, Height: max(msg.Height-tabBarHeight, 1)}
		a.chatView.Update(inner)
		a.searchView.Update(inner)
		return a, nil

	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case messages.ViewChanged:
		return a, a.switchTo(msg.View)

	case messages.AnswerReceived, messages.HistoryLoaded, messages.SessionReset, spinner.TickMsg:
		a.chatView, cmd = a.chatView.Update(msg)
		return a, cmd

	case messages.SearchCompleted:
		a.searchView, cmd = a.searchView.Update(msg)
		return a, cmd
	}

	return a, a.updateCurrent(msg)
}

func (a *App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keymap.Quit):
		return a, tea.Quit
	case key.Matches(msg, a.keymap.SwitchView):
		return a, a.switchTo(a.currentView.Next())
	}
	return a, a.updateCurrent(msg)
}

func (a *App) updateCurrent(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if a.currentView == messages.ViewSearch {
		a.searchView, cmd = a.searchView.Update(msg)
	} else {
		a.chatView, cmd = a.chatView.Update(msg)
	}
	return cmd
}

// switchTo activates a view and moves keyboard focus to it.
func (a *App) switchTo(view messages.ViewType) tea.Cmd {
	a.currentView = view
	if view == messages.ViewSearch {
		a.chatView.Blur()
		return a.searchView.Focus()
	}
	a.searchView.Blur()
	return a.chatView.Focus()
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	var body string
	if a.currentView == messages.ViewSearch {
		body = a.searchView.View()
	} else {
		body = a.chatView.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, a.renderTabs(), body)
}

func (a *App) renderTabs() string {
	views := []messages.ViewType{messages.ViewChat, messages.ViewSearch}
	tabs := make([]string, 0, len(views)+1)
	tabs = append(tabs, a.styles.Title.Render("docchat"))
	for _, v := range views {
		if v == a.currentView {
			tabs = append(tabs, a.styles.ActiveTab.Render(v.String()))
		} else {
			tabs = append(tabs, a.styles.Tab.Render(v.String()))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...) + "\n"
}

// CurrentView returns the active view.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// SessionID returns the conversation session the chat view uses.
func (a *App) SessionID() string {
	return a.chatView.SessionID()
}

// Ready returns whether the app has received its first window size.
func (a *App) Ready() bool {
	return a.ready
}

// Width returns the terminal width.
func (a *App) Width() int {
	return a.width
}

// Height returns the terminal height.
func (a *App) Height() int {
	return a.height
}
