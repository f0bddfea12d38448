// Package chat provides the conversation view for the TUI.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

// entry is one rendered exchange. Turns loaded from history carry no sources.
type entry struct {
	turn    domain.Turn
	sources []string
}

// View is a scrolling transcript above a question prompt.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.Prompt
	statusbar *status.Bar
	viewport  viewport.Model
	spinner   spinner.Model

	answerService driving.AnswerService
	sessionID     string
	ctx           context.Context

	entries     []entry
	pending     string // question awaiting an answer
	showSources bool

	width  int
	height int
	ready  bool
	err    error
}

// NewView creates a chat view bound to one session.
func NewView(s *styles.Styles, km *keymap.KeyMap, answerService driving.AnswerService, sessionID string) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	bar := status.NewBar(s, km.ChatHelp())
	bar.SetSession(sessionID)

	return &View{
		styles:        s,
		keymap:        km,
		input:         input.NewPrompt(s, "Ask:", "Ask a question about the docs..."),
		statusbar:     bar,
		viewport:      viewport.New(80, 18),
		spinner:       sp,
		answerService: answerService,
		sessionID:     sessionID,
		ctx:           context.Background(),
		showSources:   true,
		width:         80,
		height:        24,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init starts the cursor blink and loads the session's history.
func (v *View) Init() tea.Cmd {
	return tea.Batch(v.input.Init(), v.loadHistory())
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case spinner.TickMsg:
		if v.pending == "" {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		v.refresh()
		return v, cmd

	case messages.HistoryLoaded:
		v.handleHistoryLoaded(msg)
		return v, nil

	case messages.AnswerReceived:
		v.handleAnswerReceived(msg)
		return v, nil

	case messages.SessionReset:
		v.handleSessionReset(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keymap.Send):
		return v, v.send()
	case key.Matches(msg, v.keymap.Reset):
		if v.pending != "" {
			return v, nil
		}
		return v, v.reset()
	case key.Matches(msg, v.keymap.ToggleSources):
		v.showSources = !v.showSources
		v.refresh()
		return v, nil
	case key.Matches(msg, v.keymap.ScrollUp), key.Matches(msg, v.keymap.ScrollDown):
		var cmd tea.Cmd
		v.viewport, cmd = v.viewport.Update(msg)
		return v, cmd
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// send submits the typed question. Only one question is in flight at a time.
func (v *View) send() tea.Cmd {
	question := strings.TrimSpace(v.input.Value())
	if question == "" || v.pending != "" {
		return nil
	}

	v.pending = question
	v.err = nil
	v.input.Reset()
	v.statusbar.SetState(status.StateThinking)
	v.statusbar.SetMessage("")
	v.refresh()

	return tea.Batch(v.spinner.Tick, v.ask(question))
}

func (v *View) ask(question string) tea.Cmd {
	ctx, svc, sessionID := v.ctx, v.answerService, v.sessionID
	return func() tea.Msg {
		if svc == nil {
			return messages.AnswerReceived{Question: question, Err: ErrNoAnswerService}
		}
		answer, err := svc.Answer(ctx, sessionID, question)
		return messages.AnswerReceived{Question: question, Answer: answer, Err: err}
	}
}

func (v *View) loadHistory() tea.Cmd {
	ctx, svc, sessionID := v.ctx, v.answerService, v.sessionID
	return func() tea.Msg {
		if svc == nil {
			return messages.HistoryLoaded{SessionID: sessionID, Err: ErrNoAnswerService}
		}
		turns, err := svc.History(ctx, sessionID)
		return messages.HistoryLoaded{SessionID: sessionID, Turns: turns, Err: err}
	}
}

func (v *View) reset() tea.Cmd {
	ctx, svc, sessionID := v.ctx, v.answerService, v.sessionID
	return func() tea.Msg {
		if svc == nil {
			return messages.SessionReset{SessionID: sessionID, Err: ErrNoAnswerService}
		}
		return messages.SessionReset{SessionID: sessionID, Err: svc.Reset(ctx, sessionID)}
	}
}

func (v *View) handleHistoryLoaded(msg messages.HistoryLoaded) {
	if msg.SessionID != v.sessionID {
		return
	}
	if msg.Err != nil {
		v.setError(msg.Err)
		return
	}

	v.entries = v.entries[:0]
	for _, turn := range msg.Turns {
		v.entries = append(v.entries, entry{turn: turn})
	}
	v.refresh()
}

// handleAnswerReceived appends the exchange. On failure the question is put
// back in the prompt so it can be retried.
func (v *View) handleAnswerReceived(msg messages.AnswerReceived) {
	if msg.Question != v.pending {
		return
	}
	v.pending = ""

	if msg.Err != nil {
		v.input.SetValue(msg.Question)
		v.setError(msg.Err)
		v.refresh()
		return
	}

	e := entry{turn: domain.Turn{Question: msg.Question}}
	if msg.Answer != nil {
		e.turn.Answer = msg.Answer.Text
		e.sources = sourceURLs(msg.Answer.Sources)
	}
	v.entries = append(v.entries, e)
	v.err = nil
	v.statusbar.Clear()
	v.refresh()
}

func (v *View) handleSessionReset(msg messages.SessionReset) {
	if msg.Err != nil {
		v.setError(msg.Err)
		return
	}
	v.entries = nil
	v.err = nil
	v.statusbar.Clear()
	v.statusbar.SetMessage("Conversation cleared")
	v.refresh()
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

// refresh re-renders the transcript and keeps the latest exchange in view.
func (v *View) refresh() {
	v.viewport.SetContent(v.transcript())
	v.viewport.GotoBottom()
}

func (v *View) transcript() string {
	if len(v.entries) == 0 && v.pending == "" {
		return v.styles.Muted.Render("Ask anything about the indexed documentation.")
	}

	wrap := lipgloss.NewStyle().Width(max(v.width-2, 20))
	var b strings.Builder
	for _, e := range v.entries {
		b.WriteString(v.styles.Question.Render("You: "))
		b.WriteString(wrap.Render(e.turn.Question))
		b.WriteString("\n")
		b.WriteString(v.styles.Answer.Render("docchat: "))
		b.WriteString(wrap.Render(e.turn.Answer))
		b.WriteString("\n")
		if v.showSources && len(e.sources) > 0 {
			for _, u := range e.sources {
				b.WriteString(v.styles.Source.Render("  - " + u))
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}
	if v.pending != "" {
		b.WriteString(v.styles.Question.Render("You: "))
		b.WriteString(wrap.Render(v.pending))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s %s", v.spinner.View(), v.styles.Muted.Render("Thinking...")))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// View renders the chat view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		v.viewport.View(),
		"",
		v.input.View(),
		v.statusbar.View(),
	)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.viewport.Width = width
	v.viewport.Height = max(height-4, 3) // prompt and status bar
	v.input.SetWidth(width)
	v.statusbar.SetWidth(width)
	v.refresh()
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

// SessionID returns the session the view converses in.
func (v *View) SessionID() string {
	return v.sessionID
}

// Turns returns the exchanges shown in the transcript, oldest first.
func (v *View) Turns() []domain.Turn {
	turns := make([]domain.Turn, len(v.entries))
	for i, e := range v.entries {
		turns[i] = e.turn
	}
	return turns
}

// Thinking reports whether a question is awaiting its answer.
func (v *View) Thinking() bool {
	return v.pending != ""
}

// ShowSources reports whether source URLs are shown under answers.
func (v *View) ShowSources() bool {
	return v.showSources
}

// Input returns the text currently typed in the prompt.
func (v *View) Input() string {
	return v.input.Value()
}

// SetInput replaces the text in the prompt.
func (v *View) SetInput(text string) {
	v.input.SetValue(text)
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// Focus gives the prompt focus.
func (v *View) Focus() tea.Cmd {
	return v.input.Focus()
}

// Blur removes focus from the prompt.
func (v *View) Blur() {
	v.input.Blur()
}

// sourceURLs returns the distinct source URLs in rank order.
func sourceURLs(results []domain.SearchResult) []string {
	seen := make(map[string]bool, len(results))
	var urls []string
	for _, r := range results {
		u := r.Chunk.SourceURL
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}
