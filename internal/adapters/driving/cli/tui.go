package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/docchat/internal/adapters/driving/tui"
)

var tuiSession string

// runProgram runs a bubbletea model. Tests replace it to avoid a terminal.
var runProgram = func(m tea.Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// tuiCmd represents the tui command.
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal user interface for docchat.

The TUI has a chat view for conversing with the documentation and a search
view that shows the passages a query retrieves.

Controls:
  Enter    - Send question / Search
  Tab      - Switch between chat and search
  PgUp/Dn  - Scroll the conversation
  ↑/↓      - Move through search results
  Ctrl+R   - Start a new conversation
  Ctrl+S   - Show or hide sources
  Esc      - Quit

Without --session a new conversation is started.`,
	Args:        cobra.NoArgs,
	Annotations: withAccess(AccessServe),
	RunE:        runTUI,
}

func init() {
	tuiCmd.Flags().StringVarP(&tuiSession, "session", "s", "", "continue an existing session")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			err = errors.New("TUI crashed")
		}
	}()

	sessionID := tuiSession
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	app, err := tui.NewApp(&tui.Ports{
		Answer:    answerService,
		Search:    searchService,
		SessionID: sessionID,
	})
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	if ctx := cmd.Context(); ctx != nil {
		app.WithContext(ctx)
	}

	if err := runProgram(app); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
