package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage conversation sessions",
	Long: `List, inspect and reset conversation sessions.

With the memory backend sessions live only as long as one process; use
session.backend = "redis" to keep them between commands.`,
	Annotations: withAccess(AccessServe),
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionList,
}

var sessionHistoryCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "Show a session's questions and answers",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionHistory,
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset [session-id]",
	Short: "Forget a session's history",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionReset,
}

func init() {
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionHistoryCmd)
	sessionCmd.AddCommand(sessionResetCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionList(cmd *cobra.Command, _ []string) error {
	if answerService == nil {
		return errors.New("answer service not configured")
	}

	ids, err := answerService.Sessions(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(ids) == 0 {
		cmd.Println("No sessions.")
		return nil
	}
	for _, id := range ids {
		cmd.Println(id)
	}
	return nil
}

func runSessionHistory(cmd *cobra.Command, args []string) error {
	if answerService == nil {
		return errors.New("answer service not configured")
	}
	return printHistory(cmd, args[0])
}

func runSessionReset(cmd *cobra.Command, args []string) error {
	if answerService == nil {
		return errors.New("answer service not configured")
	}

	if err := answerService.Reset(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}
	cmd.Printf("Session %q reset.\n", args[0])
	return nil
}

func printHistory(cmd *cobra.Command, sessionID string) error {
	turns, err := answerService.History(cmd.Context(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(turns) == 0 {
		cmd.Println("No history.")
		return nil
	}
	for i, turn := range turns {
		cmd.Printf("[%d] %s\n", i+1, turn.AskedAt.Format("2006-01-02 15:04:05"))
		cmd.Printf("Q: %s\n", turn.Question)
		cmd.Printf("A: %s\n\n", turn.Answer)
	}
	return nil
}
