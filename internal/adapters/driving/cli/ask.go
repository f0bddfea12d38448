package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

const defaultCLISession = "cli"

var (
	askSession  string
	askSources  bool
	chatSession string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question",
	Long: `Answers one question from the indexed documentation.

Questions asked with the same --session share their history, so a follow-up
can refer to an earlier answer.`,
	Args:        cobra.MinimumNArgs(1),
	Annotations: withAccess(AccessServe),
	RunE:        runAsk,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the documentation",
	Long: `Starts a conversation on the terminal. Every line is a question; answers
take the earlier turns of the conversation into account.

Commands:
  /history  - Show the conversation so far
  /reset    - Forget the conversation
  /exit     - Leave (Ctrl-D works too)`,
	Args:        cobra.NoArgs,
	Annotations: withAccess(AccessServe),
	RunE:        runChat,
}

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", defaultCLISession, "conversation session ID")
	askCmd.Flags().BoolVar(&askSources, "sources", true, "list the source URLs of the answer")
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", defaultCLISession, "conversation session ID")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if answerService == nil {
		return errors.New("answer service not configured")
	}

	question := strings.Join(args, " ")
	answer, err := answerService.Answer(cmd.Context(), askSession, question)
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}

	printAnswer(cmd, answer, askSources)
	return nil
}

func runChat(cmd *cobra.Command, _ []string) error {
	if answerService == nil {
		return errors.New("answer service not configured")
	}

	in := cmd.InOrStdin()
	interactive := isTerminal(in)
	if interactive {
		cmd.Printf("docchat %s - session %q. Type /exit to leave.\n\n", version, chatSession)
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		if interactive {
			cmd.Print("> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/exit", "/quit":
			return nil
		case "/reset":
			if err := answerService.Reset(cmd.Context(), chatSession); err != nil {
				cmd.PrintErrf("Error: %v\n", err)
				continue
			}
			cmd.Println("Conversation cleared.")
			continue
		case "/history":
			if err := printHistory(cmd, chatSession); err != nil {
				cmd.PrintErrf("Error: %v\n", err)
			}
			continue
		}

		answer, err := answerService.Answer(cmd.Context(), chatSession, line)
		if err != nil {
			if cmd.Context() != nil && cmd.Context().Err() != nil {
				return cmd.Context().Err()
			}
			cmd.PrintErrf("Error: %v\n", err)
			continue
		}
		printAnswer(cmd, answer, true)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

func printAnswer(cmd *cobra.Command, answer *domain.Answer, withSources bool) {
	cmd.Println(answer.Text)
	if !withSources {
		cmd.Println()
		return
	}

	urls := sourceURLs(answer.Sources)
	if len(urls) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for _, u := range urls {
			cmd.Printf("  - %s\n", u)
		}
	}
	if answer.StandaloneQuestion != "" {
		cmd.Printf("\nSearched for: %s\n", answer.StandaloneQuestion)
	}
	if answer.Usage.Total() > 0 {
		cmd.Printf("Tokens: %d (%d prompt, %d completion)\n",
			answer.Usage.Total(), answer.Usage.PromptTokens, answer.Usage.CompletionTokens)
	}
	cmd.Println()
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

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
