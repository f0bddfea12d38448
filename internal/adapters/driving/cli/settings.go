package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure crawl, chunking, retrieval, AI provider and session settings.

Settings are stored in config.toml inside the docchat home directory
(~/.docchat, or $DOCCHAT_HOME). API keys are read from OPENAI_API_KEY and
ANTHROPIC_API_KEY, or from a .env file.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change a setting",
	Long: `Change a single setting by its dot-notation key.

List values are comma separated. When the value of an *.api_key setting is
omitted it is read from the terminal without echo.

Examples:
  docchat settings set chunk.size 1500
  docchat settings set crawl.prefixes /docs/diffusers,/docs/hub
  docchat settings set llm.provider anthropic`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List setting keys",
	Args:  cobra.NoArgs,
	RunE:  runSettingsKeys,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure the embedding and LLM providers.`,
	RunE:  runSettingsWizard,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Crawl]")
	cmd.Printf("  Seeds: %s\n", strings.Join(settings.Crawl.Seeds, ", "))
	cmd.Printf("  Domains: %s\n", strings.Join(settings.Crawl.Domains, ", "))
	cmd.Printf("  Prefixes: %s\n", strings.Join(settings.Crawl.Prefixes, ", "))
	cmd.Printf("  Workers: %d\n", settings.Crawl.Workers)
	if settings.Crawl.MaxPages > 0 {
		cmd.Printf("  Max pages: %d\n", settings.Crawl.MaxPages)
	}
	cmd.Printf("  Requests per second: %g\n", settings.Crawl.RequestsPerSecond)
	cmd.Println()

	cmd.Println("[Chunking]")
	cmd.Printf("  Size: %d\n", settings.Chunk.Size)
	cmd.Printf("  Overlap: %d\n", settings.Chunk.Overlap)
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Corpus: %s\n", settings.Storage.CorpusPath)
	cmd.Printf("  Index: %s\n", settings.Storage.IndexPath)
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  Mode: %s\n", settings.Retrieval.Mode.Description())
	cmd.Printf("  K: %d\n", settings.Retrieval.K)
	cmd.Printf("  Max context chars: %d\n", settings.Retrieval.MaxContextChars)
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	if settings.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	printAPIKey(cmd, settings.Embedding.Provider, settings.Embedding.APIKey)
	printStatus(cmd, settings.Embedding.IsConfigured())
	cmd.Println()

	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.LLM.Model)
	if settings.LLM.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.LLM.BaseURL)
	}
	cmd.Printf("  Temperature: %g\n", settings.LLM.Temperature)
	printAPIKey(cmd, settings.LLM.Provider, settings.LLM.APIKey)
	printStatus(cmd, settings.LLM.IsConfigured())
	cmd.Println()

	cmd.Println("[Memory]")
	cmd.Printf("  Include history: %t\n", settings.Memory.IncludeHistory)
	if settings.Memory.MaxTurns > 0 {
		cmd.Printf("  Max turns: %d\n", settings.Memory.MaxTurns)
	} else {
		cmd.Println("  Max turns: unlimited")
	}
	cmd.Printf("  Condense question: %t\n", settings.Memory.CondenseQuestion)
	cmd.Println()

	cmd.Println("[Sessions]")
	cmd.Printf("  Backend: %s\n", settings.Session.Backend)
	if settings.Session.Backend == domain.SessionBackendRedis {
		cmd.Printf("  Redis: %s (db %d)\n", settings.Session.RedisAddr, settings.Session.RedisDB)
	}
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'docchat settings wizard' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func printAPIKey(cmd *cobra.Command, provider domain.AIProvider, key string) {
	if !provider.RequiresAPIKey() {
		return
	}
	if key != "" {
		cmd.Printf("  API Key: %s\n", maskAPIKey(key))
	} else {
		cmd.Printf("  API Key: (not set)\n")
	}
}

func printStatus(cmd *cobra.Command, configured bool) {
	status := "configured"
	if !configured {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key := args[0]
	var value string
	switch {
	case len(args) == 2:
		value = args[1]
	case strings.HasSuffix(key, ".api_key"):
		cmd.Print("Enter API key: ")
		value = readPassword()
		cmd.Println()
	default:
		return fmt.Errorf("missing value for %s", key)
	}

	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	shown := value
	if strings.HasSuffix(key, ".api_key") {
		shown = maskAPIKey(value)
	}
	cmd.Printf("%s = %s\n", key, shown)
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	for _, key := range settingsService.Keys() {
		cmd.Println(key)
	}
	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cmd.Println("docchat Settings Wizard")
	cmd.Println("=======================")
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())

	cmd.Println("Step 1: Retrieval Mode")
	cmd.Println("----------------------")
	modes := domain.AllSearchModes()
	for i, mode := range modes {
		cmd.Printf("  %d. %s\n", i+1, mode.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	modeIdx := parseChoice(readLine(reader), len(modes), 1)
	selectedMode := modes[modeIdx-1]
	if err := settingsService.Set("retrieval.mode", selectedMode.String()); err != nil {
		return fmt.Errorf("failed to set retrieval mode: %w", err)
	}
	cmd.Printf("Set retrieval mode to: %s\n\n", selectedMode.Description())

	cmd.Println("Step 2: Embedding Provider")
	cmd.Println("--------------------------")
	if err := configureProvider(cmd, reader, "embedding",
		domain.AllEmbeddingProviders(), domain.DefaultEmbeddingModels()); err != nil {
		return err
	}
	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")
	cmd.Println()

	cmd.Println("Step 3: LLM Provider")
	cmd.Println("--------------------")
	if err := configureProvider(cmd, reader, "llm",
		domain.AllLLMProviders(), domain.DefaultLLMModels()); err != nil {
		return err
	}
	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")
	cmd.Println()

	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("All settings are valid and saved.")
	}

	return nil
}

// configureProvider asks for a provider and model and stores them under
// the given settings section.
func configureProvider(
	cmd *cobra.Command,
	reader *bufio.Reader,
	section string,
	providers []domain.AIProvider,
	defaults map[domain.AIProvider]string,
) error {
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selected := providers[idx-1]

	defaultModel := defaults[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	if err := settingsService.Set(section+".provider", selected.String()); err != nil {
		return fmt.Errorf("failed to set %s provider: %w", section, err)
	}
	if err := settingsService.Set(section+".model", model); err != nil {
		return fmt.Errorf("failed to set %s model: %w", section, err)
	}

	if selected.RequiresAPIKey() {
		settings, err := settingsService.Get()
		if err != nil {
			return fmt.Errorf("failed to get settings: %w", err)
		}
		key := settings.Embedding.APIKey
		if section == "llm" {
			key = settings.LLM.APIKey
		}
		if key == "" {
			cmd.Print("Enter API key (leave empty to use the environment): ")
			if apiKey := readPassword(); apiKey != "" {
				if err := settingsService.Set(section+".api_key", apiKey); err != nil {
					return fmt.Errorf("failed to set %s API key: %w", section, err)
				}
			}
			cmd.Println()
		}
	}

	cmd.Printf("%s provider: %s (%s)\n", section, selected.Description(), model)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
