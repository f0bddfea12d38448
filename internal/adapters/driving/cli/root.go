// Package cli provides the docchat command line interface built on cobra.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

// version is set at build time with -ldflags.
var version = "dev"

// Access describes which stores a command opens.
type Access string

const (
	// AccessNone opens nothing beyond settings.
	AccessNone Access = "none"

	// AccessCrawl opens the corpus for writing.
	AccessCrawl Access = "crawl"

	// AccessIngest opens the corpus and opens the index for writing.
	AccessIngest Access = "ingest"

	// AccessServe opens the index read-only and starts the answering engine.
	AccessServe Access = "serve"
)

const accessAnnotation = "docchat/access"

// CorpusCleaner removes artifacts before a fresh crawl.
type CorpusCleaner interface {
	List(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, id string) error
}

// Services holds the services a command runs against.
// Fields not needed for the requested Access may be nil.
type Services struct {
	Settings driving.SettingsService
	Crawler  driving.Crawler
	Corpus   CorpusCleaner
	Ingester driving.Ingester
	Search   driving.SearchService
	Answer   driving.AnswerService

	// Close releases stores opened for the command.
	Close func() error
}

// ConnectOptions describes what a command needs from the connector.
type ConnectOptions struct {
	Access Access

	// RequestsPerSecond overrides crawl.requests_per_second when positive.
	RequestsPerSecond float64
}

// Connector opens the services for a command.
type Connector func(ctx context.Context, opts ConnectOptions) (*Services, error)

var (
	verbose   bool
	connector Connector
	closer    func() error

	settingsService driving.SettingsService
	crawler         driving.Crawler
	corpusCleaner   CorpusCleaner
	ingester        driving.Ingester
	searchService   driving.SearchService
	answerService   driving.AnswerService
)

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Chat with a documentation site",
	Long: `docchat crawls a documentation website into a plain-text corpus,
indexes it with embeddings and answers questions about it in a
conversation that remembers earlier turns.

Typical workflow:
  docchat crawl     # fetch the site into the corpus
  docchat ingest    # chunk, embed and index the corpus
  docchat chat      # ask questions interactively`,
	SilenceUsage:       true,
	PersistentPreRunE:  connect,
	PersistentPostRunE: disconnect,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show pipeline details")
}

// SetConnector installs the function that opens services per command.
func SetConnector(c Connector) {
	connector = c
}

// SetVersion sets the version reported by `docchat version`.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// Shutdown releases anything the last command opened. Cobra skips
// post-run hooks when a command fails, so main calls this too.
func Shutdown() error {
	return disconnect(nil, nil)
}

// accessFor returns the access a command declares. Commands without an
// annotation inherit it from their parent.
func accessFor(cmd *cobra.Command) Access {
	for c := cmd; c != nil; c = c.Parent() {
		if a, ok := c.Annotations[accessAnnotation]; ok {
			return Access(a)
		}
	}
	return AccessNone
}

func withAccess(a Access) map[string]string {
	return map[string]string{accessAnnotation: string(a)}
}

func connect(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if connector == nil {
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	opts := ConnectOptions{Access: accessFor(cmd)}
	if opts.Access == AccessCrawl {
		opts.RequestsPerSecond = crawlRPS
	}

	svc, err := connector(ctx, opts)
	if err != nil {
		return fmt.Errorf("starting docchat: %w", err)
	}
	settingsService = svc.Settings
	crawler = svc.Crawler
	corpusCleaner = svc.Corpus
	ingester = svc.Ingester
	searchService = svc.Search
	answerService = svc.Answer
	closer = svc.Close
	return nil
}

func disconnect(_ *cobra.Command, _ []string) error {
	if closer == nil {
		return nil
	}
	err := closer()
	closer = nil
	return err
}
