package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

var (
	crawlSeeds    []string
	crawlDomains  []string
	crawlPrefixes []string
	crawlWorkers  int
	crawlMaxPages int
	crawlRPS      float64
	crawlFresh    bool
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the documentation site into the corpus",
	Long: `Fetches every page reachable from the seed URLs that stays within the
allowed domains and path prefixes, converts it to plain text and writes it
to the corpus directory.

Flags override the crawl.* settings for this run only.

Examples:
  docchat crawl
  docchat crawl --seed https://docs.example.com/guide/ --prefix /guide
  docchat crawl --workers 16 --rps 10 --fresh`,
	Args:        cobra.NoArgs,
	Annotations: withAccess(AccessCrawl),
	RunE:        runCrawl,
}

func init() {
	crawlCmd.Flags().StringArrayVar(&crawlSeeds, "seed", nil, "seed URL (repeatable)")
	crawlCmd.Flags().StringArrayVar(&crawlDomains, "domain", nil, "allowed host (repeatable)")
	crawlCmd.Flags().StringArrayVar(&crawlPrefixes, "prefix", nil, "allowed path prefix (repeatable)")
	crawlCmd.Flags().IntVar(&crawlWorkers, "workers", 0, "concurrent fetches (0 = crawl.workers)")
	crawlCmd.Flags().IntVar(&crawlMaxPages, "max-pages", 0, "stop after this many pages (0 = crawl.max_pages)")
	crawlCmd.Flags().Float64Var(&crawlRPS, "rps", 0, "requests per second (0 = crawl.requests_per_second)")
	crawlCmd.Flags().BoolVar(&crawlFresh, "fresh", false, "remove the existing corpus first")
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	if crawler == nil || settingsService == nil {
		return errors.New("crawler not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	req := crawlRequest(cmd, settings.Crawl)

	if crawlFresh {
		removed, err := clearCorpus(cmd)
		if err != nil {
			return err
		}
		cmd.Printf("Removed %d artifacts from the corpus.\n", removed)
	}

	cmd.Printf("Crawling from %d seeds...\n", len(req.Seeds))
	report, err := crawler.Crawl(cmd.Context(), req)
	if report != nil {
		printCrawlReport(cmd, report)
	}
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}
	return nil
}

// crawlRequest merges flags over the configured crawl settings.
func crawlRequest(cmd *cobra.Command, cfg domain.CrawlSettings) domain.CrawlRequest {
	req := domain.CrawlRequest{
		Seeds:          cfg.Seeds,
		AllowedDomains: cfg.Domains,
		PathPrefixes:   cfg.Prefixes,
		Workers:        cfg.Workers,
		MaxPages:       cfg.MaxPages,
	}
	flags := cmd.Flags()
	if flags.Changed("seed") {
		req.Seeds = crawlSeeds
		if !flags.Changed("domain") {
			req.AllowedDomains = nil
		}
		if !flags.Changed("prefix") {
			req.PathPrefixes = nil
		}
	}
	if flags.Changed("domain") {
		req.AllowedDomains = crawlDomains
	}
	if flags.Changed("prefix") {
		req.PathPrefixes = crawlPrefixes
	}
	if crawlWorkers > 0 {
		req.Workers = crawlWorkers
	}
	if crawlMaxPages > 0 {
		req.MaxPages = crawlMaxPages
	}
	return req
}

func clearCorpus(cmd *cobra.Command) (int, error) {
	if corpusCleaner == nil {
		return 0, errors.New("corpus not configured")
	}
	ids, err := corpusCleaner.List(cmd.Context())
	if err != nil {
		return 0, fmt.Errorf("failed to list corpus: %w", err)
	}
	for _, id := range ids {
		if err := corpusCleaner.Remove(cmd.Context(), id); err != nil {
			return 0, fmt.Errorf("failed to remove %s: %w", id, err)
		}
	}
	return len(ids), nil
}

func printCrawlReport(cmd *cobra.Command, report *domain.CrawlReport) {
	cmd.Println()
	cmd.Println("Crawl Summary")
	cmd.Println("=============")
	cmd.Printf("  Fetched:      %d\n", report.Fetched)
	cmd.Printf("  Failed:       %d\n", report.Failed)
	cmd.Printf("  Redirects:    %d\n", report.Redirects)
	cmd.Printf("  Out of scope: %d\n", report.Rejected)
	cmd.Printf("  Duplicates:   %d\n", report.Duplicates)
	if report.Capped > 0 {
		cmd.Printf("  Over cap:     %d\n", report.Capped)
	}
	cmd.Printf("  Duration:     %s\n", report.Duration.Round(time.Millisecond))
}
