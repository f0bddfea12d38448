package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

var (
	searchLimit int
	searchMode  string
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the indexed documentation",
	Long: `Retrieves the chunks most relevant to a query without generating an answer.

Modes:
  vector   - Semantic similarity of embeddings (default)
  keyword  - BM25 keyword relevance
  hybrid   - Both, fused with reciprocal rank fusion`,
	Args:        cobra.ExactArgs(1),
	Annotations: withAccess(AccessServe),
	RunE:        runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 4, "maximum number of results")
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", "", "search mode: vector, keyword or hybrid")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	mode := domain.SearchMode(searchMode)
	if searchMode != "" && !mode.IsValid() {
		return fmt.Errorf("unknown search mode %q", searchMode)
	}

	opts := domain.SearchOptions{
		Limit: searchLimit,
		Mode:  mode,
	}

	results, err := searchService.Search(cmd.Context(), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

// searchHit is the JSON shape of a search result.
type searchHit struct {
	URL        string   `json:"url"`
	ChunkID    string   `json:"chunk_id"`
	Position   int      `json:"position"`
	Score      float64  `json:"score"`
	Content    string   `json:"content"`
	Highlights []string `json:"highlights,omitempty"`
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	hits := make([]searchHit, len(results))
	for i, r := range results {
		hits[i] = searchHit{
			URL:        r.Chunk.SourceURL,
			ChunkID:    r.Chunk.ID,
			Position:   r.Chunk.Position,
			Score:      r.Score,
			Content:    r.Chunk.Content,
			Highlights: r.Highlights,
		}
	}
	data, err := json.MarshalIndent(hits, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		snippet := ""
		if len(results[i].Highlights) > 0 {
			snippet = results[i].Highlights[0]
		}

		cmd.Printf("  [%d] %s (%.3f)\n", i+1, results[i].Chunk.SourceURL, results[i].Score)
		if snippet != "" {
			cmd.Printf("      %s\n", snippet)
		}
		cmd.Println()
	}

	return nil
}
