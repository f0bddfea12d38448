package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

var ingestReset bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Chunk, embed and index the corpus",
	Long: `Splits every corpus artifact into overlapping chunks, embeds each chunk
and commits the result to the index in a single transaction.

Any embedding failure aborts the run and leaves the existing index untouched.
With --reset (the default) the index is rebuilt from scratch; --reset=false
adds to the current index instead.`,
	Args:        cobra.NoArgs,
	Annotations: withAccess(AccessIngest),
	RunE:        runIngest,
}

var statsCmd = &cobra.Command{
	Use:         "stats",
	Short:       "Show index statistics",
	Args:        cobra.NoArgs,
	Annotations: withAccess(AccessServe),
	RunE:        runStats,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestReset, "reset", true, "replace the existing index")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(statsCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	if ingester == nil {
		return errors.New("ingest service not configured")
	}

	cmd.Println("Ingesting corpus...")
	report, err := ingester.Ingest(cmd.Context(), domain.IngestOptions{Reset: ingestReset})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	cmd.Println()
	cmd.Println("Ingest Summary")
	cmd.Println("==============")
	cmd.Printf("  Artifacts:  %d\n", report.Artifacts)
	cmd.Printf("  Chunks:     %d\n", report.Chunks)
	cmd.Printf("  Model:      %s (%d dimensions)\n", report.Model, report.Dimensions)
	cmd.Printf("  Duration:   %s\n", report.Duration.Round(time.Millisecond))
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	if ingester == nil {
		return errors.New("ingest service not configured")
	}

	stats, err := ingester.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}

	cmd.Println("Index")
	cmd.Println("=====")
	cmd.Printf("  Artifacts:  %d\n", stats.Artifacts)
	cmd.Printf("  Chunks:     %d\n", stats.Chunks)
	if stats.Model != "" {
		cmd.Printf("  Model:      %s (%d dimensions)\n", stats.Model, stats.Dimensions)
	} else {
		cmd.Println("  Model:      (empty index)")
	}
	return nil
}
