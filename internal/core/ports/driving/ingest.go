package driving

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// Ingester turns the corpus into a searchable index.
type Ingester interface {
	// Ingest chunks and embeds every artifact and commits the result
	// atomically. Any embedding failure fails the whole run.
	Ingest(ctx context.Context, opts domain.IngestOptions) (*domain.IngestReport, error)

	// Stats summarises the current index.
	Stats(ctx context.Context) (domain.IndexStats, error)
}
