package driven

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// VectorIndex stores chunk embeddings with their text and serves
// nearest-neighbour queries. It is the source of truth for retrieval.
type VectorIndex interface {
	// Commit writes every entry atomically: either all entries are stored
	// or none are. With opts.Reset, existing entries are removed in the
	// same commit.
	Commit(ctx context.Context, entries []domain.Chunk, opts CommitOptions) error

	// Search finds the k entries most similar to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// GetChunks returns stored chunks by ID, in the order requested.
	// Unknown IDs are skipped.
	GetChunks(ctx context.Context, ids []string) ([]domain.Chunk, error)

	// Stats summarises the index contents.
	Stats(ctx context.Context) (domain.IndexStats, error)

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the cosine similarity score.
	Similarity float64
}

// CommitOptions configures a vector index commit.
type CommitOptions struct {
	// Reset removes existing entries before writing.
	Reset bool

	// Model records the embedding model that produced the vectors.
	Model string
}
