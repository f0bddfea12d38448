package driven

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// KeywordIndex provides BM25 keyword search over chunks.
type KeywordIndex interface {
	// Stage builds a new index generation containing chunks without making
	// it visible. With reset the generation replaces the current contents,
	// otherwise it extends them.
	Stage(ctx context.Context, chunks []domain.Chunk, reset bool) (StagedIndex, error)

	// Search performs a keyword query and returns matching chunk IDs with scores.
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)

	// Close releases resources.
	Close() error
}

// StagedIndex is an unpublished keyword index generation.
type StagedIndex interface {
	// Publish makes the staged generation the live index.
	Publish() error

	// Discard removes the staged generation.
	Discard() error
}

// SearchHit represents a keyword search result.
type SearchHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the relevance score (BM25).
	Score float64

	// Highlights are fragments with the matched terms.
	Highlights []string
}
