package driven

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// ArtifactStore persists the plain-text corpus, one artifact per page.
type ArtifactStore interface {
	// Save writes an artifact. Saving an ID already held by a different URL
	// fails with domain.ErrArtifactCollision; re-saving the same URL is a no-op.
	Save(ctx context.Context, artifact *domain.TextArtifact) error

	// Get returns the artifact with the given ID, or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.TextArtifact, error)

	// List returns the IDs of every artifact in the corpus, sorted.
	List(ctx context.Context) ([]string, error)

	// Path returns the corpus location.
	Path() string
}
