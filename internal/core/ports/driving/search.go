package driving

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// SearchService retrieves chunks from the index.
type SearchService interface {
	// Search returns the chunks most relevant to the query.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}
