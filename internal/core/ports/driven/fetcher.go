package driven

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// Fetcher retrieves a single page.
// Implementations own timeouts, politeness and body size limits.
type Fetcher interface {
	// Fetch returns the page body. Network failures and HTTP statuses
	// of 400 and above are reported as errors wrapping domain.ErrFetch.
	Fetch(ctx context.Context, url string) (*domain.FetchedPage, error)
}
