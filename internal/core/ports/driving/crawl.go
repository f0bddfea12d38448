package driving

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// Crawler builds the text corpus from a documentation site.
type Crawler interface {
	// Crawl runs until the frontier is exhausted or ctx is cancelled.
	// Per-page failures are counted in the report, never returned.
	Crawl(ctx context.Context, req domain.CrawlRequest) (*domain.CrawlReport, error)

	// Status returns progress of the current or last crawl.
	Status() CrawlStatus
}

// CrawlStatus represents the progress of a crawl.
type CrawlStatus struct {
	// Running indicates if a crawl is in progress.
	Running bool

	// Fetched is the number of artifacts written so far.
	Fetched int

	// Failed is the number of abandoned URLs so far.
	Failed int

	// Pending is the number of queued URLs not yet fetched.
	Pending int
}
